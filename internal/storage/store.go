package storage

import "time"

// HistoryRecord 一次编辑会话对一个文件产生的历史条目
// HistoryRecord is the audit entry one edit session produces for one file.
type HistoryRecord struct {
	ID         string
	SessionID  string
	Path       string
	ChangeType string // "added" | "modified"
	Insertions int
	Deletions  int
	CreatedAt  time.Time
}

// ChangeEntry records the outcome of one fenced block within a session.
type ChangeEntry struct {
	HistoryID string
	Seq       int
	Target    string // the change's target description (lines 3-7, Foo-bar (remove), ...)
	State     string // applied | failed
	Error     string
}

// Store 持久化接口；当前只有 SQLite 后端。
// Store is the persistence interface; SQLite is the only backend today.
type Store interface {
	// RecordHistory creates the session's history row. Called once per
	// session, guarded by the apply engine.
	RecordHistory(rec HistoryRecord) error

	// UpdateHistoryStats fills in the final change type and diff stats at
	// finalize time.
	UpdateHistoryStats(id, changeType string, insertions, deletions int) error

	// LogChange appends one per-block outcome under a history row.
	LogChange(entry ChangeEntry) error

	// ListHistory returns the history rows for a path, newest first.
	ListHistory(path string) ([]HistoryRecord, error)

	Close() error
}
