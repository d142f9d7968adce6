package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore 基于 SQLite (WAL 模式) 的历史记录实现
// SQLiteStore implements Store using SQLite with WAL mode.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore 创建并初始化 SQLite 数据库
// NewSQLiteStore creates and initializes the SQLite database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// 启用 WAL 模式和优化 PRAGMA / Enable WAL and performance PRAGMAs
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &SQLiteStore{db: db, path: dbPath}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS file_history (
		id          TEXT PRIMARY KEY,
		session_id  TEXT NOT NULL,
		path        TEXT NOT NULL,
		change_type TEXT NOT NULL DEFAULT 'modified',
		insertions  INTEGER NOT NULL DEFAULT 0,
		deletions   INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_file_history_path ON file_history(path, created_at);

	CREATE TABLE IF NOT EXISTS change_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		history_id TEXT NOT NULL REFERENCES file_history(id) ON DELETE CASCADE,
		seq        INTEGER NOT NULL,
		target     TEXT NOT NULL,
		state      TEXT NOT NULL,
		error      TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_change_log_history ON change_log(history_id, seq);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordHistory(rec HistoryRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("history id is empty")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO file_history (id, session_id, path, change_type, insertions, deletions, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Path, rec.ChangeType, rec.Insertions, rec.Deletions,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateHistoryStats(id, changeType string, insertions, deletions int) error {
	res, err := s.db.Exec(`
		UPDATE file_history SET change_type = ?, insertions = ?, deletions = ? WHERE id = ?`,
		changeType, insertions, deletions, id,
	)
	if err != nil {
		return fmt.Errorf("update history: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("history %s not found", id)
	}
	return nil
}

func (s *SQLiteStore) LogChange(entry ChangeEntry) error {
	_, err := s.db.Exec(`
		INSERT INTO change_log (history_id, seq, target, state, error)
		VALUES (?, ?, ?, ?, ?)`,
		entry.HistoryID, entry.Seq, entry.Target, entry.State, entry.Error,
	)
	if err != nil {
		return fmt.Errorf("insert change entry: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListHistory(path string) ([]HistoryRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, session_id, path, change_type, insertions, deletions, created_at
		FROM file_history WHERE path = ? ORDER BY created_at DESC`, path)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		var rec HistoryRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Path, &rec.ChangeType,
			&rec.Insertions, &rec.Deletions, &createdAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if ts, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
			rec.CreatedAt = ts
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
