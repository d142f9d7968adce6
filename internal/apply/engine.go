// Package apply executes FileChanges against the target file's buffer. Three
// strategies exist: async one-at-a-time queue draining for structural changes,
// serial descending-line-order batching for line-range changes, and a single
// whole-file write for complete-file replacement.
package apply

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"codestream/internal/change"
	"codestream/internal/resolver"
	"codestream/internal/storage"
	"codestream/internal/vfile"
)

// Engine 对单个目标文件执行编辑。一次会话一个 Engine，缓冲区从不被两个变更
// 同时修改。
// Engine applies edits to one target file. One engine per session; the buffer
// is never mutated by two changes at once.
type Engine struct {
	file  *vfile.File
	res   resolver.Resolver
	store storage.Store
	log   *slog.Logger

	sessionID string
	historyID string
	original  string // file content at session start, for diff stats

	historyCreated bool

	// OnFileChanged refreshes any cached changed-files view after finalize.
	OnFileChanged func(path string)
}

func NewEngine(file *vfile.File, res resolver.Resolver, store storage.Store, sessionID, historyID string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		file:      file,
		res:       res,
		store:     store,
		log:       logger,
		sessionID: sessionID,
		historyID: historyID,
		original:  file.Content(),
	}
}

// DrainQueue is the single consumer of the structural-change queue. It
// returns when the queue is closed (no more AST changes will arrive) or the
// context is canceled (session superseded; partially applied changes stay
// as-is, best effort).
//
// Only one change resolves and applies at a time, so each resolution sees the
// line shifts of every previously applied change.
func (e *Engine) DrainQueue(ctx context.Context, queue <-chan *change.FileChange) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch, ok := <-queue:
			if !ok {
				return nil
			}
			e.applyStructural(ctx, ch)
		}
	}
}

func (e *Engine) applyStructural(ctx context.Context, ch *change.FileChange) {
	e.ensureHistory()
	ch.State = change.StateResolving

	span, err := e.res.Resolve(ctx, []byte(e.file.Content()), ch.PathSegments())
	if err != nil {
		ch.Fail(err.Error())
		e.log.Debug("structural change failed", "path", ch.AstPath, "err", err)
		return
	}

	body := ch.BodyLines()
	switch ch.Operation {
	case change.OpReplace:
		err = e.file.ReplaceLines(span.StartLine, span.EndLine, body)
	case change.OpInsertBefore:
		err = e.file.InsertLines(span.StartLine, body, false)
	case change.OpInsertAfter:
		err = e.file.InsertLines(span.EndLine, body, true)
	case change.OpDelete:
		err = e.file.DeleteLines(e.leadingCommentStart(span.StartLine), span.EndLine)
	case change.OpReplaceWithComment:
		err = e.file.ReplaceLines(e.leadingCommentStart(span.StartLine), span.EndLine, body)
	}
	if err != nil {
		ch.Fail(err.Error())
		return
	}
	ch.Applied()
}

// commentPrefixes marks lines that belong to a leading documentation block.
var commentPrefixes = []string{"//", "#", "--", "/*", "*", "'''", `"""`}

// leadingCommentStart extends a span upward over an immediately preceding
// comment block and returns the new start line.
func (e *Engine) leadingCommentStart(start int) int {
	for start > 1 {
		line, err := e.file.Line(start - 1)
		if err != nil || !isCommentLine(line) {
			break
		}
		start--
	}
	return start
}

func isCommentLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	for _, prefix := range commentPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// ApplySerial 在流结束后按 start_line 从高到低应用行范围变更：行号是针对同一
// 文件快照计算的，先应用低处的编辑会让高处编辑的坐标失效。
// ApplySerial applies line-range changes from the highest start_line to the
// lowest after the stream completes: the line numbers were computed against
// one fixed snapshot, and an edit applied at a lower offset would invalidate
// the coordinates of edits above it.
func (e *Engine) ApplySerial(pending []*change.FileChange) {
	var batch []*change.FileChange
	for _, ch := range pending {
		if ch.Mode == change.ModeLineNumbers && ch.Valid() && ch.State != change.StateApplied {
			batch = append(batch, ch)
		}
	}
	if len(batch) == 0 {
		return
	}
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].StartLine > batch[j].StartLine
	})

	e.ensureHistory()
	for _, ch := range batch {
		if err := e.file.ReplaceLines(ch.StartLine, ch.EndLine, ch.BodyLines()); err != nil {
			ch.Fail(err.Error())
			continue
		}
		ch.Applied()
	}
}

// ApplyComplete performs the whole-file replace/create for the session's
// single valid complete-file change.
func (e *Engine) ApplyComplete(ch *change.FileChange) {
	if ch == nil || !ch.Valid() {
		return
	}
	e.ensureHistory()
	e.file.SetContent(ch.Body.String())
	ch.Applied()
}

// Finalize 只运行一次：异步队列排空且串行批次（如有）应用完毕之后。
// 单个变更的失败不会阻止 Finalize —— 部分成功的会话仍把文件留在可达的最佳状态。
// Finalize runs once, after the async queue is empty and the serial batch (if
// any) has been applied. A per-change failure never prevents it: partially
// successful sessions still leave the file in the best achievable state.
func (e *Engine) Finalize(pending []*change.FileChange) error {
	if err := e.file.Persist(); err != nil {
		return err
	}

	// Covers sessions where only non-AST changes occurred and the queue path
	// never created the record.
	e.ensureHistory()
	e.logOutcomes(pending)

	if e.store != nil {
		insertions, deletions := diffStats(e.original, e.file.Content())
		if err := e.store.UpdateHistoryStats(e.historyID, string(e.file.LastChange()), insertions, deletions); err != nil {
			e.log.Debug("update history stats failed", "history", e.historyID, "err", err)
		}
	}

	if e.OnFileChanged != nil {
		e.OnFileChanged(e.file.Path())
	}
	return nil
}

// ensureHistory creates the session's file-history record exactly once.
// Repeated calls are no-ops.
func (e *Engine) ensureHistory() {
	if e.historyCreated || e.store == nil {
		return
	}
	changeType := vfile.ChangeModified
	if !e.file.Existed() {
		changeType = vfile.ChangeAdded
	}
	err := e.store.RecordHistory(storage.HistoryRecord{
		ID:         e.historyID,
		SessionID:  e.sessionID,
		Path:       e.file.Path(),
		ChangeType: string(changeType),
		CreatedAt:  time.Now(),
	})
	if err != nil {
		e.log.Debug("record history failed", "path", e.file.Path(), "err", err)
		return
	}
	e.historyCreated = true
}

func (e *Engine) logOutcomes(pending []*change.FileChange) {
	if e.store == nil || !e.historyCreated {
		return
	}
	for i, ch := range pending {
		entry := storage.ChangeEntry{
			HistoryID: e.historyID,
			Seq:       i + 1,
			Target:    ch.Describe(),
			State:     ch.State.String(),
			Error:     ch.Err,
		}
		if err := e.store.LogChange(entry); err != nil {
			e.log.Debug("log change failed", "seq", entry.Seq, "err", err)
		}
	}
}

// diffStats counts inserted and deleted lines between the session's start
// and end content.
func diffStats(before, after string) (insertions, deletions int) {
	if before == after {
		return 0, 0
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	for _, d := range diffs {
		n := strings.Count(d.Text, "\n")
		if n == 0 && d.Text != "" {
			n = 1
		}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			insertions += n
		case diffmatchpatch.DiffDelete:
			deletions += n
		}
	}
	return insertions, deletions
}
