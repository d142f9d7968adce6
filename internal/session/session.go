// Package session owns one streaming edit session per (invocation, target
// file) pair: lifecycle, conflict arbitration, permission checks, and the
// final response synthesis.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"codestream/internal/apply"
	"codestream/internal/change"
	"codestream/internal/chat"
	"codestream/internal/permission"
	"codestream/internal/resolver"
	"codestream/internal/storage"
	"codestream/internal/stream"
	"codestream/internal/tokens"
	"codestream/internal/vfile"
)

// State is the orchestrator lifecycle state.
type State int

const (
	StateActivated State = iota
	StateStreaming
	StateAwaitingQueueDrain
	StateResponding
	StateClosed
)

// NoChangesMessage is the continuation sent when a message completes with
// zero fenced blocks.
const NoChangesMessage = "no changes provided"

// Options configures one edit session.
type Options struct {
	// Path is the target file path; it is normalized before registration.
	Path string
	// Mode is fixed for the whole session. Tags shaped for another mode are
	// recorded as errors, never reinterpreted.
	Mode change.EditMode
	// Overwrite must be set for ModeCompleteFile to replace an existing file.
	Overwrite bool

	Permission permission.Provider
	Resolver   resolver.Resolver // nil: tree-sitter by file extension
	Store      storage.Store
	Transport  chat.Continuer
	Tokenizer  *tokens.Tokenizer
	// SummaryTokenBudget caps each change's detail line in the summary.
	SummaryTokenBudget int
	Logger             *slog.Logger
}

// Session 一次编辑模式激活：从 Activated 到响应完成，作用于恰好一个目标文件。
// Session is one edit-mode activation scoped to exactly one target file, from
// activation to response.
type Session struct {
	id   string
	path string
	mode change.EditMode

	proc      *stream.Processor
	engine    *apply.Engine
	file      *vfile.File
	transport chat.Continuer
	tok       *tokens.Tokenizer
	budget    int
	log       *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	drainDone chan struct{}

	mu      sync.Mutex
	state   State
	onClose func(*Session) // set by the registry
}

// New activates a session. Policy errors (permission denied, existing file
// without overwrite, missing file outside complete-file mode) abort here,
// before any apply step runs.
func New(opts Options) (*Session, error) {
	path, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("normalize path: %w", err)
	}

	file, err := vfile.Open(path)
	if err != nil {
		return nil, err
	}

	op := permission.OpModify
	switch {
	case !file.Existed():
		op = permission.OpCreate
	case opts.Mode == change.ModeCompleteFile:
		op = permission.OpOverwrite
	}
	if opts.Permission != nil {
		if res := opts.Permission.Check(path, op); res.Decision != permission.DecisionAllow {
			return nil, fmt.Errorf("permission denied for %s: %s", path, res.Reason)
		}
	}

	switch opts.Mode {
	case change.ModeCompleteFile:
		if file.Existed() && !opts.Overwrite {
			return nil, fmt.Errorf("file %s already exists and overwrite is not enabled", path)
		}
	default:
		if !file.Existed() {
			return nil, fmt.Errorf("file %s does not exist; only complete_file mode may create files", path)
		}
	}

	res := opts.Resolver
	if res == nil {
		lang, ok := resolver.LanguageFromExtension(filepath.Ext(path))
		if ok {
			res = resolver.NewTreeSitter(lang)
		} else {
			res = unsupportedResolver{ext: filepath.Ext(path)}
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tok := opts.Tokenizer
	if tok == nil {
		tok = tokens.Default()
	}
	budget := opts.SummaryTokenBudget
	if budget <= 0 {
		budget = 120
	}

	sessionID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        sessionID,
		path:      path,
		mode:      opts.Mode,
		proc:      stream.New(opts.Mode),
		engine:    apply.NewEngine(file, res, opts.Store, sessionID, uuid.NewString(), logger),
		file:      file,
		transport: opts.Transport,
		tok:       tok,
		budget:    budget,
		log:       logger,
		ctx:       ctx,
		cancel:    cancel,
		drainDone: make(chan struct{}),
	}

	// The single consumer of the structural-change queue. It exits when the
	// processor closes the queue or the session is canceled.
	go func() {
		defer close(s.drainDone)
		if err := s.engine.DrainQueue(s.ctx, s.proc.Queue()); err != nil {
			s.log.Debug("queue drain stopped", "session", s.id, "err", err)
		}
	}()

	s.log.Debug("session activated", "session", s.id, "path", path, "mode", opts.Mode.String())
	return s, nil
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Path() string { return s.path }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnChunk consumes one stream fragment in arrival order. Chunks after the
// session left the streaming phase are ignored.
func (s *Session) OnChunk(text string, final bool) {
	s.mu.Lock()
	if s.state > StateStreaming {
		s.mu.Unlock()
		return
	}
	s.state = StateStreaming
	s.mu.Unlock()

	s.proc.Feed(text)
	if final {
		s.complete()
	}
}

// OnMessageComplete signals that the model message has fully arrived and
// drives the session through apply, finalize, and response.
func (s *Session) OnMessageComplete() {
	s.complete()
}

func (s *Session) complete() {
	s.mu.Lock()
	if s.state >= StateAwaitingQueueDrain {
		s.mu.Unlock()
		return
	}
	s.state = StateAwaitingQueueDrain
	s.mu.Unlock()

	// Flush the lexer, settle an unterminated block, close the queue.
	s.proc.Finish()

	if s.proc.ChangeCount() == 0 {
		<-s.drainDone
		s.respond(NoChangesMessage)
		return
	}

	// Serial batch first, then wait out the async queue. The two cannot
	// overlap on the buffer: the session's mode admits only one of them.
	s.engine.ApplySerial(s.proc.Pending())
	if s.mode == change.ModeCompleteFile {
		s.engine.ApplyComplete(s.proc.ValidComplete())
	}

	select {
	case <-s.drainDone:
	case <-s.ctx.Done():
		// Superseded mid-drain: no finalize, no response.
		s.close()
		return
	}

	// Finalize persists the buffer even for partially successful sessions,
	// but a session where nothing applied leaves the file untouched.
	if anyApplied(s.proc.Pending()) {
		if err := s.engine.Finalize(s.proc.Pending()); err != nil {
			s.log.Debug("finalize failed", "session", s.id, "err", err)
			s.respond(fmt.Sprintf("failed to write %s: %v", s.path, err))
			return
		}
	}
	s.respond(s.buildSummary())
}

func (s *Session) respond(text string) {
	s.mu.Lock()
	s.state = StateResponding
	s.mu.Unlock()

	if s.transport != nil {
		if err := s.transport.SendContinuation(text); err != nil {
			s.log.Debug("send continuation failed", "session", s.id, "err", err)
		}
	}
	s.close()
}

// Close cancels the session early. A superseded session stops draining and
// never finalizes; queue-applied changes stay as-is (best effort, no rollback).
func (s *Session) Close() {
	s.close()
}

func (s *Session) close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	onClose := s.onClose
	s.mu.Unlock()

	s.cancel()
	if onClose != nil {
		onClose(s)
	}
	s.log.Debug("session closed", "session", s.id, "path", s.path)
}

func anyApplied(pending []*change.FileChange) bool {
	for _, ch := range pending {
		if ch.State == change.StateApplied {
			return true
		}
	}
	return false
}

// unsupportedResolver fails structural changes for file types without a
// grammar; the failure is recorded per change, never raised.
type unsupportedResolver struct {
	ext string
}

func (r unsupportedResolver) Resolve(context.Context, []byte, []string) (resolver.Span, error) {
	return resolver.Span{}, fmt.Errorf("%w: no grammar for %q", resolver.ErrUnsupported, r.ext)
}
