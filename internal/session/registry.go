package session

import (
	"path/filepath"
	"sync"
)

// Registry 以规范化文件路径为键的活跃会话表。同一路径同一时刻只允许一个活跃
// 会话；插入会原子地驱逐并取消同路径的旧会话。
// Registry maps normalized file paths to live sessions. Only one live edit
// session per path is allowed; insertion atomically evicts and cancels any
// prior entry for that key.
type Registry struct {
	mu   sync.Mutex
	live map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{live: make(map[string]*Session)}
}

// Activate creates a session and registers it, forcibly closing any previous
// session for the same path. Eviction is eager, never blocking.
func (r *Registry) Activate(opts Options) (*Session, error) {
	s, err := New(opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	prev := r.live[s.path]
	r.live[s.path] = s
	s.onClose = r.removeFunc(s)
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return s, nil
}

// Get returns the live session for a path, if any.
func (r *Registry) Get(path string) *Session {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[abs]
}

// removeFunc unregisters the session on close, but only while it is still the
// current entry for its path.
func (r *Registry) removeFunc(s *Session) func(*Session) {
	return func(closed *Session) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.live[closed.path] == closed {
			delete(r.live, closed.path)
		}
	}
}
