// Package permission decides whether the engine may write a target path.
// The check runs before any apply step; a denied session fails closed.
package permission

import (
	"path/filepath"
	"sync"

	"codestream/internal/security"
)

// Operation is the kind of write a session is about to perform.
type Operation string

const (
	OpModify    Operation = "modify"
	OpCreate    Operation = "create"
	OpOverwrite Operation = "overwrite"
)

type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

type Result struct {
	Decision Decision
	Reason   string
}

// Provider 写权限校验：路径必须位于项目可写范围内，或被显式批准。
// Provider checks write authorization: the path must be inside the project's
// writable scope or have been explicitly approved.
type Provider interface {
	Check(path string, op Operation) Result
}

// WorkspacePolicy allows paths inside the workspace plus an explicit
// approved-path set (for targets the user granted outside the root).
type WorkspacePolicy struct {
	ws *security.Workspace

	mu       sync.Mutex
	approved map[string]struct{}
}

func New(ws *security.Workspace) *WorkspacePolicy {
	return &WorkspacePolicy{ws: ws, approved: make(map[string]struct{})}
}

// Approve grants an exception for an absolute path outside the root.
func (p *WorkspacePolicy) Approve(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.approved[filepath.Clean(path)] = struct{}{}
}

func (p *WorkspacePolicy) Check(path string, _ Operation) Result {
	if p.ws != nil && p.ws.Contains(path) {
		return Result{Decision: DecisionAllow}
	}
	p.mu.Lock()
	_, ok := p.approved[filepath.Clean(path)]
	p.mu.Unlock()
	if ok {
		return Result{Decision: DecisionAllow}
	}
	return Result{Decision: DecisionDeny, Reason: "path is outside the workspace and not approved"}
}
