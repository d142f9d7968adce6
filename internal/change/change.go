package change

import (
	"fmt"
	"strings"
)

// PathSeparator joins AST path segments in fence tags and in the stored locator.
const PathSeparator = "-"

// EditMode 会话级编辑模式，激活后不可变更
// EditMode is the session-scoped edit mode, immutable once a session starts.
type EditMode int

const (
	// ModeAstPath locates edits by structural scope paths (the default).
	ModeAstPath EditMode = iota
	// ModeLineNumbers locates edits by 1-based inclusive line ranges.
	ModeLineNumbers
	// ModeCompleteFile replaces or creates the whole file.
	ModeCompleteFile
)

func (m EditMode) String() string {
	switch m {
	case ModeAstPath:
		return "ast_path"
	case ModeLineNumbers:
		return "line_numbers"
	case ModeCompleteFile:
		return "complete_file"
	default:
		return fmt.Sprintf("edit_mode(%d)", int(m))
	}
}

// ParseMode 解析配置/CLI 中的模式名
// ParseMode parses a mode name from config or CLI.
func ParseMode(s string) (EditMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ast", "ast_path", "ast-path":
		return ModeAstPath, nil
	case "line", "lines", "line_numbers", "line-numbers":
		return ModeLineNumbers, nil
	case "complete", "complete_file", "complete-file", "whole_file":
		return ModeCompleteFile, nil
	default:
		return ModeAstPath, fmt.Errorf("unknown edit mode %q", s)
	}
}

// Operation is the structural edit operation; meaningful only under ModeAstPath.
type Operation int

const (
	OpReplace Operation = iota
	OpInsertBefore
	OpInsertAfter
	OpDelete
	OpReplaceWithComment
)

func (op Operation) String() string {
	switch op {
	case OpReplace:
		return "replace"
	case OpInsertBefore:
		return "insert-before"
	case OpInsertAfter:
		return "insert-after"
	case OpDelete:
		return "remove"
	case OpReplaceWithComment:
		return "replace-with-comment"
	default:
		return fmt.Sprintf("operation(%d)", int(op))
	}
}

// State is the lifecycle state of a FileChange.
type State int

const (
	StatePending State = iota
	// StateResolving only occurs for ModeAstPath while the locator is being
	// resolved against the parsed source.
	StateResolving
	StateApplied
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateResolving:
		return "resolving"
	case StateApplied:
		return "applied"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// FileChange 一条待应用或已应用的编辑指令及其结果。
// 格式错误的代码块同样会生成 FileChange（携带 Err），绝不静默丢弃。
// FileChange is one pending or applied edit instruction plus its outcome.
// Malformed blocks still produce a FileChange (carrying Err); they are never
// silently dropped.
type FileChange struct {
	Mode EditMode

	// Locator under ModeLineNumbers: 1-based, both ends inclusive.
	StartLine int
	EndLine   int

	// Locator under ModeAstPath: scope names joined with PathSeparator.
	AstPath   string
	Operation Operation

	// Body is the replacement text accumulated between the fences. It grows
	// line by line while the stream is still arriving.
	Body strings.Builder

	State State
	Err   string
}

// NewError returns a change that was malformed at parse time. It is recorded
// so the final summary can describe the failure back to the model.
func NewError(mode EditMode, msg string) *FileChange {
	return &FileChange{Mode: mode, State: StateFailed, Err: msg}
}

// AppendBodyLine extends the body with one completed line plus its terminator.
func (c *FileChange) AppendBodyLine(line string) {
	c.Body.WriteString(line)
	c.Body.WriteByte('\n')
}

// BodyLines 返回正文按行拆分的结果；空正文返回 nil。
// BodyLines splits the accumulated body into lines; an empty body yields nil.
func (c *FileChange) BodyLines() []string {
	text := c.Body.String()
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// Valid reports whether the change parsed cleanly and has not failed since.
func (c *FileChange) Valid() bool {
	return c.Err == ""
}

// Fail marks the change failed with a reason. Apply failures are data, not
// panics: one failed block must not abort the others.
func (c *FileChange) Fail(msg string) {
	c.State = StateFailed
	c.Err = msg
}

// Applied marks the change successfully applied.
func (c *FileChange) Applied() {
	c.State = StateApplied
	c.Err = ""
}

// PathSegments returns the ordered scope names of an AST-path locator.
func (c *FileChange) PathSegments() []string {
	if c.AstPath == "" {
		return nil
	}
	return strings.Split(c.AstPath, PathSeparator)
}

// Describe 返回面向汇总消息的目标描述
// Describe returns the target description used in the final summary.
func (c *FileChange) Describe() string {
	switch c.Mode {
	case ModeLineNumbers:
		if c.StartLine > 0 {
			return fmt.Sprintf("lines %d-%d", c.StartLine, c.EndLine)
		}
	case ModeAstPath:
		if c.AstPath != "" {
			return fmt.Sprintf("%s (%s)", c.AstPath, c.Operation)
		}
	case ModeCompleteFile:
		return "complete file"
	}
	return "malformed block"
}
