// Package resolver maps structural scope paths (module-class-method) to
// concrete line spans in source text.
package resolver

import (
	"context"
	"errors"
	"strings"
)

// Span is a resolved 1-based, inclusive-inclusive line range.
type Span struct {
	StartLine int
	EndLine   int
}

// ErrNotFound is returned when no scope matches the requested path.
var ErrNotFound = errors.New("ast path not found")

// ErrUnsupported is returned when no parser is available for the target file.
var ErrUnsupported = errors.New("structural resolution not supported")

// Resolver 把有序作用域名称序列解析为当前源码中的行范围。
// 解析允许较慢，也允许自身是异步的；它只在 apply 队列内部被调用。
// Resolver resolves an ordered sequence of scope names against the current
// source. Resolution may be slow or itself asynchronous; it only runs inside
// the apply queue.
type Resolver interface {
	Resolve(ctx context.Context, source []byte, path []string) (Span, error)
}

// Language identifies a tree-sitter grammar.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangRust       Language = "rust"
	LangJava       Language = "java"
)

// LanguageFromExtension maps a file extension (with dot) to a Language.
func LanguageFromExtension(ext string) (Language, bool) {
	switch strings.ToLower(ext) {
	case ".go":
		return LangGo, true
	case ".py":
		return LangPython, true
	case ".js", ".jsx", ".mjs":
		return LangJavaScript, true
	case ".ts":
		return LangTypeScript, true
	case ".tsx":
		return LangTSX, true
	case ".rs":
		return LangRust, true
	case ".java":
		return LangJava, true
	default:
		return "", false
	}
}
