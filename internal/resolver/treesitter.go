//go:build cgo

package resolver

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// TreeSitter resolves scope paths by walking a tree-sitter parse tree.
type TreeSitter struct {
	parser *sitter.Parser
	lang   Language
}

// NewTreeSitter creates a resolver bound to one grammar.
func NewTreeSitter(lang Language) *TreeSitter {
	return &TreeSitter{parser: sitter.NewParser(), lang: lang}
}

// Resolve parses the current source and descends one scope per path segment.
// Each call re-parses: earlier applied changes shift line offsets, and the
// next resolution must see them.
func (r *TreeSitter) Resolve(ctx context.Context, source []byte, path []string) (Span, error) {
	if len(path) == 0 {
		return Span{}, fmt.Errorf("%w: empty path", ErrNotFound)
	}
	tsLang, err := grammar(r.lang)
	if err != nil {
		return Span{}, err
	}
	r.parser.SetLanguage(tsLang)
	tree, err := r.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return Span{}, fmt.Errorf("parse source: %w", err)
	}

	node := tree.RootNode()
	for _, segment := range path {
		next := findScope(node, source, r.lang, segment)
		if next == nil {
			return Span{}, fmt.Errorf("%w: segment %q", ErrNotFound, segment)
		}
		node = next
	}
	return Span{
		StartLine: int(node.StartPoint().Row) + 1,
		EndLine:   int(node.EndPoint().Row) + 1,
	}, nil
}

func grammar(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangGo:
		return golang.GetLanguage(), nil
	case LangPython:
		return python.GetLanguage(), nil
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	case LangTypeScript:
		return typescript.GetLanguage(), nil
	case LangTSX:
		return tsx.GetLanguage(), nil
	case LangRust:
		return rust.GetLanguage(), nil
	case LangJava:
		return java.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("%w: language %q", ErrUnsupported, lang)
	}
}

// scopeNodeTypes lists the node types that can appear as a path segment.
func scopeNodeTypes(lang Language) []string {
	switch lang {
	case LangGo:
		return []string{"function_declaration", "method_declaration", "type_declaration"}
	case LangPython:
		return []string{"function_definition", "class_definition"}
	case LangJavaScript, LangTypeScript, LangTSX:
		return []string{"function_declaration", "class_declaration", "method_definition"}
	case LangRust:
		return []string{"function_item", "struct_item", "enum_item", "trait_item", "impl_item", "mod_item"}
	case LangJava:
		return []string{"class_declaration", "interface_declaration", "method_declaration", "constructor_declaration"}
	default:
		return nil
	}
}

// findScope walks the subtree depth-first for a named scope matching segment.
func findScope(node *sitter.Node, source []byte, lang Language, segment string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if isScopeType(child.Type(), lang) && scopeName(child, source) == segment {
			return child
		}
		if found := findScope(child, source, lang, segment); found != nil {
			return found
		}
	}
	return nil
}

func isScopeType(nodeType string, lang Language) bool {
	for _, t := range scopeNodeTypes(lang) {
		if t == nodeType {
			return true
		}
	}
	return false
}

// scopeName extracts the declared name of a scope node.
func scopeName(node *sitter.Node, source []byte) string {
	if name := node.ChildByFieldName("name"); name != nil {
		return name.Content(source)
	}
	// Go type_declaration carries the name on its type_spec child.
	if node.Type() == "type_declaration" {
		for i := 0; i < int(node.ChildCount()); i++ {
			child := node.Child(i)
			if child != nil && child.Type() == "type_spec" {
				if name := child.ChildByFieldName("name"); name != nil {
					return name.Content(source)
				}
			}
		}
	}
	return ""
}
