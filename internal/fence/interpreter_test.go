package fence

import (
	"strings"
	"testing"

	"codestream/internal/change"
)

func TestInterpret_ValidLineRanges(t *testing.T) {
	cases := []struct {
		tag   string
		start int
		end   int
	}{
		{"python:1:2", 1, 2},
		{"go:10:10", 10, 10},
		{"js:3:999", 3, 999},
		{"c++:7:12", 7, 12},
	}
	for _, tc := range cases {
		ch := Interpret(tc.tag, change.ModeLineNumbers, false)
		if !ch.Valid() {
			t.Fatalf("Interpret(%q) error: %s", tc.tag, ch.Err)
		}
		if ch.StartLine != tc.start || ch.EndLine != tc.end {
			t.Fatalf("Interpret(%q) = %d:%d, want %d:%d", tc.tag, ch.StartLine, ch.EndLine, tc.start, tc.end)
		}
	}
}

func TestInterpret_InvalidLineRanges(t *testing.T) {
	for _, tag := range []string{"py:0:5", "py:5:4", "py:0:0"} {
		ch := Interpret(tag, change.ModeLineNumbers, false)
		if ch.Valid() {
			t.Fatalf("Interpret(%q) accepted an invalid range", tag)
		}
	}
}

func TestInterpret_LineRangeShapeRejectedInAstMode(t *testing.T) {
	// A digit pair must never be silently accepted as an AST path.
	for _, tag := range []string{"python:1:2", "go:10:20", "x:Foo:3:4"} {
		ch := Interpret(tag, change.ModeAstPath, false)
		if ch.Valid() {
			t.Fatalf("Interpret(%q) in ast_path mode produced a valid change", tag)
		}
		if !strings.Contains(ch.Err, "ast_path") {
			t.Fatalf("Interpret(%q) error %q does not name the active mode", tag, ch.Err)
		}
	}
}

func TestInterpret_AstPaths(t *testing.T) {
	cases := []struct {
		tag  string
		path string
		op   change.Operation
	}{
		{"js:Foo-bar", "Foo-bar", change.OpReplace},
		{"js:Foo-bar:remove", "Foo-bar", change.OpDelete},
		{"go:Server:Start:before", "Server-Start", change.OpInsertBefore},
		{"go:Server:Start:after", "Server-Start", change.OpInsertAfter},
		{"py:Mod-Cls-meth:with-comment", "Mod-Cls-meth", change.OpReplaceWithComment},
	}
	for _, tc := range cases {
		ch := Interpret(tc.tag, change.ModeAstPath, false)
		if !ch.Valid() {
			t.Fatalf("Interpret(%q) error: %s", tc.tag, ch.Err)
		}
		if ch.AstPath != tc.path || ch.Operation != tc.op {
			t.Fatalf("Interpret(%q) = (%q, %v), want (%q, %v)", tc.tag, ch.AstPath, ch.Operation, tc.path, tc.op)
		}
	}
}

func TestInterpret_MissingAstPath(t *testing.T) {
	for _, tag := range []string{"js:", "js:remove", "js::after"} {
		ch := Interpret(tag, change.ModeAstPath, false)
		if ch.Valid() {
			t.Fatalf("Interpret(%q) accepted an empty AST path", tag)
		}
		if ch.Err != "AST path is missing" {
			t.Fatalf("Interpret(%q) error = %q", tag, ch.Err)
		}
	}
}

func TestInterpret_BareLanguageTags(t *testing.T) {
	if ch := Interpret("python", change.ModeCompleteFile, false); !ch.Valid() {
		t.Fatalf("bare tag rejected in complete_file mode: %s", ch.Err)
	}
	if ch := Interpret("", change.ModeCompleteFile, false); !ch.Valid() {
		t.Fatalf("empty tag rejected in complete_file mode: %s", ch.Err)
	}
	for _, mode := range []change.EditMode{change.ModeAstPath, change.ModeLineNumbers} {
		if ch := Interpret("python", mode, false); ch.Valid() {
			t.Fatalf("bare tag accepted in %s mode", mode)
		}
		if ch := Interpret("", mode, false); ch.Valid() {
			t.Fatalf("empty tag accepted in %s mode", mode)
		}
	}
}

func TestInterpret_SecondCompleteFileBlock(t *testing.T) {
	ch := Interpret("python", change.ModeCompleteFile, true)
	if ch.Valid() {
		t.Fatalf("second complete_file block accepted")
	}
	if ch.Err != "Complete file mode allows only one code block." {
		t.Fatalf("error = %q", ch.Err)
	}
}

func TestInterpret_StructuralShapeRejectedOutsideAstMode(t *testing.T) {
	ch := Interpret("js:Foo-bar:remove", change.ModeLineNumbers, false)
	if ch.Valid() {
		t.Fatalf("structural tag accepted in line_numbers mode")
	}
	if !strings.Contains(ch.Err, "<start>:<end>") {
		t.Fatalf("error %q does not name the required format", ch.Err)
	}
}
