package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codestream/internal/change"
	"codestream/internal/resolver"
)

// recorder captures continuation messages sent back into the conversation.
type recorder struct {
	messages []string
}

func (r *recorder) SendContinuation(text string) error {
	r.messages = append(r.messages, text)
	return nil
}

func (r *recorder) last(t *testing.T) string {
	t.Helper()
	if len(r.messages) == 0 {
		t.Fatalf("no continuation was sent")
	}
	return r.messages[len(r.messages)-1]
}

type fixedResolver map[string]resolver.Span

func (m fixedResolver) Resolve(_ context.Context, _ []byte, path []string) (resolver.Span, error) {
	if span, ok := m[strings.Join(path, "-")]; ok {
		return span, nil
	}
	return resolver.Span{}, fmt.Errorf("%w: %s", resolver.ErrNotFound, strings.Join(path, "-"))
}

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func readBack(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	return string(data)
}

func TestSession_EmptyStreamRespondsNoChanges(t *testing.T) {
	path := writeFixture(t, "f.py", "a\nb\n")
	rec := &recorder{}
	s, err := New(Options{Path: path, Mode: change.ModeLineNumbers, Transport: rec})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.OnChunk("Sure, let me look at that file for you.", false)
	s.OnMessageComplete()

	if got := rec.last(t); got != NoChangesMessage {
		t.Fatalf("continuation = %q, want %q", got, NoChangesMessage)
	}
	if readBack(t, path) != "a\nb\n" {
		t.Fatalf("file mutated by a session with zero changes")
	}
	if s.State() != StateClosed {
		t.Fatalf("state = %v, want closed", s.State())
	}
}

func TestSession_LineRangeEndToEnd(t *testing.T) {
	path := writeFixture(t, "f.py", "one\ntwo\nthree\nfour\nfive\n")
	rec := &recorder{}
	s, err := New(Options{Path: path, Mode: change.ModeLineNumbers, Transport: rec})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Chunk boundaries deliberately cut the fence markers apart.
	s.OnChunk("``", false)
	s.OnChunk("`python:1:2\nhello\n`", false)
	s.OnChunk("``\n", false)
	s.OnMessageComplete()

	if got := readBack(t, path); got != "hello\nthree\nfour\nfive\n" {
		t.Fatalf("file content = %q", got)
	}
	summary := rec.last(t)
	if !strings.Contains(summary, "lines 1-2: applied") {
		t.Fatalf("summary missing applied line: %q", summary)
	}
	if !strings.Contains(summary, "The file now has 4 lines.") {
		t.Fatalf("summary missing line count: %q", summary)
	}
}

func TestSession_StructuralChangeEndToEnd(t *testing.T) {
	path := writeFixture(t, "f.py", "l1\nl2\nl3\nl4\nl5\n")
	rec := &recorder{}
	res := fixedResolver{"Foo-bar": {StartLine: 2, EndLine: 4}}
	s, err := New(Options{Path: path, Mode: change.ModeAstPath, Resolver: res, Transport: rec})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.OnChunk("```js:Foo-bar:remove\n```\n", false)
	s.OnMessageComplete()

	if got := readBack(t, path); got != "l1\nl5\n" {
		t.Fatalf("file content = %q", got)
	}
	if !strings.Contains(rec.last(t), "Foo-bar (remove): applied") {
		t.Fatalf("summary = %q", rec.last(t))
	}
}

func TestSession_CompleteFileCreatesNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.py")
	rec := &recorder{}
	s, err := New(Options{Path: path, Mode: change.ModeCompleteFile, Transport: rec})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.OnChunk("```python\nprint('hi')\n```\n", true)

	if got := readBack(t, path); got != "print('hi')\n" {
		t.Fatalf("created file content = %q", got)
	}
	if !strings.Contains(rec.last(t), "complete file: applied") {
		t.Fatalf("summary = %q", rec.last(t))
	}
}

func TestSession_CompleteFileRefusesExistingWithoutOverwrite(t *testing.T) {
	path := writeFixture(t, "f.py", "precious\n")
	_, err := New(Options{Path: path, Mode: change.ModeCompleteFile})
	if err == nil {
		t.Fatalf("existing file accepted without overwrite")
	}
	if !strings.Contains(err.Error(), "overwrite is not enabled") {
		t.Fatalf("error = %v", err)
	}
	if readBack(t, path) != "precious\n" {
		t.Fatalf("file touched by a rejected activation")
	}
}

func TestSession_NonCompleteModeRequiresExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.py")
	for _, mode := range []change.EditMode{change.ModeAstPath, change.ModeLineNumbers} {
		if _, err := New(Options{Path: path, Mode: mode}); err == nil {
			t.Fatalf("missing file accepted in %s mode", mode)
		}
	}
}

func TestSession_FailuresReportedNotFatal(t *testing.T) {
	path := writeFixture(t, "f.py", "a\nb\nc\n")
	rec := &recorder{}
	s, err := New(Options{Path: path, Mode: change.ModeLineNumbers, Transport: rec})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// First block is out of bounds, second applies.
	s.OnChunk("```python:8:9\nnope\n```\n```python:1:1\nA\n```\n", true)

	if got := readBack(t, path); got != "A\nb\nc\n" {
		t.Fatalf("file content = %q", got)
	}
	summary := rec.last(t)
	if !strings.Contains(summary, "lines 8-9: failed:") {
		t.Fatalf("summary missing failure line: %q", summary)
	}
	if !strings.Contains(summary, "lines 1-1: applied") {
		t.Fatalf("summary missing applied line: %q", summary)
	}
}

func TestSession_UnterminatedBlockLeavesFileUntouched(t *testing.T) {
	path := writeFixture(t, "f.py", "a\nb\n")
	rec := &recorder{}
	s, err := New(Options{Path: path, Mode: change.ModeLineNumbers, Transport: rec})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.OnChunk("```python:1:1\ndangling content\n", true)

	if readBack(t, path) != "a\nb\n" {
		t.Fatalf("file mutated by an unterminated block")
	}
	if !strings.Contains(rec.last(t), "unterminated code block") {
		t.Fatalf("summary = %q", rec.last(t))
	}
}

func TestSession_ChunksAfterCompletionIgnored(t *testing.T) {
	path := writeFixture(t, "f.py", "a\n")
	rec := &recorder{}
	s, err := New(Options{Path: path, Mode: change.ModeLineNumbers, Transport: rec})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.OnMessageComplete()
	s.OnChunk("```python:1:1\nlate\n```\n", true)

	if len(rec.messages) != 1 {
		t.Fatalf("continuations = %d, want 1", len(rec.messages))
	}
	if readBack(t, path) != "a\n" {
		t.Fatalf("late chunk mutated the file")
	}
}

func TestRegistry_SupersedeClosesPriorSession(t *testing.T) {
	path := writeFixture(t, "f.py", "a\nb\n")
	reg := NewRegistry()

	first, err := reg.Activate(Options{Path: path, Mode: change.ModeLineNumbers})
	if err != nil {
		t.Fatalf("Activate first: %v", err)
	}
	second, err := reg.Activate(Options{Path: path, Mode: change.ModeLineNumbers})
	if err != nil {
		t.Fatalf("Activate second: %v", err)
	}

	if first.State() != StateClosed {
		t.Fatalf("superseded session state = %v, want closed", first.State())
	}
	if got := reg.Get(path); got != second {
		t.Fatalf("Get returned %v, want the second session", got)
	}

	second.Close()
	if reg.Get(path) != nil {
		t.Fatalf("closed session still registered")
	}
}

func TestRegistry_DistinctPathsCoexist(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.py")
	b := filepath.Join(dir, "b.py")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte("x\n"), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
	}

	reg := NewRegistry()
	sa, err := reg.Activate(Options{Path: a, Mode: change.ModeLineNumbers})
	if err != nil {
		t.Fatalf("Activate a: %v", err)
	}
	sb, err := reg.Activate(Options{Path: b, Mode: change.ModeLineNumbers})
	if err != nil {
		t.Fatalf("Activate b: %v", err)
	}

	if sa.State() == StateClosed || sb.State() == StateClosed {
		t.Fatalf("sessions for distinct paths evicted each other")
	}
	sa.Close()
	sb.Close()
}
