package vfile

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestFile(t *testing.T, content string) *File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return f
}

func TestOpen_MissingFileIsPlaceholder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.txt")
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if f.Exists() || f.Existed() {
		t.Fatalf("missing file reported as existing")
	}
	if f.LineCount() != 0 {
		t.Fatalf("LineCount = %d, want 0", f.LineCount())
	}
}

func TestFile_GetText(t *testing.T) {
	f := newTestFile(t, "a\nb\nc\nd\ne\n")
	got, err := f.GetText(2, 4)
	if err != nil {
		t.Fatalf("GetText: %v", err)
	}
	if got != "b\nc\nd" {
		t.Fatalf("GetText(2,4) = %q", got)
	}
	if _, err := f.GetText(4, 2); err == nil {
		t.Fatalf("inverted range accepted")
	}
	if _, err := f.GetText(1, 6); err == nil {
		t.Fatalf("out-of-bounds range accepted")
	}
}

func TestFile_ReplaceLines(t *testing.T) {
	f := newTestFile(t, "a\nb\nc\nd\ne\n")
	if err := f.ReplaceLines(1, 2, []string{"hello"}); err != nil {
		t.Fatalf("ReplaceLines: %v", err)
	}
	if f.LineCount() != 4 {
		t.Fatalf("LineCount = %d, want 4", f.LineCount())
	}
	line, _ := f.Line(2)
	if line != "c" {
		t.Fatalf("line 2 = %q, want c (previously line 3)", line)
	}
}

func TestFile_InsertAndDelete(t *testing.T) {
	f := newTestFile(t, "a\nb\nc\n")
	if err := f.InsertLines(2, []string{"x", "y"}, false); err != nil {
		t.Fatalf("InsertLines before: %v", err)
	}
	if got := f.Content(); got != "a\nx\ny\nb\nc\n" {
		t.Fatalf("after insert-before: %q", got)
	}
	if err := f.InsertLines(5, []string{"z"}, true); err != nil {
		t.Fatalf("InsertLines after: %v", err)
	}
	if got := f.Content(); got != "a\nx\ny\nb\nc\nz\n" {
		t.Fatalf("after insert-after: %q", got)
	}
	if err := f.DeleteLines(2, 3); err != nil {
		t.Fatalf("DeleteLines: %v", err)
	}
	if got := f.Content(); got != "a\nb\nc\nz\n" {
		t.Fatalf("after delete: %q", got)
	}
}

func TestFile_PersistPromotesPlaceholder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "new.go")
	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	f.SetContent("package main\n")
	if err := f.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if !f.Exists() {
		t.Fatalf("placeholder not promoted after persist")
	}
	if f.LastChange() != ChangeAdded {
		t.Fatalf("LastChange = %q, want added", f.LastChange())
	}
	if !f.NeedsReview() {
		t.Fatalf("NeedsReview not set")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "package main\n" {
		t.Fatalf("on-disk content = %q", data)
	}
}

func TestFile_PersistExistingIsModified(t *testing.T) {
	f := newTestFile(t, "old\n")
	f.SetContent("new\n")
	if err := f.Persist(); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if f.LastChange() != ChangeModified {
		t.Fatalf("LastChange = %q, want modified", f.LastChange())
	}
}
