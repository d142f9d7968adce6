// Package vfile provides the line-addressable file object the apply engine
// edits. A File holds an in-memory line buffer; mutations stay in memory until
// Persist writes them to disk.
package vfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ChangeType records how the last session touched the file.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
)

// File 目标文件的内存视图。磁盘上不存在的路径先作为占位（virtual）文件打开，
// 首次持久化时才转为真实文件。
// File is the in-memory view of the target file. A path that does not exist
// on disk opens as a placeholder (virtual) file and is promoted to a durable
// one on first persist.
type File struct {
	path    string
	lines   []string
	existed bool // on disk before this session
	virtual bool // placeholder, nothing durable yet

	modTime     time.Time
	needsReview bool
	lastChange  ChangeType
}

// Open reads the file at path, or returns an empty placeholder if it does not
// exist yet.
func Open(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{path: path, virtual: true}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &File{path: path, lines: SplitLines(string(data)), existed: true}, nil
}

// SplitLines splits content into terminator-free lines; empty content yields nil.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

func (f *File) Path() string { return f.path }

// Exists reports whether the file is durable (existed on disk or persisted since).
func (f *File) Exists() bool { return !f.virtual }

// Existed reports whether the file was on disk before this session started.
func (f *File) Existed() bool { return f.existed }

func (f *File) LineCount() int { return len(f.lines) }

// Content returns the buffer as a string; non-empty content carries a
// trailing newline.
func (f *File) Content() string {
	if len(f.lines) == 0 {
		return ""
	}
	return strings.Join(f.lines, "\n") + "\n"
}

// GetText 读取 1 起始、闭区间的行范围。
// GetText reads a 1-based, inclusive-inclusive line range.
func (f *File) GetText(start, end int) (string, error) {
	if err := f.checkRange(start, end); err != nil {
		return "", err
	}
	return strings.Join(f.lines[start-1:end], "\n"), nil
}

// ReplaceLines overwrites the inclusive range [start, end] with replacement.
// A nil replacement removes the range.
func (f *File) ReplaceLines(start, end int, replacement []string) error {
	if err := f.checkRange(start, end); err != nil {
		return err
	}
	rest := append([]string(nil), f.lines[end:]...)
	f.lines = append(f.lines[:start-1], append(replacement, rest...)...)
	return nil
}

// InsertLines splices text at line (1-based) without removing anything. With
// after set, the text goes below the line instead of above it.
func (f *File) InsertLines(line int, text []string, after bool) error {
	if line < 1 || line > len(f.lines) {
		return fmt.Errorf("line %d out of range (file has %d lines)", line, len(f.lines))
	}
	at := line - 1
	if after {
		at = line
	}
	rest := append([]string(nil), f.lines[at:]...)
	f.lines = append(f.lines[:at], append(text, rest...)...)
	return nil
}

// DeleteLines removes the inclusive range [start, end].
func (f *File) DeleteLines(start, end int) error {
	return f.ReplaceLines(start, end, nil)
}

// SetContent replaces the whole buffer (complete-file mode).
func (f *File) SetContent(content string) {
	f.lines = SplitLines(content)
}

// Line returns the 1-based line without its terminator.
func (f *File) Line(n int) (string, error) {
	if err := f.checkRange(n, n); err != nil {
		return "", err
	}
	return f.lines[n-1], nil
}

func (f *File) checkRange(start, end int) error {
	if start < 1 || end < start || end > len(f.lines) {
		return fmt.Errorf("line range %d:%d out of bounds (file has %d lines)", start, end, len(f.lines))
	}
	return nil
}

// Persist 把内存缓冲写入磁盘并更新簿记：占位文件在此转为真实文件。
// Persist writes the buffer to disk and updates bookkeeping; a placeholder
// file becomes durable here.
func (f *File) Persist() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(f.Content()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	if f.existed {
		f.lastChange = ChangeModified
	} else {
		f.lastChange = ChangeAdded
	}
	f.virtual = false
	f.modTime = time.Now()
	f.needsReview = true
	return nil
}

func (f *File) ModTime() time.Time     { return f.modTime }
func (f *File) NeedsReview() bool      { return f.needsReview }
func (f *File) LastChange() ChangeType { return f.lastChange }
