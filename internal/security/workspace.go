// Package security confines edit targets to the project's writable scope.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrPathOutsideWorkspace = errors.New("path outside workspace")

// Workspace 项目根目录的路径牢笼：所有写入目标都必须解析到根目录之内。
// Workspace is the path jail around the project root: every write target must
// resolve inside it.
type Workspace struct {
	root string
}

func NewWorkspace(root string) (*Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("workspace root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs workspace root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Roots without resolvable symlinks keep the absolute path.
		resolved = abs
	}
	return &Workspace{root: resolved}, nil
}

func (w *Workspace) Root() string {
	return w.root
}

// Resolve normalizes path (relative paths are joined onto the root) and
// returns the symlink-resolved absolute path, or ErrPathOutsideWorkspace if
// it escapes the root.
func (w *Workspace) Resolve(path string) (string, error) {
	target := strings.TrimSpace(path)
	if target == "" {
		return "", errors.New("path is empty")
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(w.root, target)
	}

	resolved, err := resolveWithParentSymlink(filepath.Clean(target))
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(w.root, resolved)
	if err != nil {
		return "", fmt.Errorf("relative path check: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", ErrPathOutsideWorkspace
	}
	return resolved, nil
}

// Contains reports whether path resolves inside the workspace.
func (w *Workspace) Contains(path string) bool {
	_, err := w.Resolve(path)
	return err == nil
}

// resolveWithParentSymlink resolves symlinks even when the leaf does not
// exist yet (edit sessions may create new files).
func resolveWithParentSymlink(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("resolve symlink: %w", err)
	}

	parent := filepath.Dir(path)
	base := filepath.Base(path)
	parentResolved, perr := filepath.EvalSymlinks(parent)
	if perr != nil {
		if errors.Is(perr, os.ErrNotExist) {
			parentResolved = parent
		} else {
			return "", fmt.Errorf("resolve parent symlink: %w", perr)
		}
	}
	return filepath.Join(parentResolved, base), nil
}
