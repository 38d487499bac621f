package sanitize

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

var (
	// ErrEmptyPath indicates an empty path was provided.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrPathTraversal indicates a path with ".." segments.
	ErrPathTraversal = errors.New("path contains directory traversal")

	// ErrOutsideRoots indicates a path that is not beneath any allowed root.
	ErrOutsideRoots = errors.New("path is outside the allowed roots")
)

// ValidatePath cleans path and returns it in absolute form.
//
// Paths with ".." segments are rejected outright. When roots are given the
// path, with symlinks resolved where it exists, must lie within one of them.
func ValidatePath(path string, roots ...string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}
	if slices.Contains(strings.Split(filepath.ToSlash(path), "/"), "..") {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", path, err)
	}
	if len(roots) == 0 {
		return abs, nil
	}

	resolved := evalSymlinks(abs)
	for _, root := range roots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if within(evalSymlinks(rootAbs), resolved) {
			return abs, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrOutsideRoots, path)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func evalSymlinks(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return path
}
