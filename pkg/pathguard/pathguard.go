// Package pathguard keeps user-supplied embedding paths inside a root.
package pathguard

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Guard resolves paths relative to Root. An empty Root allows any path.
type Guard struct {
	Root string
}

// New returns a Guard for root.
func New(root string) (Guard, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return Guard{}, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Guard{}, fmt.Errorf("resolve root %s: %w", root, err)
	}
	return Guard{Root: filepath.Clean(abs)}, nil
}

// Resolve returns the absolute form of path after checking it stays inside
// Root. Relative paths are taken relative to Root.
func (g Guard) Resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	if hasParentTraversal(cleanPath) {
		return "", fmt.Errorf("path traversal not allowed: %s", path)
	}

	if g.Root == "" {
		abs, err := filepath.Abs(cleanPath)
		if err != nil {
			return "", fmt.Errorf("invalid path: %w", err)
		}
		return abs, nil
	}

	absPath := cleanPath
	if !filepath.IsAbs(absPath) {
		absPath = filepath.Join(g.Root, absPath)
	}
	rel, err := filepath.Rel(g.Root, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path outside embedding root: %s (root: %s)", absPath, g.Root)
	}
	return absPath, nil
}

// hasParentTraversal reports whether a path contains a parent directory segment.
func hasParentTraversal(cleanPath string) bool {
	for _, part := range strings.Split(cleanPath, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	return false
}
