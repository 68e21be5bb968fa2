// Package workspace provides per-request scratch directories that are
// always removed when the request finishes.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Dir is a scratch directory owned by a single operation.
type Dir struct {
	path string
}

func (d Dir) Path() string { return d.path }

// File joins name onto the scratch directory.
func (d Dir) File(name string) string {
	return filepath.Join(d.path, filepath.Base(name))
}

// Run creates a fresh directory under root, passes it to fn and removes it
// afterwards, whether fn succeeds, fails or panics.
func Run(root, prefix string, fn func(Dir) error) error {
	if strings.TrimSpace(root) == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("workspace root: %w", err)
	}
	path, err := os.MkdirTemp(root, prefix+"-")
	if err != nil {
		return fmt.Errorf("workspace create: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(path); rmErr != nil {
			slog.Warn("workspace cleanup failed", "path", path, "error", rmErr)
		}
	}()
	return fn(Dir{path: path})
}
