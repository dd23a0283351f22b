// Package store persists the archive: cached pages and assets under the
// cache root, plus the manifest and its feed snapshots.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/HsienYu/BreakingNewsEffects/internal/news"
)

// layoutDirs are created up front so a fresh cache root is browsable
// immediately.
var layoutDirs = []string{"html", "images", "css", "js", "fonts"}

// CacheFS is the filesystem under the cache root. All paths passed in are
// root-relative with forward slashes.
type CacheFS struct {
	root   string
	logger *zap.Logger
}

// NewCacheFS prepares the cache root, creating the class directories and
// verifying the location is writable. root may be relative; it is resolved
// to an absolute path so printed locations work from any directory.
func NewCacheFS(root string, logger *zap.Logger) (*CacheFS, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("cache root is required")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve cache root: %w", err)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create cache root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat cache root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cache root %s is not a directory", root)
	}

	testFile := filepath.Join(root, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("cache root is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	for _, dir := range layoutDirs {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o750); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", dir, err)
		}
	}
	return &CacheFS{root: root, logger: logger}, nil
}

// Root returns the absolute cache root path.
func (c *CacheFS) Root() string {
	return c.root
}

// Abs maps a root-relative path to an absolute one, refusing paths that
// escape the root.
func (c *CacheFS) Abs(rel string) (string, error) {
	full := filepath.Join(c.root, filepath.FromSlash(rel))
	cleanRoot := filepath.Clean(c.root)
	if full != cleanRoot && !strings.HasPrefix(full, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes cache root", rel)
	}
	return full, nil
}

// WriteFile writes data at the root-relative path, creating parent
// directories as needed.
func (c *CacheFS) WriteFile(rel string, data []byte) error {
	full, err := c.Abs(rel)
	if err != nil {
		return &news.StorageError{Op: "write", Path: rel, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return &news.StorageError{Op: "write", Path: rel, Err: err}
	}
	if err := os.WriteFile(full, data, 0o600); err != nil {
		return &news.StorageError{Op: "write", Path: rel, Err: err}
	}
	return nil
}

// ReadFile reads the file at the root-relative path.
func (c *CacheFS) ReadFile(rel string) ([]byte, error) {
	full, err := c.Abs(rel)
	if err != nil {
		return nil, &news.StorageError{Op: "read", Path: rel, Err: err}
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, &news.StorageError{Op: "read", Path: rel, Err: err}
	}
	return data, nil
}

// Exists reports whether a regular file exists at the root-relative path.
func (c *CacheFS) Exists(rel string) bool {
	full, err := c.Abs(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}
