// Package cache stores the raw downloaded bundle on disk so repeated CLI
// invocations do not re-download it. The cache holds bytes only; the
// knowledge base is always rebuilt from scratch on load.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const bundleFileName = "enterprise-attack.json"

// Cache is a single-file on-disk store for the raw bundle.
type Cache struct {
	dir string
	log *zap.Logger
}

// New returns a cache rooted at dir, creating the directory if needed.
func New(dir string, logger *zap.Logger) (*Cache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
	}
	return &Cache{dir: dir, log: logger.Named("cache")}, nil
}

// Path returns the location of the cached bundle file.
func (c *Cache) Path() string {
	return filepath.Join(c.dir, bundleFileName)
}

// Exists reports whether a cached bundle is present.
func (c *Cache) Exists() bool {
	info, err := os.Stat(c.Path())
	return err == nil && !info.IsDir()
}

// Read returns the cached bundle bytes. Returns os.ErrNotExist when no
// bundle has been cached yet.
func (c *Cache) Read() ([]byte, error) {
	data, err := os.ReadFile(c.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("reading cached bundle: %w", err)
	}
	c.log.Debug("Using cached bundle", zap.String("path", c.Path()), zap.Int("bytes", len(data)))
	return data, nil
}

// Write stores the bundle atomically: a temp file in the same directory is
// renamed over the target, so readers never observe a partial bundle.
func (c *Cache) Write(data []byte) error {
	tmp, err := os.CreateTemp(c.dir, bundleFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, c.Path()); err != nil {
		return fmt.Errorf("replacing cached bundle: %w", err)
	}

	c.log.Info("Bundle cached", zap.String("path", c.Path()), zap.Int("bytes", len(data)))
	return nil
}
