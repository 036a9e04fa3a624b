// Package local implements storage.Filesystem on the local disk.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/catalog-crawler/internal/storage"
)

// Config captures the parameters for the local filesystem.
type Config struct {
	// BaseDir is the directory holding the output table and its mirror.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Filesystem reads and writes files below a base directory.
type Filesystem struct {
	baseDir string
}

// New creates a local filesystem rooted at cfg.BaseDir, creating it if needed.
func New(cfg Config) (*Filesystem, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	baseDir, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}

	info, err := os.Stat(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(baseDir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	// Check for write permissions.
	testFile := filepath.Join(baseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &Filesystem{baseDir: baseDir}, nil
}

// BaseDir returns the absolute root directory.
func (f *Filesystem) BaseDir() string {
	return f.baseDir
}

// ReadFile reads name below the base directory.
func (f *Filesystem) ReadFile(_ context.Context, name string) ([]byte, error) {
	full, err := f.resolve(name)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path is confined to baseDir by resolve.
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// WriteFile writes data and fsyncs it before returning.
func (f *Filesystem) WriteFile(_ context.Context, name string, data []byte) error {
	full, err := f.resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("failed to create parent directories: %w", err)
	}
	// #nosec G304 -- path is confined to baseDir by resolve.
	file, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}

// Rename replaces newName with oldName. Permission failures on the
// destination are reported as storage.ErrLocked, which is how a spreadsheet
// held open by another program surfaces on Windows.
func (f *Filesystem) Rename(_ context.Context, oldName, newName string) error {
	from, err := f.resolve(oldName)
	if err != nil {
		return err
	}
	to, err := f.resolve(newName)
	if err != nil {
		return err
	}
	if err := os.Rename(from, to); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %s: %v", storage.ErrLocked, newName, err)
		}
		return fmt.Errorf("rename %s -> %s: %w", oldName, newName, err)
	}
	return nil
}

// Remove deletes name, ignoring missing files.
func (f *Filesystem) Remove(_ context.Context, name string) error {
	full, err := f.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

func (f *Filesystem) resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("path is required")
	}
	full := filepath.Join(f.baseDir, name)
	rel, err := filepath.Rel(f.baseDir, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %s", name)
	}
	return full, nil
}
