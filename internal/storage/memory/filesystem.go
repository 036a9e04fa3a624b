// Package memory implements storage.Filesystem in memory for tests and dry runs.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/catalog-crawler/internal/storage"
)

// Filesystem keeps file contents in a map. Destinations can be locked to
// simulate a file held open by another process, and writes can be failed to
// simulate a full or read-only disk.
type Filesystem struct {
	mu         sync.RWMutex
	files      map[string][]byte
	locked     map[string]struct{}
	failWrites bool
}

// NewFilesystem creates an empty in-memory filesystem.
func NewFilesystem() *Filesystem {
	return &Filesystem{
		files:  make(map[string][]byte),
		locked: make(map[string]struct{}),
	}
}

// Lock makes renames onto name fail with storage.ErrLocked.
func (f *Filesystem) Lock(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.locked[name] = struct{}{}
}

// Unlock releases a lock taken with Lock.
func (f *Filesystem) Unlock(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locked, name)
}

// FailWrites toggles failure of every WriteFile call.
func (f *Filesystem) FailWrites(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failWrites = fail
}

// ReadFile returns a copy of the stored contents.
func (f *Filesystem) ReadFile(_ context.Context, name string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	data, ok := f.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	return append([]byte(nil), data...), nil
}

// WriteFile stores a copy of data.
func (f *Filesystem) WriteFile(_ context.Context, name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return errors.New("memory: write failed")
	}
	f.files[name] = append([]byte(nil), data...)
	return nil
}

// Rename moves oldName onto newName unless newName is locked.
func (f *Filesystem) Rename(_ context.Context, oldName, newName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[oldName]
	if !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, oldName)
	}
	if _, locked := f.locked[newName]; locked {
		return fmt.Errorf("%w: %s", storage.ErrLocked, newName)
	}
	f.files[newName] = data
	delete(f.files, oldName)
	return nil
}

// Remove deletes name if present.
func (f *Filesystem) Remove(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, name)
	return nil
}

// Names returns the stored file names in lexical order.
func (f *Filesystem) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.files))
	for name := range f.files {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
