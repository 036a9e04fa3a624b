// Package storage defines the file capability used to persist and reload the
// record table. The abstraction lets the checkpoint protocol (temp write,
// atomic replace, fallback rename) run against the local disk in production
// and against an in-memory fake that simulates lock contention in tests.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when the named file does not exist.
	ErrNotFound = errors.New("storage: file not found")
	// ErrLocked is returned when the destination is held open by another process.
	ErrLocked = errors.New("storage: destination locked")
)

// Filesystem is the minimal set of file operations the checkpoint writer and
// resume store need. Names are relative to the implementation's root.
type Filesystem interface {
	// ReadFile returns the full contents of name, or ErrNotFound.
	ReadFile(ctx context.Context, name string) ([]byte, error)
	// WriteFile creates or truncates name with data.
	WriteFile(ctx context.Context, name string, data []byte) error
	// Rename atomically replaces newName with oldName.
	Rename(ctx context.Context, oldName, newName string) error
	// Remove deletes name; removing a missing file is not an error.
	Remove(ctx context.Context, name string) error
}
