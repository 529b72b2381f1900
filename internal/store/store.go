// Package store defines the filesystem abstraction the command engine runs
// against: a flat interface over either the remote object store or the local
// filesystem, plus the error kinds the engine makes decisions on.
package store

import (
	"context"
	"io"
	"time"
)

// Kind distinguishes files from directories.
type Kind int

const (
	File Kind = iota
	Dir
)

func (k Kind) String() string {
	if k == Dir {
		return "directory"
	}
	return "file"
}

// Entry is an immutable snapshot of one file or directory. It is not
// re-validated between listing time and execution time; a stale entry
// surfaces as a per-item error when acted on.
type Entry struct {
	Path    string // absolute within the client's namespace
	Name    string
	Kind    Kind
	Size    int64 // advisory zero for directories
	ModTime time.Time
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool { return e.Kind == Dir }

// Client is the minimal contract the engine needs from a file store.
// Implementations exist for the remote object store, the local filesystem
// and an in-memory fake used by tests.
type Client interface {
	// List returns the direct children of dir, sorted by name.
	List(ctx context.Context, dir string) ([]Entry, error)

	// Stat looks up a single path.
	Stat(ctx context.Context, path string) (Entry, error)

	// Read opens a file for reading.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Write creates or overwrites a file with the contents of r,
	// returning the number of bytes written. Missing parent directories
	// are created as needed.
	Write(ctx context.Context, path string, r io.Reader) (int64, error)

	// Copy duplicates a single file within the same store.
	Copy(ctx context.Context, src, dst string) error

	// Move renames a single file within the same store.
	Move(ctx context.Context, src, dst string) error

	// Delete removes a file, or a directory together with its contents.
	Delete(ctx context.Context, path string) error

	// Mkdir creates a directory, including missing parents. Creating an
	// existing directory is not an error.
	Mkdir(ctx context.Context, path string) error
}
