package store

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gitlab.com/tozd/go/errors"
)

// LocalFS implements Client over the host filesystem.
type LocalFS struct{}

// NewLocal returns a Client backed by the host filesystem.
func NewLocal() *LocalFS { return &LocalFS{} }

func (l *LocalFS) List(ctx context.Context, dir string) ([]Entry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, wrapOSError(err, dir)
	}
	entries := make([]Entry, 0, len(des))
	for _, de := range des {
		info, err := de.Info()
		if err != nil {
			// Entry vanished between ReadDir and Info.
			continue
		}
		entries = append(entries, entryFromInfo(filepath.Join(dir, de.Name()), info))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (l *LocalFS) Stat(ctx context.Context, path string) (Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, wrapOSError(err, path)
	}
	return entryFromInfo(path, info), nil
}

func (l *LocalFS) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapOSError(err, path)
	}
	return f, nil
}

func (l *LocalFS) Write(ctx context.Context, path string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, wrapOSError(err, path)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, wrapOSError(err, path)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, errors.Errorf("write %s: %w", path, err)
	}
	return n, nil
}

func (l *LocalFS) Copy(ctx context.Context, src, dst string) error {
	in, err := l.Read(ctx, src)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = l.Write(ctx, dst, in)
	return err
}

func (l *LocalFS) Move(ctx context.Context, src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return wrapOSError(err, src)
	}
	return nil
}

func (l *LocalFS) Delete(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return wrapOSError(err, path)
	}
	if err := os.RemoveAll(path); err != nil {
		return wrapOSError(err, path)
	}
	return nil
}

func (l *LocalFS) Mkdir(ctx context.Context, path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return wrapOSError(err, path)
	}
	return nil
}

func entryFromInfo(path string, info os.FileInfo) Entry {
	kind := File
	size := info.Size()
	if info.IsDir() {
		kind = Dir
		size = 0
	}
	return Entry{
		Path:    path,
		Name:    filepath.Base(path),
		Kind:    kind,
		Size:    size,
		ModTime: info.ModTime(),
	}
}

func wrapOSError(err error, path string) error {
	if os.IsNotExist(err) {
		return errors.Errorf("%s: %w", path, ErrNotFound)
	}
	return errors.Errorf("%s: %w", path, err)
}
