package store

import (
	"bytes"
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"gitlab.com/tozd/go/errors"
)

// MemFS is an in-memory Client used by tests. Paths are slash-separated and
// rooted at "/". Directories exist either explicitly via Mkdir/AddDir or
// implicitly as prefixes of stored files, matching object-store semantics.
type MemFS struct {
	mu    sync.Mutex
	files map[string]*memFile
	dirs  map[string]bool

	// Hook, when set, runs before every operation and can inject errors.
	Hook func(op, path string) error
}

type memFile struct {
	data    []byte
	modTime time.Time
}

// NewMem returns an empty in-memory store.
func NewMem() *MemFS {
	return &MemFS{
		files: make(map[string]*memFile),
		dirs:  map[string]bool{"/": true},
	}
}

// AddFile stores a file with a fixed modification time.
func (m *MemFS) AddFile(p string, data []byte, mod time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path.Clean(p)] = &memFile{data: data, modTime: mod}
}

// AddDir creates an explicit directory.
func (m *MemFS) AddDir(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[path.Clean(p)] = true
}

// Snapshot returns every stored file as path -> contents.
func (m *MemFS) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.files))
	for p, f := range m.files {
		out[p] = string(f.data)
	}
	return out
}

func (m *MemFS) hook(op, p string) error {
	if m.Hook != nil {
		return m.Hook(op, p)
	}
	return nil
}

func (m *MemFS) List(ctx context.Context, dir string) ([]Entry, error) {
	if err := m.hook("list", dir); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	dir = path.Clean(dir)
	if !m.isDirLocked(dir) {
		return nil, errors.Errorf("%s: %w", dir, ErrNotFound)
	}
	seen := make(map[string]Entry)
	prefix := dir
	if prefix != "/" {
		prefix += "/"
	}
	for p, f := range m.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if name, _, nested := strings.Cut(rest, "/"); nested {
			seen[name] = Entry{Path: prefix + name, Name: name, Kind: Dir}
		} else {
			seen[name] = Entry{Path: p, Name: name, Kind: File, Size: int64(len(f.data)), ModTime: f.modTime}
		}
	}
	for p := range m.dirs {
		if p == "/" || !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		name, _, _ := strings.Cut(rest, "/")
		if _, ok := seen[name]; !ok {
			seen[name] = Entry{Path: prefix + name, Name: name, Kind: Dir}
		}
	}
	entries := make([]Entry, 0, len(seen))
	for _, e := range seen {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (m *MemFS) Stat(ctx context.Context, p string) (Entry, error) {
	if err := m.hook("stat", p); err != nil {
		return Entry{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	if f, ok := m.files[p]; ok {
		return Entry{Path: p, Name: path.Base(p), Kind: File, Size: int64(len(f.data)), ModTime: f.modTime}, nil
	}
	if m.isDirLocked(p) {
		return Entry{Path: p, Name: path.Base(p), Kind: Dir}, nil
	}
	return Entry{}, errors.Errorf("%s: %w", p, ErrNotFound)
}

func (m *MemFS) Read(ctx context.Context, p string) (io.ReadCloser, error) {
	if err := m.hook("read", p); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path.Clean(p)]
	if !ok {
		return nil, errors.Errorf("%s: %w", p, ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func (m *MemFS) Write(ctx context.Context, p string, r io.Reader) (int64, error) {
	if err := m.hook("write", p); err != nil {
		return 0, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, errors.Errorf("write %s: %w", p, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path.Clean(p)] = &memFile{data: data, modTime: time.Now()}
	return int64(len(data)), nil
}

func (m *MemFS) Copy(ctx context.Context, src, dst string) error {
	if err := m.hook("copy", src); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path.Clean(src)]
	if !ok {
		return errors.Errorf("%s: %w", src, ErrNotFound)
	}
	m.files[path.Clean(dst)] = &memFile{data: append([]byte(nil), f.data...), modTime: time.Now()}
	return nil
}

func (m *MemFS) Move(ctx context.Context, src, dst string) error {
	if err := m.hook("move", src); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	src, dst = path.Clean(src), path.Clean(dst)
	if f, ok := m.files[src]; ok {
		delete(m.files, src)
		m.files[dst] = f
		return nil
	}
	if m.isDirLocked(src) {
		prefix := src + "/"
		for p, f := range m.files {
			if strings.HasPrefix(p, prefix) {
				delete(m.files, p)
				m.files[dst+"/"+strings.TrimPrefix(p, prefix)] = f
			}
		}
		delete(m.dirs, src)
		m.dirs[dst] = true
		return nil
	}
	return errors.Errorf("%s: %w", src, ErrNotFound)
}

func (m *MemFS) Delete(ctx context.Context, p string) error {
	if err := m.hook("delete", p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p = path.Clean(p)
	if _, ok := m.files[p]; ok {
		delete(m.files, p)
		return nil
	}
	if m.isDirLocked(p) {
		prefix := p + "/"
		for fp := range m.files {
			if strings.HasPrefix(fp, prefix) {
				delete(m.files, fp)
			}
		}
		for dp := range m.dirs {
			if dp == p || strings.HasPrefix(dp, prefix) {
				delete(m.dirs, dp)
			}
		}
		return nil
	}
	return errors.Errorf("%s: %w", p, ErrNotFound)
}

func (m *MemFS) Mkdir(ctx context.Context, p string) error {
	if err := m.hook("mkdir", p); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for p = path.Clean(p); p != "/"; p = path.Dir(p) {
		m.dirs[p] = true
	}
	return nil
}

func (m *MemFS) isDirLocked(p string) bool {
	if p == "/" || m.dirs[p] {
		return true
	}
	prefix := p + "/"
	for fp := range m.files {
		if strings.HasPrefix(fp, prefix) {
			return true
		}
	}
	for dp := range m.dirs {
		if strings.HasPrefix(dp, prefix) {
			return true
		}
	}
	return false
}
