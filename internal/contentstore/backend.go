package contentstore

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Backend abstracts the byte storage under the content directory. The disk
// implementation is the normal mode; the memory implementation backs degraded
// operation and tests.
type Backend interface {
	Exists(path string) bool
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	// Create opens a streaming writer for path. The data becomes visible on Close.
	Create(path string) (io.WriteCloser, error)
	MkdirAll(path string) error
	Remove(path string) error
	// Glob lists existing paths matching the shell pattern.
	Glob(pattern string) ([]string, error)
}

// DiskBackend stores bytes on the local filesystem.
type DiskBackend struct{}

func (DiskBackend) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (DiskBackend) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (DiskBackend) WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

func (DiskBackend) Create(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
}

func (DiskBackend) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

func (DiskBackend) Remove(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (DiskBackend) Glob(pattern string) ([]string, error) {
	return filepath.Glob(pattern)
}

// MemBackend stores bytes in process memory. It is safe for concurrent use.
type MemBackend struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemBackend returns an empty in-memory backend.
func NewMemBackend() *MemBackend {
	return &MemBackend{files: make(map[string][]byte)}
}

func (m *MemBackend) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[path]
	return ok
}

func (m *MemBackend) ReadFile(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, fs.ErrNotExist)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *MemBackend) WriteFile(path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.files[path] = cp
	return nil
}

func (m *MemBackend) Create(path string) (io.WriteCloser, error) {
	return &memWriter{backend: m, path: path}, nil
}

func (m *MemBackend) MkdirAll(string) error { return nil }

func (m *MemBackend) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func (m *MemBackend) Glob(pattern string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matches []string
	for path := range m.files {
		ok, err := filepath.Match(pattern, path)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, path)
		}
	}
	sort.Strings(matches)
	return matches, nil
}

type memWriter struct {
	backend *MemBackend
	path    string
	buf     bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	return w.backend.WriteFile(w.path, w.buf.Bytes())
}
