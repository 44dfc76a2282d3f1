package fsys

import (
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"
)

// Memory is a Layer that keeps file contents in memory.
//
// Paths are slash separated; directories exist implicitly.
type Memory struct {
	mu      sync.Mutex
	content map[string][]byte
	files   map[string]*File

	// FailWrite, when set, is returned by Write instead of storing content.
	FailWrite error
}

// NewMemory returns an empty Memory layer.
func NewMemory() *Memory {
	return &Memory{
		content: make(map[string][]byte),
		files:   make(map[string]*File),
	}
}

// ReadDir lists the names of files directly under dir, sorted.
func (m *Memory) ReadDir(dir string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(path.Clean(dir), "/") + "/"
	var names []string
	for p := range m.content {
		rest, ok := strings.CutPrefix(p, prefix)
		if ok && rest != "" && !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Create returns a handle on p.
func (m *Memory) Create(p string) (*File, error) {
	return &File{Path: path.Clean(p)}, nil
}

// Add tracks f under p.
func (m *Memory) Add(p string, f *File) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path.Clean(p)] = f
}

// Get returns the tracked handle for p.
func (m *Memory) Get(p string) (*File, error) {
	p = path.Clean(p)
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, ErrNotTracked)
	}
	data, ok := m.content[p]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: p, Err: fs.ErrNotExist}
	}
	f.Content = slices.Clone(data)
	return f, nil
}

// Write stores content under p.
func (m *Memory) Write(p string, content []byte) error {
	p = path.Clean(p)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrite != nil {
		return m.FailWrite
	}
	m.content[p] = slices.Clone(content)
	if f, ok := m.files[p]; ok {
		f.Content = slices.Clone(content)
	}
	return nil
}

// Put stores content under p without tracking it, as if another process had
// written the file.
func (m *Memory) Put(p string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[path.Clean(p)] = slices.Clone(content)
}

// Content returns the raw content stored under p.
func (m *Memory) Content(p string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.content[path.Clean(p)]
	return slices.Clone(data), ok
}
