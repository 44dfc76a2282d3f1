package fsys

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// Disk is a Layer backed by the local filesystem.
type Disk struct {
	mu    sync.Mutex
	files map[string]*File
}

// NewDisk returns an empty Disk layer.
func NewDisk() *Disk {
	return &Disk{files: make(map[string]*File)}
}

// ReadDir lists regular file names in dir, sorted.
func (d *Disk) ReadDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// Create makes the parent directory of path and returns a handle on it.
func (d *Disk) Create(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return &File{Path: path}, nil
}

// Add tracks f under path.
func (d *Disk) Add(path string, f *File) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files[path] = f
}

// Get reads the current content of a tracked file.
func (d *Disk) Get(path string) (*File, error) {
	d.mu.Lock()
	f, ok := d.files[path]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrNotTracked)
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is a tracked shard file
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	f.Content = data
	return f, nil
}

// Write atomically replaces path: the content goes to a temporary file in the
// same directory which is then renamed over the target.
func (d *Disk) Write(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		return errors.Join(fmt.Errorf("failed to write %s: %w", path, err), tmp.Close(), os.Remove(tmpPath))
	}
	if err := tmp.Sync(); err != nil {
		return errors.Join(fmt.Errorf("failed to sync %s: %w", path, err), tmp.Close(), os.Remove(tmpPath))
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(fmt.Errorf("failed to close temp file: %w", err), os.Remove(tmpPath))
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil { //nolint:gosec // G302: shard files are not secret
		return errors.Join(fmt.Errorf("failed to chmod temp file: %w", err), os.Remove(tmpPath))
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Join(fmt.Errorf("failed to rename to %s: %w", path, err), os.Remove(tmpPath))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if f, ok := d.files[path]; ok {
		f.Content = content
	}
	return nil
}
