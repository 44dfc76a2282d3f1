// Package fsys is the file layer shards are read from and written to.
//
// A [Layer] tracks the files a container works with. [Disk] maps it onto the
// local filesystem with atomic writes; [Memory] keeps everything in process
// for tests and ephemeral containers.
package fsys

import (
	"errors"
	"io/fs"
)

// ErrNotTracked is returned by Get for a path that was never added.
var ErrNotTracked = errors.New("file is not tracked")

// File is a handle on one tracked file.
type File struct {
	// Path is the location the file was created for.
	Path string
	// Content is the file content as of the last Get or Write.
	Content []byte
}

// Layer is the file access needed by a container.
type Layer interface {
	// ReadDir lists the file names in dir. A missing directory is empty.
	ReadDir(dir string) ([]string, error)
	// Create returns a handle for path, making its parent directory as needed.
	// It does not truncate an existing file.
	Create(path string) (*File, error)
	// Add starts tracking f under path.
	Add(path string, f *File)
	// Get returns the tracked handle for path with its current content.
	Get(path string) (*File, error)
	// Write replaces the content of path. On failure the previous content
	// is left intact.
	Write(path string, content []byte) error
}

// IsNotExist reports whether err means the file does not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
