package fo

import (
	"io"
	"io/fs"
)

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access to enable testing without touching the real
// filesystem. Implementations map OS errors onto ErrNotFound and
// ErrPermissionDenied so callers can match with errors.Is.
type FilesystemManager interface {
	// Resolve validates a raw path and returns its absolute form plus stat
	// info. It rejects symlinks, devices, and other special files.
	Resolve(rawPath string) (string, fs.FileInfo, error)

	// Stat returns fresh file info for an absolute path.
	Stat(path string) (fs.FileInfo, error)

	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Create creates or truncates a file for writing.
	Create(path string) (io.WriteCloser, error)

	// Rename moves a file within the same filesystem. Cross-device moves
	// fail with an error recognized by IsCrossDevice.
	Rename(oldPath, newPath string) error

	// MkdirAll creates a directory and any missing parents.
	MkdirAll(dir string) error

	// Remove deletes a file.
	Remove(path string) error

	// IsCrossDevice reports whether err came from a rename across
	// filesystem boundaries.
	IsCrossDevice(err error) bool
}
