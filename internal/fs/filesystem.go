package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"fo-go/internal/fo"
)

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// It performs actual filesystem operations using the os package.
type OSFilesystemManager struct{}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
func NewOSFilesystemManager() *OSFilesystemManager {
	return &OSFilesystemManager{}
}

// Resolve validates a raw path and returns its absolute form with fresh file info.
func (m *OSFilesystemManager) Resolve(rawPath string) (string, fs.FileInfo, error) {
	// Convert to absolute path
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return "", nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	// Lstat so symlinks are visible rather than followed.
	info, err := os.Lstat(absPath)
	if err != nil {
		return "", nil, mapError(err)
	}

	// Check for special file types we don't support
	mode := info.Mode()
	if mode&os.ModeSymlink != 0 {
		return "", nil, fmt.Errorf("symlinks not supported: %s", absPath)
	}
	if mode&os.ModeDevice != 0 {
		return "", nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return "", nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return "", nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return absPath, info, nil
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, mapError(err)
	}
	return info, nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, mapError(err)
	}
	return f, nil
}

// Create creates or truncates a file for writing.
func (m *OSFilesystemManager) Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, mapError(err)
	}
	return f, nil
}

// Rename moves a file. On cross-device moves the underlying error
// satisfies IsCrossDevice and callers fall back to copy-then-delete.
func (m *OSFilesystemManager) Rename(oldPath, newPath string) error {
	if err := os.Rename(oldPath, newPath); err != nil {
		if isCrossDevice(err) {
			return err // preserved so IsCrossDevice can classify it
		}
		return mapError(err)
	}
	return nil
}

// MkdirAll creates a directory and any missing parents.
func (m *OSFilesystemManager) MkdirAll(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return mapError(err)
	}
	return nil
}

// Remove deletes a file.
func (m *OSFilesystemManager) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return mapError(err)
	}
	return nil
}

// IsCrossDevice reports whether err came from a rename across filesystems.
func (m *OSFilesystemManager) IsCrossDevice(err error) bool {
	return isCrossDevice(err)
}

func isCrossDevice(err error) bool {
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return errors.Is(linkErr.Err, syscall.EXDEV)
	}
	return errors.Is(err, syscall.EXDEV)
}

// mapError translates os errors into the domain sentinels.
func mapError(err error) error {
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%w: %v", fo.ErrNotFound, err)
	case os.IsPermission(err):
		return fmt.Errorf("%w: %v", fo.ErrPermissionDenied, err)
	default:
		return err
	}
}

// Compile-time check that OSFilesystemManager implements fo.FilesystemManager interface
var _ fo.FilesystemManager = (*OSFilesystemManager)(nil)
