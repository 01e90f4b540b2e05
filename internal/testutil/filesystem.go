package testutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"fo-go/internal/fo"
)

// errCrossDevice is what Rename returns when CrossDevice is set.
var errCrossDevice = errors.New("cross-device rename")

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing.
// Safe for concurrent use; organization runs on goroutines.
type MockFilesystemManager struct {
	mu    sync.Mutex
	files map[string]*MockFile

	// CrossDevice makes every Rename fail as if source and destination
	// were on different filesystems, forcing the copy fallback.
	CrossDevice bool

	// StatErr injects a transient error for specific paths.
	StatErr map[string]error

	// RenameErr injects a failure for Rename regardless of paths.
	RenameErr error
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:   make(map[string]*MockFile),
		StatErr: make(map[string]error),
	}
}

// AddFile adds a file to the mock filesystem.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &MockFile{Content: content, ModTime: time.Now()}
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &MockFile{IsDirectory: true, ModTime: time.Now()}
}

// SetStatErr injects or clears (err == nil) a stat failure for a path.
func (m *MockFilesystemManager) SetStatErr(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.StatErr, path)
		return
	}
	m.StatErr[path] = err
}

// Exists reports whether a path is present.
func (m *MockFilesystemManager) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

// Content returns a file's bytes, or nil if absent.
func (m *MockFilesystemManager) Content(path string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[path]; ok {
		return f.Content
	}
	return nil
}

// Paths returns all present paths, for debugging failed assertions.
func (m *MockFilesystemManager) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var paths []string
	for p := range m.files {
		paths = append(paths, p)
	}
	return paths
}

func (m *MockFilesystemManager) Resolve(rawPath string) (string, fs.FileInfo, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return "", nil, err
	}
	info, err := m.Stat(absPath)
	if err != nil {
		return "", nil, err
	}
	return absPath, info, nil
}

func (m *MockFilesystemManager) Stat(path string) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.StatErr[path]; ok {
		return nil, err
	}
	file, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", fo.ErrNotFound, path)
	}
	return m.infoFor(path, file), nil
}

func (m *MockFilesystemManager) Open(path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", fo.ErrNotFound, path)
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path)
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

func (m *MockFilesystemManager) Create(path string) (io.WriteCloser, error) {
	return &mockWriter{m: m, path: path}, nil
}

func (m *MockFilesystemManager) Rename(oldPath, newPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RenameErr != nil {
		return m.RenameErr
	}
	if m.CrossDevice {
		return errCrossDevice
	}

	file, ok := m.files[oldPath]
	if !ok {
		return fmt.Errorf("%w: %s", fo.ErrNotFound, oldPath)
	}
	delete(m.files, oldPath)
	m.files[newPath] = file
	return nil
}

func (m *MockFilesystemManager) MkdirAll(dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for p := dir; p != "/" && p != "." && p != ""; p = filepath.Dir(p) {
		if existing, ok := m.files[p]; ok && !existing.IsDirectory {
			return fmt.Errorf("not a directory: %s", p)
		}
		m.files[p] = &MockFile{IsDirectory: true, ModTime: time.Now()}
	}
	return nil
}

func (m *MockFilesystemManager) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[path]; !ok {
		return fmt.Errorf("%w: %s", fo.ErrNotFound, path)
	}
	delete(m.files, path)
	return nil
}

func (m *MockFilesystemManager) IsCrossDevice(err error) bool {
	return errors.Is(err, errCrossDevice)
}

func (m *MockFilesystemManager) infoFor(path string, file *MockFile) fs.FileInfo {
	mode := fs.FileMode(0644)
	if file.IsDirectory {
		mode = fs.ModeDir | 0755
	}
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(file.Content)),
		mode:    mode,
		modTime: file.ModTime,
		isDir:   file.IsDirectory,
	}
}

// mockWriter buffers writes and commits the file on Close.
type mockWriter struct {
	m    *MockFilesystemManager
	path string
	buf  bytes.Buffer
}

func (w *mockWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *mockWriter) Close() error {
	w.m.AddFile(w.path, w.buf.Bytes())
	return nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check
var _ fo.FilesystemManager = (*MockFilesystemManager)(nil)
