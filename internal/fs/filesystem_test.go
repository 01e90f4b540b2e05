package fs_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"fo-go/internal/fo"
	"fo-go/internal/fs"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestOSFilesystemManager(t *testing.T) {
	m := fs.NewOSFilesystemManager()

	t.Run("resolve returns absolute path and info", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "a.txt")
		writeTestFile(t, path, "hello")

		abs, info, err := m.Resolve(path)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !filepath.IsAbs(abs) {
			t.Errorf("path %q not absolute", abs)
		}
		if info.Size() != 5 {
			t.Errorf("size = %d, want 5", info.Size())
		}
	})

	t.Run("resolve rejects symlinks", func(t *testing.T) {
		dir := t.TempDir()
		target := filepath.Join(dir, "target.txt")
		link := filepath.Join(dir, "link.txt")
		writeTestFile(t, target, "x")
		if err := os.Symlink(target, link); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}

		if _, _, err := m.Resolve(link); err == nil {
			t.Error("Resolve() accepted a symlink")
		}
	})

	t.Run("stat maps missing files to not found", func(t *testing.T) {
		_, err := m.Stat(filepath.Join(t.TempDir(), "nope"))
		if !errors.Is(err, fo.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("create open round-trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.txt")

		w, err := m.Create(path)
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		io.WriteString(w, "payload")
		w.Close()

		r, err := m.Open(path)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer r.Close()
		data, _ := io.ReadAll(r)
		if string(data) != "payload" {
			t.Errorf("got %q", data)
		}
	})

	t.Run("rename moves files", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "src.txt")
		dst := filepath.Join(dir, "dst.txt")
		writeTestFile(t, src, "x")

		if err := m.Rename(src, dst); err != nil {
			t.Fatalf("Rename() error = %v", err)
		}
		if _, err := os.Stat(src); !os.IsNotExist(err) {
			t.Error("source still present")
		}
		if _, err := os.Stat(dst); err != nil {
			t.Errorf("destination missing: %v", err)
		}
	})

	t.Run("mkdirall and remove", func(t *testing.T) {
		dir := t.TempDir()
		nested := filepath.Join(dir, "a", "b", "c")
		if err := m.MkdirAll(nested); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}

		path := filepath.Join(nested, "f.txt")
		writeTestFile(t, path, "x")
		if err := m.Remove(path); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("file still present after Remove")
		}
	})

	t.Run("cross-device classification", func(t *testing.T) {
		if m.IsCrossDevice(errors.New("plain")) {
			t.Error("plain error classified as cross-device")
		}
		linkErr := &os.LinkError{Op: "rename", Old: "/a", New: "/b", Err: syscall.EXDEV}
		if !m.IsCrossDevice(linkErr) {
			t.Error("EXDEV link error not classified as cross-device")
		}
	})
}
