package vault_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fo-go/internal/fo"
	"fo-go/internal/vault"
)

func TestFileSystemVault(t *testing.T) {
	ctx := context.Background()

	t.Run("put and get round-trip", func(t *testing.T) {
		v, err := vault.NewFileSystemVault(t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}

		data := []byte("backup payload")
		if err := v.PutObject(ctx, "file-1", bytes.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("PutObject() error = %v", err)
		}

		var out bytes.Buffer
		if err := v.GetObject(ctx, "file-1", &out); err != nil {
			t.Fatalf("GetObject() error = %v", err)
		}
		if !bytes.Equal(out.Bytes(), data) {
			t.Errorf("got %q, want %q", out.Bytes(), data)
		}
	})

	t.Run("put overwrites existing objects", func(t *testing.T) {
		v, _ := vault.NewFileSystemVault(t.TempDir())

		v.PutObject(ctx, "file-1", strings.NewReader("old"), 3)
		if err := v.PutObject(ctx, "file-1", strings.NewReader("newer"), 5); err != nil {
			t.Fatalf("PutObject() error = %v", err)
		}

		var out bytes.Buffer
		v.GetObject(ctx, "file-1", &out)
		if out.String() != "newer" {
			t.Errorf("got %q, want newer", out.String())
		}
	})

	t.Run("size mismatch leaves no partial object", func(t *testing.T) {
		root := t.TempDir()
		v, _ := vault.NewFileSystemVault(root)

		err := v.PutObject(ctx, "file-1", strings.NewReader("short"), 100)
		if err == nil {
			t.Fatal("expected size mismatch error")
		}

		if err := v.GetObject(ctx, "file-1", &bytes.Buffer{}); !errors.Is(err, fo.ErrNotFound) {
			t.Errorf("GetObject() error = %v, want ErrNotFound", err)
		}
		entries, _ := os.ReadDir(filepath.Join(root, "objects"))
		if len(entries) != 0 {
			t.Errorf("objects dir not empty: %v", entries)
		}
	})

	t.Run("get of missing key reports not found", func(t *testing.T) {
		v, _ := vault.NewFileSystemVault(t.TempDir())
		err := v.GetObject(ctx, "nope", &bytes.Buffer{})
		if !errors.Is(err, fo.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("validate setup", func(t *testing.T) {
		root := t.TempDir()
		v, _ := vault.NewFileSystemVault(root)
		if err := v.ValidateSetup(ctx); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}

		os.RemoveAll(filepath.Join(root, "objects"))
		if err := v.ValidateSetup(ctx); err == nil {
			t.Error("ValidateSetup() passed with objects dir removed")
		}
	})

	t.Run("cancelled context refuses work", func(t *testing.T) {
		v, _ := vault.NewFileSystemVault(t.TempDir())
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		if err := v.PutObject(cancelled, "k", strings.NewReader("x"), 1); !errors.Is(err, context.Canceled) {
			t.Errorf("PutObject() error = %v, want context.Canceled", err)
		}
	})
}

func TestMemoryVault(t *testing.T) {
	ctx := context.Background()

	t.Run("put and get round-trip", func(t *testing.T) {
		v := vault.NewMemoryVault()

		data := []byte("payload")
		if err := v.PutObject(ctx, "k1", bytes.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("PutObject() error = %v", err)
		}
		if v.Len() != 1 {
			t.Errorf("Len() = %d, want 1", v.Len())
		}

		var out bytes.Buffer
		if err := v.GetObject(ctx, "k1", &out); err != nil {
			t.Fatalf("GetObject() error = %v", err)
		}
		if !bytes.Equal(out.Bytes(), data) {
			t.Errorf("got %q, want %q", out.Bytes(), data)
		}
	})

	t.Run("missing key reports not found", func(t *testing.T) {
		v := vault.NewMemoryVault()
		if err := v.GetObject(ctx, "nope", &bytes.Buffer{}); !errors.Is(err, fo.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("injected failures surface", func(t *testing.T) {
		v := vault.NewMemoryVault()
		v.PutErr = errors.New("remote unavailable")

		if err := v.PutObject(ctx, "k1", strings.NewReader("x"), 1); err == nil {
			t.Error("expected injected put failure")
		}
		if v.Len() != 0 {
			t.Errorf("Len() = %d after failed put, want 0", v.Len())
		}
	})
}
