package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"fo-go/internal/fo"
)

// MemoryVault is an in-memory implementation of the Vault interface.
// It stores all objects in memory, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryVault struct {
	objects map[string][]byte // key -> content
	mu      sync.RWMutex

	// PutErr and GetErr, when set, are returned by the corresponding
	// operations. Tests use them to simulate an unreachable backend.
	PutErr error
	GetErr error
}

// NewMemoryVault creates a new in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{objects: make(map[string][]byte)}
}

// PutObject stores content under the given key.
func (m *MemoryVault) PutObject(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	failErr := m.PutErr
	m.mu.RUnlock()
	if failErr != nil {
		return failErr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Idempotent: storing the same key multiple times is safe
	m.objects[key] = data
	return nil
}

// GetObject retrieves content by key.
func (m *MemoryVault) GetObject(ctx context.Context, key string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetErr != nil {
		return m.GetErr
	}

	data, ok := m.objects[key]
	if !ok {
		return fmt.Errorf("object %s: %w", key, fo.ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

// ValidateSetup always succeeds for the in-memory vault.
func (m *MemoryVault) ValidateSetup(ctx context.Context) error {
	return ctx.Err()
}

// Object returns a stored object's bytes for test assertions.
func (m *MemoryVault) Object(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}

// Len returns the number of stored objects.
func (m *MemoryVault) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Compile-time check that MemoryVault implements fo.Vault interface
var _ fo.Vault = (*MemoryVault)(nil)
