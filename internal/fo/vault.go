package fo

import (
	"context"
	"io"
)

// Vault provides an interface for remote backup storage backends.
// Objects are keyed by file ID, not path, so renames never orphan backups.
// All operations stream through io.Reader/io.Writer to support large files.
type Vault interface {
	// PutObject stores content under the given key. Implementations must not
	// leave a partial object visible on failure: stage first, commit last.
	// size is the number of bytes that will be read from r.
	PutObject(ctx context.Context, key string, r io.Reader, size int64) error

	// GetObject retrieves content by key and writes it to w.
	GetObject(ctx context.Context, key string, w io.Writer) error

	// ValidateSetup verifies that the vault is accessible and properly
	// configured.
	ValidateSetup(ctx context.Context) error
}
