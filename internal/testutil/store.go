package testutil

import (
	"testing"

	"fo-go/internal/store"
)

// NewTestStore creates a new in-memory SQLite store with all migrations
// applied, including the default tag and rule seeds. The store is
// automatically closed when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := st.Migrate(); err != nil {
		st.Close()
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() {
		st.Close()
	})

	return st
}
