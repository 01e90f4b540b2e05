package store

import (
	"errors"
	"testing"

	"github.com/mattn/go-sqlite3"

	"fo-go/internal/fo"
)

func TestStoreErrClassification(t *testing.T) {
	t.Run("environmental driver failures map to ErrStoreUnavailable", func(t *testing.T) {
		for _, code := range []sqlite3.ErrNo{
			sqlite3.ErrBusy,
			sqlite3.ErrLocked,
			sqlite3.ErrIoErr,
			sqlite3.ErrCantOpen,
			sqlite3.ErrCorrupt,
			sqlite3.ErrFull,
			sqlite3.ErrNotADB,
		} {
			err := storeErr("finding file by path", sqlite3.Error{Code: code})
			if !errors.Is(err, fo.ErrStoreUnavailable) {
				t.Errorf("code %v: expected ErrStoreUnavailable, got %v", code, err)
			}
		}
	})

	t.Run("query errors stay ordinary", func(t *testing.T) {
		err := storeErr("creating file record", errors.New("UNIQUE constraint failed"))
		if errors.Is(err, fo.ErrStoreUnavailable) {
			t.Errorf("constraint error misclassified as unavailable: %v", err)
		}
		if got := err.Error(); got != "creating file record: UNIQUE constraint failed" {
			t.Errorf("unexpected message %q", got)
		}

		err = storeErr("deleting tag", sqlite3.Error{Code: sqlite3.ErrConstraint})
		if errors.Is(err, fo.ErrStoreUnavailable) {
			t.Errorf("driver constraint error misclassified as unavailable: %v", err)
		}
	})
}
