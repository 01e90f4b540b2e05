package fo_test

import (
	"errors"
	iofs "io/fs"
	"strings"
	"testing"
	"time"

	"fo-go/internal/fo"
	"fo-go/internal/model"
	"fo-go/internal/testutil"
)

func seedFile(t *testing.T, st fo.Store, fsmgr *testutil.MockFilesystemManager, id, path string, content []byte) *model.FileRecord {
	t.Helper()
	fsmgr.AddFile(path, content)
	rec := &model.FileRecord{
		ID:        id,
		Path:      path,
		Name:      path[strings.LastIndex(path, "/")+1:],
		Extension: strings.TrimPrefix(strings.ToLower(path[strings.LastIndex(path, ".")+1:]), "."),
		SizeBytes: int64(len(content)),
		CreatedAt: time.Now(),
	}
	if err := st.CreateFile(rec); err != nil {
		t.Fatalf("CreateFile() error = %v", err)
	}
	return rec
}

func TestMover_Relocate(t *testing.T) {
	t.Run("moves the file and commits the new path", func(t *testing.T) {
		st := testutil.NewTestStore(t)
		fsmgr := testutil.NewMockFilesystemManager()
		mover := fo.NewMover(st, fsmgr, fo.NewNopLogger())

		rec := seedFile(t, st, fsmgr, "f1", "/downloads/invoice.pdf", []byte("pdf"))

		newPath, err := mover.Relocate(rec, "/organized/Documents")
		if err != nil {
			t.Fatalf("Relocate() error = %v", err)
		}
		if newPath != "/organized/Documents/invoice.pdf" {
			t.Errorf("newPath = %q", newPath)
		}
		if fsmgr.Exists("/downloads/invoice.pdf") {
			t.Error("source still present after move")
		}
		if !fsmgr.Exists(newPath) {
			t.Error("destination missing after move")
		}

		stored, err := st.FindFileByID("f1")
		if err != nil || stored == nil {
			t.Fatalf("FindFileByID() = %v, %v", stored, err)
		}
		if stored.Path != newPath {
			t.Errorf("stored path = %q, want %q", stored.Path, newPath)
		}
	})

	t.Run("appends a numeric suffix on collision", func(t *testing.T) {
		st := testutil.NewTestStore(t)
		fsmgr := testutil.NewMockFilesystemManager()
		mover := fo.NewMover(st, fsmgr, fo.NewNopLogger())

		fsmgr.AddFile("/organized/Documents/report.pdf", []byte("existing"))
		fsmgr.AddFile("/organized/Documents/report (1).pdf", []byte("also existing"))
		rec := seedFile(t, st, fsmgr, "f1", "/downloads/report.pdf", []byte("new"))

		newPath, err := mover.Relocate(rec, "/organized/Documents")
		if err != nil {
			t.Fatalf("Relocate() error = %v", err)
		}
		if newPath != "/organized/Documents/report (2).pdf" {
			t.Errorf("newPath = %q, want report (2).pdf", newPath)
		}

		// The occupants are untouched.
		if string(fsmgr.Content("/organized/Documents/report.pdf")) != "existing" {
			t.Error("existing file was overwritten")
		}
		if string(fsmgr.Content(newPath)) != "new" {
			t.Error("moved content mismatch")
		}
	})

	t.Run("fails when the source vanished", func(t *testing.T) {
		st := testutil.NewTestStore(t)
		fsmgr := testutil.NewMockFilesystemManager()
		mover := fo.NewMover(st, fsmgr, fo.NewNopLogger())

		rec := seedFile(t, st, fsmgr, "f1", "/downloads/gone.pdf", []byte("x"))
		fsmgr.Remove("/downloads/gone.pdf")

		if _, err := mover.Relocate(rec, "/organized/Documents"); err == nil {
			t.Fatal("expected error for missing source")
		}
	})

	t.Run("falls back to copy-then-delete across devices", func(t *testing.T) {
		st := testutil.NewTestStore(t)
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.CrossDevice = true
		mover := fo.NewMover(st, fsmgr, fo.NewNopLogger())

		rec := seedFile(t, st, fsmgr, "f1", "/downloads/big.mkv", []byte("video-bytes"))

		newPath, err := mover.Relocate(rec, "/mnt/media/Videos")
		if err != nil {
			t.Fatalf("Relocate() error = %v", err)
		}
		if fsmgr.Exists("/downloads/big.mkv") {
			t.Error("source not removed after verified copy")
		}
		if string(fsmgr.Content(newPath)) != "video-bytes" {
			t.Error("copied content mismatch")
		}
	})

	t.Run("unverifiable cross-device copy is removed, not left as a duplicate", func(t *testing.T) {
		st := testutil.NewTestStore(t)
		inner := testutil.NewMockFilesystemManager()
		inner.CrossDevice = true
		fsmgr := &statFailsOnceCopied{MockFilesystemManager: inner, path: "/mnt/media/Videos/big.mkv"}
		mover := fo.NewMover(st, fsmgr, fo.NewNopLogger())

		rec := seedFile(t, st, inner, "f1", "/downloads/big.mkv", []byte("video-bytes"))

		if _, err := mover.Relocate(rec, "/mnt/media/Videos"); err == nil {
			t.Fatal("expected verification failure")
		}
		if !inner.Exists("/downloads/big.mkv") {
			t.Error("source removed despite failed verification")
		}
		if inner.Exists("/mnt/media/Videos/big.mkv") {
			t.Error("destination copy left behind; file now exists twice")
		}

		stored, _ := st.FindFileByID("f1")
		if stored.Path != "/downloads/big.mkv" {
			t.Errorf("stored path changed to %q on failure", stored.Path)
		}
	})

	t.Run("leaves the source in place when the rename fails outright", func(t *testing.T) {
		st := testutil.NewTestStore(t)
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.RenameErr = errPermission
		mover := fo.NewMover(st, fsmgr, fo.NewNopLogger())

		rec := seedFile(t, st, fsmgr, "f1", "/downloads/locked.pdf", []byte("x"))

		if _, err := mover.Relocate(rec, "/organized/Documents"); err == nil {
			t.Fatal("expected rename failure")
		}
		if !fsmgr.Exists("/downloads/locked.pdf") {
			t.Error("source should be untouched after a failed rename")
		}

		stored, _ := st.FindFileByID("f1")
		if stored.Path != "/downloads/locked.pdf" {
			t.Errorf("stored path changed to %q on failure", stored.Path)
		}
	})
}

var errPermission = fo.ErrPermissionDenied

// statFailsOnceCopied fails Stat on one path only after a file appears there,
// so the collision probe sees it free but the copy verification cannot run.
type statFailsOnceCopied struct {
	*testutil.MockFilesystemManager
	path string
}

func (s *statFailsOnceCopied) Stat(p string) (iofs.FileInfo, error) {
	if p == s.path && s.Exists(p) {
		return nil, errors.New("input/output error")
	}
	return s.MockFilesystemManager.Stat(p)
}
