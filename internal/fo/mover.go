package fo

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/avast/retry-go"

	"fo-go/internal/model"
)

// Mover performs collision-safe relocation and keeps the metadata store in
// agreement with the filesystem. The filesystem rename happens first (the
// step most likely to fail for external reasons), then the store commit,
// retried on failure. Callers must serialize concurrent moves into the same
// destination folder; the collision probe is not atomic across processes.
type Mover struct {
	store  Store
	fsmgr  FilesystemManager
	logger Logger
}

// NewMover creates a Mover with the provided dependencies.
func NewMover(store Store, fsmgr FilesystemManager, logger Logger) *Mover {
	return &Mover{store: store, fsmgr: fsmgr, logger: logger}
}

// Relocate moves the recorded file into destFolder and commits the new path
// to the store. If a file with the same name already exists there, a numeric
// disambiguator is appended before the extension ("report.pdf" becomes
// "report (1).pdf"); existing files are never overwritten.
func (m *Mover) Relocate(rec *model.FileRecord, destFolder string) (string, error) {
	if _, err := m.fsmgr.Stat(rec.Path); err != nil {
		return "", fmt.Errorf("source missing: %w", err)
	}

	if err := m.fsmgr.MkdirAll(destFolder); err != nil {
		return "", fmt.Errorf("creating destination folder: %w", err)
	}

	target, err := m.disambiguate(destFolder, rec.Name)
	if err != nil {
		return "", fmt.Errorf("choosing destination name: %w", err)
	}

	if err := m.move(rec.Path, target); err != nil {
		return "", err
	}

	// The file is on disk at its new location. If the store commit fails the
	// record is merely stale ("moved but not yet indexed"), never lost, so
	// retry the write rather than attempt to undo the move.
	err = retry.Do(
		func() error { return m.store.UpdateFilePath(rec.ID, target) },
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", fmt.Errorf("committing move to store (file is at %s): %w", target, err)
	}

	m.logger.Info("file relocated", "from", rec.Path, "to", target)
	return target, nil
}

// disambiguate returns the first free path for name inside folder, appending
// " (n)" before the extension until no existing file collides.
func (m *Mover) disambiguate(folder, name string) (string, error) {
	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]

	candidate := filepath.Join(folder, name)
	for n := 1; ; n++ {
		_, err := m.fsmgr.Stat(candidate)
		if errors.Is(err, ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = filepath.Join(folder, fmt.Sprintf("%s (%d)%s", stem, n, ext))
	}
}

// move renames src to dst, falling back to copy-then-delete for cross-device
// moves. The copy is verified by size before the source is removed.
func (m *Mover) move(src, dst string) error {
	err := m.fsmgr.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !m.fsmgr.IsCrossDevice(err) {
		return fmt.Errorf("renaming file: %w", err)
	}
	return m.copyThenDelete(src, dst)
}

func (m *Mover) copyThenDelete(src, dst string) error {
	srcInfo, err := m.fsmgr.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	r, err := m.fsmgr.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer r.Close()

	w, err := m.fsmgr.Create(dst)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		m.fsmgr.Remove(dst)
		return fmt.Errorf("copying across devices: %w", err)
	}
	if err := w.Close(); err != nil {
		m.fsmgr.Remove(dst)
		return fmt.Errorf("finalizing destination: %w", err)
	}

	// An unverifiable copy counts as a failed copy: the source is still
	// intact, so drop the destination rather than leave the file twice.
	dstInfo, err := m.fsmgr.Stat(dst)
	if err != nil {
		m.fsmgr.Remove(dst)
		return fmt.Errorf("verifying destination copy: %w", err)
	}
	if dstInfo.Size() != srcInfo.Size() {
		m.fsmgr.Remove(dst)
		return fmt.Errorf("copy verification failed: source %d bytes, destination %d bytes", srcInfo.Size(), dstInfo.Size())
	}

	if err := m.fsmgr.Remove(src); err != nil {
		return fmt.Errorf("removing source after copy: %w", err)
	}
	return nil
}
