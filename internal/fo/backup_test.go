package fo_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fo-go/internal/encryption"
	"fo-go/internal/fo"
	"fo-go/internal/model"
	"fo-go/internal/store"
	"fo-go/internal/testutil"
	"fo-go/internal/vault"
)

type backupFixture struct {
	store  *store.SQLiteStore
	fsmgr  *testutil.MockFilesystemManager
	vault  *vault.MemoryVault
	events *fo.Bus
	clock  *testutil.StubClock
	queue  *fo.BackupQueue

	cancel context.CancelFunc
	done   sync.WaitGroup
}

func newBackupFixture(t *testing.T, enc fo.Encryptor, policy fo.BackupPolicy) *backupFixture {
	t.Helper()

	f := &backupFixture{
		store:  testutil.NewTestStore(t),
		fsmgr:  testutil.NewMockFilesystemManager(),
		vault:  vault.NewMemoryVault(),
		events: fo.NewBus(64),
		clock:  testutil.FixedClock(),
	}
	f.queue = fo.NewBackupQueue(f.store, f.vault, f.fsmgr, enc, f.events, fo.NewNopLogger(), f.clock, policy)
	return f
}

func quickPolicy() fo.BackupPolicy {
	return fo.BackupPolicy{
		MaxAttempts:  2,
		BaseDelay:    10 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
	}
}

// start runs the worker until the test ends.
func (f *backupFixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.done.Add(1)
	go func() {
		defer f.done.Done()
		f.queue.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		f.done.Wait()
	})
}

func TestBackupQueue_Enqueue(t *testing.T) {
	t.Run("unknown file is rejected", func(t *testing.T) {
		f := newBackupFixture(t, nil, quickPolicy())
		err := f.queue.Enqueue("nope")
		if !errors.Is(err, fo.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("re-enqueue restarts a terminal task but not a pending one", func(t *testing.T) {
		f := newBackupFixture(t, nil, quickPolicy())
		seedFile(t, f.store, f.fsmgr, "f1", "/docs/a.txt", []byte("x"))

		if err := f.queue.Enqueue("f1"); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		if err := f.store.MarkBackupFailed("f1", "gave up", f.clock.Now()); err != nil {
			t.Fatalf("MarkBackupFailed() error = %v", err)
		}

		if err := f.queue.Enqueue("f1"); err != nil {
			t.Fatalf("re-Enqueue() error = %v", err)
		}
		task, _ := f.store.FindBackupTask("f1")
		if task.Status != model.BackupPending || task.AttemptCount != 0 {
			t.Errorf("task = %+v, want pending with zero attempts", task)
		}

		// A pending task is left alone by a second Enqueue.
		f.clock.Advance(time.Hour)
		if err := f.queue.Enqueue("f1"); err != nil {
			t.Fatalf("third Enqueue() error = %v", err)
		}
		again, _ := f.store.FindBackupTask("f1")
		if !again.UpdatedAt.Equal(task.UpdatedAt) {
			t.Error("pending task was rewritten by re-enqueue")
		}
	})
}

func TestBackupQueue_Run(t *testing.T) {
	t.Run("uploads the file under its ID", func(t *testing.T) {
		f := newBackupFixture(t, nil, quickPolicy())
		seedFile(t, f.store, f.fsmgr, "f1", "/docs/a.txt", []byte("backup me"))

		if err := f.queue.Enqueue("f1"); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		f.start(t)

		waitEvent(t, f.events, fo.EventBackupDone)

		data, ok := f.vault.Object("f1")
		if !ok {
			t.Fatal("object missing from vault")
		}
		if string(data) != "backup me" {
			t.Errorf("object content = %q", data)
		}
		task, _ := f.store.FindBackupTask("f1")
		if task.Status != model.BackupDone {
			t.Errorf("status = %s, want done", task.Status)
		}
	})

	t.Run("exhausted attempts become terminally failed", func(t *testing.T) {
		f := newBackupFixture(t, nil, quickPolicy())
		seedFile(t, f.store, f.fsmgr, "f1", "/docs/a.txt", []byte("x"))
		f.vault.PutErr = fo.ErrRemoteUnavailable

		if err := f.queue.Enqueue("f1"); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		f.start(t)

		// First attempt fails and schedules a retry in stub-clock time.
		deadline := time.After(2 * time.Second)
		for {
			task, _ := f.store.FindBackupTask("f1")
			if task != nil && task.AttemptCount >= 1 {
				break
			}
			select {
			case <-deadline:
				t.Fatal("first attempt never recorded")
			case <-time.After(5 * time.Millisecond):
			}
		}
		f.clock.Advance(time.Minute)

		waitEvent(t, f.events, fo.EventBackupFailed)

		task, _ := f.store.FindBackupTask("f1")
		if task.Status != model.BackupFailed {
			t.Errorf("status = %s, want failed", task.Status)
		}
		if task.AttemptCount != 2 {
			t.Errorf("attempts = %d, want 2", task.AttemptCount)
		}
		if task.Reason == "" {
			t.Error("failed task should carry a reason")
		}

		// Terminal failure is never picked up again.
		f.clock.Advance(time.Hour)
		due, _ := f.store.NextDueBackup(f.clock.Now())
		if due != nil {
			t.Errorf("failed task came due again: %+v", due)
		}
	})

	t.Run("interrupted uploads resume after restart", func(t *testing.T) {
		f := newBackupFixture(t, nil, quickPolicy())
		seedFile(t, f.store, f.fsmgr, "f1", "/docs/a.txt", []byte("resume"))

		if err := f.queue.Enqueue("f1"); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		// Simulate a crash mid-upload.
		if err := f.store.MarkBackupInFlight("f1", f.clock.Now()); err != nil {
			t.Fatalf("MarkBackupInFlight() error = %v", err)
		}

		f.start(t)
		waitEvent(t, f.events, fo.EventBackupDone)

		if _, ok := f.vault.Object("f1"); !ok {
			t.Error("resumed upload missing from vault")
		}
	})
}

func TestBackupQueue_Encryption(t *testing.T) {
	enc := encryption.NewTestEncryptor()
	f := newBackupFixture(t, enc, quickPolicy())
	seedFile(t, f.store, f.fsmgr, "f1", "/docs/secret.txt", []byte("top secret"))

	if err := f.queue.Enqueue("f1"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	f.start(t)
	waitEvent(t, f.events, fo.EventBackupDone)

	data, ok := f.vault.Object("f1")
	if !ok {
		t.Fatal("object missing from vault")
	}
	if bytes.Equal(data, []byte("top secret")) {
		t.Error("object stored in plaintext despite encryption")
	}

	if err := f.queue.Restore(context.Background(), "f1", "/restore/secret.txt", "pw"); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if string(f.fsmgr.Content("/restore/secret.txt")) != "top secret" {
		t.Errorf("restored content = %q", f.fsmgr.Content("/restore/secret.txt"))
	}
}

func TestBackupQueue_RestorePlaintext(t *testing.T) {
	f := newBackupFixture(t, nil, quickPolicy())
	seedFile(t, f.store, f.fsmgr, "f1", "/docs/a.txt", []byte("plain"))

	if err := f.queue.Enqueue("f1"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	f.start(t)
	waitEvent(t, f.events, fo.EventBackupDone)

	if err := f.queue.Restore(context.Background(), "f1", "/restore/a.txt", ""); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if string(f.fsmgr.Content("/restore/a.txt")) != "plain" {
		t.Error("restored content mismatch")
	}
}
