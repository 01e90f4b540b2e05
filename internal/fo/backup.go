package fo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"fo-go/internal/model"
)

// BackupPolicy is the retry policy for the backup queue.
type BackupPolicy struct {
	MaxAttempts  int           // Attempts before a task becomes terminally failed
	BaseDelay    time.Duration // First retry delay; doubles per attempt
	MaxDelay     time.Duration // Backoff cap
	PollInterval time.Duration // Idle wait between queue polls
}

// DefaultBackupPolicy returns the stock policy: five attempts, 5s base
// backoff capped at 5m with jitter, 1s idle poll.
func DefaultBackupPolicy() BackupPolicy {
	return BackupPolicy{
		MaxAttempts:  5,
		BaseDelay:    5 * time.Second,
		MaxDelay:     5 * time.Minute,
		PollInterval: time.Second,
	}
}

// BackupQueue drains pending backup tasks and uploads file content to the
// vault under the file's ID. It is fully decoupled from organization: vault
// errors never block or fail a move. Tasks are durable; uploads interrupted
// by a crash resume on the next Run.
type BackupQueue struct {
	store  Store
	vault  Vault
	fsmgr  FilesystemManager
	enc    Encryptor // nil disables encryption
	events *Bus
	logger Logger
	clock  Clock
	policy BackupPolicy
	wake   chan struct{}
}

// NewBackupQueue creates a BackupQueue. enc may be nil for plaintext uploads.
func NewBackupQueue(store Store, vault Vault, fsmgr FilesystemManager, enc Encryptor, events *Bus, logger Logger, clock Clock, policy BackupPolicy) *BackupQueue {
	if policy.MaxAttempts <= 0 {
		policy = DefaultBackupPolicy()
	}
	return &BackupQueue{
		store:  store,
		vault:  vault,
		fsmgr:  fsmgr,
		enc:    enc,
		events: events,
		logger: logger,
		clock:  clock,
		policy: policy,
		wake:   make(chan struct{}, 1),
	}
}

// Enqueue marks a file backup-eligible and wakes the worker. Re-enqueueing a
// done or failed task starts it over from pending.
func (q *BackupQueue) Enqueue(fileID string) error {
	rec, err := q.store.FindFileByID(fileID)
	if err != nil {
		return fmt.Errorf("looking up file: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}

	if err := q.store.EnqueueBackup(fileID, q.clock.Now()); err != nil {
		return fmt.Errorf("enqueueing backup: %w", err)
	}

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Status returns the task for a file.
func (q *BackupQueue) Status(fileID string) (*model.BackupTask, error) {
	task, err := q.store.FindBackupTask(fileID)
	if err != nil {
		return nil, fmt.Errorf("looking up backup task: %w", err)
	}
	if task == nil {
		return nil, fmt.Errorf("backup task for %s: %w", fileID, ErrNotFound)
	}
	return task, nil
}

// Run is the single-consumer worker loop. It returns when ctx is cancelled;
// cancellation takes effect between attempts, never mid-task bookkeeping.
func (q *BackupQueue) Run(ctx context.Context) {
	if err := q.store.ResetInFlightBackups(); err != nil {
		q.logger.Error("resetting interrupted backups", "error", err)
	}

	for {
		if ctx.Err() != nil {
			return
		}

		task, err := q.store.NextDueBackup(q.clock.Now())
		if err != nil {
			q.logger.Error("polling backup queue", "error", err)
			q.idle(ctx)
			continue
		}
		if task == nil {
			q.idle(ctx)
			continue
		}

		q.process(ctx, task.FileID, task.AttemptCount)
	}
}

func (q *BackupQueue) idle(ctx context.Context) {
	t := time.NewTimer(q.policy.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-q.wake:
	case <-t.C:
	}
}

// process runs one upload attempt and records the outcome.
func (q *BackupQueue) process(ctx context.Context, fileID string, priorAttempts int) {
	now := q.clock.Now()
	if err := q.store.MarkBackupInFlight(fileID, now); err != nil {
		q.logger.Error("marking backup in flight", "file_id", fileID, "error", err)
		return
	}

	err := q.upload(ctx, fileID)
	if err == nil {
		if err := q.store.MarkBackupDone(fileID, q.clock.Now()); err != nil {
			q.logger.Error("marking backup done", "file_id", fileID, "error", err)
			return
		}
		q.events.Publish(Event{Type: EventBackupDone, FileID: fileID, At: q.clock.Now()})
		q.logger.Info("backup uploaded", "file_id", fileID)
		return
	}

	attempts := priorAttempts + 1
	if attempts >= q.policy.MaxAttempts {
		if serr := q.store.MarkBackupFailed(fileID, err.Error(), q.clock.Now()); serr != nil {
			q.logger.Error("marking backup failed", "file_id", fileID, "error", serr)
		}
		q.events.Publish(Event{Type: EventBackupFailed, FileID: fileID, Reason: err.Error(), At: q.clock.Now()})
		q.logger.Error("backup failed permanently", "file_id", fileID, "attempts", attempts, "error", err)
		return
	}

	next := q.clock.Now().Add(q.backoff(attempts))
	if serr := q.store.MarkBackupRetry(fileID, err.Error(), next, q.clock.Now()); serr != nil {
		q.logger.Error("scheduling backup retry", "file_id", fileID, "error", serr)
		return
	}
	q.logger.Warn("backup attempt failed", "file_id", fileID, "attempt", attempts, "next", next, "error", err)
}

// upload streams the file's current content to the vault under its ID.
func (q *BackupQueue) upload(ctx context.Context, fileID string) error {
	rec, err := q.store.FindFileByID(fileID)
	if err != nil {
		return fmt.Errorf("looking up file: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("file record %s: %w", fileID, ErrNotFound)
	}

	info, err := q.fsmgr.Stat(rec.Path)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}

	f, err := q.fsmgr.Open(rec.Path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	size := info.Size()

	if q.enc != nil {
		// Ciphertext length is only known after encryption, so encrypt to a
		// buffer before the upload.
		var buf bytes.Buffer
		if err := q.enc.Encrypt(f, &buf); err != nil {
			return fmt.Errorf("encrypting content: %w", err)
		}
		r = &buf
		size = int64(buf.Len())
	}

	if err := q.vault.PutObject(ctx, fileID, r, size); err != nil {
		return fmt.Errorf("uploading to vault: %w", err)
	}
	return nil
}

// Restore downloads a backed-up object to destPath, decrypting when
// encryption is configured. passphrase is ignored for plaintext vaults.
func (q *BackupQueue) Restore(ctx context.Context, fileID, destPath, passphrase string) error {
	w, err := q.fsmgr.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	defer w.Close()

	if q.enc == nil {
		if err := q.vault.GetObject(ctx, fileID, w); err != nil {
			return fmt.Errorf("downloading from vault: %w", err)
		}
		return nil
	}

	dc, err := q.enc.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking private key: %w", err)
	}

	var buf bytes.Buffer
	if err := q.vault.GetObject(ctx, fileID, &buf); err != nil {
		return fmt.Errorf("downloading from vault: %w", err)
	}
	if err := dc.Decrypt(&buf, w); err != nil {
		return fmt.Errorf("decrypting content: %w", err)
	}
	return nil
}

// backoff returns the delay before the given attempt number is retried:
// exponential from BaseDelay, capped at MaxDelay, with ±20% jitter.
func (q *BackupQueue) backoff(attempt int) time.Duration {
	d := q.policy.BaseDelay
	for i := 1; i < attempt && d < q.policy.MaxDelay; i++ {
		d *= 2
	}
	if d > q.policy.MaxDelay {
		d = q.policy.MaxDelay
	}
	jitter := d / 5
	if jitter > 0 {
		d = d - jitter + time.Duration(rand.Int63n(int64(2*jitter)))
	}
	return d
}
