package fo

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"fo-go/internal/model"
)

// CoordinatorConfig carries the product-level tuning knobs.
type CoordinatorConfig struct {
	// OrganizeRoot anchors relative destination folders.
	OrganizeRoot string

	// Fallback is the synthesized catch-all rule applied when no user rule
	// matches. Nil disables the fallback: resolution then becomes a no-op
	// and the file is indexed in place.
	Fallback *model.Rule

	// AutoTag assigns the category tag after a successful organization.
	AutoTag bool
}

// Coordinator consumes watcher events and manual submissions, resolves
// destinations, and drives the Move Operator. It owns the registry of active
// watch sessions and serializes operations per destination folder so two
// concurrent moves never race on the same collision-disambiguation sequence.
type Coordinator struct {
	store   Store
	mover   *Mover
	fsmgr   FilesystemManager
	watcher WatcherFactory
	events  *Bus
	logger  Logger
	clock   Clock
	idgen   IDGenerator
	cfg     CoordinatorConfig

	mu        sync.Mutex
	sessions  map[string]WatchSession
	destLocks map[string]*destLock
	wg        sync.WaitGroup

	// pauseMu guards storeDown. While the store is down, new organization
	// attempts are rejected up front instead of churning per-file failures.
	pauseMu   sync.Mutex
	storeDown bool
}

// destLock serializes moves into one destination folder. refs counts the
// holders and waiters so the entry can be reclaimed at zero.
type destLock struct {
	mu   sync.Mutex
	refs int
}

// NewCoordinator creates a Coordinator with the provided dependencies.
func NewCoordinator(store Store, mover *Mover, fsmgr FilesystemManager, watcher WatcherFactory, events *Bus, logger Logger, clock Clock, idgen IDGenerator, cfg CoordinatorConfig) *Coordinator {
	return &Coordinator{
		store:     store,
		mover:     mover,
		fsmgr:     fsmgr,
		watcher:   watcher,
		events:    events,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		cfg:       cfg,
		sessions:  make(map[string]WatchSession),
		destLocks: make(map[string]*destLock),
	}
}

// StartWatching opens a watch session on the root folder and records it as
// active. Starting a second session on the same root is rejected.
func (c *Coordinator) StartWatching(root string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[root]; ok {
		return fmt.Errorf("%s: %w", root, ErrAlreadyWatching)
	}

	sess, err := c.watcher.Start(root)
	if err != nil {
		return fmt.Errorf("starting watch session: %w", err)
	}

	if err := c.store.UpsertWatchedFolder(root, true); err != nil {
		sess.Stop()
		return fmt.Errorf("recording watched folder: %w", err)
	}

	c.sessions[root] = sess
	c.wg.Add(1)
	go c.consume(sess)

	c.logger.Info("watching folder", "root", root)
	return nil
}

// StopWatching stops the session for the root folder and marks it inactive.
// Organization operations already dispatched run to completion.
func (c *Coordinator) StopWatching(root string) error {
	c.mu.Lock()
	sess, ok := c.sessions[root]
	if ok {
		delete(c.sessions, root)
	}
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s: %w", root, ErrNotFound)
	}

	if err := sess.Stop(); err != nil {
		return fmt.Errorf("stopping watch session: %w", err)
	}
	if err := c.store.UpsertWatchedFolder(root, false); err != nil {
		return fmt.Errorf("recording watched folder: %w", err)
	}

	c.logger.Info("stopped watching folder", "root", root)
	return nil
}

// WatchedRoots returns the roots with an active session.
func (c *Coordinator) WatchedRoots() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	roots := make([]string, 0, len(c.sessions))
	for root := range c.sessions {
		roots = append(roots, root)
	}
	return roots
}

// StopAll stops every session and waits for in-flight operations to reach a
// terminal state.
func (c *Coordinator) StopAll() {
	c.mu.Lock()
	sessions := make([]WatchSession, 0, len(c.sessions))
	for root, sess := range c.sessions {
		sessions = append(sessions, sess)
		delete(c.sessions, root)
	}
	c.mu.Unlock()

	for _, sess := range sessions {
		sess.Stop()
	}
	c.wg.Wait()
}

// consume drains one session's events. Events arrive in the order their
// debounce windows close; each organization runs in its own goroutine with
// per-destination serialization guarding collisions.
func (c *Coordinator) consume(sess WatchSession) {
	defer c.wg.Done()

	for ev := range sess.Events() {
		switch ev.Kind {
		case Appeared:
			c.wg.Add(1)
			go func(path string) {
				defer c.wg.Done()
				if _, err := c.Organize(path, ""); err != nil {
					c.logger.Debug("watched file not organized", "path", path, "error", err)
				}
			}(ev.Path)

		case Disappeared:
			c.reconcile(ev.Path)

		case WatchLost:
			c.mu.Lock()
			delete(c.sessions, ev.Root)
			c.mu.Unlock()
			c.events.Publish(Event{Type: EventWatchLost, Path: ev.Root, At: c.clock.Now()})
			c.logger.Warn("watch session lost", "root", ev.Root)
		}
	}
}

// Organize runs one file through the Detected -> Resolving -> Moving ->
// Indexed state machine. When explicitDest is empty the Rule Resolver decides
// the destination; otherwise the resolver is bypassed. On failure the file
// stays at its original location, the reason is recorded, and no retry is
// scheduled; a later watcher event or user action triggers the next attempt.
func (c *Coordinator) Organize(path string, explicitDest string) (string, error) {
	if err := c.checkStore(); err != nil {
		return "", err
	}

	// Detected
	absPath, info, err := c.fsmgr.Resolve(path)
	if err != nil {
		return "", c.fail(nil, path, fmt.Errorf("resolving file: %w", err))
	}
	if info.IsDir() {
		return "", c.fail(nil, absPath, fmt.Errorf("cannot organize a directory: %s", absPath))
	}

	attrs := FileAttributes{
		Name:      filepath.Base(absPath),
		Extension: extensionOf(absPath),
		Now:       c.clock.Now(),
	}

	// Resolving
	destFolder, matched, err := c.resolveDest(attrs, explicitDest)
	if err != nil {
		rec, _ := c.store.FindFileByPath(absPath)
		return "", c.fail(rec, absPath, err)
	}

	rec, err := c.ensureRecord(absPath, attrs, info)
	if err != nil {
		return "", c.fail(nil, absPath, err)
	}

	if destFolder == "" || destFolder == filepath.Dir(absPath) {
		// No-op resolution: the file stays where it is, freshly indexed.
		c.clearFailure(rec)
		return absPath, nil
	}

	// Moving, serialized per destination folder.
	lock := c.lockDest(destFolder)
	newPath, err := c.mover.Relocate(rec, destFolder)
	c.unlockDest(destFolder, lock)
	if err != nil {
		return "", c.fail(rec, absPath, err)
	}

	// Indexed
	if fresh, err := c.fsmgr.Stat(newPath); err == nil {
		if err := c.store.UpdateFileStat(rec.ID, fresh.Size(), fresh.ModTime()); err != nil {
			c.logger.Warn("refreshing file attributes", "path", newPath, "error", err)
		}
	}
	c.clearFailure(rec)
	c.events.Publish(Event{
		Type:    EventFileMoved,
		FileID:  rec.ID,
		Path:    newPath,
		OldPath: absPath,
		At:      c.clock.Now(),
	})

	if matched && c.cfg.AutoTag {
		c.autoTag(rec.ID, newPath, attrs.Extension)
	}

	return newPath, nil
}

// resolveDest produces the absolute destination folder, or "" for a no-op.
// matched reports whether a rule (including the fallback) drove the choice.
func (c *Coordinator) resolveDest(attrs FileAttributes, explicitDest string) (string, bool, error) {
	if explicitDest != "" {
		return c.absDest(explicitDest), false, nil
	}

	rules, err := c.store.ListRules()
	if err != nil {
		return "", false, fmt.Errorf("loading rule snapshot: %w", err)
	}
	snapshot := rules
	if c.cfg.Fallback != nil {
		snapshot = append(append([]*model.Rule{}, rules...), c.cfg.Fallback)
	}

	dest, ok := ResolveDestination(attrs, snapshot)
	if !ok {
		return "", false, nil
	}
	return c.absDest(dest.Folder), true, nil
}

func (c *Coordinator) absDest(folder string) string {
	if filepath.IsAbs(folder) {
		return folder
	}
	return filepath.Join(c.cfg.OrganizeRoot, folder)
}

// ensureRecord finds the record for the path, refreshing its filesystem
// attributes, or creates one on first sight.
func (c *Coordinator) ensureRecord(absPath string, attrs FileAttributes, info fs.FileInfo) (*model.FileRecord, error) {
	rec, err := c.store.FindFileByPath(absPath)
	if err != nil {
		return nil, fmt.Errorf("looking up file record: %w", err)
	}
	if rec != nil {
		if err := c.store.UpdateFileStat(rec.ID, info.Size(), info.ModTime()); err != nil {
			return nil, fmt.Errorf("refreshing file attributes: %w", err)
		}
		return rec, nil
	}

	rec = &model.FileRecord{
		ID:         c.idgen.New(),
		Path:       absPath,
		Name:       attrs.Name,
		Extension:  attrs.Extension,
		SizeBytes:  info.Size(),
		ModifiedAt: info.ModTime(),
		CreatedAt:  c.clock.Now(),
	}
	if err := c.store.CreateFile(rec); err != nil {
		return nil, fmt.Errorf("creating file record: %w", err)
	}
	c.events.Publish(Event{Type: EventFileCreated, FileID: rec.ID, Path: absPath, At: c.clock.Now()})
	return rec, nil
}

func (c *Coordinator) clearFailure(rec *model.FileRecord) {
	if rec.LastError == "" {
		return
	}
	if err := c.store.SetFileError(rec.ID, ""); err != nil {
		c.logger.Warn("clearing failure reason", "file_id", rec.ID, "error", err)
	}
}

// fail records the terminal Failed state for one file's pass. The reason is
// attached to the record when one exists, otherwise surfaced only as an event.
func (c *Coordinator) fail(rec *model.FileRecord, path string, reason error) error {
	c.noteStoreFailure(reason)
	fileID := ""
	if rec != nil {
		fileID = rec.ID
		if err := c.store.SetFileError(rec.ID, reason.Error()); err != nil {
			c.logger.Warn("recording failure reason", "file_id", rec.ID, "error", err)
		}
	}
	c.events.Publish(Event{
		Type:   EventOrganizeFailed,
		FileID: fileID,
		Path:   path,
		Reason: reason.Error(),
		At:     c.clock.Now(),
	})
	c.logger.Warn("organization failed", "path", path, "error", reason)
	return reason
}

// reconcile handles a Disappeared event: the record is removed only when the
// file is confirmed absent, never on a transient I/O error.
func (c *Coordinator) reconcile(path string) {
	rec, err := c.store.FindFileByPath(path)
	if err != nil || rec == nil {
		return
	}

	if _, err := c.fsmgr.Stat(path); err == nil || !errors.Is(err, ErrNotFound) {
		return
	}

	if err := c.store.DeleteFile(rec.ID); err != nil {
		c.logger.Warn("removing stale record", "path", path, "error", err)
		return
	}
	c.events.Publish(Event{Type: EventFileRemoved, FileID: rec.ID, Path: path, At: c.clock.Now()})
}

func (c *Coordinator) autoTag(fileID, path, ext string) {
	tag, err := c.store.FindTagByName(CategoryForExtension(ext))
	if err != nil || tag == nil {
		return
	}
	if err := c.store.AssignTag(fileID, tag.ID); err != nil {
		c.logger.Warn("auto-tagging file", "path", path, "error", err)
		return
	}
	c.events.Publish(Event{Type: EventFileTagged, FileID: fileID, Path: path, At: c.clock.Now()})
}

// checkStore rejects new organization while the store is down. The next
// attempt probes the store and lifts the pause once it answers again.
func (c *Coordinator) checkStore() error {
	c.pauseMu.Lock()
	defer c.pauseMu.Unlock()
	if !c.storeDown {
		return nil
	}
	if _, err := c.store.ListRules(); err != nil {
		return fmt.Errorf("organization paused: %w", ErrStoreUnavailable)
	}
	c.storeDown = false
	c.logger.Info("metadata store recovered, resuming organization")
	return nil
}

// noteStoreFailure trips the paused state when a failure points at the store
// itself rather than at one file.
func (c *Coordinator) noteStoreFailure(reason error) {
	if !errors.Is(reason, ErrStoreUnavailable) {
		return
	}
	c.pauseMu.Lock()
	defer c.pauseMu.Unlock()
	if !c.storeDown {
		c.storeDown = true
		c.logger.Warn("metadata store unavailable, pausing organization", "error", reason)
	}
}

// lockDest acquires the per-folder move lock, creating the entry on demand.
func (c *Coordinator) lockDest(folder string) *destLock {
	c.mu.Lock()
	l, ok := c.destLocks[folder]
	if !ok {
		l = &destLock{}
		c.destLocks[folder] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return l
}

// unlockDest releases the lock and reclaims the entry once nobody holds or
// waits on it.
func (c *Coordinator) unlockDest(folder string, l *destLock) {
	l.mu.Unlock()

	c.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(c.destLocks, folder)
	}
	c.mu.Unlock()
}

// extensionOf returns the lowercased extension without the dot.
func extensionOf(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}
