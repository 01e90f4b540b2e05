package fo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"fo-go/internal/model"
)

// Service is the orchestration layer exposing the engine's external
// operations to the shell (the CLI). It owns nothing durable itself; the
// Store is the single authoritative state.
type Service struct {
	store  Store
	coord  *Coordinator
	backup *BackupQueue
	fsmgr  FilesystemManager
	events *Bus
	logger Logger
	clock  Clock
	idgen  IDGenerator
}

// NewService creates a Service with the provided dependencies.
func NewService(store Store, coord *Coordinator, backup *BackupQueue, fsmgr FilesystemManager, events *Bus, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		store:  store,
		coord:  coord,
		backup: backup,
		fsmgr:  fsmgr,
		events: events,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
	}
}

// Events returns the outbound domain event stream.
func (s *Service) Events() <-chan Event {
	return s.events.Events()
}

// Run resumes watch sessions recorded as active and drains the backup queue
// until ctx is cancelled, then stops all sessions and waits for in-flight
// organization operations to finish.
func (s *Service) Run(ctx context.Context) {
	s.ResumeWatching()
	s.backup.Run(ctx)
	s.coord.StopAll()
}

// Watching

// StartWatching begins monitoring a folder. The path must be an existing,
// readable directory not already being watched.
func (s *Service) StartWatching(rawPath string) (string, error) {
	abs, info, err := s.fsmgr.Resolve(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving folder: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	if err := s.coord.StartWatching(abs); err != nil {
		return "", err
	}
	return abs, nil
}

// StopWatching ends the session on a folder. The folder need not still exist
// on disk.
func (s *Service) StopWatching(rawPath string) error {
	abs, err := filepath.Abs(rawPath)
	if err != nil {
		return fmt.Errorf("resolving folder: %w", err)
	}
	return s.coord.StopWatching(abs)
}

// ResumeWatching restarts sessions for folders recorded as active. Folders
// that have gone missing are logged and skipped, not deactivated.
func (s *Service) ResumeWatching() {
	folders, err := s.store.ListWatchedFolders(true)
	if err != nil {
		s.logger.Error("listing watched folders", "error", err)
		return
	}
	for _, f := range folders {
		if err := s.coord.StartWatching(f.Path); err != nil && !errors.Is(err, ErrAlreadyWatching) {
			s.logger.Warn("could not resume watch", "root", f.Path, "error", err)
		}
	}
}

// WatchedRoots returns the roots with an active session.
func (s *Service) WatchedRoots() []string {
	return s.coord.WatchedRoots()
}

// ListWatchedFolders returns all recorded watch folders, active or not.
func (s *Service) ListWatchedFolders() ([]*model.WatchedFolder, error) {
	return s.store.ListWatchedFolders(false)
}

// Organization

// OrganizeFile is the manual submission entry point. When destFolder is
// empty the Rule Resolver decides the destination.
func (s *Service) OrganizeFile(rawPath, destFolder string) (string, error) {
	return s.coord.Organize(rawPath, destFolder)
}

// Tags

func (s *Service) GetTags() ([]*model.Tag, error) {
	return s.store.ListTags()
}

// CreateTag adds a tag. Names are unique case-insensitively.
func (s *Service) CreateTag(name, color string) (*model.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("tag name must not be empty")
	}

	existing, err := s.store.FindTagByName(name)
	if err != nil {
		return nil, fmt.Errorf("checking for existing tag: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("tag %q already exists", existing.Name)
	}

	tag := &model.Tag{ID: s.idgen.New(), Name: name, Color: color}
	if err := s.store.CreateTag(tag); err != nil {
		return nil, fmt.Errorf("creating tag: %w", err)
	}
	return tag, nil
}

// DeleteTag removes a tag and all its associations. Files are untouched.
func (s *Service) DeleteTag(tagID string) error {
	if err := s.store.DeleteTag(tagID); err != nil {
		return fmt.Errorf("deleting tag: %w", err)
	}
	return nil
}

// AssignTag associates a tag with a tracked file.
func (s *Service) AssignTag(fileID, tagID string) error {
	rec, err := s.store.FindFileByID(fileID)
	if err != nil {
		return fmt.Errorf("looking up file: %w", err)
	}
	if rec == nil {
		return fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}

	if err := s.store.AssignTag(fileID, tagID); err != nil {
		return fmt.Errorf("assigning tag: %w", err)
	}
	s.events.Publish(Event{Type: EventFileTagged, FileID: fileID, Path: rec.Path, At: s.clock.Now()})
	return nil
}

func (s *Service) TagsForFile(fileID string) ([]*model.Tag, error) {
	return s.store.TagsForFile(fileID)
}

// Search

// SearchFiles queries the index. Records whose path no longer resolves to an
// existing file are reconciled (removed) before results are returned, so a
// hit always points at a real file.
func (s *Service) SearchFiles(q SearchQuery) ([]*model.FileRecord, error) {
	recs, err := s.store.SearchFiles(q)
	if err != nil {
		return nil, fmt.Errorf("searching files: %w", err)
	}

	live := recs[:0]
	for _, rec := range recs {
		_, err := s.fsmgr.Stat(rec.Path)
		if err == nil {
			live = append(live, rec)
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			// Transient I/O problem: keep the record, skip reconciliation.
			live = append(live, rec)
			continue
		}
		if derr := s.store.DeleteFile(rec.ID); derr != nil {
			s.logger.Warn("removing stale record", "path", rec.Path, "error", derr)
			continue
		}
		s.events.Publish(Event{Type: EventFileRemoved, FileID: rec.ID, Path: rec.Path, At: s.clock.Now()})
	}
	return live, nil
}

// Rules

func (s *Service) GetRules() ([]*model.Rule, error) {
	return s.store.ListRules()
}

// CreateRule adds an organization rule.
func (s *Service) CreateRule(name, pattern, destination string, priority int) (*model.Rule, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("rule pattern must not be empty")
	}
	if strings.TrimSpace(destination) == "" {
		return nil, fmt.Errorf("rule destination must not be empty")
	}

	rule := &model.Rule{
		ID:          s.idgen.New(),
		Name:        name,
		Pattern:     pattern,
		Destination: destination,
		Priority:    priority,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.store.CreateRule(rule); err != nil {
		return nil, fmt.Errorf("creating rule: %w", err)
	}
	return rule, nil
}

func (s *Service) DeleteRule(ruleID string) error {
	if err := s.store.DeleteRule(ruleID); err != nil {
		return fmt.Errorf("deleting rule: %w", err)
	}
	return nil
}

// Backup

// EnqueueBackup marks a file backup-eligible. Backup is per-file opt-in;
// organizing a file never enqueues it implicitly.
func (s *Service) EnqueueBackup(fileID string) error {
	return s.backup.Enqueue(fileID)
}

func (s *Service) BackupStatus(fileID string) (*model.BackupTask, error) {
	return s.backup.Status(fileID)
}

func (s *Service) ListBackupTasks(status model.BackupStatus) ([]*model.BackupTask, error) {
	return s.store.ListBackupTasks(status)
}

// RestoreBackup downloads a backed-up file to destPath.
func (s *Service) RestoreBackup(ctx context.Context, fileID, destPath, passphrase string) error {
	return s.backup.Restore(ctx, fileID, destPath, passphrase)
}
