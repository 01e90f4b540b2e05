package fo

import (
	"time"

	"fo-go/internal/model"
)

// SearchQuery filters the file index. All set fields must match (logical AND).
type SearchQuery struct {
	Text      string   // Case-insensitive substring of the file name
	TagIDs    []string // Files carrying any of these tags
	Extension string   // Exact extension match, without the dot
}

// Store provides an interface for metadata storage operations. It is the
// single source of truth for organization state; no other component persists
// file identity. Find methods return nil with no error when nothing matches.
type Store interface {
	// File records

	// FindFileByID returns the record with the given surrogate key.
	FindFileByID(id string) (*model.FileRecord, error)

	// FindFileByPath returns the record whose current path matches exactly.
	FindFileByPath(path string) (*model.FileRecord, error)

	// CreateFile inserts a new record. Path must be unique.
	CreateFile(rec *model.FileRecord) error

	// UpdateFilePath moves a record to a new location, refreshing the cached
	// name and extension columns.
	UpdateFilePath(id, newPath string) error

	// UpdateFileStat refreshes filesystem-reported attributes.
	UpdateFileStat(id string, sizeBytes int64, modifiedAt time.Time) error

	// SetFileError records the most recent organization failure against the
	// record. An empty reason clears it.
	SetFileError(id, reason string) error

	// DeleteFile removes a record and its tag associations.
	DeleteFile(id string) error

	// SearchFiles returns records matching the query, ordered by name.
	SearchFiles(q SearchQuery) ([]*model.FileRecord, error)

	// Tags

	ListTags() ([]*model.Tag, error)
	FindTagByName(name string) (*model.Tag, error)
	CreateTag(tag *model.Tag) error

	// DeleteTag removes the tag and all its file associations.
	DeleteTag(id string) error

	// AssignTag associates a tag with a file. Assigning twice is a no-op.
	AssignTag(fileID, tagID string) error

	// TagsForFile returns the tags associated with a file.
	TagsForFile(fileID string) ([]*model.Tag, error)

	// Rules

	// ListRules returns all rules in ascending priority order. This is the
	// snapshot the resolver reads; rules are immutable during a pass.
	ListRules() ([]*model.Rule, error)
	CreateRule(rule *model.Rule) error
	DeleteRule(id string) error

	// Watched folders

	UpsertWatchedFolder(path string, active bool) error
	ListWatchedFolders(activeOnly bool) ([]*model.WatchedFolder, error)

	// Backup tasks

	// EnqueueBackup creates a pending task for the file, or resets an existing
	// terminal task back to pending.
	EnqueueBackup(fileID string, now time.Time) error

	FindBackupTask(fileID string) (*model.BackupTask, error)

	// NextDueBackup returns the oldest pending task whose next_attempt_at is
	// at or before now, or nil when none is due.
	NextDueBackup(now time.Time) (*model.BackupTask, error)

	MarkBackupInFlight(fileID string, now time.Time) error
	MarkBackupDone(fileID string, now time.Time) error

	// MarkBackupRetry returns the task to pending with an incremented attempt
	// count and the given due time.
	MarkBackupRetry(fileID, reason string, next time.Time, now time.Time) error

	// MarkBackupFailed moves the task to its terminal failed state. Failed
	// tasks stay queryable for diagnosis.
	MarkBackupFailed(fileID, reason string, now time.Time) error

	// ResetInFlightBackups returns any in-flight tasks to pending. Called at
	// startup so uploads interrupted by a crash are retried.
	ResetInFlightBackups() error

	ListBackupTasks(status model.BackupStatus) ([]*model.BackupTask, error)

	// Close closes the store connection.
	Close() error
}
