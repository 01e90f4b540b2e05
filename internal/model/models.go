package model

import "time"

// FileRecord is one row per tracked file. Path is the file's current absolute
// location and is unique: the store's notion of "where the file is now".
type FileRecord struct {
	ID         string // UUID, assigned on first sight
	Path       string // Absolute path, unique
	Name       string // Base name, cached for search
	Extension  string // Lowercased, without the dot
	SizeBytes  int64
	ModifiedAt time.Time
	CreatedAt  time.Time
	LastError  string // Most recent organization failure, empty when healthy
}

// Tag is a user-managed label. Names are unique case-insensitively.
// Deleting a tag removes its associations, never the files.
type Tag struct {
	ID    string // UUID
	Name  string
	Color string
}

// Rule maps a filename pattern to a destination template. Rules are evaluated
// in ascending Priority order; the first match wins.
type Rule struct {
	ID          string // UUID
	Name        string
	Pattern     string // Comma-separated extension list ("pdf,docx") or glob ("*.pdf")
	Destination string // Destination template, may reference {category} {ext} {year} {month} {day}
	Priority    int    // Lower matches first
	CreatedAt   time.Time
}

// WatchedFolder is one monitored root. At most one active watch session
// exists per root path.
type WatchedFolder struct {
	Path     string // Absolute root path, primary key
	IsActive bool
}

// BackupStatus is the lifecycle state of a BackupTask.
type BackupStatus string

const (
	BackupPending  BackupStatus = "pending"
	BackupInFlight BackupStatus = "in_flight"
	BackupDone     BackupStatus = "done"
	BackupFailed   BackupStatus = "failed"
)

// BackupTask tracks one file's remote mirroring. FileID doubles as the remote
// object key so renames never orphan backups. Failed tasks stay queryable;
// they are never silently dropped.
type BackupTask struct {
	FileID        string // UUID of the FileRecord, also the vault object key
	Status        BackupStatus
	AttemptCount  int
	LastAttemptAt *time.Time
	NextAttemptAt *time.Time // When the task becomes due again; nil means due now
	Reason        string     // Failure reason for the last attempt
	UpdatedAt     time.Time
}
