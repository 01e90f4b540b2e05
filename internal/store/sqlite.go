package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"fo-go/internal/fo"
	"fo-go/internal/model"
	"fo-go/internal/store/migrations"

	"github.com/mattn/go-sqlite3"
)

// SQLiteStore implements the fo.Store interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a new SQLite store connection.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenConnection opens and configures a SQLite connection with appropriate
// PRAGMAs. Exported for tools and tests that need a raw connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every pooled connection to ":memory:" gets its own empty database;
	// pin the pool to one connection so schema and data are shared.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Foreign keys are OFF by default in SQLite for backward compatibility.
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// The engine has several writers (coordinator goroutines, backup worker);
	// wait for locks instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// Migrate brings the schema to the latest version.
func (s *SQLiteStore) Migrate() error {
	return migrations.Up(s.db)
}

// CheckMigrations verifies the schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

// Path returns the database file path (or ":memory:").
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// storeErr wraps a driver error, tagging environmental failures (a locked,
// missing, full, or corrupt database) with fo.ErrStoreUnavailable so callers
// can tell an unusable store apart from a bad query.
func storeErr(op string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr,
			sqlite3.ErrCantOpen, sqlite3.ErrCorrupt, sqlite3.ErrFull,
			sqlite3.ErrNotADB:
			return fmt.Errorf("%s: %w: %v", op, fo.ErrStoreUnavailable, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// File records

const fileColumns = "id, path, name, extension, size_bytes, modified_at, created_at, last_error"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*model.FileRecord, error) {
	var rec model.FileRecord
	var modified sql.NullTime
	err := row.Scan(&rec.ID, &rec.Path, &rec.Name, &rec.Extension, &rec.SizeBytes, &modified, &rec.CreatedAt, &rec.LastError)
	if err != nil {
		return nil, err
	}
	if modified.Valid {
		rec.ModifiedAt = modified.Time
	}
	return &rec, nil
}

func (s *SQLiteStore) FindFileByID(id string) (*model.FileRecord, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT "+fileColumns+" FROM files WHERE id = ?", id)
	rec, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, storeErr("finding file by id", err)
	}
	return rec, nil
}

func (s *SQLiteStore) FindFileByPath(path string) (*model.FileRecord, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT "+fileColumns+" FROM files WHERE path = ?", path)
	rec, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, storeErr("finding file by path", err)
	}
	return rec, nil
}

func (s *SQLiteStore) CreateFile(rec *model.FileRecord) error {
	_, err := s.db.ExecContext(context.Background(),
		"INSERT INTO files (id, path, name, extension, size_bytes, modified_at, created_at, last_error) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID, rec.Path, rec.Name, rec.Extension, rec.SizeBytes, nullTime(rec.ModifiedAt), rec.CreatedAt, rec.LastError)
	if err != nil {
		return storeErr("creating file record", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateFilePath(id, newPath string) error {
	name := filepath.Base(newPath)
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(newPath), "."))
	res, err := s.db.ExecContext(context.Background(),
		"UPDATE files SET path = ?, name = ?, extension = ? WHERE id = ?",
		newPath, name, ext, id)
	if err != nil {
		return storeErr("updating file path", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("file %s: %w", id, fo.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) UpdateFileStat(id string, sizeBytes int64, modifiedAt time.Time) error {
	_, err := s.db.ExecContext(context.Background(),
		"UPDATE files SET size_bytes = ?, modified_at = ? WHERE id = ?",
		sizeBytes, modifiedAt, id)
	if err != nil {
		return storeErr("updating file attributes", err)
	}
	return nil
}

func (s *SQLiteStore) SetFileError(id, reason string) error {
	_, err := s.db.ExecContext(context.Background(),
		"UPDATE files SET last_error = ? WHERE id = ?", reason, id)
	if err != nil {
		return storeErr("recording file error", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteFile(id string) error {
	// file_tags and backup_tasks rows cascade.
	_, err := s.db.ExecContext(context.Background(), "DELETE FROM files WHERE id = ?", id)
	if err != nil {
		return storeErr("deleting file record", err)
	}
	return nil
}

func (s *SQLiteStore) SearchFiles(q fo.SearchQuery) ([]*model.FileRecord, error) {
	sb := strings.Builder{}
	sb.WriteString("SELECT DISTINCT f.id, f.path, f.name, f.extension, f.size_bytes, f.modified_at, f.created_at, f.last_error FROM files f")

	var where []string
	var args []any

	if len(q.TagIDs) > 0 {
		sb.WriteString(" JOIN file_tags ft ON f.id = ft.file_id")
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(q.TagIDs)), ",")
		where = append(where, "ft.tag_id IN ("+placeholders+")")
		for _, id := range q.TagIDs {
			args = append(args, id)
		}
	}
	if q.Text != "" {
		// LIKE is case-insensitive for ASCII in SQLite.
		where = append(where, `f.name LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(q.Text)+"%")
	}
	if q.Extension != "" {
		where = append(where, "f.extension = ?")
		args = append(args, strings.ToLower(strings.TrimPrefix(q.Extension, ".")))
	}

	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY f.name ASC")

	rows, err := s.db.QueryContext(context.Background(), sb.String(), args...)
	if err != nil {
		return nil, storeErr("searching files", err)
	}
	defer rows.Close()

	var recs []*model.FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, storeErr("scanning file record", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("searching files", err)
	}
	return recs, nil
}

// escapeLike neutralizes LIKE metacharacters in user-supplied search text.
func escapeLike(text string) string {
	r := strings.NewReplacer("%", `\%`, "_", `\_`)
	return r.Replace(text)
}

// Tags

func (s *SQLiteStore) ListTags() ([]*model.Tag, error) {
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT id, name, color FROM tags ORDER BY name COLLATE NOCASE")
	if err != nil {
		return nil, storeErr("listing tags", err)
	}
	defer rows.Close()

	var tags []*model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, storeErr("scanning tag", err)
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

func (s *SQLiteStore) FindTagByName(name string) (*model.Tag, error) {
	var t model.Tag
	err := s.db.QueryRowContext(context.Background(),
		"SELECT id, name, color FROM tags WHERE name = ? COLLATE NOCASE", name).
		Scan(&t.ID, &t.Name, &t.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, storeErr("finding tag by name", err)
	}
	return &t, nil
}

func (s *SQLiteStore) CreateTag(tag *model.Tag) error {
	_, err := s.db.ExecContext(context.Background(),
		"INSERT INTO tags (id, name, color) VALUES (?, ?, ?)", tag.ID, tag.Name, tag.Color)
	if err != nil {
		return storeErr("creating tag", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteTag(id string) error {
	// Associations cascade; files are never deleted with their tags.
	_, err := s.db.ExecContext(context.Background(), "DELETE FROM tags WHERE id = ?", id)
	if err != nil {
		return storeErr("deleting tag", err)
	}
	return nil
}

func (s *SQLiteStore) AssignTag(fileID, tagID string) error {
	_, err := s.db.ExecContext(context.Background(),
		"INSERT OR IGNORE INTO file_tags (file_id, tag_id) VALUES (?, ?)", fileID, tagID)
	if err != nil {
		return storeErr("assigning tag", err)
	}
	return nil
}

func (s *SQLiteStore) TagsForFile(fileID string) ([]*model.Tag, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT t.id, t.name, t.color FROM tags t
		 JOIN file_tags ft ON t.id = ft.tag_id
		 WHERE ft.file_id = ? ORDER BY t.name COLLATE NOCASE`, fileID)
	if err != nil {
		return nil, storeErr("listing file tags", err)
	}
	defer rows.Close()

	var tags []*model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, storeErr("scanning tag", err)
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}

// Rules

func (s *SQLiteStore) ListRules() ([]*model.Rule, error) {
	rows, err := s.db.QueryContext(context.Background(),
		"SELECT id, name, pattern, destination, priority, created_at FROM rules ORDER BY priority ASC, created_at ASC")
	if err != nil {
		return nil, storeErr("listing rules", err)
	}
	defer rows.Close()

	var rules []*model.Rule
	for rows.Next() {
		var r model.Rule
		if err := rows.Scan(&r.ID, &r.Name, &r.Pattern, &r.Destination, &r.Priority, &r.CreatedAt); err != nil {
			return nil, storeErr("scanning rule", err)
		}
		rules = append(rules, &r)
	}
	return rules, rows.Err()
}

func (s *SQLiteStore) CreateRule(rule *model.Rule) error {
	_, err := s.db.ExecContext(context.Background(),
		"INSERT INTO rules (id, name, pattern, destination, priority, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		rule.ID, rule.Name, rule.Pattern, rule.Destination, rule.Priority, rule.CreatedAt)
	if err != nil {
		return storeErr("creating rule", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteRule(id string) error {
	_, err := s.db.ExecContext(context.Background(), "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return storeErr("deleting rule", err)
	}
	return nil
}

// Watched folders

func (s *SQLiteStore) UpsertWatchedFolder(path string, active bool) error {
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO watched_folders (path, is_active) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET is_active = excluded.is_active`,
		path, active)
	if err != nil {
		return storeErr("recording watched folder", err)
	}
	return nil
}

func (s *SQLiteStore) ListWatchedFolders(activeOnly bool) ([]*model.WatchedFolder, error) {
	query := "SELECT path, is_active FROM watched_folders"
	if activeOnly {
		query += " WHERE is_active = 1"
	}
	rows, err := s.db.QueryContext(context.Background(), query+" ORDER BY path")
	if err != nil {
		return nil, storeErr("listing watched folders", err)
	}
	defer rows.Close()

	var folders []*model.WatchedFolder
	for rows.Next() {
		var f model.WatchedFolder
		if err := rows.Scan(&f.Path, &f.IsActive); err != nil {
			return nil, storeErr("scanning watched folder", err)
		}
		folders = append(folders, &f)
	}
	return folders, rows.Err()
}

// Backup tasks

const taskColumns = "file_id, status, attempt_count, last_attempt_at, next_attempt_at, reason, updated_at"

func scanTask(row rowScanner) (*model.BackupTask, error) {
	var t model.BackupTask
	var status string
	var last, next sql.NullTime
	err := row.Scan(&t.FileID, &status, &t.AttemptCount, &last, &next, &t.Reason, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = model.BackupStatus(status)
	if last.Valid {
		t.LastAttemptAt = &last.Time
	}
	if next.Valid {
		t.NextAttemptAt = &next.Time
	}
	return &t, nil
}

func (s *SQLiteStore) EnqueueBackup(fileID string, now time.Time) error {
	// A pending or in-flight task is left alone; terminal tasks start over.
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO backup_tasks (file_id, status, attempt_count, reason, updated_at)
		 VALUES (?, 'pending', 0, '', ?)
		 ON CONFLICT(file_id) DO UPDATE SET
		     status = 'pending', attempt_count = 0, reason = '',
		     last_attempt_at = NULL, next_attempt_at = NULL, updated_at = excluded.updated_at
		 WHERE backup_tasks.status IN ('done', 'failed')`,
		fileID, now)
	if err != nil {
		return storeErr("enqueueing backup task", err)
	}
	return nil
}

func (s *SQLiteStore) FindBackupTask(fileID string) (*model.BackupTask, error) {
	row := s.db.QueryRowContext(context.Background(),
		"SELECT "+taskColumns+" FROM backup_tasks WHERE file_id = ?", fileID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found
	}
	if err != nil {
		return nil, storeErr("finding backup task", err)
	}
	return task, nil
}

func (s *SQLiteStore) NextDueBackup(now time.Time) (*model.BackupTask, error) {
	row := s.db.QueryRowContext(context.Background(),
		`SELECT `+taskColumns+` FROM backup_tasks
		 WHERE status = 'pending' AND (next_attempt_at IS NULL OR next_attempt_at <= ?)
		 ORDER BY updated_at ASC LIMIT 1`, now)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Nothing due
	}
	if err != nil {
		return nil, storeErr("finding due backup task", err)
	}
	return task, nil
}

func (s *SQLiteStore) MarkBackupInFlight(fileID string, now time.Time) error {
	return s.updateTask(fileID,
		"UPDATE backup_tasks SET status = 'in_flight', last_attempt_at = ?, updated_at = ? WHERE file_id = ?",
		now, now, fileID)
}

func (s *SQLiteStore) MarkBackupDone(fileID string, now time.Time) error {
	return s.updateTask(fileID,
		"UPDATE backup_tasks SET status = 'done', reason = '', next_attempt_at = NULL, updated_at = ? WHERE file_id = ?",
		now, fileID)
}

func (s *SQLiteStore) MarkBackupRetry(fileID, reason string, next time.Time, now time.Time) error {
	return s.updateTask(fileID,
		`UPDATE backup_tasks SET status = 'pending', attempt_count = attempt_count + 1,
		 reason = ?, next_attempt_at = ?, updated_at = ? WHERE file_id = ?`,
		reason, next, now, fileID)
}

func (s *SQLiteStore) MarkBackupFailed(fileID, reason string, now time.Time) error {
	return s.updateTask(fileID,
		`UPDATE backup_tasks SET status = 'failed', attempt_count = attempt_count + 1,
		 reason = ?, next_attempt_at = NULL, updated_at = ? WHERE file_id = ?`,
		reason, now, fileID)
}

func (s *SQLiteStore) updateTask(fileID, query string, args ...any) error {
	res, err := s.db.ExecContext(context.Background(), query, args...)
	if err != nil {
		return storeErr("updating backup task", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("backup task %s: %w", fileID, fo.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) ResetInFlightBackups() error {
	_, err := s.db.ExecContext(context.Background(),
		"UPDATE backup_tasks SET status = 'pending' WHERE status = 'in_flight'")
	if err != nil {
		return storeErr("resetting in-flight backup tasks", err)
	}
	return nil
}

func (s *SQLiteStore) ListBackupTasks(status model.BackupStatus) ([]*model.BackupTask, error) {
	query := "SELECT " + taskColumns + " FROM backup_tasks"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	rows, err := s.db.QueryContext(context.Background(), query+" ORDER BY updated_at ASC", args...)
	if err != nil {
		return nil, storeErr("listing backup tasks", err)
	}
	defer rows.Close()

	var tasks []*model.BackupTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, storeErr("scanning backup task", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// Compile-time check that SQLiteStore implements the fo.Store interface.
var _ fo.Store = (*SQLiteStore)(nil)
