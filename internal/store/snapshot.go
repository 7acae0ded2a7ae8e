// Package store caches the last fetched board state in a local SQLite
// database so a restart can show something meaningful before the first
// platform fetch completes. The platform stays authoritative: every
// successful fetch overwrites the snapshot wholesale, and losing the
// snapshot loses nothing but the warm start.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/ldiaz/taskboard/internal/model"
)

// SnapshotStore persists per-user copies of the task board and
// notification feed exactly as last seen, order included.
type SnapshotStore struct {
	db *sqlx.DB
}

// Open opens (or creates) the snapshot database at dbPath, enables WAL
// mode, and runs any pending schema migrations.
func Open(dbPath string) (*SnapshotStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// WAL keeps reads cheap while a save is in flight.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SnapshotStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SnapshotStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveTasks replaces the task snapshot for userID with the given
// slice, preserving its order.
func (s *SnapshotStore) SaveTasks(ctx context.Context, userID string, tasks []model.Task) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clearing task snapshot: %w", err)
	}

	const query = `
		INSERT INTO tasks (
			user_id, position, id, title, description,
			status, priority, due_at, created_at, updated_at,
			creator_id, assignee_id, creator_name, assignee_name
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing task insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range tasks {
		_, err := stmt.ExecContext(ctx,
			userID, i, t.ID, t.Title, t.Description,
			t.Status, t.Priority, nullableTime(t.DueAt), t.CreatedAt.UTC(), nullableTime(t.UpdatedAt),
			t.CreatorID, t.AssigneeID, t.CreatorName, t.AssigneeName,
		)
		if err != nil {
			return fmt.Errorf("saving task %s: %w", t.ID, err)
		}
	}

	if err := s.touchMeta(ctx, tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadTasks returns the saved task snapshot for userID in its original
// order. A missing snapshot is an empty slice, not an error.
func (s *SnapshotStore) LoadTasks(ctx context.Context, userID string) ([]model.Task, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, title, description, status, priority, due_at,
		       created_at, updated_at, creator_id, assignee_id,
		       creator_name, assignee_name
		FROM tasks WHERE user_id = ? ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying task snapshot: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanSnapshotTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}

	return tasks, rows.Err()
}

// SaveNotifications replaces the notification snapshot for userID with
// the given slice, preserving its order.
func (s *SnapshotStore) SaveNotifications(ctx context.Context, userID string, items []model.Notification) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clearing notification snapshot: %w", err)
	}

	const query = `
		INSERT INTO notifications (
			user_id, position, id, message, type, read, created_at, task_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing notification insert: %w", err)
	}
	defer stmt.Close()

	for i, n := range items {
		_, err := stmt.ExecContext(ctx,
			userID, i, n.ID, n.Message, n.Type,
			boolToInt(n.Read), n.CreatedAt.UTC(), n.TaskID,
		)
		if err != nil {
			return fmt.Errorf("saving notification %s: %w", n.ID, err)
		}
	}

	if err := s.touchMeta(ctx, tx, userID); err != nil {
		return err
	}
	return tx.Commit()
}

// LoadNotifications returns the saved notification snapshot for userID
// in its original order.
func (s *SnapshotStore) LoadNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, message, type, read, created_at, task_id
		FROM notifications WHERE user_id = ? ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying notification snapshot: %w", err)
	}
	defer rows.Close()

	var items []model.Notification
	for rows.Next() {
		n, err := scanSnapshotNotification(rows, userID)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}

	return items, rows.Err()
}

// SavedAt reports when userID's snapshot was last written. The second
// return value is false when no snapshot exists.
func (s *SnapshotStore) SavedAt(ctx context.Context, userID string) (time.Time, bool, error) {
	var savedAt time.Time
	err := s.db.GetContext(ctx, &savedAt,
		"SELECT saved_at FROM snapshot_meta WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("reading snapshot meta: %w", err)
	}
	return savedAt, true, nil
}

// Clear removes every snapshot row for userID.
func (s *SnapshotStore) Clear(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM tasks WHERE user_id = ?",
		"DELETE FROM notifications WHERE user_id = ?",
		"DELETE FROM snapshot_meta WHERE user_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, userID); err != nil {
			return fmt.Errorf("clearing snapshot: %w", err)
		}
	}
	return tx.Commit()
}

// touchMeta stamps the snapshot's save time inside the same
// transaction as the rows it describes.
func (s *SnapshotStore) touchMeta(ctx context.Context, tx *sqlx.Tx, userID string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO snapshot_meta (user_id, saved_at) VALUES (?, ?)",
		userID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("updating snapshot meta: %w", err)
	}
	return nil
}

// scanSnapshotTask scans a task row from a sqlx.Rows result set.
func scanSnapshotTask(rows *sqlx.Rows) (model.Task, error) {
	var (
		t         model.Task
		dueAt     sql.NullTime
		updatedAt sql.NullTime
	)

	err := rows.Scan(
		&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &dueAt,
		&t.CreatedAt, &updatedAt, &t.CreatorID, &t.AssigneeID,
		&t.CreatorName, &t.AssigneeName,
	)
	if err != nil {
		return model.Task{}, fmt.Errorf("scanning task row: %w", err)
	}

	if dueAt.Valid {
		due := dueAt.Time
		t.DueAt = &due
	}
	if updatedAt.Valid {
		up := updatedAt.Time
		t.UpdatedAt = &up
	}

	return t, nil
}

// scanSnapshotNotification scans a notification row.
func scanSnapshotNotification(rows *sqlx.Rows, userID string) (model.Notification, error) {
	var (
		n    model.Notification
		read int
	)

	err := rows.Scan(&n.ID, &n.Message, &n.Type, &read, &n.CreatedAt, &n.TaskID)
	if err != nil {
		return model.Notification{}, fmt.Errorf("scanning notification row: %w", err)
	}

	n.UserID = userID
	n.Read = read != 0
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
