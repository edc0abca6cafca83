package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is a Store backed by a local SQLite database in WAL mode.
// It is the default for the local web server.
type SQLiteStore struct {
	conn *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at dbPath and applies
// pending migrations. Video tasks left running by a previous process are
// marked failed.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := s.markInterruptedTasks(); err != nil {
		log.Warn().Err(err).Msg("Failed to mark interrupted video tasks")
	}

	log.Debug().Str("path", dbPath).Msg("SQLite store opened")
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) migrate() error {
	migrations, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, m := range migrations {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if s.isMigrationApplied(name) {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := s.conn.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
		if _, err := s.conn.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", name, err)
		}

		log.Info().Str("name", name).Msg("Applied migration")
	}
	return nil
}

func (s *SQLiteStore) isMigrationApplied(name string) bool {
	var exists int
	err := s.conn.QueryRow("SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&exists)
	if err != nil {
		return false
	}

	var applied int
	err = s.conn.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

func (s *SQLiteStore) markInterruptedTasks() error {
	_, err := s.conn.ExecContext(context.Background(),
		`UPDATE video_tasks SET status = ?, error = 'interrupted by restart' WHERE status IN (?, ?)`,
		TaskFailed, TaskPending, TaskProcessing)
	return err
}

func (s *SQLiteStore) PutSession(ctx context.Context, rec *SessionRecord) error {
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	created, updated := rec.CreatedAt, rec.UpdatedAt
	stamp(&created, &updated)

	var res sql.Result
	if rec.Version == 1 {
		res, err = s.conn.ExecContext(ctx,
			`INSERT INTO sessions (id, items, tags, version, created_at, updated_at)
			 VALUES (?, ?, ?, 1, ?, ?) ON CONFLICT(id) DO NOTHING`,
			rec.ID, string(items), string(tags), created, updated)
	} else {
		res, err = s.conn.ExecContext(ctx,
			`UPDATE sessions SET items = ?, tags = ?, version = ?, updated_at = ?
			 WHERE id = ? AND version = ?`,
			string(items), string(tags), rec.Version, updated, rec.ID, rec.Version-1)
	}
	if err != nil {
		return fmt.Errorf("put session %s: %w", rec.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put session %s: %w", rec.ID, err)
	}
	if n == 0 {
		return ErrVersionConflict
	}

	rec.CreatedAt, rec.UpdatedAt = created, updated
	log.Debug().Str("sessionId", rec.ID).Int64("version", rec.Version).Msg("Session persisted to SQLite")
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	var (
		rec         SessionRecord
		items, tags string
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, items, tags, version, created_at, updated_at FROM sessions WHERE id = ?`, id).
		Scan(&rec.ID, &items, &tags, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(items), &rec.Items); err != nil {
		return nil, fmt.Errorf("decode items for session %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return nil, fmt.Errorf("decode tags for session %s: %w", id, err)
	}
	return &rec, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) PutTask(ctx context.Context, task *VideoTask) error {
	stamp(&task.CreatedAt, &task.UpdatedAt)
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO video_tasks (id, session_id, service, provider_task_id, status, progress, result_url, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   provider_task_id = excluded.provider_task_id,
		   status = excluded.status,
		   progress = excluded.progress,
		   result_url = excluded.result_url,
		   error = excluded.error,
		   updated_at = excluded.updated_at`,
		task.ID, task.SessionID, task.Service, task.ProviderTaskID, task.Status,
		task.Progress, task.ResultURL, task.Error, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put video task %s: %w", task.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*VideoTask, error) {
	var t VideoTask
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, session_id, service, provider_task_id, status, progress, result_url, error, created_at, updated_at
		 FROM video_tasks WHERE id = ?`, id).
		Scan(&t.ID, &t.SessionID, &t.Service, &t.ProviderTaskID, &t.Status,
			&t.Progress, &t.ResultURL, &t.Error, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get video task %s: %w", id, err)
	}
	return &t, nil
}
