package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"podforge/internal/config"
)

// ErrSessionNotFound is returned when a session id has no row.
var ErrSessionNotFound = errors.New("session not found")

// ErrArtifactNotFound is returned when a stage has no persisted artifact.
var ErrArtifactNotFound = errors.New("stage artifact not found")

// Store manages session persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the session database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "sessions.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applySchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) applySchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    topic TEXT NOT NULL,
    status TEXT NOT NULL,
    output_dir TEXT NOT NULL DEFAULT '',
    progress_stage TEXT NOT NULL DEFAULT '',
    progress_message TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    segment_count INTEGER NOT NULL DEFAULT 0,
    duration_seconds REAL NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS stage_artifacts (
    session_id TEXT NOT NULL,
    stage TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TEXT NOT NULL,
    PRIMARY KEY (session_id, stage),
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == 5 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// New inserts a session for a fresh pipeline run.
func (s *Store) New(ctx context.Context, id, topic, outputDir string) (*Session, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	err := s.execWithRetry(
		ensureContext(ctx),
		`INSERT INTO sessions (id, topic, status, output_dir, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		topic,
		StatusPending,
		outputDir,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Update persists the mutable fields of a session.
func (s *Store) Update(ctx context.Context, sess *Session) error {
	if sess == nil {
		return errors.New("session is required")
	}
	sess.UpdatedAt = time.Now().UTC()
	err := s.execWithRetry(
		ensureContext(ctx),
		`UPDATE sessions SET
            topic = ?, status = ?, output_dir = ?, progress_stage = ?,
            progress_message = ?, error_message = ?, segment_count = ?,
            duration_seconds = ?, updated_at = ?
         WHERE id = ?`,
		sess.Topic,
		string(sess.Status),
		sess.OutputDir,
		sess.ProgressStage,
		sess.ProgressMessage,
		sess.ErrorMessage,
		sess.SegmentCount,
		sess.DurationSeconds,
		sess.UpdatedAt.Format(time.RFC3339Nano),
		sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// GetByID fetches a session by id.
func (s *Store) GetByID(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT id, topic, status, output_dir, progress_stage, progress_message,
                error_message, segment_count, duration_seconds, created_at, updated_at
         FROM sessions WHERE id = ?`,
		id,
	)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// List returns sessions ordered newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT id, topic, status, output_dir, progress_stage, progress_message,
                error_message, segment_count, duration_seconds, created_at, updated_at
         FROM sessions ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// SaveArtifact persists a stage artifact exactly once per (session, stage).
// A second write for the same key is ignored: the first complete artifact wins,
// which keeps reconciliation reads stable across retries.
func (s *Store) SaveArtifact(ctx context.Context, sessionID, stage, content string) error {
	if strings.TrimSpace(sessionID) == "" || strings.TrimSpace(stage) == "" {
		return errors.New("session id and stage are required")
	}
	err := s.execWithRetry(
		ensureContext(ctx),
		`INSERT INTO stage_artifacts (session_id, stage, content, created_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(session_id, stage) DO NOTHING`,
		sessionID,
		stage,
		content,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save artifact %s/%s: %w", sessionID, stage, err)
	}
	return nil
}

// GetArtifact reads a stage artifact back. This is the authoritative source the
// orchestrator reconciles against when live capture missed a stage's output.
func (s *Store) GetArtifact(ctx context.Context, sessionID, stage string) (string, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT content FROM stage_artifacts WHERE session_id = ? AND stage = ?`,
		sessionID,
		stage,
	)
	var content string
	if err := row.Scan(&content); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrArtifactNotFound
		}
		return "", fmt.Errorf("get artifact: %w", err)
	}
	return content, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess      Session
		status    string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(
		&sess.ID,
		&sess.Topic,
		&status,
		&sess.OutputDir,
		&sess.ProgressStage,
		&sess.ProgressMessage,
		&sess.ErrorMessage,
		&sess.SegmentCount,
		&sess.DurationSeconds,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	sess.Status = Status(status)
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		sess.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		sess.UpdatedAt = ts
	}
	return &sess, nil
}
