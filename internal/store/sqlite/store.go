// Package sqlite is the durable store: user accounts, completed learning
// paths, and the per-trace terminal guard that makes outcome reconciliation
// exactly-once.
//
// WAL mode is enabled on Open so readers never block the single writer:
// the reconciler inserts while the API lists and reads.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	// Pure-Go SQLite driver; no CGO, builds clean on Alpine.
	_ "modernc.org/sqlite"
)

var (
	ErrEmailTaken   = errors.New("store: email already registered")
	ErrUserNotFound = errors.New("store: user not found")
	ErrPathNotFound = errors.New("store: learning path not found")
)

// User is a row in users. Owned by the auth collaborator.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	CreatedAt    time.Time
}

// PathRecord is a row in learning_paths. Written solely by the outcome
// reconciler; immutable after insert.
type PathRecord struct {
	ID        string
	UserID    string
	TraceID   string
	Topic     string
	GoalLevel string
	Status    string
	Content   json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    name          TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS learning_paths (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL,
    trace_id   TEXT NOT NULL UNIQUE,
    topic      TEXT NOT NULL,
    goal_level TEXT NOT NULL DEFAULT '',
    status     TEXT NOT NULL,
    content    TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_learning_paths_user ON learning_paths(user_id, created_at);

-- One row per trace that reached a terminal outcome. The UNIQUE primary key
-- is the first-writer-wins guard: whichever terminal event lands first owns
-- the trace; later arrivals (duplicates or the conflicting variant) no-op.
CREATE TABLE IF NOT EXISTS trace_terminals (
    trace_id    TEXT PRIMARY KEY,
    kind        TEXT NOT NULL,
    recorded_at TEXT NOT NULL
);
`

var sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Store wraps the single sql.DB handle. Ownership is explicit: Open in
// main(), inject where needed, Close on shutdown.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser inserts a new account. Returns ErrEmailTaken when the email is
// already registered.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	q, args, err := sb.Insert("users").
		Options("OR IGNORE").
		Columns("id", "email", "password_hash", "name", "created_at").
		Values(u.ID, u.Email, u.PasswordHash, u.Name, formatTime(u.CreatedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("store: build insert user: %w", err)
	}

	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("store: create user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEmailTaken
	}
	return nil
}

// GetUserByEmail looks an account up for login.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	q, args, err := sb.Select("id", "email", "password_hash", "name", "created_at").
		From("users").
		Where(sq.Eq{"email": email}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select user: %w", err)
	}
	return s.scanUser(s.db.QueryRowContext(ctx, q, args...))
}

// GetUserByID resolves an authenticated identity to its account.
func (s *Store) GetUserByID(ctx context.Context, id string) (*User, error) {
	q, args, err := sb.Select("id", "email", "password_hash", "name", "created_at").
		From("users").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select user: %w", err)
	}
	return s.scanUser(s.db.QueryRowContext(ctx, q, args...))
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var u User
	var createdAt string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan user: %w", err)
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// RecordOutcome registers a terminal outcome for a trace. It returns
// first=true when this call won the trace's terminal slot; any later call
// for the same trace (a redelivered duplicate or the conflicting variant)
// returns first=false and changes nothing. rec may be nil (failed outcomes
// leave no learning_paths row); when non-nil it is inserted in the same
// transaction as the guard, so the record and the guard land atomically.
func (s *Store) RecordOutcome(ctx context.Context, traceID, kind string, rec *PathRecord) (first bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: begin outcome tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	q, args, err := sb.Insert("trace_terminals").
		Options("OR IGNORE").
		Columns("trace_id", "kind", "recorded_at").
		Values(traceID, kind, formatTime(time.Now().UTC())).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("store: build terminal guard: %w", err)
	}
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("store: record terminal for %q: %w", traceID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_ = tx.Rollback()
		return false, nil
	}

	if rec != nil {
		q, args, err = sb.Insert("learning_paths").
			Options("OR IGNORE").
			Columns("id", "user_id", "trace_id", "topic", "goal_level", "status", "content", "created_at", "updated_at").
			Values(rec.ID, rec.UserID, rec.TraceID, rec.Topic, rec.GoalLevel, rec.Status,
				string(rec.Content), formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt)).
			ToSql()
		if err != nil {
			return false, fmt.Errorf("store: build insert path: %w", err)
		}
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return false, fmt.Errorf("store: insert path for %q: %w", traceID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("store: commit outcome for %q: %w", traceID, err)
	}
	return true, nil
}

// ListPathsByUser returns a user's records, newest first.
func (s *Store) ListPathsByUser(ctx context.Context, userID string) ([]*PathRecord, error) {
	q, args, err := sb.Select(pathColumns...).
		From("learning_paths").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build list paths: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list paths for %q: %w", userID, err)
	}
	defer rows.Close()

	var out []*PathRecord
	for rows.Next() {
		rec, err := scanPath(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate paths: %w", err)
	}
	return out, nil
}

// GetPathByID fetches one record.
func (s *Store) GetPathByID(ctx context.Context, id string) (*PathRecord, error) {
	return s.getPath(ctx, sq.Eq{"id": id})
}

// GetPathByTraceID fetches the record reconciled for a trace, if any.
func (s *Store) GetPathByTraceID(ctx context.Context, traceID string) (*PathRecord, error) {
	return s.getPath(ctx, sq.Eq{"trace_id": traceID})
}

var pathColumns = []string{"id", "user_id", "trace_id", "topic", "goal_level", "status", "content", "created_at", "updated_at"}

func (s *Store) getPath(ctx context.Context, where sq.Eq) (*PathRecord, error) {
	q, args, err := sb.Select(pathColumns...).
		From("learning_paths").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("store: build select path: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get path: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("store: get path: %w", err)
		}
		return nil, ErrPathNotFound
	}
	return scanPath(rows)
}

func scanPath(rows *sql.Rows) (*PathRecord, error) {
	var rec PathRecord
	var content, createdAt, updatedAt string
	if err := rows.Scan(&rec.ID, &rec.UserID, &rec.TraceID, &rec.Topic, &rec.GoalLevel,
		&rec.Status, &content, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("store: scan path: %w", err)
	}

	rec.Content = json.RawMessage(content)
	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}
