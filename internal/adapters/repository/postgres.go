package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/okian/faceoff/pkg/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS game_sessions (
	user_id         TEXT PRIMARY KEY,
	session_id      TEXT NOT NULL,
	status          TEXT NOT NULL,
	item_ids        JSONB NOT NULL,
	algorithm_state JSONB NOT NULL,
	total_count     INTEGER NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS datasets (
	dataset_key TEXT PRIMARY KEY,
	item_ids    JSONB NOT NULL,
	imported_at TIMESTAMPTZ NOT NULL
);`

// OpenPostgres opens a lib/pq pool and checks connectivity.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the session and dataset tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// PostgresSessionStore stores sessions in the game_sessions table.
type PostgresSessionStore struct {
	db   *sql.DB
	opts storeOptions
}

// NewPostgresSessionStore wraps an open database handle.
func NewPostgresSessionStore(db *sql.DB, opts ...Option) *PostgresSessionStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &PostgresSessionStore{db: db, opts: o}
}

// Save implements SessionStore with an upsert on user_id.
func (p *PostgresSessionStore) Save(ctx context.Context, s Session) (err error) {
	start := time.Now()
	defer func() { observe(backendPostgres, "save", start, err) }()

	if s.UserID == "" {
		return ErrEmptyKey
	}
	if s.ItemIDs == nil {
		s.ItemIDs = []string{}
	}
	items, err := json.Marshal(s.ItemIDs)
	if err != nil {
		return fmt.Errorf("encode item ids: %w", err)
	}
	state, err := json.Marshal(s.State)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	const query = `
INSERT INTO game_sessions (user_id, session_id, status, item_ids, algorithm_state, total_count, updated_at)
VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7)
ON CONFLICT (user_id) DO UPDATE SET
	session_id      = EXCLUDED.session_id,
	status          = EXCLUDED.status,
	item_ids        = EXCLUDED.item_ids,
	algorithm_state = EXCLUDED.algorithm_state,
	total_count     = EXCLUDED.total_count,
	updated_at      = EXCLUDED.updated_at`
	_, err = p.db.ExecContext(ctx, query,
		s.UserID, s.SessionID, s.State.Status.String(),
		string(items), string(state), s.State.TotalCount, s.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", s.UserID, err)
	}
	return nil
}

// Load implements SessionStore.
func (p *PostgresSessionStore) Load(ctx context.Context, userID string) (s Session, err error) {
	start := time.Now()
	defer func() { observe(backendPostgres, "load", start, err) }()

	const query = `
SELECT session_id, item_ids, algorithm_state, updated_at
FROM game_sessions WHERE user_id = $1`
	var items, state []byte
	s.UserID = userID
	err = p.db.QueryRowContext(ctx, query, userID).Scan(&s.SessionID, &items, &state, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %q: %w", userID, ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("select session %s: %w", userID, err)
	}
	if err := json.Unmarshal(items, &s.ItemIDs); err != nil {
		return Session{}, fmt.Errorf("%w: item_ids: %v", ErrCorruptRecord, err)
	}
	if err := json.Unmarshal(state, &s.State); err != nil {
		return Session{}, fmt.Errorf("%w: algorithm_state: %v", ErrCorruptRecord, err)
	}
	return s, nil
}

// Delete implements SessionStore.
func (p *PostgresSessionStore) Delete(ctx context.Context, userID string) (err error) {
	start := time.Now()
	defer func() { observe(backendPostgres, "delete", start, err) }()

	res, err := p.db.ExecContext(ctx, `DELETE FROM game_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session %s: %w", userID, err)
	}
	if n == 0 {
		return fmt.Errorf("session %q: %w", userID, ErrNotFound)
	}
	return nil
}

// Count implements SessionStore.
func (p *PostgresSessionStore) Count(ctx context.Context) int {
	start := time.Now()
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM game_sessions`).Scan(&n)
	observe(backendPostgres, "count", start, err)
	if err != nil {
		if p.opts.log != nil {
			p.opts.log.Warn(ctx, "postgres session count failed", logger.Error(err))
		}
		return 0
	}
	return n
}

// PostgresDatasetStore stores datasets in the datasets table.
type PostgresDatasetStore struct {
	db *sql.DB
}

// NewPostgresDatasetStore wraps an open database handle.
func NewPostgresDatasetStore(db *sql.DB) *PostgresDatasetStore {
	return &PostgresDatasetStore{db: db}
}

// Put implements DatasetStore.
func (p *PostgresDatasetStore) Put(ctx context.Context, key string, ids []string) (err error) {
	start := time.Now()
	defer func() { observe(backendPostgres, "dataset_put", start, err) }()

	if key == "" {
		return ErrEmptyKey
	}
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode dataset %s: %w", key, err)
	}
	const query = `
INSERT INTO datasets (dataset_key, item_ids, imported_at)
VALUES ($1, $2::jsonb, NOW())
ON CONFLICT (dataset_key) DO UPDATE SET
	item_ids    = EXCLUDED.item_ids,
	imported_at = EXCLUDED.imported_at`
	if _, err := p.db.ExecContext(ctx, query, key, string(b)); err != nil {
		return fmt.Errorf("upsert dataset %s: %w", key, err)
	}
	return nil
}

// ItemIDs implements DatasetStore.
func (p *PostgresDatasetStore) ItemIDs(ctx context.Context, key string) (ids []string, err error) {
	start := time.Now()
	defer func() { observe(backendPostgres, "dataset_get", start, err) }()

	var b []byte
	err = p.db.QueryRowContext(ctx, `SELECT item_ids FROM datasets WHERE dataset_key = $1`, key).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select dataset %s: %w", key, err)
	}
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, fmt.Errorf("%w: dataset %s: %v", ErrCorruptRecord, key, err)
	}
	return ids, nil
}
