package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"hospital-frontend/pkg/utils"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS frontend_sessions (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	expires_at BIGINT NOT NULL
)`

const createIndexSQL = `CREATE INDEX IF NOT EXISTS frontend_sessions_expires_at ON frontend_sessions (expires_at)`

// SQLStore keeps sessions in a frontend_sessions table on Postgres (pgx) or SQLite.
type SQLStore struct {
	db     *sql.DB
	driver string
	clock  func() time.Time
}

func NewSQLStore(db *sql.DB, driverName string) *SQLStore {
	return &SQLStore{db: db, driver: driverName, clock: time.Now}
}

// Migrate creates the sessions table if needed.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, createIndexSQL)
	return err
}

func (s *SQLStore) q(query string) string { return utils.Rebind(s.driver, query) }

func (s *SQLStore) Get(ctx context.Context, id string) ([]byte, error) {
	var (
		data      string
		expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, s.q(`SELECT data, expires_at FROM frontend_sessions WHERE id = ?`), id).
		Scan(&data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if s.clock().Unix() >= expiresAt {
		_ = s.Delete(ctx, id)
		return nil, ErrNotFound
	}
	return []byte(data), nil
}

func (s *SQLStore) Save(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	return s.upsert(ctx, s.db, id, data, ttl)
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM frontend_sessions WHERE id = ?`), id)
	return err
}

func (s *SQLStore) Rotate(ctx context.Context, oldID, newID string, data []byte, ttl time.Duration) error {
	return utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM frontend_sessions WHERE id = ?`), oldID); err != nil {
			return err
		}
		return s.upsert(ctx, tx, newID, data, ttl)
	})
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *SQLStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM frontend_sessions WHERE expires_at <= ?`), s.clock().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) upsert(ctx context.Context, db execer, id string, data []byte, ttl time.Duration) error {
	_, err := db.ExecContext(ctx, s.q(`INSERT INTO frontend_sessions (id, data, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`),
		id, string(data), s.clock().Add(ttl).Unix())
	return err
}
