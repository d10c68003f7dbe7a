package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStorage is a PostgreSQL-backed Storage using pgx/v5. Each persisted key
// is one row of staffdesk_sessions.
type PgStorage struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewPgStorage creates a PostgreSQL session storage.
func NewPgStorage(pool *pgxpool.Pool, ttl time.Duration) *PgStorage {
	return &PgStorage{pool: pool, ttl: ttl}
}

// Migrate creates the session table if it does not exist.
func (s *PgStorage) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS staffdesk_sessions (
			session_id TEXT NOT NULL,
			key        TEXT NOT NULL,
			value      TEXT NOT NULL,
			expires_at TIMESTAMPTZ,
			PRIMARY KEY (session_id, key)
		)`)
	if err != nil {
		return fmt.Errorf("session: create table: %w", err)
	}
	return nil
}

// Load returns the unexpired keys of the session.
func (s *PgStorage) Load(ctx context.Context, sid string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key, value FROM staffdesk_sessions
		WHERE session_id = $1 AND (expires_at IS NULL OR expires_at > now())`,
		sid,
	)
	if err != nil {
		return nil, fmt.Errorf("session: query session: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("session: scan session row: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: iterate session rows: %w", err)
	}
	return values, nil
}

// Save upserts values and moves the expiry of every key of the session.
func (s *PgStorage) Save(ctx context.Context, sid string, values map[string]string) error {
	var expiresAt *time.Time
	if s.ttl > 0 {
		t := time.Now().UTC().Add(s.ttl)
		expiresAt = &t
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for k, v := range values {
			_, err := tx.Exec(ctx, `
				INSERT INTO staffdesk_sessions (session_id, key, value, expires_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (session_id, key) DO UPDATE
				SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
				sid, k, v, expiresAt,
			)
			if err != nil {
				return fmt.Errorf("session: upsert %q: %w", k, err)
			}
		}
		_, err := tx.Exec(ctx,
			`UPDATE staffdesk_sessions SET expires_at = $2 WHERE session_id = $1`,
			sid, expiresAt,
		)
		if err != nil {
			return fmt.Errorf("session: refresh expiry: %w", err)
		}
		return nil
	})
}

// Purge deletes the given keys.
func (s *PgStorage) Purge(ctx context.Context, sid string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`DELETE FROM staffdesk_sessions WHERE session_id = $1 AND key = ANY($2)`,
		sid, keys,
	)
	if err != nil {
		return fmt.Errorf("session: delete session keys: %w", err)
	}
	return nil
}

// HealthCheck pings the pool.
func (s *PgStorage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("session: postgres ping: %w", err)
	}
	return nil
}
