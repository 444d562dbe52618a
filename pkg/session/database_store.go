package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DBTX is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	querySaveSession = `INSERT INTO sessions (id, user_id, ip_address, user_agent, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)
ON CONFLICT (id) DO UPDATE SET
	user_id = EXCLUDED.user_id,
	ip_address = EXCLUDED.ip_address,
	user_agent = EXCLUDED.user_agent,
	expires_at = EXCLUDED.expires_at,
	updated_at = EXCLUDED.updated_at`

	queryLoadSession = `SELECT user_id, ip_address, user_agent, expires_at FROM sessions WHERE id = $1`

	queryDeleteSession = `DELETE FROM sessions WHERE id = $1`

	queryDeleteUserSessions = `DELETE FROM sessions WHERE user_id = $1`

	queryDeleteExpiredSessions = `DELETE FROM sessions WHERE expires_at <= $1`
)

// DatabaseStore keeps sessions in the sessions table. Expiry is checked on
// read and an expired row is deleted as a side effect.
type DatabaseStore struct {
	db  DBTX
	now func() time.Time
}

var (
	_ Store          = (*DatabaseStore)(nil)
	_ UserRevoker    = (*DatabaseStore)(nil)
	_ ExpiredSweeper = (*DatabaseStore)(nil)
)

func NewDatabaseStore(db DBTX) *DatabaseStore {
	if db == nil {
		panic("session: database handle is required")
	}
	return &DatabaseStore{db: db, now: time.Now}
}

func (s *DatabaseStore) Save(ctx context.Context, id string, data Payload, ttl time.Duration) error {
	if id == "" {
		return ErrInvalidSessionID
	}

	now := s.now().UTC()
	if _, err := s.db.ExecContext(ctx, querySaveSession,
		id, data.UserID, data.IPAddress, data.UserAgent, now.Add(ttl), now,
	); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	return nil
}

func (s *DatabaseStore) Load(ctx context.Context, id string) (Payload, error) {
	var (
		data      Payload
		expiresAt time.Time
	)

	err := s.db.QueryRowContext(ctx, queryLoadSession, id).
		Scan(&data.UserID, &data.IPAddress, &data.UserAgent, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Payload{}, ErrSessionNotFound
		}
		return Payload{}, fmt.Errorf("failed to load session: %w", err)
	}

	if !s.now().Before(expiresAt) {
		if _, err := s.db.ExecContext(ctx, queryDeleteSession, id); err != nil {
			return Payload{}, errors.Join(ErrSessionExpired, err)
		}
		return Payload{}, ErrSessionExpired
	}

	return data, nil
}

func (s *DatabaseStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, queryDeleteSession, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}

	return nil
}

func (s *DatabaseStore) DeleteByUserID(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, queryDeleteUserSessions, userID); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpired removes every expired row and reports how many were dropped.
func (s *DatabaseStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, queryDeleteExpiredSessions, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
