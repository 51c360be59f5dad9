package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/theofficialwebsiteguys/Dispensary-API/internal/model"
)

func scanSession(row pgx.Row) (*model.Session, error) {
	var s model.Session
	err := row.Scan(&s.SessionID, &s.SessionToken, &s.UserID, &s.BusinessID,
		&s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &s, nil
}

// CreateSession persists a new session.
func (r *PostgresRepository) CreateSession(ctx context.Context, s *model.Session) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (session_id, session_token, user_id, business_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		s.SessionID, s.SessionToken, s.UserID, s.BusinessID, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetActiveSession returns a session by id if it has not expired.
func (r *PostgresRepository) GetActiveSession(ctx context.Context, sessionID string) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT session_id, session_token, user_id, business_id, created_at, expires_at
		 FROM sessions
		 WHERE session_id = $1 AND expires_at > now()`,
		sessionID))
}

// FindActiveSessionForUser returns an unexpired session for a user within a business.
func (r *PostgresRepository) FindActiveSessionForUser(ctx context.Context, userID, businessID int64) (*model.Session, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT session_id, session_token, user_id, business_id, created_at, expires_at
		 FROM sessions
		 WHERE user_id = $1 AND business_id = $2 AND expires_at > now()
		 ORDER BY expires_at DESC LIMIT 1`,
		userID, businessID))
}

// DeleteSession removes a session by id.
func (r *PostgresRepository) DeleteSession(ctx context.Context, sessionID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry and reports how
// many were deleted.
func (r *PostgresRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
