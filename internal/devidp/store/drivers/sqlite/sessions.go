package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/gatekeep/internal/devidp/domain"
)

type sessionsRepo struct {
	q querier
}

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO sessions (id, account_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.AccountID, nullString(s.TokenHash), toUnix(s.ExpiresAt), toUnix(s.CreatedAt))
	return mapConflict(err)
}

func (r *sessionsRepo) GetSessionByID(ctx context.Context, id string) (domain.Session, error) {
	return scanSession(r.q.QueryRowContext(ctx,
		`SELECT id, account_id, token_hash, expires_at, created_at FROM sessions WHERE id = ?`, id))
}

func (r *sessionsRepo) GetSessionByTokenHash(ctx context.Context, hash string) (domain.Session, error) {
	return scanSession(r.q.QueryRowContext(ctx,
		`SELECT id, account_id, token_hash, expires_at, created_at FROM sessions WHERE token_hash = ?`, hash))
}

func scanSession(row *sql.Row) (domain.Session, error) {
	var (
		s                    domain.Session
		hash                 sql.NullString
		expiresAt, createdAt int64
	)
	if err := row.Scan(&s.ID, &s.AccountID, &hash, &expiresAt, &createdAt); err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.TokenHash = hash.String
	s.ExpiresAt = fromUnix(expiresAt)
	s.CreatedAt = fromUnix(createdAt)
	return s, nil
}

func (r *sessionsRepo) DeleteSession(ctx context.Context, id string) error {
	return affected(r.q.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id))
}

func (r *sessionsRepo) DeleteAccountSessions(ctx context.Context, accountID string) error {
	_, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE account_id = ?`, accountID)
	return err
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toUnix(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
