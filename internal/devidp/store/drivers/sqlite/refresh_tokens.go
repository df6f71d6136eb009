package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/gatekeep/internal/devidp/domain"
)

type refreshTokensRepo struct {
	q querier
}

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO refresh_tokens
		(id, account_id, session_id, token_hash, expires_at, revoked, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.SessionID, t.TokenHash, toUnix(t.ExpiresAt), t.Revoked,
		toUnix(t.CreatedAt), toUnix(t.UpdatedAt))
	return mapConflict(err)
}

func (r *refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	var (
		t                               domain.RefreshToken
		expiresAt, createdAt, updatedAt int64
	)
	err := r.q.QueryRowContext(ctx, `SELECT id, account_id, session_id, token_hash, expires_at,
		revoked, created_at, updated_at FROM refresh_tokens WHERE token_hash = ?`, hash).
		Scan(&t.ID, &t.AccountID, &t.SessionID, &t.TokenHash, &expiresAt, &t.Revoked, &createdAt, &updatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.ExpiresAt = fromUnix(expiresAt)
	t.CreatedAt = fromUnix(createdAt)
	t.UpdatedAt = fromUnix(updatedAt)
	return t, nil
}

func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	return affected(r.q.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1, updated_at = unixepoch() WHERE token_hash = ? AND revoked = 0`, hash))
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= ? OR revoked = 1`, toUnix(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
