package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/gatekeep/internal/devidp/domain"
)

type actionTokensRepo struct {
	q querier
}

func (r *actionTokensRepo) CreateActionToken(ctx context.Context, t domain.ActionToken) error {
	_, err := r.q.ExecContext(ctx, `INSERT INTO action_tokens
		(id, account_id, purpose, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.Purpose, t.TokenHash, toUnix(t.ExpiresAt), toUnix(t.CreatedAt))
	return mapConflict(err)
}

func (r *actionTokensRepo) GetActionTokenByHash(ctx context.Context, purpose, hash string) (domain.ActionToken, error) {
	var (
		t                    domain.ActionToken
		expiresAt, createdAt int64
		usedAt               sql.NullInt64
	)
	err := r.q.QueryRowContext(ctx, `SELECT id, account_id, purpose, token_hash, expires_at, used_at, created_at
		FROM action_tokens WHERE token_hash = ? AND purpose = ?`, hash, purpose).
		Scan(&t.ID, &t.AccountID, &t.Purpose, &t.TokenHash, &expiresAt, &usedAt, &createdAt)
	if err != nil {
		return domain.ActionToken{}, mapNotFound(err)
	}
	t.ExpiresAt = fromUnix(expiresAt)
	t.CreatedAt = fromUnix(createdAt)
	t.UsedAt = fromNullUnix(usedAt)
	return t, nil
}

func (r *actionTokensRepo) MarkActionTokenUsed(ctx context.Context, id string, at time.Time) error {
	return affected(r.q.ExecContext(ctx,
		`UPDATE action_tokens SET used_at = ? WHERE id = ? AND used_at IS NULL`, toUnix(at), id))
}

func (r *actionTokensRepo) DeleteExpiredActionTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM action_tokens WHERE expires_at <= ? OR used_at IS NOT NULL`, toUnix(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
