package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aussiebroadwan/gatekeep/internal/devidp/domain"
)

type accountsRepo struct {
	q querier
}

const accountColumns = `id, username, email, given_name, middle_name, surname,
	password_hash, status, custom_data, created_at, updated_at`

func (r *accountsRepo) GetAccountByID(ctx context.Context, id string) (domain.Account, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return r.scan(ctx, row)
}

func (r *accountsRepo) GetAccountByLogin(ctx context.Context, login string) (domain.Account, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = ? OR email = ?
		ORDER BY username = ? DESC LIMIT 1`,
		login, login, login)
	return r.scan(ctx, row)
}

func (r *accountsRepo) scan(ctx context.Context, row *sql.Row) (domain.Account, error) {
	var (
		a                    domain.Account
		custom               string
		createdAt, updatedAt int64
	)
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.GivenName, &a.MiddleName, &a.Surname,
		&a.PasswordHash, &a.Status, &custom, &createdAt, &updatedAt)
	if err != nil {
		return domain.Account{}, mapNotFound(err)
	}
	a.CreatedAt = fromUnix(createdAt)
	a.UpdatedAt = fromUnix(updatedAt)

	if custom != "" && custom != "{}" {
		if err := json.Unmarshal([]byte(custom), &a.CustomData); err != nil {
			return domain.Account{}, fmt.Errorf("account %s custom data: %w", a.ID, err)
		}
	}

	if a.Groups, err = r.groups(ctx, a.ID); err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

func (r *accountsRepo) groups(ctx context.Context, accountID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT name FROM account_groups WHERE account_id = ? ORDER BY name`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *accountsRepo) CreateAccount(ctx context.Context, a domain.Account) error {
	custom := "{}"
	if len(a.CustomData) > 0 {
		b, err := json.Marshal(a.CustomData)
		if err != nil {
			return fmt.Errorf("encode custom data: %w", err)
		}
		custom = string(b)
	}

	_, err := r.q.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Username, a.Email, a.GivenName, a.MiddleName, a.Surname,
		a.PasswordHash, a.Status, custom, toUnix(a.CreatedAt), toUnix(a.UpdatedAt))
	if err != nil {
		return mapConflict(err)
	}

	groups := append([]string(nil), a.Groups...)
	sort.Strings(groups)
	for _, g := range groups {
		if _, err := r.q.ExecContext(ctx,
			`INSERT OR IGNORE INTO account_groups (account_id, name) VALUES (?, ?)`, a.ID, g); err != nil {
			return err
		}
	}
	return nil
}

func (r *accountsRepo) UpdatePasswordHash(ctx context.Context, accountID, hash string) error {
	return affected(r.q.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at = unixepoch() WHERE id = ?`, hash, accountID))
}

func (r *accountsRepo) UpdateStatus(ctx context.Context, accountID, status string) error {
	return affected(r.q.ExecContext(ctx,
		`UPDATE accounts SET status = ?, updated_at = unixepoch() WHERE id = ?`, status, accountID))
}

func (r *accountsRepo) IsEmpty(ctx context.Context) (bool, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return false, err
	}
	return n == 0, nil
}
