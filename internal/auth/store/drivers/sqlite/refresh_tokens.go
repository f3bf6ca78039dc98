package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/shopauth/internal/auth/domain"
)

type refreshTokensRepo struct {
	db dbtx
}

const refreshTokenColumns = `id, user_id, access_token_id, token, client_id, scopes, revoked, expires_at, created_at, updated_at`

func (r *refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	scopes, err := encodeScopeBlob(t.Name, t.Abilities)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens
			(id, user_id, access_token_id, token, client_id, scopes, revoked, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.AccessTokenID, t.Token, t.ClientID, scopes, t.Revoked,
		t.ExpiresAt, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (r *refreshTokensRepo) GetRefreshTokenByValue(ctx context.Context, token string) (domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token = ?`, token)
	return scanRefreshToken(row)
}

func (r *refreshTokensRepo) GetActiveRefreshTokenByValue(ctx context.Context, token string) (domain.RefreshToken, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+refreshTokenColumns+`
		FROM refresh_tokens
		WHERE token = ? AND revoked = 0 AND expires_at > ?`,
		token, time.Now().UTC())
	return scanRefreshToken(row)
}

// RevokeRefreshToken is a conditional update: the WHERE revoked = 0 clause
// plus the rows-affected count guarantee that of any number of concurrent
// callers, exactly one gets true.
func (r *refreshTokensRepo) RevokeRefreshToken(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = 1, updated_at = ?
		WHERE id = ? AND revoked = 0`,
		time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *refreshTokensRepo) ListActivePersonalTokens(ctx context.Context, userID string) ([]domain.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+refreshTokenColumns+`
		FROM refresh_tokens
		WHERE user_id = ? AND client_id = ? AND revoked = 0 AND expires_at > ?
		ORDER BY created_at DESC`,
		userID, domain.ClientIDPersonalAccess, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []domain.RefreshToken
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (r *refreshTokensRepo) RevokeAllRefreshTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked = 1, updated_at = ?
		WHERE revoked = 0`,
		time.Now().UTC())
	return err
}

func (r *refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= ?`, time.Now().UTC())
	return err
}

func scanRefreshToken(row rowScanner) (domain.RefreshToken, error) {
	var t domain.RefreshToken
	var scopes string
	err := row.Scan(&t.ID, &t.UserID, &t.AccessTokenID, &t.Token, &t.ClientID,
		&scopes, &t.Revoked, &t.ExpiresAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	t.Name, t.Abilities = decodeScopeBlob(scopes)
	return t, nil
}
