package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/shopauth/internal/auth/domain"
)

type accessTokensRepo struct {
	db dbtx
}

const accessTokenColumns = `id, user_id, name, abilities, fingerprint, last_used_at, expires_at, created_at`

func (r *accessTokensRepo) CreateAccessToken(ctx context.Context, t domain.AccessToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO access_tokens
			(id, user_id, name, abilities, fingerprint, last_used_at, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Name, joinAbilities(t.Abilities), t.Fingerprint,
		mapOptionalTime(t.LastUsedAt), t.ExpiresAt, t.CreatedAt,
	)
	return err
}

func (r *accessTokensRepo) GetAccessTokenByID(ctx context.Context, id string) (domain.AccessToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accessTokenColumns+` FROM access_tokens WHERE id = ?`, id)

	var t domain.AccessToken
	var abilities string
	var lastUsed sql.NullTime
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &abilities, &t.Fingerprint,
		&lastUsed, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return domain.AccessToken{}, mapNotFound(err)
	}
	t.Abilities = splitAbilities(abilities)
	t.LastUsedAt = mapNullTimePtr(lastUsed)
	return t, nil
}

func (r *accessTokensRepo) TouchAccessToken(ctx context.Context, id string, when time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE access_tokens SET last_used_at = ? WHERE id = ?`, when.UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *accessTokensRepo) DeleteAccessToken(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE id = ?`, id)
	return err
}

func (r *accessTokensRepo) DeleteAllAccessTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM access_tokens`)
	return err
}

func (r *accessTokensRepo) DeleteExpiredAccessTokens(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM access_tokens WHERE expires_at <= ?`, time.Now().UTC())
	return err
}
