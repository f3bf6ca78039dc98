package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/shopauth/internal/auth/domain"
)

type usersRepo struct {
	db dbtx
}

const userColumns = `id, email, name, shopify_subject, metadata, created_at, updated_at`

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	metadata, err := encodeMetadata(u.Metadata)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, shopify_subject, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.ShopifySubject, metadata, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *usersRepo) GetUserByShopifySubject(ctx context.Context, sub string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE shopify_subject = ? AND shopify_subject != ''`, sub)
	return scanUser(row)
}

func (r *usersRepo) UpdateUser(ctx context.Context, u domain.User) error {
	metadata, err := encodeMetadata(u.Metadata)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET email = ?, name = ?, shopify_subject = ?, metadata = ?, updated_at = ?
		WHERE id = ?`,
		u.Email, u.Name, u.ShopifySubject, metadata, time.Now().UTC(), u.ID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *usersRepo) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	var metadata string
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.ShopifySubject, &metadata, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.Metadata = decodeMetadata(metadata)
	return u, nil
}
