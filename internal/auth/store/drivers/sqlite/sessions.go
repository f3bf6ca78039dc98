package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/shopauth/internal/auth/store"
)

type sessionsRepo struct {
	db dbtx
}

func (r *sessionsRepo) PutSessionValue(ctx context.Context, sid, key, value string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_values (sid, key, value, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (sid, key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		sid, key, value, expiresAt.UTC(),
	)
	return err
}

func (r *sessionsRepo) GetSessionValue(ctx context.Context, sid, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `
		SELECT value FROM session_values
		WHERE sid = ? AND key = ? AND expires_at > ?`,
		sid, key, time.Now().UTC()).Scan(&value)
	if err != nil {
		return "", mapNotFound(err)
	}
	return value, nil
}

// PullSessionValue is get-and-clear. The conditional delete rather than a
// read-then-delete keeps two concurrent pulls from both seeing the value.
func (r *sessionsRepo) PullSessionValue(ctx context.Context, sid, key string) (string, error) {
	value, err := r.GetSessionValue(ctx, sid, key)
	if err != nil {
		return "", err
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM session_values WHERE sid = ? AND key = ? AND value = ?`,
		sid, key, value)
	if err != nil {
		return "", err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		// Someone else pulled it between our read and delete.
		return "", store.ErrNotFound
	}
	return value, nil
}

func (r *sessionsRepo) DeleteExpiredSessionValues(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM session_values WHERE expires_at <= ?`, time.Now().UTC())
	return err
}
