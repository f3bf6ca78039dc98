package sqlite

import (
	"context"
	"time"

	"github.com/aussiebroadwan/shopauth/internal/auth/domain"
)

type impersonationLogsRepo struct {
	db dbtx
}

func (r *impersonationLogsRepo) CreateImpersonationLog(ctx context.Context, l domain.ImpersonationLog) error {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO impersonation_logs
			(id, impersonator_id, impersonated_id, access_token_id, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.ImpersonatorID, l.ImpersonatedID, l.AccessTokenID, l.ExpiresAt, l.CreatedAt,
	)
	return err
}

func (r *impersonationLogsRepo) GetImpersonationLogByAccessTokenID(ctx context.Context, accessTokenID string) (domain.ImpersonationLog, error) {
	var l domain.ImpersonationLog
	err := r.db.QueryRowContext(ctx, `
		SELECT id, impersonator_id, impersonated_id, access_token_id, expires_at, created_at
		FROM impersonation_logs
		WHERE access_token_id = ?`,
		accessTokenID,
	).Scan(&l.ID, &l.ImpersonatorID, &l.ImpersonatedID, &l.AccessTokenID, &l.ExpiresAt, &l.CreatedAt)
	if err != nil {
		return domain.ImpersonationLog{}, mapNotFound(err)
	}
	return l, nil
}

func (r *impersonationLogsRepo) ListImpersonationLogsByImpersonator(ctx context.Context, impersonatorID string) ([]domain.ImpersonationLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, impersonator_id, impersonated_id, access_token_id, expires_at, created_at
		FROM impersonation_logs
		WHERE impersonator_id = ?
		ORDER BY created_at DESC`,
		impersonatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.ImpersonationLog
	for rows.Next() {
		var l domain.ImpersonationLog
		if err := rows.Scan(&l.ID, &l.ImpersonatorID, &l.ImpersonatedID,
			&l.AccessTokenID, &l.ExpiresAt, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
