package domain

import "time"

// ImpersonationLog is an append-only audit record written once per
// impersonation token mint. Never updated or deleted.
type ImpersonationLog struct {
	ID             string
	ImpersonatorID string
	ImpersonatedID string
	AccessTokenID  string
	ExpiresAt      time.Time
	CreatedAt      time.Time
}
