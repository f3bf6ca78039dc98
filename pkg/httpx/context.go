package httpx

import "context"

type ctxKey string

const (
	CtxKeyUserID         ctxKey = "user_id"
	CtxKeyTokenID        ctxKey = "token_id"
	CtxKeyAbilities      ctxKey = "abilities"
	CtxKeyImpersonatorID ctxKey = "impersonator_id"
)

// ContextWithAuth stamps the authenticated principal onto the context for
// downstream handlers. impersonatorID is empty for direct logins.
func ContextWithAuth(ctx context.Context, userID, tokenID string, abilities []string, impersonatorID string) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, userID)
	ctx = context.WithValue(ctx, CtxKeyTokenID, tokenID)
	ctx = context.WithValue(ctx, CtxKeyAbilities, abilities)
	if impersonatorID != "" {
		ctx = context.WithValue(ctx, CtxKeyImpersonatorID, impersonatorID)
	}
	return ctx
}

// UserIDFromContext returns the authenticated user id, or "" when the
// request never went through the authn middleware.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyUserID).(string); ok {
		return v
	}
	return ""
}

// TokenIDFromContext returns the id of the access token that authenticated
// the request.
func TokenIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyTokenID).(string); ok {
		return v
	}
	return ""
}

// ImpersonatorFromContext returns the admin driving an impersonated
// session, or "" for a direct login.
func ImpersonatorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyImpersonatorID).(string); ok {
		return v
	}
	return ""
}

func abilitiesFromCtx(ctx context.Context) []string {
	if v, ok := ctx.Value(CtxKeyAbilities).([]string); ok {
		return v
	}
	return nil
}
