package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/shopauth/internal/auth/domain"
	"github.com/aussiebroadwan/shopauth/internal/auth/store"
	"github.com/aussiebroadwan/shopauth/pkg/idx"
	"github.com/aussiebroadwan/shopauth/pkg/oidcx"
	"github.com/aussiebroadwan/shopauth/pkg/slogx"
)

// ErrMissingSubject is returned when identity claims carry no subject to
// key the user on.
var ErrMissingSubject = errors.New("identity claims missing subject")

// ProvisioningService turns verified upstream identity claims into local
// user records: find by subject, fall back to email, create otherwise.
// Profile fields are re-synced on every login so the local copy tracks the
// identity provider.
type ProvisioningService struct {
	Store store.Store
}

// metadataClaims are the optional claim names we mirror into user metadata
// when the provider sends them.
var metadataClaims = []string{
	"given_name",
	"family_name",
	"locale",
	"picture",
	"updated_at",
	"email_verified",
	"zoneinfo",
	"shop_id",
	"shop_name",
	"staff_id",
	"staff_access",
}

// ProvisionFromClaims finds or creates the user the claims describe and
// syncs their profile. The returned user always has the claims' subject
// recorded, including for users first matched by email.
func (s *ProvisioningService) ProvisionFromClaims(ctx context.Context, claims *oidcx.IdentityClaims) (domain.User, error) {
	log := slogx.FromContext(ctx)

	if claims.Subject == "" {
		return domain.User{}, ErrMissingSubject
	}

	user, err := s.Store.Users().GetUserByShopifySubject(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) && claims.Email != "" {
		// The subject is new but the person may not be: match on email
		// and adopt the subject.
		user, err = s.Store.Users().GetUserByEmail(ctx, claims.Email)
	}
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return domain.User{}, err
		}

		user = domain.User{
			ID:             idx.New().String(),
			Email:          claims.Email,
			Name:           claims.Name,
			ShopifySubject: claims.Subject,
			Metadata:       metadataFromClaims(claims),
		}
		if err := s.Store.Users().CreateUser(ctx, user); err != nil {
			return domain.User{}, err
		}
		log.Info("provisioned new user", "user_id", user.ID, "subject", claims.Subject)
		return user, nil
	}

	user.ShopifySubject = claims.Subject
	if claims.Email != "" {
		user.Email = claims.Email
	}
	if claims.Name != "" {
		user.Name = claims.Name
	}
	user.Metadata = mergeMetadata(user.Metadata, metadataFromClaims(claims))

	if err := s.Store.Users().UpdateUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func metadataFromClaims(claims *oidcx.IdentityClaims) map[string]string {
	md := make(map[string]string)
	if claims.Locale != "" {
		md["locale"] = claims.Locale
	}
	if claims.ShopID != "" {
		md["shop_id"] = claims.ShopID
	}
	if claims.ShopName != "" {
		md["shop_name"] = claims.ShopName
	}
	if claims.StaffID != "" {
		md["staff_id"] = claims.StaffID
	}
	for _, key := range metadataClaims {
		if _, ok := md[key]; ok {
			continue
		}
		if v, ok := claims.Extra[key]; ok {
			md[key] = stringifyClaim(v)
		}
	}
	return md
}

// mergeMetadata layers fresh claim values over what we already stored, so
// claims the provider stopped sending aren't forgotten.
func mergeMetadata(existing, fresh map[string]string) map[string]string {
	if existing == nil {
		return fresh
	}
	for k, v := range fresh {
		existing[k] = v
	}
	return existing
}

func stringifyClaim(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		// Claim numbers are ids and unix timestamps; render without an
		// exponent or trailing zeros.
		return fmt.Sprintf("%d", int64(t))
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", t)
	}
}
