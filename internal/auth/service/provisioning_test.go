package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/shopauth/internal/auth/service"
	"github.com/aussiebroadwan/shopauth/pkg/oidcx"
)

func TestProvisionFromClaims(t *testing.T) {
	st := newTestStore(t)
	svc := &service.ProvisioningService{Store: st}
	ctx := context.Background()

	claims := &oidcx.IdentityClaims{
		Subject:  "shopify-staff-42",
		Email:    "staff@demo-shop.myshopify.com",
		Name:     "Demo Staff",
		Locale:   "en-AU",
		ShopID:   "987654",
		ShopName: "demo-shop",
		Extra: map[string]any{
			"given_name":     "Demo",
			"family_name":    "Staff",
			"email_verified": true,
			"staff_access":   "full",
		},
	}

	t.Run("creates a user on first login", func(t *testing.T) {
		user, err := svc.ProvisionFromClaims(ctx, claims)
		require.NoError(t, err)
		require.NotEmpty(t, user.ID)
		require.Equal(t, "shopify-staff-42", user.ShopifySubject)
		require.Equal(t, "staff@demo-shop.myshopify.com", user.Email)
		require.Equal(t, "en-AU", user.Metadata["locale"])
		require.Equal(t, "987654", user.Metadata["shop_id"])
		require.Equal(t, "true", user.Metadata["email_verified"])
		require.Equal(t, "full", user.Metadata["staff_access"])
	})

	t.Run("second login reuses the same user", func(t *testing.T) {
		first, err := svc.ProvisionFromClaims(ctx, claims)
		require.NoError(t, err)
		again, err := svc.ProvisionFromClaims(ctx, claims)
		require.NoError(t, err)
		require.Equal(t, first.ID, again.ID)
	})

	t.Run("profile changes sync on login", func(t *testing.T) {
		updated := *claims
		updated.Name = "Renamed Staff"
		updated.Locale = "en-NZ"

		user, err := svc.ProvisionFromClaims(ctx, &updated)
		require.NoError(t, err)
		require.Equal(t, "Renamed Staff", user.Name)
		require.Equal(t, "en-NZ", user.Metadata["locale"])
		// Claims no longer sent still survive from the earlier sync.
		require.Equal(t, "full", user.Metadata["staff_access"])
	})

	t.Run("existing email adopts a new subject", func(t *testing.T) {
		existing := seedUser(t, st)
		adopted := &oidcx.IdentityClaims{
			Subject: "brand-new-subject",
			Email:   existing.Email,
		}

		user, err := svc.ProvisionFromClaims(ctx, adopted)
		require.NoError(t, err)
		require.Equal(t, existing.ID, user.ID)
		require.Equal(t, "brand-new-subject", user.ShopifySubject)
	})

	t.Run("missing subject is rejected", func(t *testing.T) {
		_, err := svc.ProvisionFromClaims(ctx, &oidcx.IdentityClaims{Email: "x@y.com"})
		require.ErrorIs(t, err, service.ErrMissingSubject)
	})
}
