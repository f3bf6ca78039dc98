package domain

import "time"

// User is a local account federated from the Shopify identity provider.
// Metadata carries the provider profile fields we don't promote to columns
// (given_name, family_name, locale, picture, staff_access and friends), so
// webhook syncs don't need schema changes.
type User struct {
	ID             string
	Email          string
	Name           string
	ShopifySubject string // `sub` claim from the provider, unique when set
	Metadata       map[string]string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
