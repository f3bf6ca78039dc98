// Package authsdk is the Go client SDK for the shopauth service, plus the
// wire types the service itself uses to answer requests. Keeping both sides
// on one set of types means the server can never drift from what the SDK
// decodes.
//
// Unauthenticated operations (token refresh, revocation, JWKS and health
// probes) hang off SDKClient. Operations that need a bearer credential take
// the access token explicitly; the tokens this service mints are opaque, so
// there is nothing for the SDK to refresh behind the caller's back.
//
// Basic usage:
//
//	client := authsdk.NewSDKClient("https://auth.demo-shop.example.com")
//
//	pair, err := client.Refresh(ctx, refreshToken)
//	if err != nil {
//		// *authsdk.OAuth2Error carries the code and status
//	}
//
//	info, err := client.GetUserInfo(ctx, pair.AccessToken)
package authsdk
