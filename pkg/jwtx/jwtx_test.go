package jwtx_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/shopauth/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const exampleIssuer = "https://shopauth.example.com"

func newTestKeyPEM(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privKey),
	})
	return privKey, privPEM
}

func TestSignAndVerifyAgainstPublishedJWK(t *testing.T) {
	_, privPEM := newTestKeyPEM(t)

	signer, err := jwtx.NewSignerRS256("test-key", privPEM)
	require.NoError(t, err)
	require.NoError(t, signer.Validate())

	now := time.Now().UTC()
	claims := jwtx.NewIDClaims(
		exampleIssuer,       // issuer
		"user-123",          // subject
		"shopify",           // audience
		"alice@example.com", // email
		"Alice Example",     // display name
		2*time.Minute,       // TTL
		now,                 // issued at time
	)

	token, err := signer.Sign(claims)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	// Verification path goes through the published JWK, exactly like an
	// external relying party consuming our JWKS document would.
	pub, err := signer.PublicJWK().PublicKey()
	require.NoError(t, err)

	parsed := jwtx.IDClaims{}
	_, err = jwt.ParseWithClaims(token, &parsed, func(tk *jwt.Token) (any, error) {
		require.Equal(t, "test-key", tk.Header["kid"])
		return pub, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)

	require.Equal(t, exampleIssuer, parsed.Issuer)
	require.Equal(t, "user-123", parsed.Subject)
	require.ElementsMatch(t, []string{"shopify"}, parsed.Audience)
	require.Equal(t, "alice@example.com", parsed.Email)
	require.Equal(t, "Alice Example", parsed.Name)
}

func TestJWKPublicKeyFromRawComponents(t *testing.T) {
	privKey, _ := newTestKeyPEM(t)

	jwk := jwtx.NewRSAJWK("k1", "sig", "RS256", &privKey.PublicKey)

	// Published n/e must be unpadded base64url per the JWKS wire format.
	require.NotContains(t, jwk.N, "=")
	require.NotContains(t, jwk.E, "=")

	pub, err := jwk.PublicKey()
	require.NoError(t, err)
	require.Zero(t, pub.N.Cmp(privKey.PublicKey.N))
	require.Equal(t, privKey.PublicKey.E, pub.E)
}

func TestJWKPublicKeyFromX5c(t *testing.T) {
	privKey, _ := newTestKeyPEM(t)

	der, err := x509.MarshalPKIXPublicKey(&privKey.PublicKey)
	require.NoError(t, err)

	jwk := jwtx.JWK{
		Kty: "RSA",
		Kid: "k2",
		X5c: []string{base64.StdEncoding.EncodeToString(der)},
	}

	pub, err := jwk.PublicKey()
	require.NoError(t, err)
	require.Zero(t, pub.N.Cmp(privKey.PublicKey.N))
}

func TestJWKPublicKeyRejectsBadShapes(t *testing.T) {
	cases := []struct {
		name string
		jwk  jwtx.JWK
	}{
		{"empty", jwtx.JWK{}},
		{"unsupported kty", jwtx.JWK{Kty: "EC", N: "AQAB", E: "AQAB"}},
		{"missing exponent", jwtx.JWK{Kty: "RSA", N: "AQAB"}},
		{"garbage x5c", jwtx.JWK{Kty: "RSA", X5c: []string{"!!not-base64!!"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.jwk.PublicKey()
			require.ErrorIs(t, err, jwtx.ErrInvalidKeyMaterial)
		})
	}
}

func TestJWKPEM(t *testing.T) {
	privKey, _ := newTestKeyPEM(t)

	jwk := jwtx.NewRSAJWK("k3", "sig", "RS256", &privKey.PublicKey)
	pemStr, err := jwk.PEM()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(pemStr, "-----BEGIN PUBLIC KEY-----"))
}

func TestKeySet(t *testing.T) {
	_, privPEM := newTestKeyPEM(t)
	signer, err := jwtx.NewSignerRS256("keyset-key", privPEM)
	require.NoError(t, err)

	ks := jwtx.NewKeySet()
	require.False(t, ks.IsReady())

	require.NoError(t, ks.AddSigner(signer))
	require.True(t, ks.IsReady())

	pub, err := ks.Get("keyset-key")
	require.NoError(t, err)
	require.NotNil(t, pub)

	_, err = ks.Get("nope")
	require.ErrorIs(t, err, jwtx.ErrNoKey)

	jwks := ks.PublicJWKS()
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "keyset-key", jwks.Keys[0].Kid)
}
