package jwtx

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Signer signs ID tokens using RSA SHA-256. The same key pair backs the
// published JWKS, so anything we sign must verify against
// /.well-known/jwks.json.
type Signer struct {
	kid string
	key *rsa.PrivateKey
	pub *rsa.PublicKey
}

// NewSignerRS256 loads an RSA private key from PEM bytes. Handles both
// PKCS1 and PKCS8 because otherwise we will be chasing a bug for longer
// than we would be willing to admit.
func NewSignerRS256(kid string, pemKey []byte) (*Signer, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for RSA key")
	}

	var key *rsa.PrivateKey
	var err error

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		priv, err2 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err2 != nil {
			return nil, fmt.Errorf("jwtx: parse PKCS8: %w", err2)
		}
		rk, ok := priv.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("jwtx: not RSA private key")
		}
		key = rk
	default:
		return nil, fmt.Errorf("jwtx: unsupported PEM type %q", block.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("jwtx: parse RSA key: %w", err)
	}

	return &Signer{
		kid: kid,
		key: key,
		pub: &key.PublicKey,
	}, nil
}

func (s *Signer) Alg() string { return jwt.SigningMethodRS256.Alg() }
func (s *Signer) KID() string { return s.kid }

// Sign takes your claims and turns them into a signed JWT string.
func (s *Signer) Sign(claims IDClaims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

// PublicJWK returns a JWK for inclusion in a JWKS. This is what we publish
// so relying parties can verify our ID tokens.
func (s *Signer) PublicJWK() JWK {
	return NewRSAJWK(s.kid, "sig", jwt.SigningMethodRS256.Alg(), s.pub)
}

// Validate does a quick sanity check to make sure we actually have keys.
func (s *Signer) Validate() error {
	if s.key == nil || s.pub == nil {
		return errors.New("jwtx: nil RSA key")
	}
	return nil
}
