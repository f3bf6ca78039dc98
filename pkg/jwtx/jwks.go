package jwtx

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
)

// ErrInvalidKeyMaterial reports a JWK that cannot be converted into a usable
// public key (unsupported kty, missing parameters, malformed encodings).
var ErrInvalidKeyMaterial = errors.New("jwtx: invalid key material")

// JWK represents a public key in JSON Web Key format (RFC 7517).
// We only deal in RS256 here: identity providers we federate with sign
// with RSA, and so do we.
type JWK struct {
	Kty string `json:"kty"`           // key type: "RSA"
	Use string `json:"use,omitempty"` // what we use it for: "sig"
	Alg string `json:"alg,omitempty"` // algorithm: "RS256"
	Kid string `json:"kid,omitempty"` // key ID

	// RSA modulus and exponent (base64url, no padding)
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`

	// X5c is an optional certificate chain. Some providers publish the
	// raw SubjectPublicKeyInfo as the first chain element instead of
	// n/e pairs, so we accept it as an alternate encoding.
	X5c []string `json:"x5c,omitempty"`
}

// JWKS is a JSON Web Key Set (RFC 7517).
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// NewRSAJWK builds a JWK for an RSA public key.
func NewRSAJWK(kid, use, alg string, pub *rsa.PublicKey) JWK {
	return JWK{
		Kty: "RSA",
		Use: use,
		Alg: alg,
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}

// PublicKey converts the JWK into a crypto public key usable for signature
// verification. Two encodings are supported:
//
//   - an x5c chain, whose first element is wrapped as a PEM public key block
//     directly (no certificate parsing), then decoded as PKIX;
//   - an RSA key with raw n/e components.
//
// Anything else fails with ErrInvalidKeyMaterial.
func (j JWK) PublicKey() (*rsa.PublicKey, error) {
	if len(j.X5c) > 0 && j.X5c[0] != "" {
		der, err := base64.StdEncoding.DecodeString(j.X5c[0])
		if err != nil {
			return nil, fmt.Errorf("%w: bad x5c encoding: %v", ErrInvalidKeyMaterial, err)
		}
		pub, err := x509.ParsePKIXPublicKey(der)
		if err != nil {
			return nil, fmt.Errorf("%w: x5c is not a public key: %v", ErrInvalidKeyMaterial, err)
		}
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: x5c is not an RSA key", ErrInvalidKeyMaterial)
		}
		return rsaPub, nil
	}

	if j.Kty == "RSA" && j.N != "" && j.E != "" {
		nb, err := base64.RawURLEncoding.DecodeString(j.N)
		if err != nil {
			return nil, fmt.Errorf("%w: bad modulus encoding: %v", ErrInvalidKeyMaterial, err)
		}
		eb, err := base64.RawURLEncoding.DecodeString(j.E)
		if err != nil {
			return nil, fmt.Errorf("%w: bad exponent encoding: %v", ErrInvalidKeyMaterial, err)
		}
		n := new(big.Int).SetBytes(nb)
		e := new(big.Int).SetBytes(eb).Int64()
		return &rsa.PublicKey{N: n, E: int(e)}, nil
	}

	return nil, fmt.Errorf("%w: missing parameters for conversion", ErrInvalidKeyMaterial)
}

// PEM converts the JWK to PEM format for use with external tooling.
func (j JWK) PEM() (string, error) {
	publicKey, err := j.PublicKey()
	if err != nil {
		return "", err
	}

	derBytes, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return "", err
	}

	pemBlock := &pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: derBytes,
	}

	return string(pem.EncodeToMemory(pemBlock)), nil
}
