package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/shopauth/pkg/cryptox"
	"github.com/aussiebroadwan/shopauth/pkg/idx"
	"github.com/aussiebroadwan/shopauth/pkg/jwtx"
)

// InitSigningKey loads or generates the RSA key that signs our ID tokens.
//
// With AUTH_SIGNING_KEY_FILE set, the PEM key is read from disk and tokens
// survive restarts. Without it an ephemeral key is generated on startup,
// which invalidates every previously issued ID token.
func InitSigningKey(cfg Config, logger *slog.Logger) (*jwtx.Signer, error) {
	kid := cfg.SigningKeyID
	if kid == "" {
		kid = idx.New().String()
	}

	if cfg.SigningKeyFile != "" {
		pemKey, err := os.ReadFile(cfg.SigningKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read signing key: %w", err)
		}

		signer, err := jwtx.NewSignerRS256(kid, pemKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load signing key: %w", err)
		}

		logger.Info("signing key loaded", "kid", kid, "path", cfg.SigningKeyFile)
		return signer, nil
	}

	pemKey, err := cryptox.GenerateRSAKey(2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	signer, err := jwtx.NewSignerRS256(kid, pemKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signing key: %w", err)
	}

	logger.Info("generated ephemeral signing key", "kid", kid)
	logger.Warn("all previously issued ID tokens are now invalid")
	return signer, nil
}
