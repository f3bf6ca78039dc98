package cryptox_test

import (
	"testing"

	"github.com/aussiebroadwan/shopauth/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	t.Run("rejects non-positive sizes", func(t *testing.T) {
		_, err := cryptox.GenerateToken(0)
		require.Error(t, err)

		_, err = cryptox.GenerateToken(-1)
		require.Error(t, err)
	})

	t.Run("produces url-safe tokens of expected length", func(t *testing.T) {
		token, err := cryptox.GenerateToken(cryptox.TokenSize256)
		require.NoError(t, err)
		require.Len(t, token, 43) // 32 bytes base64url, no padding
		require.NotContains(t, token, "+")
		require.NotContains(t, token, "/")
		require.NotContains(t, token, "=")
	})

	t.Run("successive tokens differ", func(t *testing.T) {
		a, err := cryptox.GenerateToken(cryptox.TokenSize128)
		require.NoError(t, err)
		b, err := cryptox.GenerateToken(cryptox.TokenSize128)
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})
}

func TestFingerprintToken(t *testing.T) {
	fp1 := cryptox.FingerprintToken("secret-value")
	fp2 := cryptox.FingerprintToken("secret-value")
	fp3 := cryptox.FingerprintToken("other-value")

	require.Equal(t, fp1, fp2, "fingerprint must be deterministic")
	require.NotEqual(t, fp1, fp3)
	require.Len(t, fp1, 43) // SHA-256 base64url, no padding
}
