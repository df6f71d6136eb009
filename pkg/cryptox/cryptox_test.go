package cryptox_test

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/aussiebroadwan/gatekeep/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	t.Parallel()

	for _, pw := range []string{"password123", "P@ssw0rd!#$%^&*()", strings.Repeat("a", 100), "", "пароль🔒"} {
		hash, err := cryptox.HashPassword(pw)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m="))
		require.NoError(t, cryptox.VerifyPassword(pw, hash))
	}
}

func TestPasswordSaltsDiffer(t *testing.T) {
	t.Parallel()

	a, err := cryptox.HashPassword("same")
	require.NoError(t, err)
	b, err := cryptox.HashPassword("same")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestPasswordMismatch(t *testing.T) {
	t.Parallel()

	hash, err := cryptox.HashPassword("correct-password")
	require.NoError(t, err)

	for _, wrong := range []string{"wrong", "Correct-Password", "correct-password ", ""} {
		require.ErrorIs(t, cryptox.VerifyPassword(wrong, hash), cryptox.ErrMismatch, "input %q", wrong)
	}
}

func TestPasswordBadHash(t *testing.T) {
	t.Parallel()

	bad := map[string]string{
		"empty":        "",
		"bcrypt":       "$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"short":        "$argon2id$v=19$m=19456",
		"params":       "$argon2id$v=19$invalid$c2FsdA$aGFzaA",
		"salt":         "$argon2id$v=19$m=19456,t=2,p=1$!!!$aGFzaA",
		"hash":         "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$!!!",
		"old version":  "$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		"leading junk": "x$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
	}
	for name, h := range bad {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, cryptox.VerifyPassword("pw", h), cryptox.ErrInvalidFormat)
		})
	}
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	a, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	require.Len(t, a, 43)

	b, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	_, err = cryptox.GenerateToken(0)
	require.Error(t, err)
}

func TestFingerprintIsStable(t *testing.T) {
	t.Parallel()

	require.Equal(t, cryptox.FingerprintToken("abc"), cryptox.FingerprintToken("abc"))
	require.NotEqual(t, cryptox.FingerprintToken("abc"), cryptox.FingerprintToken("abd"))
	require.Len(t, cryptox.FingerprintToken("abc"), 43)
}

func TestGenerateEd25519Key(t *testing.T) {
	t.Parallel()

	pemBytes, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	block, _ := pem.Decode(pemBytes)
	require.NotNil(t, block)
	require.Equal(t, "PRIVATE KEY", block.Type)

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	require.NoError(t, err)
	require.IsType(t, ed25519.PrivateKey{}, key)
}
