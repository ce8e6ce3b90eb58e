package login

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashers(t *testing.T) {
	hashers := map[string]PasswordHasher{
		"bcrypt":   NewBcryptHasher(bcrypt.MinCost),
		"argon2id": NewArgon2Hasher(),
	}

	for name, h := range hashers {
		t.Run(name, func(t *testing.T) {
			hash, err := h.Hash("correct horse")
			require.NoError(t, err)
			assert.True(t, h.Owns(hash))

			ok, err := h.Verify("correct horse", hash)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = h.Verify("wrong horse", hash)
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = h.Hash("")
			assert.Error(t, err)
		})
	}
}

func TestPasswordManager(t *testing.T) {
	argonHash, err := NewArgon2Hasher().Hash("secret-pass")
	require.NoError(t, err)
	bcryptHash, err := NewBcryptHasher(bcrypt.MinCost).Hash("secret-pass")
	require.NoError(t, err)

	pm := NewPasswordManager(NewBcryptHasher(bcrypt.MinCost))

	t.Run("verifies either format", func(t *testing.T) {
		ok, err := pm.Verify("secret-pass", argonHash)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = pm.Verify("secret-pass", bcryptHash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("hashes with the current hasher", func(t *testing.T) {
		hash, err := pm.Hash("secret-pass")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$2"))
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := pm.Verify("secret-pass", "plaintext")
		assert.ErrorIs(t, err, ErrUnknownHashFormat)
	})

	t.Run("by name", func(t *testing.T) {
		h, err := NewHasher("argon2id")
		require.NoError(t, err)
		assert.IsType(t, &Argon2Hasher{}, h)

		_, err = NewHasher("md5")
		assert.Error(t, err)
	})
}
