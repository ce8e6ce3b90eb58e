package twofa

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAESSecretCipher(t *testing.T) {
	c, err := NewAESSecretCipher("test-encryption-key")
	require.NoError(t, err)

	t.Run("seal and open", func(t *testing.T) {
		sealed, err := c.Seal("JBSWY3DPEHPK3PXP")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(sealed, sealedPrefix))
		assert.NotContains(t, sealed, "JBSWY3DPEHPK3PXP")

		opened, err := c.Open(sealed)
		require.NoError(t, err)
		assert.Equal(t, "JBSWY3DPEHPK3PXP", opened)
	})

	t.Run("nonce differs per seal", func(t *testing.T) {
		a, err := c.Seal("secret")
		require.NoError(t, err)
		b, err := c.Seal("secret")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("plaintext passes through", func(t *testing.T) {
		opened, err := c.Open("JBSWY3DPEHPK3PXP")
		require.NoError(t, err)
		assert.Equal(t, "JBSWY3DPEHPK3PXP", opened)
	})

	t.Run("wrong key fails", func(t *testing.T) {
		sealed, err := c.Seal("secret")
		require.NoError(t, err)
		other, err := NewAESSecretCipher("another-key")
		require.NoError(t, err)
		_, err = other.Open(sealed)
		assert.Error(t, err)
	})

	t.Run("empty key rejected", func(t *testing.T) {
		_, err := NewAESSecretCipher("")
		assert.Error(t, err)
	})
}
