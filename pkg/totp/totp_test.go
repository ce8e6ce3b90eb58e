package totp

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xlzd/gotp"
)

const testSecret = "JBSWY3DPEHPK3PXP"

func TestGenerateSecret(t *testing.T) {
	engine := NewEngine(WithIssuer("AI Tools"))

	secret, err := engine.GenerateSecret("alice@example.com")
	require.NoError(t, err)

	// 20 random bytes encode to 32 base32 characters
	assert.Len(t, secret.Secret, 32)
	assert.True(t, strings.HasPrefix(secret.QRCode, "data:image/png;base64,"))

	u, err := url.Parse(secret.ProvisioningURI)
	require.NoError(t, err)
	assert.Equal(t, "otpauth", u.Scheme)
	assert.Equal(t, "totp", u.Host)
	assert.Contains(t, u.Path, "alice@example.com")
	assert.Equal(t, secret.Secret, u.Query().Get("secret"))
	assert.Equal(t, "AI Tools", u.Query().Get("issuer"))

	t.Run("secrets differ", func(t *testing.T) {
		other, err := engine.GenerateSecret("alice@example.com")
		require.NoError(t, err)
		assert.NotEqual(t, secret.Secret, other.Secret)
	})

	t.Run("account name required", func(t *testing.T) {
		_, err := engine.GenerateSecret("")
		assert.Error(t, err)
	})
}

func TestVerify(t *testing.T) {
	engine := NewEngine()
	now := time.Unix(1700000010, 0) // aligned to a 30s step

	code, err := engine.GenerateCode(testSecret, now)
	require.NoError(t, err)

	t.Run("current code", func(t *testing.T) {
		assert.True(t, engine.Verify(testSecret, code, now))
	})

	t.Run("one step of skew either side", func(t *testing.T) {
		prev, err := engine.GenerateCode(testSecret, now.Add(-30*time.Second))
		require.NoError(t, err)
		next, err := engine.GenerateCode(testSecret, now.Add(30*time.Second))
		require.NoError(t, err)

		assert.True(t, engine.Verify(testSecret, prev, now))
		assert.True(t, engine.Verify(testSecret, next, now))
	})

	t.Run("stale code", func(t *testing.T) {
		old, err := engine.GenerateCode(testSecret, now.Add(-90*time.Second))
		require.NoError(t, err)
		if old != code {
			assert.False(t, engine.Verify(testSecret, old, now))
		}
	})

	t.Run("wrong code", func(t *testing.T) {
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		wrong := fmt.Sprintf("%06d", (n+500000)%1000000)
		assert.False(t, engine.Verify(testSecret, wrong, now))
	})

	t.Run("malformed input fails without error", func(t *testing.T) {
		for _, c := range []string{"", "12345", "1234567", "abcdef", "12 456", "-12345"} {
			assert.False(t, engine.Verify(testSecret, c, now), c)
		}
		assert.False(t, engine.Verify("", code, now))
		assert.False(t, engine.Verify("not base32 !!", code, now))
	})
}

func TestVerifyMatchesIndependentImplementation(t *testing.T) {
	engine := NewEngine()
	secret, err := engine.GenerateSecret("bob@example.com")
	require.NoError(t, err)

	code := gotp.NewDefaultTOTP(secret.Secret).Now()
	assert.True(t, engine.Verify(secret.Secret, code, time.Now()))
}

func TestOptions(t *testing.T) {
	engine := NewEngine(WithIssuer(""), WithPeriod(0), WithSkew(0))
	assert.Equal(t, DefaultIssuer, engine.Issuer())
	assert.Equal(t, uint(DefaultPeriod), engine.period)
	assert.Equal(t, uint(0), engine.skew)

	now := time.Unix(1700000010, 0)
	prev, err := engine.GenerateCode(testSecret, now.Add(-30*time.Second))
	require.NoError(t, err)
	cur, err := engine.GenerateCode(testSecret, now)
	require.NoError(t, err)
	if prev != cur {
		assert.False(t, engine.Verify(testSecret, prev, now))
	}
}

func TestCheckSecret(t *testing.T) {
	e := NewEngine()
	secret, err := e.GenerateSecret("ada@example.com")
	require.NoError(t, err)

	assert.NoError(t, e.CheckSecret(secret.Secret))
	assert.Error(t, e.CheckSecret(""))
	assert.Error(t, e.CheckSecret("not base32!"))
}
