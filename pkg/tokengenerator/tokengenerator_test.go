package tokengenerator

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJwtTokenGenerator(t *testing.T) {
	subject := Subject{UserID: uuid.New(), Email: "ada@example.com", Name: "Ada", Role: "admin"}
	g := NewJwtTokenGenerator("test-secret", WithIssuer("aitools"), WithExpiry(time.Hour))

	token, expiresAt, err := g.GenerateToken(subject)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	t.Run("round trip", func(t *testing.T) {
		claims, err := g.ParseToken(token)
		require.NoError(t, err)
		assert.Equal(t, subject.UserID.String(), claims.Subject)
		assert.Equal(t, "ada@example.com", claims.Email)
		assert.Equal(t, "admin", claims.Role)
		assert.Equal(t, "aitools", claims.Issuer)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewJwtTokenGenerator("other").ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewJwtTokenGenerator("test-secret", WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) }))
		_, err := later.ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("readable by jwtauth", func(t *testing.T) {
		ja := jwtauth.New("HS256", []byte("test-secret"), nil)
		parsed, err := jwtauth.VerifyToken(ja, token)
		require.NoError(t, err)
		assert.Equal(t, subject.UserID.String(), parsed.Subject())
		email, _ := parsed.Get("email")
		assert.Equal(t, "ada@example.com", email)
	})
}

func TestCookieSetter(t *testing.T) {
	setter := NewCookieSetter(true, true)
	rec := httptest.NewRecorder()
	expire := time.Now().Add(time.Hour)

	require.NoError(t, setter.SetCookie(rec, ACCESS_TOKEN_NAME, "tok", expire))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, ACCESS_TOKEN_NAME, cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)

	rec = httptest.NewRecorder()
	require.NoError(t, setter.ClearCookie(rec, ACCESS_TOKEN_NAME))
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}
