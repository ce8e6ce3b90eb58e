package client

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-jwt-secret-key")

func createTestToken(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	ja := jwtauth.New("HS256", testSecret, nil)
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	_, token, err := ja.Encode(claims)
	require.NoError(t, err)
	return token
}

func newTestRouter(handler http.HandlerFunc, middlewares ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(Verifier(jwtauth.New("HS256", testSecret, nil)))
	r.Use(AuthUserMiddleware)
	r.With(middlewares...).Get("/", handler)
	return r
}

func TestAuthUserMiddleware(t *testing.T) {
	userID := uuid.New()

	testCases := []struct {
		name           string
		token          func(t *testing.T) string
		useCookie      bool
		expectedStatus int
	}{
		{
			name: "valid bearer token",
			token: func(t *testing.T) string {
				return createTestToken(t, map[string]interface{}{"sub": userID.String(), "email": "a@example.com", "role": "user"})
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "valid cookie token",
			token: func(t *testing.T) string {
				return createTestToken(t, map[string]interface{}{"sub": userID.String(), "email": "a@example.com"})
			},
			useCookie:      true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing token",
			token:          func(t *testing.T) string { return "" },
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "expired token",
			token: func(t *testing.T) string {
				return createTestToken(t, map[string]interface{}{"sub": userID.String(), "exp": time.Now().Add(-time.Hour).Unix()})
			},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name: "subject is not a uuid",
			token: func(t *testing.T) string {
				return createTestToken(t, map[string]interface{}{"sub": "alice"})
			},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got *AuthUser
			router := newTestRouter(func(w http.ResponseWriter, r *http.Request) {
				got, _ = GetAuthUser(r)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if token := tc.token(t); token != "" {
				if tc.useCookie {
					req.AddCookie(&http.Cookie{Name: ACCESS_TOKEN_NAME, Value: token})
				} else {
					req.Header.Set("Authorization", "Bearer "+token)
				}
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.expectedStatus, rec.Code)
			if tc.expectedStatus == http.StatusOK {
				require.NotNil(t, got)
				assert.Equal(t, userID, got.UserID)
				assert.Equal(t, "a@example.com", got.Email)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	router := newTestRouter(ok, RequireRole(RoleAdmin))

	t.Run("admin allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+createTestToken(t, map[string]interface{}{"sub": uuid.NewString(), "role": "admin"}))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("user forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+createTestToken(t, map[string]interface{}{"sub": uuid.NewString(), "role": "user"}))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
