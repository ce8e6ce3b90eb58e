package client

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	idmerrors "github.com/tendant/aitools-idm/pkg/errors"
)

// AuthUser is the caller identity resolved from a verified session token.
type AuthUser struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email,omitempty"`
	Name   string    `json:"name,omitempty"`
	Role   string    `json:"role,omitempty"`
}

func (i AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user_id", i.UserID.String()),
		slog.String("role", i.Role),
	)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "aitools context value " + k.name
}

const ACCESS_TOKEN_NAME = "access_token"

var AuthUserKey = &contextKey{"AuthUser"}

// WithAuthUser returns ctx carrying user.
func WithAuthUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, AuthUserKey, user)
}

// GetAuthUser returns the user stored by AuthUserMiddleware.
func GetAuthUser(r *http.Request) (*AuthUser, bool) {
	user, ok := r.Context().Value(AuthUserKey).(*AuthUser)
	return user, ok && user != nil
}

// AuthUserMiddleware turns the claims left by Verifier into an AuthUser.
// Requests without a valid token are rejected with 401.
func AuthUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			slog.Debug("missing or invalid JWT", "err", err)
			idmerrors.Render(w, r, idmerrors.Unauthorized("missing or invalid token"))
			return
		}

		sub, _ := claims["sub"].(string)
		userID, err := uuid.Parse(sub)
		if err != nil {
			slog.Warn("token subject is not a user id", "sub", sub)
			idmerrors.Render(w, r, idmerrors.Unauthorized("invalid token subject"))
			return
		}

		authUser := &AuthUser{UserID: userID}
		authUser.Email, _ = claims["email"].(string)
		authUser.Name, _ = claims["name"].(string)
		authUser.Role, _ = claims["role"].(string)

		slog.Debug("authenticated user", "user", authUser)
		next.ServeHTTP(w, r.WithContext(WithAuthUser(r.Context(), authUser)))
	})
}

func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return jwtauth.Verify(ja, jwtauth.TokenFromHeader, TokenFromCookie)
}

func TokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(ACCESS_TOKEN_NAME)
	if err != nil {
		return ""
	}
	return cookie.Value
}

