package client

import (
	"log/slog"
	"net/http"
	"slices"

	idmerrors "github.com/tendant/aitools-idm/pkg/errors"
)

// RoleAdmin may manage accounts.
const RoleAdmin = "admin"

// RequireRole rejects authenticated users that hold none of roles.
// Must be used after AuthUserMiddleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetAuthUser(r)
			if !ok {
				idmerrors.Render(w, r, idmerrors.Unauthorized("Unauthorized"))
				return
			}
			if !slices.Contains(roles, user.Role) {
				slog.Warn("User lacks required role", "user_id", user.UserID, "role", user.Role, "required", roles)
				idmerrors.Render(w, r, idmerrors.New(idmerrors.ErrCodeForbidden, "Forbidden: insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
