package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	idmerrors "github.com/tendant/aitools-idm/pkg/errors"
)

// AdminHandler returns the account management routes. The caller must
// restrict them to administrators.
func AdminHandler(h *Handle) http.Handler {
	r := chi.NewRouter()
	r.Post("/users", h.PostCreateUser)
	return r
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

// Create an account (POST /users)
func (h Handle) PostCreateUser(w http.ResponseWriter, r *http.Request) {
	data := CreateUserRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		idmerrors.Render(w, r, idmerrors.Validation("body", "unable to parse"))
		return
	}

	user, err := h.loginService.CreateUser(r.Context(), data.Email, data.Name, data.Role, data.Password)
	if err != nil {
		idmerrors.Render(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, UserResponse{
		ID:    user.ID.String(),
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
	})
}
