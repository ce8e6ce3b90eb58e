package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"
	idmerrors "github.com/tendant/aitools-idm/pkg/errors"
	"github.com/tendant/aitools-idm/pkg/login"
	"github.com/tendant/aitools-idm/pkg/tokengenerator"
)

// LoginHandler returns a http.Handler for the login API.
func LoginHandler(h *Handle) http.Handler {
	r := chi.NewRouter()

	r.Post("/login", h.PostLogin)
	r.Post("/login/send-code", h.PostSendCode)
	r.Post("/logout", h.PostLogout)

	return r
}

type Handle struct {
	loginService *login.LoginService
	cookieSetter tokengenerator.CookieSetter
}

// NewHandle creates a Handle. cookieSetter may be nil, in which case the
// token is only returned in the body.
func NewHandle(loginService *login.LoginService, cookieSetter tokengenerator.CookieSetter) *Handle {
	return &Handle{
		loginService: loginService,
		cookieSetter: cookieSetter,
	}
}

type (
	LoginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Code     string `json:"code,omitempty"`
		Method   string `json:"method,omitempty"`
	}

	UserResponse struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
		Role  string `json:"role"`
	}

	LoginResponse struct {
		Token     string       `json:"token"`
		ExpiresAt time.Time    `json:"expiresAt"`
		User      UserResponse `json:"user"`
	}

	SecondFactorResponse struct {
		RequiresSecondFactor bool     `json:"requiresSecondFactor"`
		AvailableMethods     []string `json:"availableMethods"`
	}

	SendCodeRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Method   string `json:"method"`
	}

	SendCodeResponse struct {
		Sent bool `json:"sent"`
	}
)

// Sign in with email, password and optionally a second factor
// (POST /login)
func (h Handle) PostLogin(w http.ResponseWriter, r *http.Request) {
	data := LoginRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		idmerrors.Render(w, r, idmerrors.Validation("body", "unable to parse"))
		return
	}

	var req login.LoginRequest
	if err := copier.Copy(&req, &data); err != nil {
		idmerrors.Render(w, r, idmerrors.InternalWrap(err, "failed to read request"))
		return
	}

	result, err := h.loginService.Authenticate(r.Context(), req)
	if err != nil {
		idmerrors.Render(w, r, err)
		return
	}

	if result.RequiresSecondFactor {
		resp := SecondFactorResponse{RequiresSecondFactor: true, AvailableMethods: make([]string, 0, len(result.AvailableMethods))}
		for _, m := range result.AvailableMethods {
			resp.AvailableMethods = append(resp.AvailableMethods, string(m))
		}
		render.JSON(w, r, resp)
		return
	}

	if h.cookieSetter != nil {
		if err := h.cookieSetter.SetCookie(w, tokengenerator.ACCESS_TOKEN_NAME, result.Token, result.ExpiresAt); err != nil {
			idmerrors.Render(w, r, idmerrors.InternalWrap(err, "failed to set cookie"))
			return
		}
	}

	resp := LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User: UserResponse{
			ID:    result.User.ID.String(),
			Email: result.User.Email,
			Name:  result.User.Name,
			Role:  result.User.Role,
		},
	}
	render.JSON(w, r, resp)
}

// Send an email or telegram code while a login waits for its second factor
// (POST /login/send-code)
func (h Handle) PostSendCode(w http.ResponseWriter, r *http.Request) {
	data := SendCodeRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		idmerrors.Render(w, r, idmerrors.Validation("body", "unable to parse"))
		return
	}

	if err := h.loginService.SendLoginCode(r.Context(), data.Email, data.Password, data.Method); err != nil {
		idmerrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, SendCodeResponse{Sent: true})
}

// Clear the session cookie (POST /logout)
func (h Handle) PostLogout(w http.ResponseWriter, r *http.Request) {
	if h.cookieSetter != nil {
		if err := h.cookieSetter.ClearCookie(w, tokengenerator.ACCESS_TOKEN_NAME); err != nil {
			idmerrors.Render(w, r, idmerrors.InternalWrap(err, "failed to clear cookie"))
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
