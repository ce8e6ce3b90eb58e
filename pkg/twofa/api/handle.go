package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"
	"github.com/tendant/aitools-idm/pkg/client"
	idmerrors "github.com/tendant/aitools-idm/pkg/errors"
	"github.com/tendant/aitools-idm/pkg/twofa"
)

// TwoFaHandler returns a http.Handler for the 2FA settings API. It expects
// client.AuthUserMiddleware to have run.
func TwoFaHandler(h *Handle) http.Handler {
	r := chi.NewRouter()

	r.Post("/enroll", h.PostEnroll)
	r.Post("/disable", h.PostDisable)
	r.Post("/send-code", h.PostSendCode)
	r.Post("/verify", h.PostVerify)
	r.Post("/regenerate-backup-codes", h.PostRegenerateBackupCodes)
	r.Get("/status", h.GetStatus)

	return r
}

type Handle struct {
	twoFaService twofa.TwoFactorService
}

func NewHandle(twoFaService twofa.TwoFactorService) *Handle {
	return &Handle{twoFaService: twoFaService}
}

type (
	EnrollRequest struct {
		Method         string `json:"method"`
		ChannelAddress string `json:"channelAddress,omitempty"`
		// Secret is optional for totp; a new one is generated when empty.
		Secret string `json:"secret,omitempty"`
	}

	EnrollResponse struct {
		Enabled         bool     `json:"enabled"`
		BackupCodes     []string `json:"backupCodes"`
		ProvisioningURI string   `json:"provisioningURI,omitempty"`
		Secret          string   `json:"secret,omitempty"`
		QRCode          string   `json:"qrCode,omitempty"`
	}

	MethodRequest struct {
		Method string `json:"method"`
	}

	DisableResponse struct {
		Disabled bool `json:"disabled"`
	}

	SendCodeRequest struct {
		Method         string `json:"method"`
		ChannelAddress string `json:"channelAddress,omitempty"`
	}

	SendCodeResponse struct {
		Sent bool `json:"sent"`
	}

	VerifyRequest struct {
		Method string `json:"method"`
		Code   string `json:"code"`
	}

	VerifyResponse struct {
		Valid bool `json:"valid"`
	}

	BackupCodesResponse struct {
		BackupCodes []string `json:"backupCodes"`
	}

	StatusResponse struct {
		EnabledMethods []string `json:"enabledMethods"`
		HasAnyEnabled  bool     `json:"hasAnyEnabled"`
	}
)

// Enroll the current user in a 2FA method
// (POST /enroll)
func (h Handle) PostEnroll(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	data := EnrollRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		idmerrors.Render(w, r, idmerrors.Validation("body", "unable to parse"))
		return
	}
	method, err := twofa.ParseMethod(data.Method)
	if err != nil {
		idmerrors.Render(w, r, err)
		return
	}

	var resp EnrollResponse
	params := twofa.EnableParams{ChannelAddress: data.ChannelAddress, Secret: data.Secret}
	if method == twofa.MethodTOTP && params.Secret == "" {
		secret, err := h.twoFaService.GenerateTotpSecret(r.Context(), user)
		if err != nil {
			idmerrors.Render(w, r, err)
			return
		}
		params.Secret = secret.Secret
		resp.ProvisioningURI = secret.ProvisioningURI
		resp.QRCode = secret.QRCode
	}

	enrollment, err := h.twoFaService.Enable(r.Context(), user, method, params)
	if err != nil {
		idmerrors.Render(w, r, err)
		return
	}
	if err := copier.Copy(&resp, &enrollment); err != nil {
		idmerrors.Render(w, r, idmerrors.InternalWrap(err, "failed to build response"))
		return
	}
	if method == twofa.MethodTOTP {
		resp.Secret = params.Secret
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// Disable a 2FA method for the current user
// (POST /disable)
func (h Handle) PostDisable(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	data := MethodRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		idmerrors.Render(w, r, idmerrors.Validation("body", "unable to parse"))
		return
	}
	method, err := twofa.ParseMethod(data.Method)
	if err != nil {
		idmerrors.Render(w, r, err)
		return
	}

	disabled, err := h.twoFaService.Disable(r.Context(), user.ID, method)
	if err != nil {
		idmerrors.Render(w, r, err)
		return
	}
	if !disabled {
		render.Status(r, http.StatusBadRequest)
	}
	render.JSON(w, r, DisableResponse{Disabled: disabled})
}

// Send a one-time code by email or telegram
// (POST /send-code)
func (h Handle) PostSendCode(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	data := SendCodeRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		idmerrors.Render(w, r, idmerrors.Validation("body", "unable to parse"))
		return
	}
	method, err := twofa.ParseMethod(data.Method)
	if err != nil {
		idmerrors.Render(w, r, err)
		return
	}

	if _, err := h.twoFaService.SendCode(r.Context(), user, method, data.ChannelAddress); err != nil {
		idmerrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, SendCodeResponse{Sent: true})
}

// Verify a second-factor code for the current user
// (POST /verify)
func (h Handle) PostVerify(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	data := VerifyRequest{}
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		idmerrors.Render(w, r, idmerrors.Validation("body", "unable to parse"))
		return
	}
	method, err := twofa.ParseMethod(data.Method)
	if err != nil {
		idmerrors.Render(w, r, err)
		return
	}

	valid, err := h.twoFaService.Verify(r.Context(), user.ID, method, data.Code)
	if err != nil {
		idmerrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, VerifyResponse{Valid: valid})
}

// Replace the backup codes of an enabled method
// (POST /regenerate-backup-codes)
func (h Handle) PostRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	// The body is optional; without a method the oldest enabled one is used.
	data := MethodRequest{}
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &data); err != nil {
			idmerrors.Render(w, r, idmerrors.Validation("body", "unable to parse"))
			return
		}
	}
	var method twofa.Method
	if data.Method != "" {
		parsed, err := twofa.ParseMethod(data.Method)
		if err != nil {
			idmerrors.Render(w, r, err)
			return
		}
		method = parsed
	}

	codes, err := h.twoFaService.RegenerateBackupCodes(r.Context(), user.ID, method)
	if err != nil {
		idmerrors.Render(w, r, err)
		return
	}
	render.JSON(w, r, BackupCodesResponse{BackupCodes: codes})
}

// Report the enabled methods of the current user
// (GET /status)
func (h Handle) GetStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	status, err := h.twoFaService.Status(r.Context(), user.ID)
	if err != nil {
		idmerrors.Render(w, r, err)
		return
	}

	resp := StatusResponse{
		EnabledMethods: make([]string, 0, len(status.EnabledMethods)),
		HasAnyEnabled:  status.HasAnyEnabled,
	}
	for _, m := range status.EnabledMethods {
		resp.EnabledMethods = append(resp.EnabledMethods, string(m))
	}
	render.JSON(w, r, resp)
}

func currentUser(w http.ResponseWriter, r *http.Request) (twofa.User, bool) {
	authUser, ok := client.GetAuthUser(r)
	if !ok {
		slog.Error("Failed to get authenticated user from context")
		idmerrors.Render(w, r, idmerrors.Unauthorized("authentication required"))
		return twofa.User{}, false
	}
	return twofa.User{ID: authUser.UserID, Email: authUser.Email, Name: authUser.Name}, true
}
