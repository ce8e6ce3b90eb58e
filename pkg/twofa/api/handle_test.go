package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/aitools-idm/pkg/client"
	"github.com/tendant/aitools-idm/pkg/notification"
	"github.com/tendant/aitools-idm/pkg/twofa"
)

type testServer struct {
	handler http.Handler
	mailer  *notification.MockNotifier
	user    *client.AuthUser
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mailer := &notification.MockNotifier{}
	nm, err := notification.NewNotificationManagerWithOptions(
		notification.WithNotifier(notification.EmailSystem, mailer),
		notification.WithDefaultTemplates(),
	)
	require.NoError(t, err)

	svc := twofa.NewService(twofa.NewInMemTwoFARepository(), twofa.WithSender(nm))
	return &testServer{
		handler: TwoFaHandler(NewHandle(svc)),
		mailer:  mailer,
		user:    &client.AuthUser{UserID: uuid.New(), Email: "ada@example.com", Name: "Ada"},
	}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if s.user != nil {
		req = req.WithContext(client.WithAuthUser(req.Context(), s.user))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestEnrollTotp(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/enroll", EnrollRequest{Method: "totp"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[EnrollResponse](t, rec)
	assert.True(t, resp.Enabled)
	assert.Len(t, resp.BackupCodes, twofa.BackupCodeCount)
	assert.NotEmpty(t, resp.Secret)
	assert.True(t, strings.HasPrefix(resp.ProvisioningURI, "otpauth://totp/"))
	assert.True(t, strings.HasPrefix(resp.QRCode, "data:image/png;base64,"))

	status := decode[StatusResponse](t, s.do(t, http.MethodGet, "/status", nil))
	assert.Equal(t, []string{"totp"}, status.EnabledMethods)
	assert.True(t, status.HasAnyEnabled)
}

func TestEnrollEmailHasNoSecret(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/enroll", EnrollRequest{Method: "email"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[EnrollResponse](t, rec)
	assert.Empty(t, resp.Secret)
	assert.Empty(t, resp.ProvisioningURI)
	assert.Len(t, resp.BackupCodes, twofa.BackupCodeCount)
}

func TestEnrollValidation(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/enroll", EnrollRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/enroll", EnrollRequest{Method: "telegram"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "telegram needs a chat id")

	rec = s.do(t, http.MethodPost, "/enroll", EnrollRequest{Method: "sms"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDisable(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/disable", MethodRequest{Method: "email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decode[DisableResponse](t, rec).Disabled)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/enroll", EnrollRequest{Method: "email"}).Code)

	rec = s.do(t, http.MethodPost, "/disable", MethodRequest{Method: "email"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[DisableResponse](t, rec).Disabled)
}

func TestSendCodeAndVerify(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/enroll", EnrollRequest{Method: "email"}).Code)

	rec := s.do(t, http.MethodPost, "/send-code", SendCodeRequest{Method: "email"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[SendCodeResponse](t, rec).Sent)
	assert.NotContains(t, rec.Body.String(), "code\"", "the code is never echoed back")

	sent := s.mailer.Sent()
	require.Len(t, sent, 1)
	code := sent[0].Data["Code"]

	rec = s.do(t, http.MethodPost, "/verify", VerifyRequest{Method: "email", Code: code})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[VerifyResponse](t, rec).Valid)

	rec = s.do(t, http.MethodPost, "/verify", VerifyRequest{Method: "email", Code: code})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[VerifyResponse](t, rec).Valid)

	rec = s.do(t, http.MethodPost, "/verify", VerifyRequest{Method: "email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendCodeTransportFailure(t *testing.T) {
	s := newTestServer(t)
	s.mailer.Err = assert.AnError

	rec := s.do(t, http.MethodPost, "/send-code", SendCodeRequest{Method: "email"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Failed to send verification code")
}

func TestRegenerateBackupCodes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/regenerate-backup-codes", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No 2FA enabled")

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/enroll", EnrollRequest{Method: "email"}).Code)

	rec = s.do(t, http.MethodPost, "/regenerate-backup-codes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[BackupCodesResponse](t, rec).BackupCodes, twofa.BackupCodeCount)

	rec = s.do(t, http.MethodPost, "/regenerate-backup-codes", MethodRequest{Method: "email"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequiresAuthenticatedUser(t *testing.T) {
	s := newTestServer(t)
	s.user = nil

	rec := s.do(t, http.MethodGet, "/status", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
