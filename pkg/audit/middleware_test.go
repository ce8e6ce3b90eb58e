package audit

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/aitools-idm/pkg/client"
)

func TestAuditAuthMiddleware(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(Config{Source: "test", Logger: slog.New(slog.NewJSONHandler(&buf, nil))})

	handler := m.AuditAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	userID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/2fa/verify", bytes.NewBufferString(`{"code":"123456"}`))
	req = req.WithContext(client.WithAuthUser(req.Context(), &client.AuthUser{UserID: userID}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test", entry["source"])
	event, ok := entry["event"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, userID.String(), event["user_id"])
	assert.Equal(t, "/api/2fa/verify", event["uri"])
	assert.EqualValues(t, http.StatusBadRequest, event["status"])
	assert.NotContains(t, buf.String(), "123456")
}

func TestAuditAuthMiddleware_Anonymous(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(Config{Logger: slog.New(slog.NewJSONHandler(&buf, nil))})

	handler := m.AuditAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/2fa/status", nil))

	assert.Contains(t, buf.String(), "No jwt token")
	assert.Contains(t, buf.String(), `"source":"idm"`)
}
