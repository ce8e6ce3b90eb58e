package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMiddleware_EndpointLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EndpointLimits["POST /api/auth/login"] = EndpointLimit{Capacity: 2, RefillRate: 0.001}
	m := NewMiddleware(cfg)
	defer m.Stop()

	handler := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(method, path, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = ip + ":5555"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/auth/login", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/auth/login", "10.0.0.1").Code)

	rr := do(http.MethodPost, "/api/auth/login", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), "RATE_LIMIT_EXCEEDED")

	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/auth/login", "10.0.0.2").Code, "other IPs unaffected")
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/2fa/status", "10.0.0.1").Code, "other endpoints unaffected")
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:1234"
	assert.Equal(t, "192.168.1.5", getClientIP(req))

	req.Header.Set("X-Real-IP", "10.1.1.1")
	assert.Equal(t, "10.1.1.1", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", getClientIP(req))
}
