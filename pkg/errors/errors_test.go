package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	t.Run("wrapped code is found through fmt.Errorf", func(t *testing.T) {
		err := fmt.Errorf("verify: %w", New(ErrCode2FAInvalid, "invalid second factor"))
		assert.True(t, IsCode(err, ErrCode2FAInvalid))
		assert.Equal(t, ErrCode2FAInvalid, GetCode(err))
	})

	t.Run("plain errors are internal", func(t *testing.T) {
		assert.Equal(t, ErrCodeInternal, GetCode(fmt.Errorf("boom")))
		assert.Nil(t, GetDetails(fmt.Errorf("boom")))
	})

	t.Run("wrap nil returns nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, ErrCodeInternal, "x"))
	})

	t.Run("transport keeps cause", func(t *testing.T) {
		cause := fmt.Errorf("smtp down")
		err := Transport(cause, "Failed to send verification code")
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "smtp down")
	})
}

func TestMapErrorCodeToHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrCodeInvalidInput:       http.StatusBadRequest,
		ErrCode2FANotEnabled:      http.StatusBadRequest,
		ErrCodeInvalidCredentials: http.StatusUnauthorized,
		ErrCode2FAInvalid:         http.StatusUnauthorized,
		ErrCodeRateLimitExceeded:  http.StatusTooManyRequests,
		ErrCodeDeliveryFailed:     http.StatusInternalServerError,
		ErrorCode("SOMETHING"):    http.StatusInternalServerError,
	}
	for code, status := range cases {
		t.Run(string(code), func(t *testing.T) {
			assert.Equal(t, status, MapErrorCodeToHTTPStatus(code))
		})
	}
}

func TestRender(t *testing.T) {
	t.Run("structured error", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/2fa/verify", nil)

		Render(rr, req, RateLimitExceeded("30s"))

		require.Equal(t, http.StatusTooManyRequests, rr.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, ErrCodeRateLimitExceeded, body.Code)
		assert.Equal(t, "30s", body.Details["retry_after"])
	})

	t.Run("unstructured error hides text", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)

		Render(rr, req, fmt.Errorf("pq: password authentication failed"))

		require.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "pq:")
	})
}
