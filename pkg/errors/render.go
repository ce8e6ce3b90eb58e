package errors

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

// ErrorResponse is the JSON body written for a failed request.
type ErrorResponse struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Render writes err as a JSON error response. Errors without a code are
// reported as internal errors and their text is not sent to the client.
func Render(w http.ResponseWriter, r *http.Request, err error) {
	var e *Error
	if !As(err, &e) {
		slog.Error("Unhandled error", "err", err, "path", r.URL.Path)
		e = Internal("internal server error")
	} else if e.Code == ErrCodeInternal && e.Err != nil {
		slog.Error("Internal error", "err", e.Err, "message", e.Message, "path", r.URL.Path)
	}

	render.Status(r, e.HTTPStatusCode())
	render.JSON(w, r, ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
