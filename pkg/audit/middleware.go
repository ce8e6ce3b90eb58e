// Package audit provides middleware for auditing HTTP requests
package audit

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/tendant/aitools-idm/pkg/client"
)

// Config holds the configuration for the audit middleware
type Config struct {
	// Source is attached to every event
	Source string
	// Logger receives the events. Defaults to slog.Default().
	Logger *slog.Logger
}

// Middleware handles HTTP request auditing
type Middleware struct {
	config Config
}

func NewMiddleware(config Config) *Middleware {
	if config.Source == "" {
		config.Source = "idm"
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Middleware{config: config}
}

// AuditEvent is one audited request. Request bodies are never recorded, so
// codes and secrets stay out of the trail.
type AuditEvent struct {
	UserID    uuid.UUID
	URI       string
	Method    string
	Status    int
	Message   string
	Timestamp time.Time
	Duration  time.Duration
}

func (e AuditEvent) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("method", e.Method),
		slog.String("uri", e.URI),
		slog.Int("status", e.Status),
		slog.Time("timestamp", e.Timestamp),
		slog.Duration("duration", e.Duration),
	}
	if e.UserID != uuid.Nil {
		attrs = append(attrs, slog.String("user_id", e.UserID.String()))
	}
	if e.Message != "" {
		attrs = append(attrs, slog.String("message", e.Message))
	}
	return slog.GroupValue(attrs...)
}

// AuditAuthMiddleware records every request that reaches it together with
// the caller resolved by client.AuthUserMiddleware and the response status.
func (m *Middleware) AuditAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		event := AuditEvent{
			URI:       r.RequestURI,
			Method:    r.Method,
			Timestamp: time.Now(),
		}
		if user, ok := client.GetAuthUser(r); ok {
			event.UserID = user.UserID
		} else {
			event.Message = "No jwt token"
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		event.Status = ww.Status()
		if event.Status == 0 {
			event.Status = http.StatusOK
		}
		event.Duration = time.Since(event.Timestamp)
		m.config.Logger.Info("audit", "source", m.config.Source, "event", event)
	})
}
