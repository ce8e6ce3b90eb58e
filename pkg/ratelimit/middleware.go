package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/jwtauth/v5"
	idmerrors "github.com/tendant/aitools-idm/pkg/errors"
)

// Config holds HTTP request throttling configuration
type Config struct {
	PerIPEnabled    bool
	PerIPCapacity   int
	PerIPRefillRate float64 // requests per second

	PerUserEnabled    bool
	PerUserCapacity   int
	PerUserRefillRate float64

	// Keyed by "METHOD /path", applied per client IP.
	EndpointLimits map[string]EndpointLimit

	BucketTTL      time.Duration
	IncludeHeaders bool
}

type EndpointLimit struct {
	Capacity   int
	RefillRate float64
}

func DefaultConfig() *Config {
	return &Config{
		PerIPEnabled:    true,
		PerIPCapacity:   100,
		PerIPRefillRate: 100.0 / 60.0,

		PerUserEnabled:    true,
		PerUserCapacity:   200,
		PerUserRefillRate: 200.0 / 60.0,

		BucketTTL:      time.Hour,
		IncludeHeaders: true,
		EndpointLimits: make(map[string]EndpointLimit),
	}
}

// Middleware throttles requests with token buckets per IP, per user and per endpoint.
type Middleware struct {
	config           *Config
	ipLimiter        *RateLimiter
	userLimiter      *RateLimiter
	endpointLimiters map[string]*RateLimiter
}

func NewMiddleware(config *Config) *Middleware {
	if config == nil {
		config = DefaultConfig()
	}

	m := &Middleware{
		config:           config,
		endpointLimiters: make(map[string]*RateLimiter),
	}
	if config.PerIPEnabled {
		m.ipLimiter = NewRateLimiter(config.PerIPCapacity, config.PerIPRefillRate, config.BucketTTL)
	}
	if config.PerUserEnabled {
		m.userLimiter = NewRateLimiter(config.PerUserCapacity, config.PerUserRefillRate, config.BucketTTL)
	}
	for endpoint, limit := range config.EndpointLimits {
		m.endpointLimiters[endpoint] = NewRateLimiter(limit.Capacity, limit.RefillRate, config.BucketTTL)
	}
	return m
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		if m.ipLimiter != nil && ip != "" && !m.ipLimiter.Allow(ip) {
			m.rateLimitExceeded(w, r, "ip")
			return
		}

		userID := getUserID(r)
		if m.userLimiter != nil && userID != "" && !m.userLimiter.Allow(userID) {
			m.rateLimitExceeded(w, r, "user")
			return
		}

		endpointKey := r.Method + " " + r.URL.Path
		if limiter, exists := m.endpointLimiters[endpointKey]; exists {
			if !limiter.Allow(ip + ":" + endpointKey) {
				m.rateLimitExceeded(w, r, "endpoint")
				return
			}
		}

		if m.config.IncludeHeaders {
			if m.ipLimiter != nil {
				w.Header().Set("X-RateLimit-Limit-IP", strconv.Itoa(m.config.PerIPCapacity))
			}
			if m.userLimiter != nil && userID != "" {
				w.Header().Set("X-RateLimit-Limit-User", strconv.Itoa(m.config.PerUserCapacity))
			}
		}

		next.ServeHTTP(w, r)
	})
}

// Stop releases the cleanup goroutines of all limiters.
func (m *Middleware) Stop() {
	for _, l := range m.allLimiters() {
		l.Stop()
	}
}

func (m *Middleware) GetStats() map[string]Stats {
	stats := make(map[string]Stats)
	if m.ipLimiter != nil {
		stats["ip"] = m.ipLimiter.GetStats()
	}
	if m.userLimiter != nil {
		stats["user"] = m.userLimiter.GetStats()
	}
	for endpoint, limiter := range m.endpointLimiters {
		stats["endpoint:"+endpoint] = limiter.GetStats()
	}
	return stats
}

func (m *Middleware) allLimiters() []*RateLimiter {
	var out []*RateLimiter
	if m.ipLimiter != nil {
		out = append(out, m.ipLimiter)
	}
	if m.userLimiter != nil {
		out = append(out, m.userLimiter)
	}
	for _, l := range m.endpointLimiters {
		out = append(out, l)
	}
	return out
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, limitType string) {
	slog.Warn("Rate limit exceeded",
		"type", limitType,
		"ip", getClientIP(r),
		"user", getUserID(r),
		"path", r.URL.Path,
		"method", r.Method,
	)

	w.Header().Set("Retry-After", "60")
	idmerrors.Render(w, r, idmerrors.RateLimitExceeded("60s").WithDetail("type", limitType))
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

func getUserID(r *http.Request) string {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil || claims == nil {
		return ""
	}
	if sub, ok := claims["sub"].(string); ok {
		return sub
	}
	return ""
}
