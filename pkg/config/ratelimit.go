package config

import (
	"time"

	"github.com/tendant/aitools-idm/pkg/ratelimit"
)

// RateLimitConfig contains request throttling and attempt lockout settings.
type RateLimitConfig struct {
	// Per-IP token bucket for every API request
	PerIPEnabled    bool    `env:"RATELIMIT_PER_IP_ENABLED" env-default:"true"`
	PerIPCapacity   int     `env:"RATELIMIT_PER_IP_CAPACITY" env-default:"100"`
	PerIPRefillRate float64 `env:"RATELIMIT_PER_IP_REFILL_RATE" env-default:"1.67"` // tokens per second

	// Per-user token bucket for authenticated requests
	PerUserEnabled    bool    `env:"RATELIMIT_PER_USER_ENABLED" env-default:"true"`
	PerUserCapacity   int     `env:"RATELIMIT_PER_USER_CAPACITY" env-default:"200"`
	PerUserRefillRate float64 `env:"RATELIMIT_PER_USER_REFILL_RATE" env-default:"3.33"`

	// Login and code endpoints, per IP
	LoginCapacity   int     `env:"RATELIMIT_LOGIN_CAPACITY" env-default:"10"`
	LoginRefillRate float64 `env:"RATELIMIT_LOGIN_REFILL_RATE" env-default:"0.167"`

	IncludeHeaders bool `env:"RATELIMIT_INCLUDE_HEADERS" env-default:"true"`

	// Failed password and second factor attempts
	MaxAttempts   int           `env:"LOCKOUT_MAX_ATTEMPTS" env-default:"5"`
	AttemptWindow time.Duration `env:"LOCKOUT_WINDOW" env-default:"15m"`
	BaseLockout   time.Duration `env:"LOCKOUT_BASE_DURATION" env-default:"1m"`
	MaxLockout    time.Duration `env:"LOCKOUT_MAX_DURATION" env-default:"1h"`
}

// ToMiddlewareConfig builds the HTTP throttling config. Each path in
// throttled gets the login bucket.
func (c RateLimitConfig) ToMiddlewareConfig(throttled ...string) *ratelimit.Config {
	cfg := ratelimit.DefaultConfig()
	cfg.PerIPEnabled = c.PerIPEnabled
	cfg.PerIPCapacity = c.PerIPCapacity
	cfg.PerIPRefillRate = c.PerIPRefillRate
	cfg.PerUserEnabled = c.PerUserEnabled
	cfg.PerUserCapacity = c.PerUserCapacity
	cfg.PerUserRefillRate = c.PerUserRefillRate
	cfg.IncludeHeaders = c.IncludeHeaders
	for _, endpoint := range throttled {
		cfg.EndpointLimits[endpoint] = ratelimit.EndpointLimit{
			Capacity:   c.LoginCapacity,
			RefillRate: c.LoginRefillRate,
		}
	}
	return cfg
}

func (c RateLimitConfig) ToAttemptPolicy() ratelimit.AttemptPolicy {
	return ratelimit.AttemptPolicy{
		MaxAttempts: c.MaxAttempts,
		Window:      c.AttemptWindow,
		BaseLockout: c.BaseLockout,
		MaxLockout:  c.MaxLockout,
	}
}

func (c RateLimitConfig) Validate() ValidationErrors {
	errs := CollectErrors(
		RequirePositive("LOCKOUT_MAX_ATTEMPTS", c.MaxAttempts),
		RequirePositiveDuration("LOCKOUT_WINDOW", c.AttemptWindow),
		RequirePositiveDuration("LOCKOUT_BASE_DURATION", c.BaseLockout),
		RequirePositive("RATELIMIT_LOGIN_CAPACITY", c.LoginCapacity),
	)
	if c.MaxLockout < c.BaseLockout {
		errs = append(errs, ValidationError{Field: "LOCKOUT_MAX_DURATION", Message: "must not be shorter than LOCKOUT_BASE_DURATION"})
	}
	if c.PerIPEnabled {
		errs = append(errs, CollectErrors(RequirePositive("RATELIMIT_PER_IP_CAPACITY", c.PerIPCapacity))...)
	}
	if c.PerUserEnabled {
		errs = append(errs, CollectErrors(RequirePositive("RATELIMIT_PER_USER_CAPACITY", c.PerUserCapacity))...)
	}
	return errs
}
