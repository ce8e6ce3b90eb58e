package config

import "time"

// JWTConfig holds session token and cookie configuration
type JWTConfig struct {
	Secret            string        `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer            string        `env:"JWT_ISSUER" env-default:"aitools-idm"`
	AccessTokenExpiry time.Duration `env:"ACCESS_TOKEN_EXPIRY" env-default:"24h"`
	CookieHttpOnly    bool          `env:"COOKIE_HTTP_ONLY" env-default:"true"`
	CookieSecure      bool          `env:"COOKIE_SECURE" env-default:"true"`
}

func (j JWTConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequireMinLength("JWT_SECRET", j.Secret, 16),
		RequirePositiveDuration("ACCESS_TOKEN_EXPIRY", j.AccessTokenExpiry),
	)
}
