package config

import "time"

// TwoFAConfig holds second factor settings
type TwoFAConfig struct {
	Enabled bool          `env:"TWOFA_ENABLED" env-default:"true"`
	Issuer  string        `env:"TWOFA_ISSUER" env-default:"aitools-idm"`
	CodeTTL time.Duration `env:"TWOFA_CODE_TTL" env-default:"10m"`
	AppName string        `env:"TWOFA_APP_NAME" env-default:"AI Tools"`
	// Encrypts totp secrets at rest. Empty stores them as given.
	EncryptionKey string `env:"TWOFA_ENCRYPTION_KEY"`
}

func (t TwoFAConfig) Validate() ValidationErrors {
	if !t.Enabled {
		return nil
	}
	return CollectErrors(
		RequireNonEmpty("TWOFA_ISSUER", t.Issuer),
		RequirePositiveDuration("TWOFA_CODE_TTL", t.CodeTTL),
		WhenSet(t.EncryptionKey, func() *ValidationError {
			return RequireMinLength("TWOFA_ENCRYPTION_KEY", t.EncryptionKey, 16)
		}),
	)
}
