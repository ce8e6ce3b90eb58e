package totp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	DefaultIssuer = "AI Tools"
	DefaultPeriod = 30
	DefaultSkew   = 1
	SecretSize    = 20
	QRCodeSize    = 200
)

// Secret is a freshly generated enrollment secret. Nothing is persisted.
type Secret struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
	QRCode          string `json:"qr_code,omitempty"` // PNG data URL of ProvisioningURI
}

// Engine generates and verifies time-based one-time passwords.
type Engine struct {
	issuer    string
	period    uint
	skew      uint
	digits    otp.Digits
	algorithm otp.Algorithm
}

type Option func(*Engine)

func WithIssuer(issuer string) Option {
	return func(e *Engine) {
		if issuer != "" {
			e.issuer = issuer
		}
	}
}

func WithPeriod(seconds uint) Option {
	return func(e *Engine) {
		if seconds > 0 {
			e.period = seconds
		}
	}
}

func WithSkew(skew uint) Option {
	return func(e *Engine) {
		e.skew = skew
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		issuer:    DefaultIssuer,
		period:    DefaultPeriod,
		skew:      DefaultSkew,
		digits:    otp.DigitsSix,
		algorithm: otp.AlgorithmSHA1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Issuer() string {
	return e.issuer
}

// GenerateSecret creates a random shared secret and the otpauth:// URI an
// authenticator app needs to enroll it.
func (e *Engine) GenerateSecret(accountName string) (Secret, error) {
	if accountName == "" {
		return Secret{}, fmt.Errorf("account name is required")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: accountName,
		Period:      e.period,
		SecretSize:  SecretSize,
		Digits:      e.digits,
		Algorithm:   e.algorithm,
	})
	if err != nil {
		slog.Error("Failed to generate totp secret", "issuer", e.issuer, "err", err)
		return Secret{}, fmt.Errorf("failed to generate totp secret: %w", err)
	}

	qr, err := qrCodeDataURL(key)
	if err != nil {
		// The URI alone is enough to enroll, so a broken image is not fatal.
		slog.Warn("Failed to render totp qr code", "err", err)
	}

	return Secret{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		QRCode:          qr,
	}, nil
}

// Verify reports whether code is valid for secret at now, allowing the
// configured number of time steps of clock skew either side. Malformed codes
// and undecodable secrets fail verification rather than returning an error.
func (e *Engine) Verify(secret, code string, now time.Time) bool {
	if secret == "" || !isDigits(code, e.digits.Length()) {
		return false
	}

	valid, err := totp.ValidateCustom(code, secret, now.UTC(), e.validateOpts())
	if err != nil {
		slog.Warn("Failed to validate totp passcode", "err", err)
		return false
	}
	return valid
}

// CheckSecret returns an error when secret cannot be used as a totp key.
func (e *Engine) CheckSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("secret is empty")
	}
	_, err := e.GenerateCode(secret, time.Now())
	return err
}

// GenerateCode returns the code for secret at t.
func (e *Engine) GenerateCode(secret string, t time.Time) (string, error) {
	code, err := totp.GenerateCodeCustom(secret, t.UTC(), e.validateOpts())
	if err != nil {
		return "", fmt.Errorf("failed to generate totp code: %w", err)
	}
	return code, nil
}

func (e *Engine) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    e.period,
		Skew:      e.skew,
		Digits:    e.digits,
		Algorithm: e.algorithm,
	}
}

func qrCodeDataURL(key *otp.Key) (string, error) {
	img, err := key.Image(QRCodeSize, QRCodeSize)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func isDigits(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
