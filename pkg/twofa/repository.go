package twofa

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	idmerrors "github.com/tendant/aitools-idm/pkg/errors"
	"github.com/tendant/aitools-idm/pkg/notification"
)

// Method is a second-factor method kind.
type Method string

const (
	MethodEmail    Method = "email"
	MethodTelegram Method = "telegram"
	MethodTOTP     Method = "totp"

	// legacyTOTPName is accepted from older clients.
	legacyTOTPName = "google_authenticator"
)

// Methods lists every supported method.
var Methods = []Method{MethodEmail, MethodTelegram, MethodTOTP}

// ParseMethod normalizes s into a Method.
func ParseMethod(s string) (Method, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return "", idmerrors.Validation("method", "is required")
	case string(MethodEmail), string(MethodTelegram), string(MethodTOTP):
		return Method(s), nil
	case legacyTOTPName:
		return MethodTOTP, nil
	default:
		return "", idmerrors.Validation("method", "must be one of email, telegram, totp")
	}
}

// IsChannel reports whether codes for m are delivered out of band.
func (m Method) IsChannel() bool {
	return m == MethodEmail || m == MethodTelegram
}

func (m Method) notificationSystem() notification.NotificationSystem {
	if m == MethodTelegram {
		return notification.TelegramSystem
	}
	return notification.EmailSystem
}

// User identifies the account an operation applies to. The caller resolves
// it from the session; the 2FA core never looks up a current user itself.
type User struct {
	ID    uuid.UUID
	Email string
	Name  string
}

// Enrollment is one enabled method for one user. At most one exists per
// (UserID, Method).
type Enrollment struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	Method         Method    `json:"method"`
	Secret         string    `json:"secret,omitempty"`          // totp only
	ChannelAddress string    `json:"channel_address,omitempty"` // telegram chat id
	Enabled        bool      `json:"enabled"`
	BackupCodes    []string  `json:"backup_codes"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// OneTimeCode is a code delivered by email or telegram.
type OneTimeCode struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Method    Method    `json:"method"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Consumed  bool      `json:"consumed"`
	CreatedAt time.Time `json:"created_at"`
}

// Valid reports whether the code can still be used at now.
func (c OneTimeCode) Valid(now time.Time) bool {
	return !c.Consumed && now.Before(c.ExpiresAt)
}

var ErrEnrollmentNotFound = errors.New("2fa enrollment not found")

// Repository stores enrollments and one-time codes. ConsumeBackupCode and
// ConsumeCode must be atomic: for a given code only one concurrent caller
// may observe true.
type Repository interface {
	// UpsertEnrollment creates the enrollment or replaces its secret,
	// channel address and backup codes in one write, marking it enabled.
	UpsertEnrollment(ctx context.Context, enrollment Enrollment) (Enrollment, error)
	GetEnrollment(ctx context.Context, userID uuid.UUID, method Method) (Enrollment, error)
	// ListEnabledEnrollments returns enabled enrollments oldest first.
	ListEnabledEnrollments(ctx context.Context, userID uuid.UUID) ([]Enrollment, error)
	DeleteEnrollment(ctx context.Context, userID uuid.UUID, method Method) (bool, error)
	ReplaceBackupCodes(ctx context.Context, userID uuid.UUID, method Method, codes []string) error
	// ConsumeBackupCode removes code from an enabled enrollment if present.
	ConsumeBackupCode(ctx context.Context, userID uuid.UUID, method Method, code string) (bool, error)

	DeleteExpiredCodes(ctx context.Context, userID uuid.UUID, method Method, now time.Time) (int64, error)
	CreateCode(ctx context.Context, code OneTimeCode) (OneTimeCode, error)
	// ConsumeCode marks one matching code that is valid at now as consumed.
	ConsumeCode(ctx context.Context, userID uuid.UUID, method Method, code string, now time.Time) (bool, error)
	DeleteCodes(ctx context.Context, userID uuid.UUID, method Method) error
}
