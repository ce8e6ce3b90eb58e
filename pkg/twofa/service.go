package twofa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	idmerrors "github.com/tendant/aitools-idm/pkg/errors"
	"github.com/tendant/aitools-idm/pkg/ratelimit"
	"github.com/tendant/aitools-idm/pkg/totp"
)

type TwoFactorService interface {
	GenerateTotpSecret(ctx context.Context, user User) (totp.Secret, error)
	Enable(ctx context.Context, user User, method Method, params EnableParams) (Enrollment, error)
	Disable(ctx context.Context, userID uuid.UUID, method Method) (bool, error)
	SendCode(ctx context.Context, user User, method Method, destination string) (OneTimeCode, error)
	Verify(ctx context.Context, userID uuid.UUID, method Method, code string) (bool, error)
	RegenerateBackupCodes(ctx context.Context, userID uuid.UUID, method Method) ([]string, error)
	Status(ctx context.Context, userID uuid.UUID) (Status, error)
	EnabledMethods(ctx context.Context, userID uuid.UUID) ([]Method, error)
}

// EnableParams carries method specific enrollment data.
type EnableParams struct {
	Secret         string // totp, from GenerateTotpSecret
	ChannelAddress string // telegram chat id
}

type Status struct {
	EnabledMethods []Method `json:"enabledMethods"`
	HasAnyEnabled  bool     `json:"hasAnyEnabled"`
}

type Service struct {
	repo       Repository
	engine     *totp.Engine
	sender     Sender
	cipher     SecretCipher
	limiter    ratelimit.AttemptLimiter
	codeTTL    time.Duration
	appName    string
	now        func() time.Time
	dispatcher *Dispatcher
	backups    *BackupCodeManager
	verifier   *Verifier
}

type Option func(*Service)

func WithTotpEngine(engine *totp.Engine) Option {
	return func(s *Service) {
		s.engine = engine
	}
}

func WithSender(sender Sender) Option {
	return func(s *Service) {
		s.sender = sender
	}
}

func WithSecretCipher(cipher SecretCipher) Option {
	return func(s *Service) {
		s.cipher = cipher
	}
}

// WithAttemptLimiter throttles Verify per user. Without it failed attempts
// are not counted.
func WithAttemptLimiter(limiter ratelimit.AttemptLimiter) Option {
	return func(s *Service) {
		s.limiter = limiter
	}
}

func WithCodeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.codeTTL = ttl
	}
}

func WithAppName(name string) Option {
	return func(s *Service) {
		s.appName = name
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		codeTTL: DefaultCodeTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = totp.NewEngine()
	}
	if s.cipher == nil {
		s.cipher = plainSecretCipher{}
	}
	if s.appName == "" {
		s.appName = s.engine.Issuer()
	}

	s.backups = NewBackupCodeManager(repo)
	s.dispatcher = NewDispatcher(repo, s.sender, s.codeTTL, s.appName, s.now)
	s.verifier = NewVerifier(repo, s.backups, s.engine, s.cipher, s.now)
	return s
}

// GenerateTotpSecret creates a secret for the user to scan. Nothing is stored
// until Enable is called with it.
func (s *Service) GenerateTotpSecret(ctx context.Context, user User) (totp.Secret, error) {
	if user.Email == "" {
		return totp.Secret{}, idmerrors.Validation("email", "is required")
	}
	secret, err := s.engine.GenerateSecret(user.Email)
	if err != nil {
		return totp.Secret{}, idmerrors.InternalWrap(err, "failed to generate totp secret")
	}
	return secret, nil
}

// Enable stores the enrollment and issues a fresh set of backup codes,
// replacing any earlier set. The returned enrollment holds the plaintext
// backup codes and no secret.
func (s *Service) Enable(ctx context.Context, user User, method Method, params EnableParams) (Enrollment, error) {
	enrollment := Enrollment{
		UserID:    user.ID,
		Method:    method,
		Enabled:   true,
		UpdatedAt: s.now().UTC(),
	}

	switch method {
	case MethodEmail:
	case MethodTelegram:
		address := strings.TrimSpace(params.ChannelAddress)
		if address == "" {
			return Enrollment{}, idmerrors.Validation("channelAddress", "is required for telegram")
		}
		enrollment.ChannelAddress = address
	case MethodTOTP:
		if params.Secret == "" {
			return Enrollment{}, idmerrors.Validation("secret", "is required for totp")
		}
		if err := s.engine.CheckSecret(params.Secret); err != nil {
			return Enrollment{}, idmerrors.Validation("secret", "must be a base32 totp key")
		}
		sealed, err := s.cipher.Seal(params.Secret)
		if err != nil {
			return Enrollment{}, idmerrors.InternalWrap(err, "failed to encrypt totp secret")
		}
		enrollment.Secret = sealed
	default:
		return Enrollment{}, idmerrors.Validation("method", "must be one of email, telegram, totp")
	}

	codes, err := s.backups.NewSet()
	if err != nil {
		return Enrollment{}, idmerrors.InternalWrap(err, "failed to generate backup codes")
	}
	enrollment.BackupCodes = codes

	stored, err := s.repo.UpsertEnrollment(ctx, enrollment)
	if err != nil {
		return Enrollment{}, idmerrors.InternalWrap(err, "failed to enable 2fa")
	}
	stored.Secret = ""

	enrollmentChangesTotal.WithLabelValues(string(method), "enable").Inc()
	slog.Info("2FA enabled", "user_id", user.ID, "method", method)
	return stored, nil
}

// Disable deletes the enrollment and any outstanding codes for it. It
// returns false when the method was not enabled.
func (s *Service) Disable(ctx context.Context, userID uuid.UUID, method Method) (bool, error) {
	deleted, err := s.repo.DeleteEnrollment(ctx, userID, method)
	if err != nil {
		return false, idmerrors.InternalWrap(err, "failed to disable 2fa")
	}
	if err := s.repo.DeleteCodes(ctx, userID, method); err != nil {
		return deleted, idmerrors.InternalWrap(err, "failed to delete outstanding codes")
	}
	if !deleted {
		slog.Info("2FA disable requested for method that is not enabled", "user_id", userID, "method", method)
		return false, nil
	}

	enrollmentChangesTotal.WithLabelValues(string(method), "disable").Inc()
	slog.Info("2FA disabled", "user_id", userID, "method", method)
	return true, nil
}

// SendCode delivers a one-time code for a channel method. For telegram an
// empty destination falls back to the enrolled chat id.
func (s *Service) SendCode(ctx context.Context, user User, method Method, destination string) (OneTimeCode, error) {
	switch method {
	case MethodEmail:
		return s.dispatcher.SendEmailCode(ctx, user)
	case MethodTelegram:
		destination = strings.TrimSpace(destination)
		if destination == "" {
			enrollment, err := s.repo.GetEnrollment(ctx, user.ID, MethodTelegram)
			switch {
			case errors.Is(err, ErrEnrollmentNotFound):
			case err != nil:
				return OneTimeCode{}, idmerrors.InternalWrap(err, "failed to load enrollment")
			default:
				destination = enrollment.ChannelAddress
			}
		}
		return s.dispatcher.SendChatCode(ctx, user, destination)
	default:
		return OneTimeCode{}, idmerrors.Validation("method", "codes can only be sent for email or telegram")
	}
}

// Verify reports whether code is a valid second factor for the user. Backup
// codes and delivered codes are consumed on success.
func (s *Service) Verify(ctx context.Context, userID uuid.UUID, method Method, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, idmerrors.Validation("code", "is required")
	}
	if len(code) > maxSubmittedCode {
		return false, idmerrors.Validation("code", "is too long")
	}

	key := limiterKey(userID)
	if s.limiter != nil {
		if retryAfter, err := s.limiter.Attempt(ctx, key); errors.Is(err, ratelimit.ErrLocked) {
			slog.Warn("2FA verification throttled", "user_id", userID, "retry_after", retryAfter)
			return false, idmerrors.RateLimitExceeded(retryAfter.Round(time.Second).String())
		} else if err != nil {
			return false, idmerrors.InternalWrap(err, "failed to record attempt")
		}
	}

	outcome, err := s.verifier.Verify(ctx, userID, method, code)
	if err != nil {
		return false, idmerrors.InternalWrap(err, "failed to verify code")
	}

	if outcome.Valid && s.limiter != nil {
		if err := s.limiter.Reset(ctx, key); err != nil {
			slog.Error("Failed to reset 2FA attempts", "user_id", userID, "err", err)
		}
	}

	if outcome.Valid {
		slog.Info("2FA code accepted", "user_id", userID, "method", method, "strategy", outcome.Strategy)
	}
	return outcome.Valid, nil
}

// RegenerateBackupCodes replaces the backup codes of the given method, or of
// the oldest enabled method when method is empty.
func (s *Service) RegenerateBackupCodes(ctx context.Context, userID uuid.UUID, method Method) ([]string, error) {
	var target Enrollment
	if method != "" {
		enrollment, err := s.repo.GetEnrollment(ctx, userID, method)
		if errors.Is(err, ErrEnrollmentNotFound) || (err == nil && !enrollment.Enabled) {
			return nil, idmerrors.State(fmt.Sprintf("2FA method %s is not enabled", method))
		}
		if err != nil {
			return nil, idmerrors.InternalWrap(err, "failed to load enrollment")
		}
		target = enrollment
	} else {
		enrollments, err := s.repo.ListEnabledEnrollments(ctx, userID)
		if err != nil {
			return nil, idmerrors.InternalWrap(err, "failed to list enrollments")
		}
		if len(enrollments) == 0 {
			return nil, idmerrors.State("No 2FA enabled")
		}
		target = enrollments[0]
	}

	codes, err := s.backups.Generate(ctx, target)
	if err != nil {
		return nil, idmerrors.InternalWrap(err, "failed to generate backup codes")
	}
	enrollmentChangesTotal.WithLabelValues(string(target.Method), "regenerate").Inc()
	return codes, nil
}

func (s *Service) Status(ctx context.Context, userID uuid.UUID) (Status, error) {
	methods, err := s.EnabledMethods(ctx, userID)
	if err != nil {
		return Status{}, err
	}
	return Status{EnabledMethods: methods, HasAnyEnabled: len(methods) > 0}, nil
}

func (s *Service) EnabledMethods(ctx context.Context, userID uuid.UUID) ([]Method, error) {
	enrollments, err := s.repo.ListEnabledEnrollments(ctx, userID)
	if err != nil {
		return nil, idmerrors.InternalWrap(err, "failed to list enrollments")
	}
	methods := make([]Method, 0, len(enrollments))
	for _, e := range enrollments {
		methods = append(methods, e.Method)
	}
	return methods, nil
}

func limiterKey(userID uuid.UUID) string {
	return "twofa:" + userID.String()
}
