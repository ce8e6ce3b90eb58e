package login

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	idmerrors "github.com/tendant/aitools-idm/pkg/errors"
	"github.com/tendant/aitools-idm/pkg/ratelimit"
	"github.com/tendant/aitools-idm/pkg/tokengenerator"
	"github.com/tendant/aitools-idm/pkg/twofa"
)

const invalidCredentialsMessage = "Invalid email or password"

type LoginRequest struct {
	Email    string
	Password string
	Code     string
	Method   string
}

// LoginResult is either a session (Token set) or a pause for the second
// factor (RequiresSecondFactor set).
type LoginResult struct {
	RequiresSecondFactor bool
	AvailableMethods     []twofa.Method
	Token                string
	ExpiresAt            time.Time
	User                 User
}

type LoginService struct {
	users     UserRepository
	tokens    tokengenerator.TokenGenerator
	passwords *PasswordManager
	twoFactor twofa.TwoFactorService
	limiter   ratelimit.AttemptLimiter

	dummyOnce sync.Once
	dummyHash string
}

type Option func(*LoginService)

func WithPasswordManager(pm *PasswordManager) Option {
	return func(s *LoginService) {
		s.passwords = pm
	}
}

func WithTwoFactorService(svc twofa.TwoFactorService) Option {
	return func(s *LoginService) {
		s.twoFactor = svc
	}
}

// WithAttemptLimiter throttles password failures per email.
func WithAttemptLimiter(limiter ratelimit.AttemptLimiter) Option {
	return func(s *LoginService) {
		s.limiter = limiter
	}
}

func NewLoginService(users UserRepository, tokens tokengenerator.TokenGenerator, opts ...Option) *LoginService {
	s := &LoginService{
		users:  users,
		tokens: tokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.passwords == nil {
		s.passwords = NewPasswordManager(nil)
	}
	if s.twoFactor == nil {
		s.twoFactor = twofa.NewNoOpTwoFactorService()
	}
	return s
}

// Authenticate checks the password and, when the user has 2FA enabled, the
// submitted second factor. Without a code it reports the enabled methods and
// issues nothing. A code without a method is checked as totp.
func (s *LoginService) Authenticate(ctx context.Context, req LoginRequest) (LoginResult, error) {
	user, err := s.checkPassword(ctx, req.Email, req.Password)
	if err != nil {
		return LoginResult{}, err
	}

	methods, err := s.twoFactor.EnabledMethods(ctx, user.ID)
	if err != nil {
		return LoginResult{}, err
	}
	if len(methods) == 0 {
		return s.issue(user)
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		loginAttemptsTotal.WithLabelValues(resultSecondFactor).Inc()
		slog.Info("Second factor required", "user_id", user.ID, "methods", methods)
		return LoginResult{RequiresSecondFactor: true, AvailableMethods: methods, User: user}, nil
	}

	method := twofa.MethodTOTP
	if req.Method != "" {
		method, err = twofa.ParseMethod(req.Method)
		if err != nil {
			return LoginResult{}, err
		}
	}

	ok, err := s.twoFactor.Verify(ctx, user.ID, method, code)
	if err != nil {
		if idmerrors.IsCode(err, idmerrors.ErrCodeRateLimitExceeded) {
			loginAttemptsTotal.WithLabelValues(resultThrottled).Inc()
		}
		return LoginResult{}, err
	}
	if !ok {
		loginAttemptsTotal.WithLabelValues(resultInvalidTwoFactor).Inc()
		slog.Info("Invalid second factor", "user_id", user.ID, "method", method)
		return LoginResult{}, idmerrors.Authentication(idmerrors.ErrCode2FAInvalid, "Invalid 2FA code")
	}
	return s.issue(user)
}

// SendLoginCode delivers an email or telegram code to a user whose login is
// waiting for the second factor. The password is checked again since no
// session exists yet.
func (s *LoginService) SendLoginCode(ctx context.Context, email, password, methodName string) error {
	user, err := s.checkPassword(ctx, email, password)
	if err != nil {
		return err
	}

	method, err := twofa.ParseMethod(methodName)
	if err != nil {
		return err
	}
	if !method.IsChannel() {
		return idmerrors.Validation("method", "codes can only be sent for email or telegram")
	}

	methods, err := s.twoFactor.EnabledMethods(ctx, user.ID)
	if err != nil {
		return err
	}
	if !slices.Contains(methods, method) {
		return idmerrors.State("2FA method " + string(method) + " is not enabled")
	}

	_, err = s.twoFactor.SendCode(ctx, twofa.User{ID: user.ID, Email: user.Email, Name: user.Name}, method, "")
	return err
}

// checkPassword returns the same error for an unknown email and a wrong
// password.
func (s *LoginService) checkPassword(ctx context.Context, email, password string) (User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return User{}, idmerrors.Validation("email", "is required")
	}
	if password == "" {
		return User{}, idmerrors.Validation("password", "is required")
	}

	key := "login:" + email
	if s.limiter != nil {
		if retryAfter, err := s.limiter.Attempt(ctx, key); errors.Is(err, ratelimit.ErrLocked) {
			loginAttemptsTotal.WithLabelValues(resultThrottled).Inc()
			slog.Warn("Login throttled", "email", email, "retry_after", retryAfter)
			return User{}, idmerrors.RateLimitExceeded(retryAfter.Round(time.Second).String())
		} else if err != nil {
			return User{}, idmerrors.InternalWrap(err, "failed to record login attempt")
		}
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return User{}, idmerrors.InternalWrap(err, "failed to find user")
	}

	hash := user.PasswordHash
	if errors.Is(err, ErrUserNotFound) {
		// Keep timing close to a real check.
		hash = s.dummyPasswordHash()
	}
	match, verr := s.passwords.Verify(password, hash)
	if verr != nil {
		slog.Error("Password verification failed", "email", email, "err", verr)
	}

	if err != nil || verr != nil || !match {
		loginAttemptsTotal.WithLabelValues(resultInvalidPassword).Inc()
		return User{}, idmerrors.Authentication(idmerrors.ErrCodeInvalidCredentials, invalidCredentialsMessage)
	}

	if s.limiter != nil {
		if lerr := s.limiter.Reset(ctx, key); lerr != nil {
			slog.Error("Failed to reset login attempts", "email", email, "err", lerr)
		}
	}
	return user, nil
}

func (s *LoginService) issue(user User) (LoginResult, error) {
	token, expiresAt, err := s.tokens.GenerateToken(tokengenerator.Subject{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
	})
	if err != nil {
		return LoginResult{}, idmerrors.InternalWrap(err, "failed to issue session token")
	}
	loginAttemptsTotal.WithLabelValues(resultSuccess).Inc()
	slog.Info("Login succeeded", "user_id", user.ID)
	return LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *LoginService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.passwords.Hash("not-a-real-password")
		if err != nil {
			slog.Error("Failed to build dummy password hash", "err", err)
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// CreateUser hashes password and stores a new account.
func (s *LoginService) CreateUser(ctx context.Context, email, name, role, password string) (User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, idmerrors.Validation("email", "must be an email address")
	}
	if len(password) < 8 {
		return User{}, idmerrors.Validation("password", "must be at least 8 characters")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return User{}, idmerrors.InternalWrap(err, "failed to hash password")
	}
	user, err := s.users.CreateUser(ctx, User{Email: email, Name: name, Role: role, PasswordHash: hash})
	if errors.Is(err, ErrEmailTaken) {
		return User{}, idmerrors.Validation("email", "is already registered")
	}
	if err != nil {
		return User{}, idmerrors.InternalWrap(err, "failed to create user")
	}
	return user, nil
}
