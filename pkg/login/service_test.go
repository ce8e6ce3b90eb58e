package login

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	idmerrors "github.com/tendant/aitools-idm/pkg/errors"
	"github.com/tendant/aitools-idm/pkg/notification"
	"github.com/tendant/aitools-idm/pkg/ratelimit"
	"github.com/tendant/aitools-idm/pkg/tokengenerator"
	"github.com/tendant/aitools-idm/pkg/totp"
	"github.com/tendant/aitools-idm/pkg/twofa"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	svc    *LoginService
	twofa  *twofa.Service
	tokens *tokengenerator.JwtTokenGenerator
	mailer *notification.MockNotifier
	user   User
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	ctx := context.Background()

	mailer := &notification.MockNotifier{}
	nm, err := notification.NewNotificationManagerWithOptions(
		notification.WithNotifier(notification.EmailSystem, mailer),
		notification.WithDefaultTemplates(),
	)
	require.NoError(t, err)

	twofaSvc := twofa.NewService(twofa.NewInMemTwoFARepository(), twofa.WithSender(nm))
	tokens := tokengenerator.NewJwtTokenGenerator("test-secret")

	base := []Option{
		WithPasswordManager(NewPasswordManager(NewBcryptHasher(bcrypt.MinCost))),
		WithTwoFactorService(twofaSvc),
	}
	svc := NewLoginService(NewInMemUserRepository(), tokens, append(base, opts...)...)

	user, err := svc.CreateUser(ctx, "ada@example.com", "Ada", "admin", "correct-horse")
	require.NoError(t, err)

	return &testEnv{svc: svc, twofa: twofaSvc, tokens: tokens, mailer: mailer, user: user}
}

func (e *testEnv) twofaUser() twofa.User {
	return twofa.User{ID: e.user.ID, Email: e.user.Email, Name: e.user.Name}
}

func TestAuthenticate_WithoutTwoFactor(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.svc.Authenticate(context.Background(), LoginRequest{Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.False(t, result.RequiresSecondFactor)
	require.NotEmpty(t, result.Token)

	claims, err := env.tokens.ParseToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, env.user.ID.String(), claims.Subject)
	assert.Equal(t, "admin", claims.Role)
}

func TestAuthenticate_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, wrongPassword := env.svc.Authenticate(ctx, LoginRequest{Email: "ada@example.com", Password: "nope-nope"})
	_, unknownEmail := env.svc.Authenticate(ctx, LoginRequest{Email: "bob@example.com", Password: "nope-nope"})

	for _, err := range []error{wrongPassword, unknownEmail} {
		require.Error(t, err)
		assert.True(t, idmerrors.IsCode(err, idmerrors.ErrCodeInvalidCredentials))
	}
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error(), "no hint which check failed")

	_, err := env.svc.Authenticate(ctx, LoginRequest{Email: "ada@example.com"})
	assert.True(t, idmerrors.IsCode(err, idmerrors.ErrCodeInvalidInput))
}

func TestAuthenticate_SecondFactorRequired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.twofa.Enable(ctx, env.twofaUser(), twofa.MethodEmail, twofa.EnableParams{})
	require.NoError(t, err)

	result, err := env.svc.Authenticate(ctx, LoginRequest{Email: "ada@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.True(t, result.RequiresSecondFactor)
	assert.Equal(t, []twofa.Method{twofa.MethodEmail}, result.AvailableMethods)
	assert.Empty(t, result.Token)
}

func TestAuthenticate_EmailCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.twofa.Enable(ctx, env.twofaUser(), twofa.MethodEmail, twofa.EnableParams{})
	require.NoError(t, err)

	err = env.svc.SendLoginCode(ctx, "ada@example.com", "wrong-pass", "email")
	assert.True(t, idmerrors.IsCode(err, idmerrors.ErrCodeInvalidCredentials))
	err = env.svc.SendLoginCode(ctx, "ada@example.com", "correct-horse", "telegram")
	assert.True(t, idmerrors.IsCode(err, idmerrors.ErrCode2FANotEnabled))
	err = env.svc.SendLoginCode(ctx, "ada@example.com", "correct-horse", "totp")
	assert.True(t, idmerrors.IsCode(err, idmerrors.ErrCodeInvalidInput))

	require.NoError(t, env.svc.SendLoginCode(ctx, "ada@example.com", "correct-horse", "email"))
	sent := env.mailer.Sent()
	require.Len(t, sent, 1)
	code := sent[0].Data["Code"]

	_, err = env.svc.Authenticate(ctx, LoginRequest{Email: "ada@example.com", Password: "correct-horse", Code: "000000", Method: "email"})
	assert.True(t, idmerrors.IsCode(err, idmerrors.ErrCode2FAInvalid))

	result, err := env.svc.Authenticate(ctx, LoginRequest{Email: "ada@example.com", Password: "correct-horse", Code: code, Method: "email"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

func TestAuthenticate_TotpDefaultMethod(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	secret, err := env.twofa.GenerateTotpSecret(ctx, env.twofaUser())
	require.NoError(t, err)
	_, err = env.twofa.Enable(ctx, env.twofaUser(), twofa.MethodTOTP, twofa.EnableParams{Secret: secret.Secret})
	require.NoError(t, err)

	code, err := totp.NewEngine().GenerateCode(secret.Secret, time.Now())
	require.NoError(t, err)

	result, err := env.svc.Authenticate(ctx, LoginRequest{Email: "ada@example.com", Password: "correct-horse", Code: code})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

func TestAuthenticate_BackupCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	secret, err := env.twofa.GenerateTotpSecret(ctx, env.twofaUser())
	require.NoError(t, err)
	enrollment, err := env.twofa.Enable(ctx, env.twofaUser(), twofa.MethodTOTP, twofa.EnableParams{Secret: secret.Secret})
	require.NoError(t, err)

	req := LoginRequest{Email: "ada@example.com", Password: "correct-horse", Code: enrollment.BackupCodes[0], Method: "google_authenticator"}
	result, err := env.svc.Authenticate(ctx, req)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	_, err = env.svc.Authenticate(ctx, req)
	assert.True(t, idmerrors.IsCode(err, idmerrors.ErrCode2FAInvalid), "backup code cannot be replayed")
}

func TestAuthenticate_PasswordThrottling(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewBackoffLimiter(ratelimit.AttemptPolicy{MaxAttempts: 2, Window: time.Minute, BaseLockout: time.Minute}, ratelimit.WithClock(func() time.Time { return now }))
	env := newTestEnv(t, WithAttemptLimiter(limiter))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.svc.Authenticate(ctx, LoginRequest{Email: "ada@example.com", Password: "wrong-pass"})
		assert.True(t, idmerrors.IsCode(err, idmerrors.ErrCodeInvalidCredentials))
	}

	_, err := env.svc.Authenticate(ctx, LoginRequest{Email: "ada@example.com", Password: "correct-horse"})
	assert.True(t, idmerrors.IsCode(err, idmerrors.ErrCodeRateLimitExceeded))
}

func TestAuthenticate_PasswordThrottlingConcurrent(t *testing.T) {
	limiter := ratelimit.NewBackoffLimiter(ratelimit.AttemptPolicy{MaxAttempts: 3, Window: time.Minute, BaseLockout: time.Minute})
	env := newTestEnv(t, WithAttemptLimiter(limiter))
	ctx := context.Background()

	var invalid, throttled atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Authenticate(ctx, LoginRequest{Email: "ada@example.com", Password: "wrong-pass"})
			switch {
			case idmerrors.IsCode(err, idmerrors.ErrCodeInvalidCredentials):
				invalid.Add(1)
			case idmerrors.IsCode(err, idmerrors.ErrCodeRateLimitExceeded):
				throttled.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(3), invalid.Load(), "only MaxAttempts passwords are checked")
	assert.Equal(t, int64(27), throttled.Load())
}

func TestCreateUser_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.svc.CreateUser(ctx, "not-an-email", "", "", "long-enough")
	assert.True(t, idmerrors.IsCode(err, idmerrors.ErrCodeInvalidInput))
	_, err = env.svc.CreateUser(ctx, "b@example.com", "", "", "short")
	assert.True(t, idmerrors.IsCode(err, idmerrors.ErrCodeInvalidInput))
	_, err = env.svc.CreateUser(ctx, "ada@example.com", "", "", "long-enough")
	assert.True(t, idmerrors.IsCode(err, idmerrors.ErrCodeInvalidInput))
}
