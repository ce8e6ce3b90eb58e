package twofa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/aitools-idm/pkg/totp"
)

// StrategyKind names the check that accepted a submitted code.
type StrategyKind string

const (
	StrategyBackupCode  StrategyKind = "backup_code"
	StrategyChannelCode StrategyKind = "channel_code"
	StrategyTotp        StrategyKind = "totp"
	StrategyNone        StrategyKind = "none"
)

// Attempt is one submitted code. Enrollment is nil when the user has no
// enabled enrollment for Method.
type Attempt struct {
	UserID     uuid.UUID
	Method     Method
	Code       string
	Enrollment *Enrollment
	Now        time.Time
}

// Strategy is a single way of accepting a code. Check reports a match and
// consumes whatever single-use state the match relied on.
type Strategy interface {
	Kind() StrategyKind
	Check(ctx context.Context, attempt Attempt) (bool, error)
}

type backupCodeStrategy struct {
	backups *BackupCodeManager
}

func (backupCodeStrategy) Kind() StrategyKind { return StrategyBackupCode }

func (s backupCodeStrategy) Check(ctx context.Context, a Attempt) (bool, error) {
	if a.Enrollment == nil || !a.Enrollment.Enabled {
		return false, nil
	}
	return s.backups.Consume(ctx, *a.Enrollment, a.Code)
}

type channelCodeStrategy struct {
	repo Repository
}

func (channelCodeStrategy) Kind() StrategyKind { return StrategyChannelCode }

func (s channelCodeStrategy) Check(ctx context.Context, a Attempt) (bool, error) {
	ok, err := s.repo.ConsumeCode(ctx, a.UserID, a.Method, a.Code, a.Now)
	if err != nil {
		return false, fmt.Errorf("failed to consume code: %w", err)
	}
	return ok, nil
}

type totpStrategy struct {
	engine *totp.Engine
	cipher SecretCipher
}

func (totpStrategy) Kind() StrategyKind { return StrategyTotp }

func (s totpStrategy) Check(ctx context.Context, a Attempt) (bool, error) {
	if a.Method != MethodTOTP || a.Enrollment == nil || a.Enrollment.Secret == "" {
		return false, nil
	}
	secret, err := s.cipher.Open(a.Enrollment.Secret)
	if err != nil {
		return false, fmt.Errorf("failed to open totp secret: %w", err)
	}
	return s.engine.Verify(secret, a.Code, a.Now), nil
}

// Outcome is the result of a verification.
type Outcome struct {
	Valid    bool
	Strategy StrategyKind
}

// Verifier runs the strategies in order: backup code, then delivered code,
// then TOTP. The first match wins.
type Verifier struct {
	repo       Repository
	strategies []Strategy
	now        func() time.Time
}

func NewVerifier(repo Repository, backups *BackupCodeManager, engine *totp.Engine, cipher SecretCipher, now func() time.Time) *Verifier {
	if cipher == nil {
		cipher = plainSecretCipher{}
	}
	if now == nil {
		now = time.Now
	}
	return &Verifier{
		repo: repo,
		strategies: []Strategy{
			backupCodeStrategy{backups: backups},
			channelCodeStrategy{repo: repo},
			totpStrategy{engine: engine, cipher: cipher},
		},
		now: now,
	}
}

// Strategies returns the kinds in evaluation order.
func (v *Verifier) Strategies() []StrategyKind {
	kinds := make([]StrategyKind, len(v.strategies))
	for i, s := range v.strategies {
		kinds[i] = s.Kind()
	}
	return kinds
}

func (v *Verifier) Verify(ctx context.Context, userID uuid.UUID, method Method, code string) (Outcome, error) {
	attempt := Attempt{
		UserID: userID,
		Method: method,
		Code:   code,
		Now:    v.now(),
	}

	enrollment, err := v.repo.GetEnrollment(ctx, userID, method)
	switch {
	case errors.Is(err, ErrEnrollmentNotFound):
	case err != nil:
		return Outcome{}, fmt.Errorf("failed to load enrollment: %w", err)
	case enrollment.Enabled:
		attempt.Enrollment = &enrollment
	}

	for _, s := range v.strategies {
		ok, err := s.Check(ctx, attempt)
		if err != nil {
			return Outcome{}, err
		}
		if ok {
			verificationsTotal.WithLabelValues(string(method), string(s.Kind()), "success").Inc()
			return Outcome{Valid: true, Strategy: s.Kind()}, nil
		}
	}

	verificationsTotal.WithLabelValues(string(method), string(StrategyNone), "failure").Inc()
	slog.Info("2FA code rejected", "user_id", userID, "method", method)
	return Outcome{Strategy: StrategyNone}, nil
}
