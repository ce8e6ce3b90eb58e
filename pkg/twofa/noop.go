package twofa

import (
	"context"

	"github.com/google/uuid"
	idmerrors "github.com/tendant/aitools-idm/pkg/errors"
	"github.com/tendant/aitools-idm/pkg/totp"
)

// NoOpTwoFactorService is used when 2FA is switched off. Every user reports
// no enabled methods, so the login gate never asks for a second factor.
type NoOpTwoFactorService struct{}

func NewNoOpTwoFactorService() TwoFactorService {
	return &NoOpTwoFactorService{}
}

func notConfigured() error {
	return idmerrors.State("two-factor authentication not configured")
}

func (n *NoOpTwoFactorService) GenerateTotpSecret(ctx context.Context, user User) (totp.Secret, error) {
	return totp.Secret{}, notConfigured()
}

func (n *NoOpTwoFactorService) Enable(ctx context.Context, user User, method Method, params EnableParams) (Enrollment, error) {
	return Enrollment{}, notConfigured()
}

func (n *NoOpTwoFactorService) Disable(ctx context.Context, userID uuid.UUID, method Method) (bool, error) {
	return false, nil
}

func (n *NoOpTwoFactorService) SendCode(ctx context.Context, user User, method Method, destination string) (OneTimeCode, error) {
	return OneTimeCode{}, notConfigured()
}

func (n *NoOpTwoFactorService) Verify(ctx context.Context, userID uuid.UUID, method Method, code string) (bool, error) {
	return false, nil
}

func (n *NoOpTwoFactorService) RegenerateBackupCodes(ctx context.Context, userID uuid.UUID, method Method) ([]string, error) {
	return nil, idmerrors.State("No 2FA enabled")
}

func (n *NoOpTwoFactorService) Status(ctx context.Context, userID uuid.UUID) (Status, error) {
	return Status{EnabledMethods: []Method{}}, nil
}

func (n *NoOpTwoFactorService) EnabledMethods(ctx context.Context, userID uuid.UUID) ([]Method, error) {
	return []Method{}, nil
}
