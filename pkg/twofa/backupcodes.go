package twofa

import (
	"context"
	"fmt"
	"log/slog"
)

// BackupCodeManager issues and redeems single-use recovery codes. A new set
// always replaces the previous one.
type BackupCodeManager struct {
	repo Repository
}

func NewBackupCodeManager(repo Repository) *BackupCodeManager {
	return &BackupCodeManager{repo: repo}
}

// NewSet returns BackupCodeCount fresh codes without storing them.
func (m *BackupCodeManager) NewSet() ([]string, error) {
	return generateBackupCodes(BackupCodeCount, BackupCodeLength)
}

// Generate stores and returns a fresh set of codes for the enrollment,
// invalidating all earlier codes.
func (m *BackupCodeManager) Generate(ctx context.Context, enrollment Enrollment) ([]string, error) {
	codes, err := m.NewSet()
	if err != nil {
		return nil, err
	}
	if err := m.repo.ReplaceBackupCodes(ctx, enrollment.UserID, enrollment.Method, codes); err != nil {
		return nil, fmt.Errorf("failed to store backup codes: %w", err)
	}
	slog.Info("Backup codes regenerated", "user_id", enrollment.UserID, "method", enrollment.Method)
	return codes, nil
}

// Consume removes code from the enrollment's set if it is present.
func (m *BackupCodeManager) Consume(ctx context.Context, enrollment Enrollment, code string) (bool, error) {
	ok, err := m.repo.ConsumeBackupCode(ctx, enrollment.UserID, enrollment.Method, code)
	if err != nil {
		return false, fmt.Errorf("failed to consume backup code: %w", err)
	}
	if ok {
		slog.Info("Backup code used", "user_id", enrollment.UserID, "method", enrollment.Method)
	}
	return ok, nil
}
