package twofa

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTwoFARepository(t *testing.T) {
	repo, err := NewFileTwoFARepository(t.TempDir())
	require.NoError(t, err)
	runRepositoryTests(t, repo, func(t *testing.T) uuid.UUID { return uuid.New() })
}

func TestFileTwoFARepository_Reload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	userID := uuid.New()
	now := time.Now().UTC()

	repo, err := NewFileTwoFARepository(dir)
	require.NoError(t, err)
	_, err = repo.UpsertEnrollment(ctx, Enrollment{UserID: userID, Method: MethodTOTP, Secret: "JBSWY3DPEHPK3PXP", UpdatedAt: now})
	require.NoError(t, err)
	require.NoError(t, repo.ReplaceBackupCodes(ctx, userID, MethodTOTP, []string{"AAAA1111", "BBBB2222"}))
	_, err = repo.CreateCode(ctx, OneTimeCode{ID: uuid.New(), UserID: userID, Method: MethodEmail, Code: "123456", ExpiresAt: now.Add(time.Minute), CreatedAt: now})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, twofaFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := NewFileTwoFARepository(dir)
	require.NoError(t, err)

	e, err := reopened.GetEnrollment(ctx, userID, MethodTOTP)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", e.Secret)
	assert.Equal(t, []string{"AAAA1111", "BBBB2222"}, e.BackupCodes)

	ok, err := reopened.ConsumeCode(ctx, userID, MethodEmail, "123456", now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileTwoFARepository_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, twofaFileName), []byte("{not json"), 0o600))

	_, err := NewFileTwoFARepository(dir)
	assert.Error(t, err)
}
