package twofa

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	CodeLength       = 6
	BackupCodeCount  = 8
	BackupCodeLength = 8

	backupCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	maxSubmittedCode   = 64
)

var (
	codeFloor = big.NewInt(100000)
	codeRange = big.NewInt(900000) // [100000, 999999]
)

// generateNumericCode returns a uniformly random 6-digit code.
func generateNumericCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeRange)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Add(n, codeFloor).Int64()), nil
}

// generateBackupCodes returns count distinct random alphanumeric codes.
func generateBackupCodes(count, length int) ([]string, error) {
	alphabetSize := big.NewInt(int64(len(backupCodeAlphabet)))
	seen := make(map[string]struct{}, count)
	codes := make([]string, 0, count)

	for len(codes) < count {
		buf := make([]byte, length)
		for i := range buf {
			n, err := rand.Int(rand.Reader, alphabetSize)
			if err != nil {
				return nil, fmt.Errorf("failed to generate backup code: %w", err)
			}
			buf[i] = backupCodeAlphabet[n.Int64()]
		}
		code := string(buf)
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}
