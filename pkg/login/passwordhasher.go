package login

import (
	"errors"
	"strings"
)

// PasswordHasher hashes and checks passwords for one algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Verify reports a mismatch as false with a nil error.
	Verify(password, hashedPassword string) (bool, error)
	// Owns reports whether hashedPassword was produced by this hasher.
	Owns(hashedPassword string) bool
}

var ErrUnknownHashFormat = errors.New("unknown password hash format")

// PasswordManager hashes new passwords with its current hasher and verifies
// stored hashes with whichever hasher produced them.
type PasswordManager struct {
	current PasswordHasher
	hashers []PasswordHasher
}

// NewPasswordManager returns a manager that hashes with current and also
// verifies bcrypt and argon2id hashes.
func NewPasswordManager(current PasswordHasher) *PasswordManager {
	if current == nil {
		current = NewBcryptHasher(0)
	}
	return &PasswordManager{
		current: current,
		hashers: []PasswordHasher{current, NewBcryptHasher(0), NewArgon2Hasher()},
	}
}

// NewHasher returns the hasher for an algorithm name: "bcrypt" or "argon2id".
func NewHasher(algorithm string) (PasswordHasher, error) {
	switch strings.ToLower(algorithm) {
	case "", "bcrypt":
		return NewBcryptHasher(0), nil
	case "argon2", "argon2id":
		return NewArgon2Hasher(), nil
	default:
		return nil, errors.New("unsupported password hash algorithm: " + algorithm)
	}
}

func (m *PasswordManager) Hash(password string) (string, error) {
	return m.current.Hash(password)
}

func (m *PasswordManager) Verify(password, hashedPassword string) (bool, error) {
	for _, h := range m.hashers {
		if h.Owns(hashedPassword) {
			return h.Verify(password, hashedPassword)
		}
	}
	return false, ErrUnknownHashFormat
}
