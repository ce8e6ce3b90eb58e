package login

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is an account that can sign in with email and password.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

// UserRepository stores accounts. Emails are matched case-insensitively.
type UserRepository interface {
	FindByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	CreateUser(ctx context.Context, user User) (User, error)
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, passwordHash string) error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
