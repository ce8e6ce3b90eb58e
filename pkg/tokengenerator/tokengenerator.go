package tokengenerator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ACCESS_TOKEN_NAME = "access_token"

	DefaultAccessTokenExpiry = 24 * time.Hour
)

// Claims carried by a session token. Subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Subject identifies who a session token is issued to.
type Subject struct {
	UserID uuid.UUID
	Email  string
	Name   string
	Role   string
}

// TokenGenerator issues and parses session tokens.
type TokenGenerator interface {
	GenerateToken(subject Subject) (string, time.Time, error)
	ParseToken(tokenStr string) (*Claims, error)
}

// JwtTokenGenerator signs HS256 tokens with a shared secret.
type JwtTokenGenerator struct {
	secret []byte
	issuer string
	expiry time.Duration
	now    func() time.Time
}

type Option func(*JwtTokenGenerator)

func WithIssuer(issuer string) Option {
	return func(g *JwtTokenGenerator) {
		g.issuer = issuer
	}
}

func WithExpiry(expiry time.Duration) Option {
	return func(g *JwtTokenGenerator) {
		if expiry > 0 {
			g.expiry = expiry
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *JwtTokenGenerator) {
		g.now = now
	}
}

func NewJwtTokenGenerator(secret string, opts ...Option) *JwtTokenGenerator {
	g := &JwtTokenGenerator{
		secret: []byte(secret),
		expiry: DefaultAccessTokenExpiry,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *JwtTokenGenerator) GenerateToken(subject Subject) (string, time.Time, error) {
	now := g.now().UTC()
	claims := Claims{
		Email: subject.Email,
		Name:  subject.Name,
		Role:  subject.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(g.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			Issuer:    g.issuer,
			Subject:   subject.UserID.String(),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(g.secret)
	if err != nil {
		slog.Error("Failed sign JWT Claim string!", "err", err)
		return "", time.Time{}, err
	}
	return ss, claims.ExpiresAt.Time, nil
}

func (g *JwtTokenGenerator) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
