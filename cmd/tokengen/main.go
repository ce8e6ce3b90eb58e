package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/aitools-idm/pkg/tokengenerator"
)

// tokengen prints a session token for local testing of the authenticated
// 2FA routes, e.g. curl -H "Authorization: Bearer $(tokengen -email ...)".
func main() {
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "Secret key for signing the token (default $JWT_SECRET)")
	issuer := flag.String("issuer", "aitools-idm", "Issuer of the token")
	userID := flag.String("user-id", "", "User id for the subject claim (random when empty)")
	email := flag.String("email", "", "Email claim")
	name := flag.String("name", "", "Name claim")
	role := flag.String("role", "user", "Role claim")
	expiry := flag.Duration("expiry", 30*time.Minute, "Token expiry duration (e.g., 30m, 1h, 24h)")
	outputFormat := flag.String("format", "compact", "Output format: compact, full, or debug")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "Error: -secret or JWT_SECRET is required")
		os.Exit(1)
	}

	id := uuid.New()
	if *userID != "" {
		parsed, err := uuid.Parse(*userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid user id: %v\n", err)
			os.Exit(1)
		}
		id = parsed
	}

	tokenGen := tokengenerator.NewJwtTokenGenerator(*secret,
		tokengenerator.WithIssuer(*issuer),
		tokengenerator.WithExpiry(*expiry),
	)

	tokenStr, expiryTime, err := tokenGen.GenerateToken(tokengenerator.Subject{
		UserID: id,
		Email:  *email,
		Name:   *name,
		Role:   *role,
	})
	if err != nil {
		slog.Error("Failed to generate token", "err", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "compact":
		fmt.Println(tokenStr)
	case "full":
		fmt.Printf("Token: %s\nExpires: %s\n", tokenStr, expiryTime.Format(time.RFC3339))
	case "debug":
		claims, err := tokenGen.ParseToken(tokenStr)
		if err != nil {
			slog.Error("Failed to parse generated token", "err", err)
			os.Exit(1)
		}
		claimsJSON, _ := json.MarshalIndent(claims, "", "  ")
		fmt.Printf("=== Token ===\n%s\n\n=== Claims ===\n%s\n\nExpires: %s\n", tokenStr, claimsJSON, expiryTime.Format(time.RFC3339))
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown output format: %s\n", *outputFormat)
		os.Exit(1)
	}
}
