// Package config loads the service configuration from the environment.
//
// Every section is a plain struct with cleanenv tags so it can be embedded
// in a command's own configuration:
//
//	cfg, err := config.Load(".env")
//	if err != nil {
//		slog.Error("Failed to read configuration", "err", err)
//		os.Exit(1)
//	}
//
// Load reads an optional .env file with godotenv, fills the struct with
// cleanenv and runs Validate. Validation collects every problem into a
// ValidationErrors value instead of stopping at the first one:
//
//	configuration validation failed:
//	  - JWT_SECRET: is required
//	  - TWOFA_CODE_TTL: must be positive, got 0s
package config
