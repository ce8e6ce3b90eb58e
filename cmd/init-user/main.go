package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/aitools-idm/pkg/config"
	"github.com/tendant/aitools-idm/pkg/db"
	"github.com/tendant/aitools-idm/pkg/login"
	"github.com/tendant/aitools-idm/pkg/tokengenerator"
	dbutils "github.com/tendant/db-utils/db"
)

func main() {
	email := flag.String("email", "", "Email for the new user (required)")
	password := flag.String("password", "", "Password for the new user (required)")
	name := flag.String("name", "", "Display name")
	role := flag.String("role", "user", "Role to assign to the user")
	hasher := flag.String("hasher", "bcrypt", "Password hash algorithm (bcrypt, argon2id)")
	flag.Parse()

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}
	if cfg.Persistence.Type == config.PersistenceMemory {
		slog.Error("Users created with memory persistence are lost on exit, use postgres or file")
		os.Exit(1)
	}

	ctx := context.Background()
	repoConfig := login.RepositoryConfig{DataDir: cfg.Persistence.DataDir}
	if cfg.Persistence.Type == config.PersistencePostgres {
		if err := db.Migrate(ctx, cfg.Database.ToDatabaseURL()); err != nil {
			slog.Error("Failed to migrate database", "err", err)
			os.Exit(1)
		}
		var pool *pgxpool.Pool
		dbConfig := cfg.Database.ToDbConfig()
		pool, err = dbutils.NewDbPool(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
			os.Exit(1)
		}
		defer pool.Close()
		repoConfig.DB = pool
	}

	users, err := login.NewUserRepository(cfg.Persistence.Type, repoConfig)
	if err != nil {
		slog.Error("Failed to create user repository", "err", err)
		os.Exit(1)
	}

	h, err := login.NewHasher(*hasher)
	if err != nil {
		slog.Error("Invalid hasher", "err", err)
		os.Exit(1)
	}

	// No session is issued here; the token generator only satisfies the constructor.
	loginService := login.NewLoginService(users, tokengenerator.NewJwtTokenGenerator(cfg.JWT.Secret),
		login.WithPasswordManager(login.NewPasswordManager(h)),
	)

	user, err := loginService.CreateUser(ctx, *email, *name, *role, *password)
	if err != nil {
		slog.Error("Failed to create user", "err", err)
		os.Exit(1)
	}
	slog.Info("User created successfully", "email", user.Email, "role", user.Role, "id", user.ID)
}
