package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/jwtauth/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/aitools-idm/pkg/audit"
	"github.com/tendant/aitools-idm/pkg/config"
	"github.com/tendant/aitools-idm/pkg/db"
	"github.com/tendant/aitools-idm/pkg/login"
	loginapi "github.com/tendant/aitools-idm/pkg/login/api"
	"github.com/tendant/aitools-idm/pkg/notification"
	"github.com/tendant/aitools-idm/pkg/ratelimit"
	"github.com/tendant/aitools-idm/pkg/router"
	"github.com/tendant/aitools-idm/pkg/tokengenerator"
	"github.com/tendant/aitools-idm/pkg/totp"
	"github.com/tendant/aitools-idm/pkg/twofa"
	twofaapi "github.com/tendant/aitools-idm/pkg/twofa/api"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var pool *pgxpool.Pool
	if cfg.Persistence.Type == config.PersistencePostgres {
		if err := db.Migrate(ctx, cfg.Database.ToDatabaseURL()); err != nil {
			slog.Error("Failed to migrate database", "err", err)
			os.Exit(1)
		}
		dbConfig := cfg.Database.ToDbConfig()
		pool, err = dbutils.NewDbPool(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
			os.Exit(1)
		}
		defer pool.Close()
	}

	users, err := login.NewUserRepository(cfg.Persistence.Type, login.RepositoryConfig{DB: dbtx(pool), DataDir: cfg.Persistence.DataDir})
	if err != nil {
		slog.Error("Failed to create user repository", "err", err)
		os.Exit(1)
	}

	attempts := newAttemptLimiter(cfg)

	twoFaService, err := newTwoFactorService(cfg, pool, attempts)
	if err != nil {
		slog.Error("Failed to initialize 2FA", "err", err)
		os.Exit(1)
	}

	tokens := tokengenerator.NewJwtTokenGenerator(cfg.JWT.Secret,
		tokengenerator.WithIssuer(cfg.JWT.Issuer),
		tokengenerator.WithExpiry(cfg.JWT.AccessTokenExpiry),
	)
	loginService := login.NewLoginService(users, tokens,
		login.WithTwoFactorService(twoFaService),
		login.WithAttemptLimiter(attempts),
	)

	prefixes := router.DefaultPrefixConfig()
	throttle := ratelimit.NewMiddleware(cfg.RateLimit.ToMiddlewareConfig(prefixes.ThrottledEndpoints()...))
	defer throttle.Stop()

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	router.SetupRoutes(server.R, router.Config{
		PrefixConfig:   prefixes,
		LoginHandle:    loginapi.NewHandle(loginService, tokengenerator.NewCookieSetter(cfg.JWT.CookieHttpOnly, cfg.JWT.CookieSecure)),
		TwoFaHandle:    twofaapi.NewHandle(twoFaService),
		TokenAuth:      jwtauth.New("HS256", []byte(cfg.JWT.Secret), nil),
		RateLimiter:    throttle,
		Audit:          audit.NewMiddleware(audit.Config{Source: cfg.BaseURL}),
		AllowedOrigins: []string{cfg.FrontendURL},
		MetricsEnabled: true,
	})

	slog.Info("IDM service ready", "base_url", cfg.BaseURL, "persistence", cfg.Persistence.Type, "twofa", cfg.TwoFA.Enabled)
	server.Run()
}

// dbtx keeps a nil pool from becoming a non-nil interface.
func dbtx(pool *pgxpool.Pool) login.DBTX {
	if pool == nil {
		return nil
	}
	return pool
}

func newAttemptLimiter(cfg config.Config) ratelimit.AttemptLimiter {
	policy := cfg.RateLimit.ToAttemptPolicy()
	if !cfg.Redis.IsConfigured() {
		return ratelimit.NewBackoffLimiter(policy)
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	slog.Info("Attempt limits shared through redis", "addr", cfg.Redis.Addr)
	return ratelimit.NewRedisAttemptLimiter(rdb, cfg.Redis.Prefix, policy)
}

func newTwoFactorService(cfg config.Config, pool *pgxpool.Pool, attempts ratelimit.AttemptLimiter) (twofa.TwoFactorService, error) {
	if !cfg.TwoFA.Enabled {
		slog.Info("2FA disabled")
		return twofa.NewNoOpTwoFactorService(), nil
	}

	repoConfig := twofa.RepositoryConfig{DataDir: cfg.Persistence.DataDir}
	if pool != nil {
		repoConfig.DB = pool
	}
	repo, err := twofa.NewTwoFARepository(cfg.Persistence.Type, repoConfig)
	if err != nil {
		return nil, err
	}

	notifyOpts := []notification.NotificationManagerOption{
		notification.WithSMTP(cfg.Email.ToSMTPConfig()),
	}
	if cfg.Telegram.IsConfigured() {
		notifyOpts = append(notifyOpts, notification.WithTelegram(cfg.Telegram.ToNotificationTelegramConfig()))
	}
	notifyOpts = append(notifyOpts, notification.WithDefaultTemplates())
	notificationManager, err := notification.NewNotificationManagerWithOptions(notifyOpts...)
	if err != nil {
		return nil, err
	}
	if !notificationManager.HasNotifier(notification.TelegramSystem) {
		slog.Warn("Telegram notifier not registered, telegram codes cannot be delivered")
	}

	opts := []twofa.Option{
		twofa.WithTotpEngine(totp.NewEngine(totp.WithIssuer(cfg.TwoFA.Issuer))),
		twofa.WithSender(notificationManager),
		twofa.WithAttemptLimiter(attempts),
		twofa.WithCodeTTL(cfg.TwoFA.CodeTTL),
		twofa.WithAppName(cfg.TwoFA.AppName),
	}
	if cfg.TwoFA.EncryptionKey != "" {
		cipher, err := twofa.NewAESSecretCipher(cfg.TwoFA.EncryptionKey)
		if err != nil {
			return nil, err
		}
		opts = append(opts, twofa.WithSecretCipher(cipher))
	} else {
		slog.Warn("TWOFA_ENCRYPTION_KEY not set, totp secrets are stored unencrypted")
	}

	return twofa.NewService(repo, opts...), nil
}
