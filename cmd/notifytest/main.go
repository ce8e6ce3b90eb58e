package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/tendant/aitools-idm/pkg/config"
	"github.com/tendant/aitools-idm/pkg/notification"
)

// notifytest sends a sample 2FA code through the configured email or
// telegram notifier to check delivery settings.
func main() {
	system := flag.String("system", "email", "Notification system: email or telegram")
	to := flag.String("to", "", "Email address or telegram chat id (required)")
	flag.Parse()

	if *to == "" {
		fmt.Println("Error: -to is required")
		flag.Usage()
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})))

	cfg, err := config.Load(".env")
	if err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(1)
	}

	opts := []notification.NotificationManagerOption{notification.WithDefaultTemplates()}
	switch notification.NotificationSystem(*system) {
	case notification.EmailSystem:
		opts = append(opts, notification.WithSMTP(cfg.Email.ToSMTPConfig()))
	case notification.TelegramSystem:
		if !cfg.Telegram.IsConfigured() {
			slog.Error("TELEGRAM_BOT_TOKEN is not set")
			os.Exit(1)
		}
		opts = append(opts, notification.WithTelegram(cfg.Telegram.ToNotificationTelegramConfig()))
	default:
		slog.Error("Unknown system", "system", *system)
		os.Exit(1)
	}

	nm, err := notification.NewNotificationManagerWithOptions(opts...)
	if err != nil {
		slog.Error("Failed to initialize notification manager", "err", err)
		os.Exit(1)
	}

	err = nm.Send(context.Background(), notification.TwofaCodeNotice, notification.NotificationSystem(*system), notification.NotificationData{
		To: *to,
		Data: map[string]string{
			"Code":             "123456",
			"ExpiresInMinutes": fmt.Sprint(int(cfg.TwoFA.CodeTTL.Minutes())),
			"Name":             "Test",
			"AppName":          cfg.TwoFA.AppName,
		},
	})
	if err != nil {
		slog.Error("Failed to send notification", "system", *system, "to", *to, "err", err)
		os.Exit(1)
	}
	slog.Info("Notification sent", "system", *system, "to", *to)
}
