package notification

import (
	"embed"
	"log/slog"
)

//go:embed templates/*
var templateFiles embed.FS

const (
	TwofaCodeEmailSubject = "Your 2FA Verification Code"
	TwofaCodeText         = "Your 2FA verification code: {{.Code}}\n\nThis code expires in {{.ExpiresInMinutes}} minutes."
)

func loadTemplate(filename string) string {
	content, err := templateFiles.ReadFile(filename)
	if err != nil {
		slog.Error("Error reading template file!", "err", err, "filename", filename)
		return ""
	}
	return string(content)
}

// NotificationManagerOption is a function that configures a NotificationManager
type NotificationManagerOption func(*NotificationManager) error

// WithSMTP adds an email notifier with the provided SMTP configuration
func WithSMTP(config SMTPConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		emailNotifier, err := NewEmailNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(EmailSystem, emailNotifier)
		return nil
	}
}

// WithTelegram adds a Telegram bot notifier
func WithTelegram(config TelegramConfig) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		telegramNotifier, err := NewTelegramNotifier(config)
		if err != nil {
			return err
		}
		nm.RegisterNotifier(TelegramSystem, telegramNotifier)
		return nil
	}
}

// WithNotifier registers an arbitrary notifier, mostly useful in tests.
func WithNotifier(system NotificationSystem, notifier Notifier) NotificationManagerOption {
	return func(nm *NotificationManager) error {
		nm.RegisterNotifier(system, notifier)
		return nil
	}
}

func WithTwofaCodeEmailTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(TwofaCodeNotice, EmailSystem, NoticeTemplate{
			Subject: TwofaCodeEmailSubject,
			Text:    TwofaCodeText,
			Html:    loadTemplate("templates/email/2fa_code.html"),
		})
	}
}

func WithTwofaCodeTelegramTemplate() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		return nm.RegisterNotification(TwofaCodeNotice, TelegramSystem, NoticeTemplate{
			Subject: TwofaCodeEmailSubject,
			Text:    TwofaCodeText,
		})
	}
}

// WithDefaultTemplates registers all default notification templates
func WithDefaultTemplates() NotificationManagerOption {
	return func(nm *NotificationManager) error {
		for _, opt := range []NotificationManagerOption{
			WithTwofaCodeEmailTemplate(),
			WithTwofaCodeTelegramTemplate(),
		} {
			if err := opt(nm); err != nil {
				return err
			}
		}
		return nil
	}
}

// NewNotificationManagerWithOptions creates a new notification manager with the provided options
func NewNotificationManagerWithOptions(opts ...NotificationManagerOption) (*NotificationManager, error) {
	notificationManager := NewNotificationManager()
	for _, opt := range opts {
		if err := opt(notificationManager); err != nil {
			return nil, err
		}
	}
	return notificationManager, nil
}
