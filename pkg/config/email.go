package config

import (
	"time"

	"github.com/tendant/aitools-idm/pkg/notification"
)

// EmailConfig holds SMTP email configuration
type EmailConfig struct {
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     uint16 `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME" env-default:""`
	Password string `env:"EMAIL_PASSWORD" env-default:""`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
}

// ToSMTPConfig converts the config to a notification.SMTPConfig
func (e EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:     e.Host,
		Port:     int(e.Port),
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
		TLS:      e.TLS,
	}
}

func (e EmailConfig) Validate() ValidationErrors {
	return CollectErrors(
		RequireNonEmpty("EMAIL_HOST", e.Host),
		RequireValidPort("EMAIL_PORT", e.Port),
		RequireValidEmail("EMAIL_FROM", e.From),
	)
}

// TelegramConfig holds the Telegram bot used for chat codes
type TelegramConfig struct {
	BotToken string        `env:"TELEGRAM_BOT_TOKEN"`
	APIURL   string        `env:"TELEGRAM_API_URL" env-default:"https://api.telegram.org"`
	Timeout  time.Duration `env:"TELEGRAM_TIMEOUT" env-default:"10s"`
}

// IsConfigured returns true if a bot token is set
func (t TelegramConfig) IsConfigured() bool {
	return t.BotToken != ""
}

// ToNotificationTelegramConfig converts the config to a notification.TelegramConfig
func (t TelegramConfig) ToNotificationTelegramConfig() notification.TelegramConfig {
	return notification.TelegramConfig{
		BotToken: t.BotToken,
		APIURL:   t.APIURL,
		Timeout:  t.Timeout,
	}
}
