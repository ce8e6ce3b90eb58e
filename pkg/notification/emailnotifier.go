package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	TLS      bool
	Username string
	Password string
	From     string
}

type EmailNotifier struct {
	SMTPConfig SMTPConfig
	client     *mail.Client
}

func NewEmailNotifier(config SMTPConfig) (*EmailNotifier, error) {
	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTimeout(30 * time.Second),
	}

	// Only add authentication if username and password are provided
	if config.Username != "" && config.Password != "" {
		slog.Info("Adding authentication", "user", config.Username)
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthLogin),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	if !config.TLS {
		slog.Info("Using NoTLS policy")
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	} else {
		slog.Info("Using TLS Mandatory policy")
		opts = append(opts,
			mail.WithTLSConfig(&tls.Config{ServerName: config.Host, MinVersion: tls.VersionTLS12}),
			mail.WithTLSPolicy(mail.TLSMandatory),
		)
	}

	slog.Info("Creating mail client", "Host", config.Host, "Port", config.Port)
	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		slog.Error("Failed to create mail client", "err", err)
		return nil, err
	}

	return &EmailNotifier{SMTPConfig: config, client: client}, nil
}

func (e *EmailNotifier) Send(ctx context.Context, noticeType NoticeType, notification NotificationData, noticeTemplate NoticeTemplate) error {
	msg, err := e.buildMessage(notification, noticeTemplate)
	if err != nil {
		return err
	}

	if err := e.client.DialAndSendWithContext(ctx, msg); err != nil {
		slog.Error("Failed to send email", "notice", noticeType, "err", err)
		return err
	}

	slog.Info("Email sent successfully", "notice", noticeType, "to", notification.To, "host", e.SMTPConfig.Host, "port", e.SMTPConfig.Port)
	return nil
}

func (e *EmailNotifier) buildMessage(notification NotificationData, noticeTemplate NoticeTemplate) (*mail.Msg, error) {
	if notification.To == "" {
		return nil, fmt.Errorf("email notification requires 'To' address")
	}

	textBody := notification.Body
	if noticeTemplate.Text != "" {
		body, err := renderText(noticeTemplate.Text, notification.Data)
		if err != nil {
			slog.Error("Failed to render text template", "err", err)
			return nil, err
		}
		textBody = body
	}

	var htmlBody string
	if noticeTemplate.Html != "" {
		body, err := renderHtml(noticeTemplate.Html, notification.Data)
		if err != nil {
			slog.Error("Failed to render HTML template", "err", err)
			return nil, err
		}
		htmlBody = body
	}

	if textBody == "" && htmlBody == "" {
		return nil, fmt.Errorf("email notification has no content")
	}

	subject := noticeTemplate.Subject
	if notification.Subject != "" {
		subject = notification.Subject
	}

	msg := mail.NewMsg()
	if err := msg.From(e.SMTPConfig.From); err != nil {
		slog.Error("Failed to set from address", "err", err)
		return nil, err
	}
	if err := msg.To(notification.To); err != nil {
		slog.Error("Failed to set to address", "err", err)
		return nil, err
	}
	msg.Subject(subject)

	if textBody != "" {
		msg.SetBodyString(mail.TypeTextPlain, textBody)
		if htmlBody != "" {
			msg.AddAlternativeString(mail.TypeTextHTML, htmlBody)
		}
	} else {
		msg.SetBodyString(mail.TypeTextHTML, htmlBody)
	}

	return msg, nil
}
