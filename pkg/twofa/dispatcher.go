package twofa

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	idmerrors "github.com/tendant/aitools-idm/pkg/errors"
	"github.com/tendant/aitools-idm/pkg/notification"
)

const DefaultCodeTTL = 10 * time.Minute

// Sender delivers a rendered notice. *notification.NotificationManager
// satisfies it.
type Sender interface {
	Send(ctx context.Context, noticeType notification.NoticeType, system notification.NotificationSystem, data notification.NotificationData) error
}

// Dispatcher issues one-time codes and hands them to the email or telegram
// transport.
type Dispatcher struct {
	repo    Repository
	sender  Sender
	codeTTL time.Duration
	appName string
	now     func() time.Time
}

func NewDispatcher(repo Repository, sender Sender, codeTTL time.Duration, appName string, now func() time.Time) *Dispatcher {
	if codeTTL <= 0 {
		codeTTL = DefaultCodeTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		repo:    repo,
		sender:  sender,
		codeTTL: codeTTL,
		appName: appName,
		now:     now,
	}
}

// SendEmailCode delivers a code to the user's registered email address.
func (d *Dispatcher) SendEmailCode(ctx context.Context, user User) (OneTimeCode, error) {
	if user.Email == "" {
		return OneTimeCode{}, idmerrors.Validation("email", "is required")
	}
	return d.send(ctx, user, MethodEmail, user.Email)
}

// SendChatCode delivers a code to a telegram chat.
func (d *Dispatcher) SendChatCode(ctx context.Context, user User, destination string) (OneTimeCode, error) {
	if destination == "" {
		return OneTimeCode{}, idmerrors.Validation("channelAddress", "is required")
	}
	return d.send(ctx, user, MethodTelegram, destination)
}

// send stores the code before handing it to the transport. A delivery
// failure leaves the stored code in place.
func (d *Dispatcher) send(ctx context.Context, user User, method Method, destination string) (OneTimeCode, error) {
	if d.sender == nil {
		return OneTimeCode{}, idmerrors.Transport(fmt.Errorf("no notification sender configured"), "Failed to send verification code")
	}

	now := d.now()
	if removed, err := d.repo.DeleteExpiredCodes(ctx, user.ID, method, now); err != nil {
		return OneTimeCode{}, idmerrors.InternalWrap(err, "failed to clean up expired codes")
	} else if removed > 0 {
		slog.Debug("Expired codes removed", "user_id", user.ID, "method", method, "count", removed)
	}

	value, err := generateNumericCode()
	if err != nil {
		return OneTimeCode{}, idmerrors.InternalWrap(err, "failed to generate code")
	}

	record, err := d.repo.CreateCode(ctx, OneTimeCode{
		ID:        uuid.New(),
		UserID:    user.ID,
		Method:    method,
		Code:      value,
		ExpiresAt: now.Add(d.codeTTL),
		CreatedAt: now,
	})
	if err != nil {
		return OneTimeCode{}, idmerrors.InternalWrap(err, "failed to store code")
	}

	data := notification.NotificationData{
		To: destination,
		Data: map[string]string{
			"Code":             value,
			"ExpiresInMinutes": strconv.Itoa(int(d.codeTTL / time.Minute)),
			"Name":             displayName(user),
			"AppName":          d.appName,
		},
	}
	if err := d.sender.Send(ctx, notification.TwofaCodeNotice, method.notificationSystem(), data); err != nil {
		codesSentTotal.WithLabelValues(string(method), "failure").Inc()
		slog.Error("Failed to send verification code", "user_id", user.ID, "method", method, "error", err)
		return OneTimeCode{}, idmerrors.Transport(err, "Failed to send verification code")
	}

	codesSentTotal.WithLabelValues(string(method), "success").Inc()
	slog.Info("Verification code sent", "user_id", user.ID, "method", method, "expires_at", record.ExpiresAt)
	return record, nil
}

func displayName(user User) string {
	if user.Name != "" {
		return user.Name
	}
	return user.Email
}
