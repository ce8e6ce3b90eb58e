package notification

import (
	"context"
	"fmt"
	"sync"
)

// NotificationSystem is a delivery channel (email, telegram).
type NotificationSystem string

// NoticeType identifies what is being sent (e.g. a 2FA code).
type NoticeType string

const (
	EmailSystem    NotificationSystem = "email"
	TelegramSystem NotificationSystem = "telegram"

	TwofaCodeNotice NoticeType = "twofa_code"
)

// NoticeTemplate holds the templates for one notice type on one system.
// Text and Html are Go templates executed against NotificationData.Data.
type NoticeTemplate struct {
	Subject string
	Text    string
	Html    string
}

// NotificationManager manages notifiers and notification templates.
type NotificationManager struct {
	mu                   sync.RWMutex
	notifiers            map[NotificationSystem]Notifier
	notificationRegistry map[NoticeType]map[NotificationSystem]NoticeTemplate
}

func NewNotificationManager() *NotificationManager {
	return &NotificationManager{
		notifiers:            make(map[NotificationSystem]Notifier),
		notificationRegistry: make(map[NoticeType]map[NotificationSystem]NoticeTemplate),
	}
}

// RegisterNotifier registers a notifier for a specific system, replacing any
// previous one.
func (nm *NotificationManager) RegisterNotifier(system NotificationSystem, notifier Notifier) {
	nm.mu.Lock()
	defer nm.mu.Unlock()
	nm.notifiers[system] = notifier
}

// HasNotifier reports whether a notifier is registered for system.
func (nm *NotificationManager) HasNotifier(system NotificationSystem) bool {
	nm.mu.RLock()
	defer nm.mu.RUnlock()
	_, ok := nm.notifiers[system]
	return ok
}

// RegisterNotification adds or replaces the template for a notice type on a system.
func (nm *NotificationManager) RegisterNotification(noticeType NoticeType, system NotificationSystem, template NoticeTemplate) error {
	if noticeType == "" || system == "" {
		return fmt.Errorf("invalid input: notice type and system cannot be empty")
	}
	if template.Subject == "" {
		return fmt.Errorf("invalid template: subject cannot be empty")
	}
	if template.Text == "" && template.Html == "" {
		return fmt.Errorf("invalid template: either text or html content is required")
	}

	nm.mu.Lock()
	defer nm.mu.Unlock()
	if _, exists := nm.notificationRegistry[noticeType]; !exists {
		nm.notificationRegistry[noticeType] = make(map[NotificationSystem]NoticeTemplate)
	}
	nm.notificationRegistry[noticeType][system] = template
	return nil
}

// Send delivers one notification through the notifier registered for system.
func (nm *NotificationManager) Send(ctx context.Context, noticeType NoticeType, system NotificationSystem, notification NotificationData) error {
	nm.mu.RLock()
	systemTemplates, exists := nm.notificationRegistry[noticeType]
	if !exists {
		nm.mu.RUnlock()
		return fmt.Errorf("no templates registered for notice type: %s", noticeType)
	}
	template, exists := systemTemplates[system]
	if !exists {
		nm.mu.RUnlock()
		return fmt.Errorf("no template registered for system: %s under notice type: %s", system, noticeType)
	}
	notifier, exists := nm.notifiers[system]
	nm.mu.RUnlock()
	if !exists {
		return fmt.Errorf("no notifier registered for system: %s", system)
	}

	return notifier.Send(ctx, noticeType, notification, template)
}
