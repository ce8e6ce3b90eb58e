package notification

import "context"

type NotificationData struct {
	To      string            // Recipient identifier (email address or chat id)
	Subject string            // Optional: overrides the template subject for email
	Body    string            // Optional: pre-rendered content, used when the template has none
	Data    map[string]string // Template values
}

type Notifier interface {
	Send(ctx context.Context, noticeType NoticeType, notification NotificationData, template NoticeTemplate) error
}
