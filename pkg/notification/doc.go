// Package notification sends templated messages over email and Telegram.
//
// A NotificationManager maps a (NoticeType, NotificationSystem) pair to a
// NoticeTemplate and routes the rendered message to the Notifier registered
// for that system:
//
//	nm, err := notification.NewNotificationManagerWithOptions(
//	    notification.WithSMTP(notification.SMTPConfig{
//	        Host: "localhost",
//	        Port: 1025,
//	        From: "noreply@example.com",
//	    }),
//	    notification.WithTelegram(notification.TelegramConfig{BotToken: token}),
//	    notification.WithDefaultTemplates(),
//	)
//
//	err = nm.Send(ctx, notification.TwofaCodeNotice, notification.EmailSystem,
//	    notification.NotificationData{
//	        To:   "alice@example.com",
//	        Data: map[string]string{"Code": "123456", "ExpiresInMinutes": "10"},
//	    })
//
// Notifiers never retry. A failed Send is returned to the caller as is.
//
// MockNotifier records messages for tests and can be told to fail.
package notification
