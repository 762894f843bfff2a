package push

import (
	"context"

	"firebase.google.com/go/v4/messaging"
)

// FCMSender delivers through Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
}

func NewFCMSender(client *messaging.Client) *FCMSender {
	return &FCMSender{client: client}
}

func (s *FCMSender) Send(ctx context.Context, token string, msg Message) error {
	_, err := s.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: map[string]string{"url": msg.URL},
		Webpush: &messaging.WebpushConfig{
			FCMOptions: &messaging.WebpushFCMOptions{Link: msg.URL},
		},
	})
	if err != nil && (messaging.IsUnregistered(err) || messaging.IsSenderIDMismatch(err)) {
		return ErrSubscriptionGone
	}
	return err
}
