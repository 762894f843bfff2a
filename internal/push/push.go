// Package push fans a message out to every device a user registered and
// prunes devices the provider reports as gone.
package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anonto42/letterbox/backend/internal/models"
)

// ErrSubscriptionGone is returned by a Sender when the token is no longer
// valid and the subscription should be removed.
var ErrSubscriptionGone = errors.New("push: subscription gone")

// Message is what a device shows.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url"`
}

// Sender delivers one message to one device token.
type Sender interface {
	Send(ctx context.Context, token string, msg Message) error
}

// Subscriptions is the part of the subscription store the dispatcher needs.
type Subscriptions interface {
	ListByUserID(ctx context.Context, userID uint) ([]models.PushSubscription, error)
	RemoveToken(ctx context.Context, token string) error
}

// Dispatcher sends to all of a user's devices.
type Dispatcher struct {
	subs   Subscriptions
	sender Sender
	log    *slog.Logger
}

func NewDispatcher(subs Subscriptions, sender Sender, log *slog.Logger) *Dispatcher {
	return &Dispatcher{subs: subs, sender: sender, log: log}
}

// SendToUser delivers msg to every device of the user. Gone devices are
// pruned and do not count as failures. The returned error joins transient
// failures so the caller can retry.
func (d *Dispatcher) SendToUser(ctx context.Context, userID uint, msg Message) (int, error) {
	subs, err := d.subs.ListByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list subscriptions: %w", err)
	}

	delivered := 0
	var errs []error
	for _, sub := range subs {
		err := d.sender.Send(ctx, sub.Token, msg)
		switch {
		case err == nil:
			delivered++
		case errors.Is(err, ErrSubscriptionGone):
			d.log.Info("pruning push subscription", "user_id", userID, "platform", sub.Platform)
			if err := d.subs.RemoveToken(ctx, sub.Token); err != nil {
				d.log.Warn("prune push subscription", "user_id", userID, "error", err)
			}
		default:
			errs = append(errs, err)
		}
	}
	return delivered, errors.Join(errs...)
}

// NotificationMessage renders the push payload for a notification target.
func NotificationMessage(target models.NotificationTarget) Message {
	switch target.Type {
	case models.NotificationLetterLike:
		return Message{Title: "New like", Body: "Someone liked your letter", URL: fmt.Sprintf("/letters/%d", target.LetterID)}
	case models.NotificationReplyLike:
		return Message{Title: "New like", Body: "Someone liked your reply", URL: fmt.Sprintf("/letters/%d#reply-%d", target.LetterID, target.ReplyID)}
	case models.NotificationReply:
		return Message{Title: "New reply", Body: "Someone replied to your letter", URL: fmt.Sprintf("/letters/%d#reply-%d", target.LetterID, target.ReplyID)}
	case models.NotificationPendingReview:
		return Message{Title: "Letter under review", Body: "Your letter is waiting for review", URL: fmt.Sprintf("/letters/%d", target.LetterID)}
	case models.NotificationThreadLike:
		return Message{Title: "New like", Body: "Someone liked your thread", URL: fmt.Sprintf("/threads/%d", target.ThreadID)}
	case models.NotificationCommentLike:
		return Message{Title: "New like", Body: "Someone liked your comment", URL: fmt.Sprintf("/threads/%d#comment-%d", target.ThreadID, target.CommentID)}
	case models.NotificationThreadComment:
		return Message{Title: "New comment", Body: "Someone commented on your thread", URL: fmt.Sprintf("/threads/%d#comment-%d", target.ThreadID, target.CommentID)}
	}
	return Message{Title: "New activity", URL: "/notifications"}
}
