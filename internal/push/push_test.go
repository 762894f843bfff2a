package push

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/anonto42/letterbox/backend/internal/models"
)

type fakeSubs struct {
	subs    []models.PushSubscription
	removed []string
}

func (f *fakeSubs) ListByUserID(_ context.Context, userID uint) ([]models.PushSubscription, error) {
	var out []models.PushSubscription
	for _, s := range f.subs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubs) RemoveToken(_ context.Context, token string) error {
	f.removed = append(f.removed, token)
	return nil
}

type fakeSender struct {
	results map[string]error
	sent    []string
}

func (f *fakeSender) Send(_ context.Context, token string, _ Message) error {
	f.sent = append(f.sent, token)
	return f.results[token]
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendToUserPrunesGoneTokens(t *testing.T) {
	subs := &fakeSubs{subs: []models.PushSubscription{
		{UserID: 1, Token: "ok"},
		{UserID: 1, Token: "gone"},
		{UserID: 2, Token: "other-user"},
	}}
	sender := &fakeSender{results: map[string]error{"gone": ErrSubscriptionGone}}

	d := NewDispatcher(subs, sender, discard())
	delivered, err := d.SendToUser(context.Background(), 1, Message{Title: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("delivered = %d, want 1", delivered)
	}
	if len(subs.removed) != 1 || subs.removed[0] != "gone" {
		t.Fatalf("removed = %v, want [gone]", subs.removed)
	}
	if len(sender.sent) != 2 {
		t.Fatalf("sent to %v, expected only user 1's devices", sender.sent)
	}
}

func TestSendToUserReportsTransientFailures(t *testing.T) {
	subs := &fakeSubs{subs: []models.PushSubscription{{UserID: 1, Token: "flaky"}}}
	sender := &fakeSender{results: map[string]error{"flaky": errors.New("503 unavailable")}}

	d := NewDispatcher(subs, sender, discard())
	_, err := d.SendToUser(context.Background(), 1, Message{})
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected transient error, got %v", err)
	}
	if len(subs.removed) != 0 {
		t.Fatalf("transient failures must not prune, removed %v", subs.removed)
	}
}

func TestNotificationMessageURL(t *testing.T) {
	msg := NotificationMessage(models.CommentLikeTarget(4, 9))
	if msg.URL != "/threads/4#comment-9" {
		t.Fatalf("URL = %q", msg.URL)
	}
}
