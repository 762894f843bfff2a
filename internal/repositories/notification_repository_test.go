package repositories

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anonto42/letterbox/backend/internal/apperr"
	"github.com/anonto42/letterbox/backend/internal/models"
	"github.com/anonto42/letterbox/backend/internal/storetest"
	"gorm.io/gorm"
)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) Next() int64 { return s.n.Add(1) }

func setup(t *testing.T) (*gorm.DB, func(name string) uint) {
	t.Helper()
	db := storetest.Open(t)
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	users := NewPostgresUserRepository(db)
	mk := func(name string) uint {
		u := &models.User{Name: name, Email: name + "@example.com"}
		if err := users.CreateUser(context.Background(), u); err != nil {
			t.Fatalf("create user: %v", err)
		}
		return u.ID
	}
	return db, mk
}

// seedLetter creates a letter by author with the given number of replies.
func seedLetter(t *testing.T, db *gorm.DB, author uint, replies int) (uint, []uint) {
	t.Helper()
	ctx := context.Background()
	content := NewPostgresContentRepository(db)
	letter := &models.Letter{AuthorID: author, Title: "t", Body: "b"}
	if err := content.CreateLetter(ctx, letter); err != nil {
		t.Fatalf("create letter: %v", err)
	}
	ids := make([]uint, replies)
	for i := range ids {
		reply := &models.LetterReply{LetterID: letter.ID, AuthorID: author, Body: "r"}
		if err := content.CreateReply(ctx, reply); err != nil {
			t.Fatalf("create reply: %v", err)
		}
		ids[i] = reply.ID
	}
	return letter.ID, ids
}

func TestGetByRecipientIDActorPreview(t *testing.T) {
	ctx := context.Background()
	db, mkUser := setup(t)
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	repo := NewPostgresNotificationRepository(db, &seqIDs{}, time.Hour, WithClock(func() time.Time { return now }))

	recipient := mkUser("recipient")
	letter, replies := seedLetter(t, db, recipient, 1)
	names := []string{"ann", "ben", "cat", "dan", "eve"}
	for _, name := range names {
		now = now.Add(time.Minute)
		if _, err := repo.MergeLike(ctx, recipient, mkUser(name), models.LetterLikeTarget(letter)); err != nil {
			t.Fatalf("merge %s: %v", name, err)
		}
	}
	now = now.Add(time.Minute)
	if _, err := repo.CreateStandalone(ctx, recipient, mkUser("replier"), models.ReplyTarget(letter, replies[0])); err != nil {
		t.Fatalf("standalone: %v", err)
	}

	views, total, err := repo.GetByRecipientID(ctx, recipient, 1, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(views) != 2 {
		t.Fatalf("total=%d len=%d, want 2", total, len(views))
	}
	if views[0].Type != models.NotificationReply {
		t.Fatalf("newest activity first: got %s", views[0].Type)
	}
	likes := views[1]
	if likes.ActorCount != 5 || len(likes.Actors) != maxActorPreview {
		t.Fatalf("actor_count=%d preview=%d", likes.ActorCount, len(likes.Actors))
	}
	if likes.Actors[0].Name != "eve" {
		t.Fatalf("most recent actor first, got %q", likes.Actors[0].Name)
	}
}

func TestMarkAsReadScopedToRecipient(t *testing.T) {
	ctx := context.Background()
	db, mkUser := setup(t)
	repo := NewPostgresNotificationRepository(db, &seqIDs{}, time.Hour)

	recipient, other, actor := mkUser("r"), mkUser("o"), mkUser("a")
	letter, replies := seedLetter(t, db, recipient, 1)
	n, err := repo.CreateStandalone(ctx, recipient, actor, models.ReplyTarget(letter, replies[0]))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.MarkAsRead(ctx, other, n.ID); !errors.Is(err, apperr.ErrTargetNotFound) {
		t.Fatalf("mark other's notification: got %v, want ErrTargetNotFound", err)
	}
	if err := repo.MarkAsRead(ctx, recipient, n.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if updated, err := repo.MarkAllAsRead(ctx, recipient); err != nil || updated != 0 {
		t.Fatalf("mark all: updated=%d err=%v, want 0", updated, err)
	}
}

func TestMergeUnknownRecipient(t *testing.T) {
	db, mkUser := setup(t)
	repo := NewPostgresNotificationRepository(db, &seqIDs{}, time.Hour)
	_, err := repo.MergeLike(context.Background(), 424242, mkUser("a"), models.LetterLikeTarget(1))
	if !errors.Is(err, apperr.ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}
}

func TestDeleteByTargetReachesChildren(t *testing.T) {
	ctx := context.Background()
	db, mkUser := setup(t)
	repo := NewPostgresNotificationRepository(db, &seqIDs{}, time.Hour)
	r, a := mkUser("r"), mkUser("a")
	first, replies := seedLetter(t, db, r, 2)
	second, _ := seedLetter(t, db, r, 0)

	for _, target := range []models.NotificationTarget{
		models.LetterLikeTarget(first),
		models.ReplyLikeTarget(first, replies[0]),
		models.ReplyTarget(first, replies[1]),
		models.LetterLikeTarget(second),
	} {
		if n, err := repo.CreateStandalone(ctx, r, a, target); err != nil || n == nil {
			t.Fatalf("create %v: n=%v err=%v", target, n, err)
		}
	}

	deleted, err := repo.DeleteByTarget(ctx, models.Target{Type: models.TargetLetterReply, ID: replies[0]})
	if err != nil || deleted != 1 {
		t.Fatalf("delete reply: deleted=%d err=%v", deleted, err)
	}
	deleted, err = repo.DeleteByTarget(ctx, models.Target{Type: models.TargetLetter, ID: first})
	if err != nil || deleted != 2 {
		t.Fatalf("delete letter: deleted=%d err=%v", deleted, err)
	}

	var left int64
	db.Model(&models.NotificationActor{}).Count(&left)
	if left != 1 {
		t.Fatalf("actors left = %d, want 1", left)
	}
}

func TestMergeSkipsDeletedContent(t *testing.T) {
	ctx := context.Background()
	db, mkUser := setup(t)
	repo := NewPostgresNotificationRepository(db, &seqIDs{}, time.Hour)
	content := NewPostgresContentRepository(db)
	r, a := mkUser("r"), mkUser("a")
	letter, replies := seedLetter(t, db, r, 1)

	if err := content.SoftDelete(ctx, models.Target{Type: models.TargetLetter, ID: letter}, r); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	res, err := repo.MergeLike(ctx, r, a, models.LetterLikeTarget(letter))
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if !res.TargetGone || res.Created || res.Notification != nil {
		t.Fatalf("merge on deleted letter = %+v, want TargetGone only", res)
	}
	n, err := repo.CreateStandalone(ctx, r, a, models.ReplyTarget(letter, replies[0]))
	if err != nil || n != nil {
		t.Fatalf("reply under deleted letter: n=%v err=%v, want nil", n, err)
	}
	res, err = repo.MergeLike(ctx, r, a, models.LetterLikeTarget(9999))
	if err != nil || !res.TargetGone {
		t.Fatalf("merge on missing letter: res=%+v err=%v", res, err)
	}

	var count int64
	db.Model(&models.Notification{}).Count(&count)
	if count != 0 {
		t.Fatalf("notifications = %d, want 0", count)
	}
}
