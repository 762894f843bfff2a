package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anonto42/letterbox/backend/internal/models"
	"github.com/anonto42/letterbox/backend/internal/push"
	"github.com/anonto42/letterbox/backend/internal/repositories"
	"github.com/anonto42/letterbox/backend/internal/storetest"
	"gorm.io/gorm"
)

const (
	testWindow = 3 * time.Hour
	testLock   = 24 * time.Hour
)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) Next() int64 { return s.n.Add(1) }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingQueue struct {
	mu   sync.Mutex
	msgs []uint
}

func (q *recordingQueue) EnqueuePush(_ context.Context, recipientID uint, _ push.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, recipientID)
	return nil
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

type env struct {
	t     *testing.T
	ctx   context.Context
	db    *gorm.DB
	clock *clock
	queue *recordingQueue

	users         *repositories.PostgresUserRepository
	content       *repositories.PostgresContentRepository
	likes         *repositories.PostgresLikeRepository
	notifications repositories.NotificationRepository
	counter       repositories.UnreadCounter
	highlights    repositories.HighlightRepository

	merger       *NotificationMerger
	interactions *Interactions
	lifecycle    *Lifecycle
	highlighter  *Highlighter
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := storetest.Open(t)
	if err := repositories.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	e := &env{
		t:     t,
		ctx:   context.Background(),
		db:    db,
		clock: &clock{now: time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)},
		queue: &recordingQueue{},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	e.users = repositories.NewPostgresUserRepository(db)
	e.content = repositories.NewPostgresContentRepository(db, repositories.WithContentClock(e.clock.Now))
	e.likes = repositories.NewPostgresLikeRepository(db)
	e.notifications = repositories.NewPostgresNotificationRepository(db, &seqIDs{}, testWindow, repositories.WithClock(e.clock.Now))
	e.counter = repositories.NewPostgresUnreadCounter(db)
	e.highlights = repositories.NewPostgresHighlightRepository(db, testLock, repositories.WithHighlightClock(e.clock.Now))

	perms := NewPermissions(e.users)
	e.merger = NewNotificationMerger(e.notifications, e.queue, log)
	e.interactions = NewInteractions(e.likes, e.content, e.merger)
	e.lifecycle = NewLifecycle(e.content, e.merger, perms, log)
	e.highlighter = NewHighlighter(e.highlights, perms)
	return e
}

func (e *env) user(name string, role models.Role) uint {
	e.t.Helper()
	u := &models.User{Name: name, Email: name + "@example.com", Role: role}
	if err := e.users.CreateUser(e.ctx, u); err != nil {
		e.t.Fatalf("create user %s: %v", name, err)
	}
	return u.ID
}

func (e *env) actors(n int) []uint {
	e.t.Helper()
	ids := make([]uint, n)
	for i := range ids {
		ids[i] = e.user(fmt.Sprintf("actor%d", i), models.RoleUser)
	}
	return ids
}

func (e *env) letter(authorID uint) models.Target {
	e.t.Helper()
	l, err := e.interactions.CreateLetter(e.ctx, authorID, &models.CreateLetterRequest{Title: "t", Body: "b"})
	if err != nil {
		e.t.Fatalf("create letter: %v", err)
	}
	return models.Target{Type: models.TargetLetter, ID: l.ID}
}

func (e *env) like(actorID uint, target models.Target) {
	e.t.Helper()
	if _, err := e.interactions.Like(e.ctx, actorID, target); err != nil {
		e.t.Fatalf("like %v by %d: %v", target, actorID, err)
	}
}

func (e *env) unlike(actorID uint, target models.Target) {
	e.t.Helper()
	if _, err := e.interactions.Unlike(e.ctx, actorID, target); err != nil {
		e.t.Fatalf("unlike %v by %d: %v", target, actorID, err)
	}
}

func (e *env) notificationsFor(recipientID uint) []models.Notification {
	e.t.Helper()
	var ns []models.Notification
	if err := e.db.Where("recipient_id = ?", recipientID).Order("id").Find(&ns).Error; err != nil {
		e.t.Fatalf("load notifications: %v", err)
	}
	return ns
}

func (e *env) actorCount(notificationID int64) int64 {
	e.t.Helper()
	var n int64
	if err := e.db.Model(&models.NotificationActor{}).Where("notification_id = ?", notificationID).Count(&n).Error; err != nil {
		e.t.Fatalf("count actors: %v", err)
	}
	return n
}

func (e *env) countNew(userID uint) int64 {
	e.t.Helper()
	n, err := e.counter.CountNew(e.ctx, userID)
	if err != nil {
		e.t.Fatalf("count new: %v", err)
	}
	return n
}

func (e *env) tableCount(model any) int64 {
	e.t.Helper()
	var n int64
	if err := e.db.Model(model).Count(&n).Error; err != nil {
		e.t.Fatalf("count: %v", err)
	}
	return n
}
