package services

import (
	"context"
	"log/slog"

	"github.com/anonto42/letterbox/backend/internal/apperr"
	"github.com/anonto42/letterbox/backend/internal/models"
	"github.com/anonto42/letterbox/backend/internal/push"
	"github.com/anonto42/letterbox/backend/internal/repositories"
	"github.com/anonto42/letterbox/backend/pkg/logger"
)

// PushQueue accepts outbound push deliveries.
type PushQueue interface {
	EnqueuePush(ctx context.Context, recipientID uint, msg push.Message) error
}

// NotificationMerger turns like, reply and moderation events into
// notifications. Nothing it does fails the triggering action: write failures
// are logged as NotificationWriteError and dropped, and push delivery is only
// queued after the notification has been committed.
type NotificationMerger struct {
	repo  repositories.NotificationRepository
	queue PushQueue
	log   *slog.Logger
}

// NewNotificationMerger creates a merger. queue may be nil to disable push.
func NewNotificationMerger(repo repositories.NotificationRepository, queue PushQueue, log *slog.Logger) *NotificationMerger {
	return &NotificationMerger{repo: repo, queue: queue, log: log}
}

// OnLike folds the like into the recipient's active notification.
func (m *NotificationMerger) OnLike(ctx context.Context, like *models.LikeResult) {
	if like.SelfAction() {
		return
	}
	target := like.NotificationTarget()
	res, err := m.repo.MergeLike(ctx, like.RecipientID, like.ActorID, target)
	if err != nil {
		m.writeFailed(ctx, target, like.RecipientID, like.ActorID, err)
		return
	}
	if res.TargetGone {
		m.skipped(ctx, target, like.ActorID)
		return
	}
	if res.Created || res.ActorAdded {
		m.dispatch(ctx, like.RecipientID, target)
	}
}

// OnUnlike removes the actor from any notification about the target.
func (m *NotificationMerger) OnUnlike(ctx context.Context, like *models.LikeResult) {
	if like.SelfAction() {
		return
	}
	target := like.NotificationTarget()
	if _, err := m.repo.DemergeLike(ctx, like.RecipientID, like.ActorID, target); err != nil {
		m.writeFailed(ctx, target, like.RecipientID, like.ActorID, err)
	}
}

// OnStandalone records a non-mergeable event such as a reply, a thread
// comment or a review notice.
func (m *NotificationMerger) OnStandalone(ctx context.Context, recipientID, actorID uint, target models.NotificationTarget) {
	if recipientID == actorID {
		return
	}
	n, err := m.repo.CreateStandalone(ctx, recipientID, actorID, target)
	if err != nil {
		m.writeFailed(ctx, target, recipientID, actorID, err)
		return
	}
	if n == nil {
		m.skipped(ctx, target, actorID)
		return
	}
	m.dispatch(ctx, recipientID, target)
}

// OnContentDeleted removes every notification that references the content.
func (m *NotificationMerger) OnContentDeleted(ctx context.Context, target models.Target) {
	deleted, err := m.repo.DeleteByTarget(ctx, target)
	if err != nil {
		logger.WithTrace(ctx, m.log).Error("notification cascade failed",
			"target_type", target.Type,
			"target_id", target.ID,
			"error", &apperr.NotificationWriteError{Type: "cascade", TargetID: target.ID, Err: err})
		return
	}
	if deleted > 0 {
		m.log.Debug("notification cascade", "target_type", target.Type, "target_id", target.ID, "deleted", deleted)
	}
}

func (m *NotificationMerger) dispatch(ctx context.Context, recipientID uint, target models.NotificationTarget) {
	if m.queue == nil {
		return
	}
	if err := m.queue.EnqueuePush(ctx, recipientID, push.NotificationMessage(target)); err != nil {
		logger.WithTrace(ctx, m.log).Warn("push enqueue failed",
			"recipient_id", recipientID,
			"notification_type", target.Type,
			"error", err)
	}
}

func (m *NotificationMerger) writeFailed(ctx context.Context, target models.NotificationTarget, recipientID, actorID uint, err error) {
	_, targetID := target.Key()
	werr := &apperr.NotificationWriteError{
		Type:        string(target.Type),
		TargetID:    targetID,
		ActorID:     actorID,
		RecipientID: recipientID,
		Err:         err,
	}
	logger.WithTrace(ctx, m.log).Error("notification write failed",
		"notification_type", werr.Type,
		"target_id", werr.TargetID,
		"actor_id", werr.ActorID,
		"recipient_id", werr.RecipientID,
		"error", werr)
}

func (m *NotificationMerger) skipped(ctx context.Context, target models.NotificationTarget, actorID uint) {
	_, targetID := target.Key()
	logger.WithTrace(ctx, m.log).Debug("notification skipped, content deleted",
		"notification_type", target.Type,
		"target_id", targetID,
		"actor_id", actorID)
}
