package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/anonto42/letterbox/backend/internal/apperr"
	"github.com/anonto42/letterbox/backend/internal/models"
	"github.com/anonto42/letterbox/backend/internal/repositories"
)

// purgeBatch is how many expired rows per content kind one sweep pass lists.
const purgeBatch = 500

// Lifecycle drives soft delete, restore, purge and review of content.
type Lifecycle struct {
	content repositories.ContentRepository
	merger  *NotificationMerger
	perms   *Permissions
	log     *slog.Logger
}

func NewLifecycle(content repositories.ContentRepository, merger *NotificationMerger, perms *Permissions, log *slog.Logger) *Lifecycle {
	return &Lifecycle{content: content, merger: merger, perms: perms, log: log}
}

// Delete soft-deletes content owned by the actor, or anyone's content for a
// moderator, then drops every notification that references it.
func (l *Lifecycle) Delete(ctx context.Context, actorID uint, target models.Target) error {
	ref, err := l.content.GetRef(ctx, target)
	if err != nil {
		return err
	}
	if ref.AuthorID != actorID {
		if err := l.require(ctx, actorID, ActionDeleteAny); err != nil {
			return err
		}
	}

	if err := l.content.SoftDelete(ctx, target, actorID); err != nil {
		return err
	}
	l.merger.OnContentDeleted(ctx, target)
	return nil
}

// Restore brings soft-deleted content back. Cascaded notifications are not
// recreated.
func (l *Lifecycle) Restore(ctx context.Context, actorID uint, target models.Target) error {
	if err := l.require(ctx, actorID, ActionRestore); err != nil {
		return err
	}
	return l.content.Restore(ctx, target)
}

// Purge permanently removes soft-deleted content.
func (l *Lifecycle) Purge(ctx context.Context, actorID uint, target models.Target) error {
	if err := l.require(ctx, actorID, ActionPurge); err != nil {
		return err
	}
	return l.content.Purge(ctx, target)
}

// PurgeExpired purges everything soft-deleted before the cutoff. Rows that
// vanished or were restored in the meantime are skipped.
func (l *Lifecycle) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	purged := 0
	for {
		targets, err := l.content.ListExpired(ctx, before, purgeBatch)
		if err != nil {
			return purged, err
		}
		if len(targets) == 0 {
			return purged, nil
		}

		progress := 0
		for _, target := range targets {
			if err := ctx.Err(); err != nil {
				return purged, err
			}
			err := l.content.Purge(ctx, target)
			switch {
			case err == nil:
				purged++
				progress++
			case errors.Is(err, apperr.ErrTargetNotFound), errors.Is(err, apperr.ErrNotDeleted):
				progress++
			default:
				l.log.Error("purge failed", "target_type", target.Type, "target_id", target.ID, "error", err)
			}
		}
		if progress == 0 {
			return purged, errors.New("purge sweep made no progress")
		}
	}
}

// MarkPendingReview pulls a letter back for moderation and tells its author.
func (l *Lifecycle) MarkPendingReview(ctx context.Context, moderatorID, letterID uint) error {
	if err := l.require(ctx, moderatorID, ActionReview); err != nil {
		return err
	}
	ref, err := l.content.SetLetterStatus(ctx, letterID, models.LetterPendingReview)
	if err != nil {
		return err
	}
	l.merger.OnStandalone(ctx, ref.AuthorID, moderatorID, models.PendingReviewTarget(letterID))
	return nil
}

// Approve publishes a letter that was pending review.
func (l *Lifecycle) Approve(ctx context.Context, moderatorID, letterID uint) error {
	if err := l.require(ctx, moderatorID, ActionReview); err != nil {
		return err
	}
	_, err := l.content.SetLetterStatus(ctx, letterID, models.LetterPublished)
	return err
}

func (l *Lifecycle) require(ctx context.Context, userID uint, action Action) error {
	ok, err := l.perms.HasPermission(ctx, userID, ResourceContent, action)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrForbidden
	}
	return nil
}
