package repositories

import (
	"context"
	"time"

	"github.com/anonto42/letterbox/backend/internal/apperr"
	"github.com/anonto42/letterbox/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ContentRepository owns letters, replies, threads and comments together with
// their soft-delete lifecycle: Active -> SoftDeleted -> Restored | Purged.
type ContentRepository interface {
	CreateLetter(ctx context.Context, letter *models.Letter) error
	CreateReply(ctx context.Context, reply *models.LetterReply) error
	CreateThread(ctx context.Context, thread *models.Thread) error
	CreateComment(ctx context.Context, comment *models.ThreadComment) error

	GetLetter(ctx context.Context, id uint) (*models.Letter, error)
	GetThread(ctx context.Context, id uint) (*models.Thread, error)
	ListLetters(ctx context.Context, page, limit int) ([]models.Letter, error)
	ListReplies(ctx context.Context, letterID uint) ([]models.LetterReply, error)
	ListComments(ctx context.Context, threadID uint) ([]models.ThreadComment, error)
	GetRef(ctx context.Context, target models.Target) (*models.ContentRef, error)

	SoftDelete(ctx context.Context, target models.Target, byUserID uint) error
	Restore(ctx context.Context, target models.Target) error
	Purge(ctx context.Context, target models.Target) error
	ListExpired(ctx context.Context, before time.Time, limit int) ([]models.Target, error)

	SetLetterStatus(ctx context.Context, letterID uint, status models.LetterStatus) (*models.ContentRef, error)
}

// ContentOption customises a content repository.
type ContentOption func(*PostgresContentRepository)

// WithContentClock overrides the time source used for deletion timestamps.
func WithContentClock(now func() time.Time) ContentOption {
	return func(r *PostgresContentRepository) {
		r.now = now
	}
}

// PostgresContentRepository implements ContentRepository for PostgreSQL
type PostgresContentRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPostgresContentRepository creates a new PostgresContentRepository
func NewPostgresContentRepository(db *gorm.DB, opts ...ContentOption) *PostgresContentRepository {
	r := &PostgresContentRepository{db: db, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *PostgresContentRepository) CreateLetter(ctx context.Context, letter *models.Letter) error {
	if letter.Status == "" {
		letter.Status = models.LetterPublished
	}
	return r.db.WithContext(ctx).Create(letter).Error
}

// CreateReply creates a reply. The letter must exist and not be soft-deleted.
func (r *PostgresContentRepository) CreateReply(ctx context.Context, reply *models.LetterReply) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireLive(tx, models.Target{Type: models.TargetLetter, ID: reply.LetterID}); err != nil {
			return err
		}
		return tx.Create(reply).Error
	})
}

func (r *PostgresContentRepository) CreateThread(ctx context.Context, thread *models.Thread) error {
	return r.db.WithContext(ctx).Create(thread).Error
}

// CreateComment creates a comment. The thread must exist and not be soft-deleted.
func (r *PostgresContentRepository) CreateComment(ctx context.Context, comment *models.ThreadComment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireLive(tx, models.Target{Type: models.TargetThread, ID: comment.ThreadID}); err != nil {
			return err
		}
		return tx.Create(comment).Error
	})
}

// GetLetter retrieves a live letter by ID
func (r *PostgresContentRepository) GetLetter(ctx context.Context, id uint) (*models.Letter, error) {
	var letter models.Letter
	err := r.db.WithContext(ctx).Where("deleted_at IS NULL").First(&letter, id).Error
	if err != nil {
		return nil, notFoundAs(err, apperr.ErrTargetNotFound)
	}
	return &letter, nil
}

// GetThread retrieves a live thread by ID
func (r *PostgresContentRepository) GetThread(ctx context.Context, id uint) (*models.Thread, error) {
	var thread models.Thread
	err := r.db.WithContext(ctx).Where("deleted_at IS NULL").First(&thread, id).Error
	if err != nil {
		return nil, notFoundAs(err, apperr.ErrTargetNotFound)
	}
	return &thread, nil
}

// ListLetters returns published letters, newest first
func (r *PostgresContentRepository) ListLetters(ctx context.Context, page, limit int) ([]models.Letter, error) {
	var letters []models.Letter
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("deleted_at IS NULL AND status = ?", models.LetterPublished).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&letters).Error
	return letters, err
}

func (r *PostgresContentRepository) ListReplies(ctx context.Context, letterID uint) ([]models.LetterReply, error) {
	var replies []models.LetterReply
	err := r.db.WithContext(ctx).
		Where("letter_id = ? AND deleted_at IS NULL", letterID).
		Order("created_at ASC").
		Find(&replies).Error
	return replies, err
}

func (r *PostgresContentRepository) ListComments(ctx context.Context, threadID uint) ([]models.ThreadComment, error) {
	var comments []models.ThreadComment
	err := r.db.WithContext(ctx).
		Where("thread_id = ? AND deleted_at IS NULL", threadID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}

// GetRef returns ownership and deletion state, soft-deleted rows included.
func (r *PostgresContentRepository) GetRef(ctx context.Context, target models.Target) (*models.ContentRef, error) {
	return lookupRef(r.db.WithContext(ctx), target)
}

// SoftDelete marks the content deleted. The update only matches rows with
// deleted_at IS NULL; no match on an existing row means ErrAlreadyDeleted.
// A deleted letter stops being the highlight, and restoring it does not bring
// the highlight back.
func (r *PostgresContentRepository) SoftDelete(ctx context.Context, target models.Target, byUserID uint) error {
	model, err := contentModel(target.Type)
	if err != nil {
		return err
	}
	now := r.now().UTC()

	fields := map[string]any{"deleted_at": now, "deleted_by_id": byUserID}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if target.Type == models.TargetLetter {
			if err := releaseHighlight(tx, target.ID); err != nil {
				return err
			}
			fields["highlighted_at"] = nil
		}
		res := tx.Model(model).
			Where("id = ? AND deleted_at IS NULL", target.ID).
			Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if _, err := lookupRef(tx, target); err != nil {
				return err
			}
			return apperr.ErrAlreadyDeleted
		}
		return nil
	})
}

// Restore clears the deletion marker. Notifications removed by the deletion
// cascade stay removed.
func (r *PostgresContentRepository) Restore(ctx context.Context, target models.Target) error {
	model, err := contentModel(target.Type)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(model).
			Where("id = ? AND deleted_at IS NOT NULL", target.ID).
			Updates(map[string]any{"deleted_at": nil, "deleted_by_id": nil})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			if _, err := lookupRef(tx, target); err != nil {
				return err
			}
			return apperr.ErrNotDeleted
		}
		return nil
	})
}

// Purge permanently removes soft-deleted content with its likes and
// notifications. Purging a letter or thread takes its replies or comments
// with it, and a purged letter can no longer be the highlight.
func (r *PostgresContentRepository) Purge(ctx context.Context, target models.Target) error {
	model, err := contentModel(target.Type)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ref, err := lookupRef(tx, target)
		if err != nil {
			return err
		}
		if ref.DeletedAt == nil {
			return apperr.ErrNotDeleted
		}

		switch target.Type {
		case models.TargetLetter:
			if err := purgeChildren(tx, models.TargetLetterReply, &models.LetterReply{}, "letter_id", target.ID); err != nil {
				return err
			}
			if err := releaseHighlight(tx, target.ID); err != nil {
				return err
			}
		case models.TargetThread:
			if err := purgeChildren(tx, models.TargetThreadComment, &models.ThreadComment{}, "thread_id", target.ID); err != nil {
				return err
			}
		}

		if err := tx.Where("target_type = ? AND target_id = ?", target.Type, target.ID).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if _, err := deleteNotificationsByColumn(tx, models.TargetColumn(target.Type), []uint{target.ID}); err != nil {
			return err
		}
		return tx.Delete(model, target.ID).Error
	})
}

// ListExpired returns content soft-deleted before the cutoff, children first so
// a sweep purging in order never trips over an already-cascaded row.
func (r *PostgresContentRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]models.Target, error) {
	db := r.db.WithContext(ctx)
	var targets []models.Target

	for _, t := range models.TargetTypes {
		var ids []uint
		if err := db.Table(t.Table()).
			Where("deleted_at IS NOT NULL AND deleted_at < ?", before.UTC()).
			Order("id").
			Limit(limit).
			Pluck("id", &ids).Error; err != nil {
			return nil, err
		}
		for _, id := range ids {
			targets = append(targets, models.Target{Type: t, ID: id})
		}
	}
	return targets, nil
}

// SetLetterStatus moves a live letter between published and pending review.
func (r *PostgresContentRepository) SetLetterStatus(ctx context.Context, letterID uint, status models.LetterStatus) (*models.ContentRef, error) {
	var ref *models.ContentRef
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Letter{}).
			Where("id = ? AND deleted_at IS NULL", letterID).
			Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrTargetNotFound
		}
		var err error
		ref, err = lookupRef(tx, models.Target{Type: models.TargetLetter, ID: letterID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return ref, nil
}

func contentModel(t models.TargetType) (any, error) {
	switch t {
	case models.TargetLetter:
		return &models.Letter{}, nil
	case models.TargetLetterReply:
		return &models.LetterReply{}, nil
	case models.TargetThread:
		return &models.Thread{}, nil
	case models.TargetThreadComment:
		return &models.ThreadComment{}, nil
	}
	return nil, apperr.ErrTargetNotFound
}

// releaseHighlight clears the highlight row if it points at the letter. It
// runs before the letter row is touched, matching the lock order of a
// highlight swap.
func releaseHighlight(tx *gorm.DB, letterID uint) error {
	return tx.Model(&models.Highlight{}).
		Where("id = ? AND letter_id = ?", models.HighlightRowID, letterID).
		Updates(map[string]any{
			"letter_id":         nil,
			"highlighted_at":    nil,
			"highlighted_by_id": nil,
			"version":           gorm.Expr("version + 1"),
		}).Error
}

func requireLive(tx *gorm.DB, target models.Target, lock ...clause.Locking) error {
	ref, err := lookupRef(tx, target, lock...)
	if err != nil {
		return err
	}
	if !ref.Live() {
		return apperr.ErrTargetNotFound
	}
	return nil
}

// purgeChildren hard-deletes every reply or comment under a parent, with the
// likes and notifications that point at them.
func purgeChildren(tx *gorm.DB, kind models.TargetType, model any, parentColumn string, parentID uint) error {
	var ids []uint
	if err := tx.Model(model).Where(parentColumn+" = ?", parentID).Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("target_type = ? AND target_id IN ?", kind, ids).Delete(&models.Like{}).Error; err != nil {
		return err
	}
	if _, err := deleteNotificationsByColumn(tx, models.TargetColumn(kind), ids); err != nil {
		return err
	}
	return tx.Where(parentColumn+" = ?", parentID).Delete(model).Error
}
