package repositories

import (
	"context"

	"github.com/anonto42/letterbox/backend/internal/apperr"
	"github.com/anonto42/letterbox/backend/internal/models"
	"gorm.io/gorm"
)

// LikeRepository is the like ledger: at most one like per (actor, target).
type LikeRepository interface {
	Like(ctx context.Context, actorID uint, target models.Target) (*models.LikeResult, error)
	Unlike(ctx context.Context, actorID uint, target models.Target) (*models.LikeResult, error)
	HasLiked(ctx context.Context, actorID uint, target models.Target) (bool, error)
	CountLikes(ctx context.Context, target models.Target) (int64, error)
}

// PostgresLikeRepository implements LikeRepository on the relational store
type PostgresLikeRepository struct {
	db *gorm.DB
}

// NewPostgresLikeRepository creates a new PostgresLikeRepository
func NewPostgresLikeRepository(db *gorm.DB) *PostgresLikeRepository {
	return &PostgresLikeRepository{db: db}
}

// Like inserts the like record. A duplicate is detected by the unique index,
// not by a pre-check, and comes back as apperr.ErrAlreadyLiked.
func (r *PostgresLikeRepository) Like(ctx context.Context, actorID uint, target models.Target) (*models.LikeResult, error) {
	result := &models.LikeResult{ActorID: actorID, Target: target}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ref, err := lookupRef(tx, target)
		if err != nil {
			return err
		}
		if !ref.Live() {
			return apperr.ErrTargetNotFound
		}

		like := &models.Like{ActorID: actorID, TargetType: target.Type, TargetID: target.ID}
		if err := tx.Create(like).Error; err != nil {
			if isUniqueViolation(err) {
				return apperr.ErrAlreadyLiked
			}
			return err
		}

		count, err := bumpLikeCount(tx, target, 1)
		if err != nil {
			return err
		}

		result.RecipientID = ref.AuthorID
		result.ParentID = ref.ParentID
		result.LikeCount = count
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Unlike deletes the like record. Unliking soft-deleted content is allowed so
// stale likes can still be withdrawn.
func (r *PostgresLikeRepository) Unlike(ctx context.Context, actorID uint, target models.Target) (*models.LikeResult, error) {
	result := &models.LikeResult{ActorID: actorID, Target: target}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ref, err := lookupRef(tx, target)
		if err != nil {
			return err
		}

		res := tx.Where("actor_id = ? AND target_type = ? AND target_id = ?", actorID, target.Type, target.ID).
			Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.ErrNotLiked
		}

		count, err := bumpLikeCount(tx, target, -1)
		if err != nil {
			return err
		}

		result.RecipientID = ref.AuthorID
		result.ParentID = ref.ParentID
		result.LikeCount = count
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// HasLiked checks if a user currently likes the target
func (r *PostgresLikeRepository) HasLiked(ctx context.Context, actorID uint, target models.Target) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("actor_id = ? AND target_type = ? AND target_id = ?", actorID, target.Type, target.ID).
		Count(&count).Error
	return count > 0, err
}

// CountLikes counts the like records of a target
func (r *PostgresLikeRepository) CountLikes(ctx context.Context, target models.Target) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("target_type = ? AND target_id = ?", target.Type, target.ID).
		Count(&count).Error
	return count, err
}
