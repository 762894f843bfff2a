package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/anonto42/letterbox/backend/internal/apperr"
	"github.com/anonto42/letterbox/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HighlightRepository guards the single highlighted letter with a cooldown.
type HighlightRepository interface {
	Get(ctx context.Context) (*models.Highlight, error)
	Set(ctx context.Context, letterID, actorID uint, privileged bool) (*models.Highlight, error)
	Clear(ctx context.Context, actorID uint, privileged bool) (*models.Highlight, error)
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (bool, error)
}

// HighlightOption customises a highlight repository.
type HighlightOption func(*postgresHighlightRepository)

// WithHighlightClock overrides the time source used for the cooldown.
func WithHighlightClock(now func() time.Time) HighlightOption {
	return func(r *postgresHighlightRepository) {
		r.now = now
	}
}

type postgresHighlightRepository struct {
	db   *gorm.DB
	lock time.Duration
	now  func() time.Time
}

// NewPostgresHighlightRepository creates the highlight lock. lock is how long
// a highlight stays fixed for non-privileged actors after it was set.
func NewPostgresHighlightRepository(db *gorm.DB, lock time.Duration, opts ...HighlightOption) HighlightRepository {
	r := &postgresHighlightRepository{db: db, lock: lock, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *postgresHighlightRepository) Get(ctx context.Context) (*models.Highlight, error) {
	var h models.Highlight
	if err := r.db.WithContext(ctx).Take(&h, models.HighlightRowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.Highlight{ID: models.HighlightRowID}, nil
		}
		return nil, err
	}
	return &h, nil
}

// Set swaps the highlight to letterID. Clearing the previous letter and
// marking the new one happen in one transaction behind a version check.
func (r *postgresHighlightRepository) Set(ctx context.Context, letterID, actorID uint, privileged bool) (*models.Highlight, error) {
	now := r.now().UTC()
	var out *models.Highlight

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := r.lockRow(tx, now, privileged)
		if err != nil {
			return err
		}
		if err := requireLive(tx, models.Target{Type: models.TargetLetter, ID: letterID}, clause.Locking{Strength: "UPDATE"}); err != nil {
			return err
		}

		if err := swapVersion(tx, current.Version, map[string]any{
			"letter_id":         letterID,
			"highlighted_at":    now,
			"highlighted_by_id": actorID,
		}); err != nil {
			return err
		}
		if err := tx.Model(&models.Letter{}).Where("highlighted_at IS NOT NULL").
			Update("highlighted_at", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Letter{}).Where("id = ?", letterID).
			Update("highlighted_at", now).Error; err != nil {
			return err
		}

		out = &models.Highlight{
			ID:              models.HighlightRowID,
			LetterID:        &letterID,
			HighlightedAt:   &now,
			HighlightedByID: &actorID,
			Version:         current.Version + 1,
			UpdatedAt:       now,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Clear removes the highlight, subject to the same cooldown as Set.
func (r *postgresHighlightRepository) Clear(ctx context.Context, actorID uint, privileged bool) (*models.Highlight, error) {
	now := r.now().UTC()
	var out *models.Highlight

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := r.lockRow(tx, now, privileged)
		if err != nil {
			return err
		}
		if current.LetterID == nil {
			out = current
			return nil
		}
		if err := clearHighlight(tx, current); err != nil {
			return err
		}
		out = &models.Highlight{ID: models.HighlightRowID, Version: current.Version + 1, UpdatedAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ExpireOlderThan clears a highlight set before cutoff. It reports whether
// anything was cleared.
func (r *postgresHighlightRepository) ExpireOlderThan(ctx context.Context, cutoff time.Time) (bool, error) {
	expired := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Highlight
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&current, models.HighlightRowID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if current.LetterID == nil || current.HighlightedAt == nil || !current.HighlightedAt.Before(cutoff.UTC()) {
			return nil
		}
		if err := clearHighlight(tx, &current); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}

// lockRow loads the highlight row for update and enforces the cooldown.
func (r *postgresHighlightRepository) lockRow(tx *gorm.DB, now time.Time, privileged bool) (*models.Highlight, error) {
	var current models.Highlight
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&current, models.HighlightRowID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		current = models.Highlight{ID: models.HighlightRowID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&current).Error; err != nil {
			return nil, err
		}
	}

	if !privileged && current.LetterID != nil && current.HighlightedAt != nil {
		if remaining := current.HighlightedAt.Add(r.lock).Sub(now); remaining > 0 {
			return nil, &apperr.HighlightLockedError{Remaining: remaining}
		}
	}
	return &current, nil
}

func clearHighlight(tx *gorm.DB, current *models.Highlight) error {
	if err := swapVersion(tx, current.Version, map[string]any{
		"letter_id":         nil,
		"highlighted_at":    nil,
		"highlighted_by_id": nil,
	}); err != nil {
		return err
	}
	return tx.Model(&models.Letter{}).Where("id = ?", *current.LetterID).
		Update("highlighted_at", nil).Error
}

// swapVersion applies fields only if nobody changed the row since version was
// read, bumping the version on success.
func swapVersion(tx *gorm.DB, version int64, fields map[string]any) error {
	fields["version"] = version + 1
	res := tx.Model(&models.Highlight{}).
		Where("id = ? AND version = ?", models.HighlightRowID, version).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrHighlightConflict
	}
	return nil
}
