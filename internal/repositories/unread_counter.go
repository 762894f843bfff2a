package repositories

import (
	"context"

	"github.com/anonto42/letterbox/backend/internal/apperr"
	"github.com/anonto42/letterbox/backend/internal/models"
	"gorm.io/gorm"
)

// UnreadCounter answers the "new notifications" badge. A notification counts
// until the recipient opens the notification list; a merge that adds a new
// actor makes it count again.
type UnreadCounter interface {
	CountNew(ctx context.Context, userID uint) (int64, error)
	MarkOpened(ctx context.Context, userID uint) (int64, error)
}

type postgresUnreadCounter struct {
	db *gorm.DB
}

// NewPostgresUnreadCounter creates a new UnreadCounter
func NewPostgresUnreadCounter(db *gorm.DB) UnreadCounter {
	return &postgresUnreadCounter{db: db}
}

func (r *postgresUnreadCounter) CountNew(ctx context.Context, userID uint) (int64, error) {
	db := r.db.WithContext(ctx)

	var user models.User
	if err := db.Select("id").Take(&user, userID).Error; err != nil {
		return 0, notFoundAs(err, apperr.ErrUserNotFound)
	}

	var count int64
	err := db.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_count_decremented = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkOpened flags every counted notification of the user as seen.
func (r *postgresUnreadCounter) MarkOpened(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_count_decremented = ?", userID, false).
		Update("is_count_decremented", true)
	return res.RowsAffected, res.Error
}
