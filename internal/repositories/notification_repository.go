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

// maxActorPreview caps how many actors a listed notification carries.
const maxActorPreview = 3

// IDGenerator hands out unique int64 ids for notification rows.
type IDGenerator interface {
	Next() int64
}

// MergeResult describes what a like merge did.
type MergeResult struct {
	Notification *models.Notification
	// Created is true when a new notification was started.
	Created bool
	// ActorAdded is false when the actor was already part of the notification.
	ActorAdded bool
	// TargetGone is true when the content was deleted before the merge ran.
	// Nothing is written in that case.
	TargetGone bool
}

// DemergeResult describes what an unlike demerge did.
type DemergeResult struct {
	ActorsRemoved int
	// Deleted counts notifications removed because their last actor left.
	Deleted int
}

// NotificationView is a notification with its actor preview for listing.
type NotificationView struct {
	models.Notification
	Actors     []models.UserCompact `json:"actors"`
	ActorCount int                  `json:"actor_count"`
}

// NotificationRepository merges like events into windowed notifications and
// keeps the actor sets consistent.
type NotificationRepository interface {
	MergeLike(ctx context.Context, recipientID, actorID uint, target models.NotificationTarget) (*MergeResult, error)
	DemergeLike(ctx context.Context, recipientID, actorID uint, target models.NotificationTarget) (*DemergeResult, error)
	CreateStandalone(ctx context.Context, recipientID, actorID uint, target models.NotificationTarget) (*models.Notification, error)
	DeleteByTarget(ctx context.Context, target models.Target) (int64, error)
	GetByRecipientID(ctx context.Context, recipientID uint, page, limit int) ([]NotificationView, int64, error)
	MarkAsRead(ctx context.Context, recipientID uint, notificationID int64) error
	MarkAllAsRead(ctx context.Context, recipientID uint) (int64, error)
}

// NotificationOption customises a notification repository.
type NotificationOption func(*postgresNotificationRepository)

// WithClock overrides the time source used for activity windows.
func WithClock(now func() time.Time) NotificationOption {
	return func(r *postgresNotificationRepository) {
		r.now = now
	}
}

type postgresNotificationRepository struct {
	db     *gorm.DB
	ids    IDGenerator
	window time.Duration
	now    func() time.Time
}

// NewPostgresNotificationRepository creates the merger. window is the activity
// window during which likes on the same target fold into one notification.
func NewPostgresNotificationRepository(db *gorm.DB, ids IDGenerator, window time.Duration, opts ...NotificationOption) NotificationRepository {
	r := &postgresNotificationRepository{
		db:     db,
		ids:    ids,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MergeLike folds the actor into the active notification for (recipient, type,
// target), or starts a new one. Merges for the same recipient are serialised
// on the recipient's user row, so at most one active notification exists.
func (r *postgresNotificationRepository) MergeLike(ctx context.Context, recipientID, actorID uint, target models.NotificationTarget) (*MergeResult, error) {
	now := r.now().UTC()
	col, targetID := target.Key()
	result := &MergeResult{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, recipientID); err != nil {
			return err
		}
		live, err := contentLive(tx, target)
		if err != nil {
			return err
		}
		if !live {
			result.TargetGone = true
			return nil
		}

		var active models.Notification
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("recipient_id = ? AND type = ? AND "+col+" = ? AND last_activity_at >= ?",
				recipientID, target.Type, targetID, now.Add(-r.window)).
			Order("last_activity_at DESC").
			Take(&active).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			n, err := r.insert(tx, recipientID, actorID, target, now)
			if err != nil {
				return err
			}
			result.Notification, result.Created, result.ActorAdded = n, true, true
			return nil
		}
		if err != nil {
			return err
		}

		result.Notification = &active
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.NotificationActor{NotificationID: active.ID, UserID: actorID, CreatedAt: now})
		if res.Error != nil {
			if isUniqueViolation(res.Error) {
				return nil
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		result.ActorAdded = true
		active.IsRead, active.IsCountDecremented, active.LastActivityAt = false, false, now
		return tx.Model(&models.Notification{}).Where("id = ?", active.ID).Updates(map[string]any{
			"is_read":              false,
			"is_count_decremented": false,
			"last_activity_at":     now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DemergeLike removes the actor from every notification of this type and target
// that lists them, ignoring the activity window. A notification left without
// actors is deleted in the same transaction; the remaining-actor count is read
// after the delete while the notification row is locked.
func (r *postgresNotificationRepository) DemergeLike(ctx context.Context, recipientID, actorID uint, target models.NotificationTarget) (*DemergeResult, error) {
	col, targetID := target.Key()
	result := &DemergeResult{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		if err := tx.Model(&models.Notification{}).
			Joins("JOIN notification_actors ON notification_actors.notification_id = notifications.id").
			Where("notifications.recipient_id = ? AND notifications.type = ? AND notifications."+col+" = ? AND notification_actors.user_id = ?",
				recipientID, target.Type, targetID, actorID).
			Pluck("notifications.id", &ids).Error; err != nil {
			return err
		}

		for _, id := range ids {
			var n models.Notification
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Take(&n, id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return err
			}

			res := tx.Where("notification_id = ? AND user_id = ?", id, actorID).Delete(&models.NotificationActor{})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				continue
			}
			result.ActorsRemoved++

			var remaining int64
			if err := tx.Model(&models.NotificationActor{}).Where("notification_id = ?", id).Count(&remaining).Error; err != nil {
				return err
			}
			if remaining > 0 {
				continue
			}
			if err := tx.Delete(&models.Notification{}, id).Error; err != nil {
				return err
			}
			result.Deleted++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CreateStandalone always starts a new notification with a single actor. Used
// for replies, thread comments and review notices, which never merge. It
// returns a nil notification when the content is already gone.
func (r *postgresNotificationRepository) CreateStandalone(ctx context.Context, recipientID, actorID uint, target models.NotificationTarget) (*models.Notification, error) {
	now := r.now().UTC()
	var n *models.Notification
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, recipientID); err != nil {
			return err
		}
		live, err := contentLive(tx, target)
		if err != nil || !live {
			return err
		}
		n, err = r.insert(tx, recipientID, actorID, target, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

// DeleteByTarget hard-deletes every notification referencing the content, for
// any recipient and any type, including those about its replies or comments.
func (r *postgresNotificationRepository) DeleteByTarget(ctx context.Context, target models.Target) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = deleteNotificationsByColumn(tx, models.TargetColumn(target.Type), []uint{target.ID})
		return err
	})
	return deleted, err
}

func (r *postgresNotificationRepository) GetByRecipientID(ctx context.Context, recipientID uint, page, limit int) ([]NotificationView, int64, error) {
	db := r.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Notification{}).Where("recipient_id = ?", recipientID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.Notification
	offset := (page - 1) * limit
	if err := db.Where("recipient_id = ?", recipientID).
		Order("last_activity_at DESC").
		Offset(offset).Limit(limit).
		Find(&notifications).Error; err != nil {
		return nil, 0, err
	}
	if len(notifications) == 0 {
		return []NotificationView{}, total, nil
	}

	ids := make([]int64, len(notifications))
	for i, n := range notifications {
		ids[i] = n.ID
	}

	type actorRow struct {
		NotificationID int64
		UserID         uint
		Name           string
	}
	var rows []actorRow
	if err := db.Table("notification_actors").
		Select("notification_actors.notification_id, notification_actors.user_id, users.name").
		Joins("LEFT JOIN users ON users.id = notification_actors.user_id").
		Where("notification_actors.notification_id IN ?", ids).
		Order("notification_actors.created_at DESC").
		Scan(&rows).Error; err != nil {
		return nil, 0, err
	}

	byNotification := make(map[int64][]models.UserCompact, len(notifications))
	for _, row := range rows {
		byNotification[row.NotificationID] = append(byNotification[row.NotificationID], models.UserCompact{ID: row.UserID, Name: row.Name})
	}

	views := make([]NotificationView, len(notifications))
	for i, n := range notifications {
		actors := byNotification[n.ID]
		views[i] = NotificationView{Notification: n, ActorCount: len(actors)}
		if len(actors) > maxActorPreview {
			actors = actors[:maxActorPreview]
		}
		views[i].Actors = actors
	}
	return views, total, nil
}

func (r *postgresNotificationRepository) MarkAsRead(ctx context.Context, recipientID uint, notificationID int64) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", notificationID, recipientID).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrTargetNotFound
	}
	return nil
}

func (r *postgresNotificationRepository) MarkAllAsRead(ctx context.Context, recipientID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

func (r *postgresNotificationRepository) insert(tx *gorm.DB, recipientID, actorID uint, target models.NotificationTarget, now time.Time) (*models.Notification, error) {
	n := &models.Notification{
		ID:             r.ids.Next(),
		RecipientID:    recipientID,
		LastActivityAt: now,
		CreatedAt:      now,
	}
	target.Apply(n)
	if err := tx.Create(n).Error; err != nil {
		return nil, err
	}
	if err := tx.Create(&models.NotificationActor{NotificationID: n.ID, UserID: actorID, CreatedAt: now}).Error; err != nil {
		return nil, err
	}
	return n, nil
}

// lockUser takes a row lock on the user, failing with ErrUserNotFound.
func lockUser(tx *gorm.DB, userID uint) error {
	var user models.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").Take(&user, userID).Error
	return notFoundAs(err, apperr.ErrUserNotFound)
}

// contentLive reports whether the notification's content and its parent are
// still live. Both rows stay share-locked until the transaction ends, so a
// soft delete either commits first and is seen here, or waits and its cascade
// removes what this transaction writes.
func contentLive(tx *gorm.DB, target models.NotificationTarget) (bool, error) {
	ref, err := lookupRef(tx, target.Content(), clause.Locking{Strength: "SHARE"})
	if errors.Is(err, apperr.ErrTargetNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ref.Live(), nil
}

// deleteNotificationsByColumn removes notifications (and their actors) whose
// target column matches any of ids.
func deleteNotificationsByColumn(tx *gorm.DB, column string, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	matching := tx.Model(&models.Notification{}).Select("id").Where(column+" IN ?", ids)
	if err := tx.Where("notification_id IN (?)", matching).Delete(&models.NotificationActor{}).Error; err != nil {
		return 0, err
	}
	res := tx.Where(column+" IN ?", ids).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
