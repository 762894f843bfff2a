package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/anonto42/letterbox/backend/internal/push"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// stuckAfter is how long a RUNNING job may stay locked before it is requeued.
const stuckAfter = 5 * time.Minute

// IDGenerator hands out job ids.
type IDGenerator interface {
	Next() int64
}

type Repo struct {
	DB  *gorm.DB
	IDs IDGenerator
	Now func() time.Time
}

func NewRepo(db *gorm.DB, ids IDGenerator) *Repo {
	return &Repo{DB: db, IDs: ids, Now: time.Now}
}

// Migrate creates the jobs table.
func (r *Repo) Migrate() error {
	return r.DB.AutoMigrate(&Job{})
}

// EnqueuePush queues a push delivery to every device of the recipient.
func (r *Repo) EnqueuePush(ctx context.Context, recipientID uint, msg push.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	now := r.Now().UTC()
	j := Job{
		ID:          r.IDs.Next(),
		UserID:      recipientID,
		Type:        TypePushDispatch,
		Payload:     payload,
		RunAt:       now,
		Status:      StatusPending,
		MaxAttempts: 8,
	}
	return r.DB.WithContext(ctx).Create(&j).Error
}

// Claim one due job. The row is selected FOR UPDATE SKIP LOCKED and then
// flipped to RUNNING only if it is still PENDING, so two workers never own the
// same job.
func (r *Repo) Claim(ctx context.Context, workerID string) (*Job, error) {
	now := r.Now().UTC()
	var claimed *Job

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// requeue stuck RUNNING jobs
		if err := tx.Model(&Job{}).
			Where("status = ? AND locked_at IS NOT NULL AND locked_at < ?", StatusRunning, now.Add(-stuckAfter)).
			Updates(map[string]any{"status": StatusPending, "locked_by": nil, "locked_at": nil}).Error; err != nil {
			return err
		}

		var job Job
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND run_at <= ?", StatusPending, now).
			Order("run_at ASC").
			Take(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		res := tx.Model(&Job{}).
			Where("id = ? AND status = ?", job.ID, StatusPending).
			Updates(map[string]any{"status": StatusRunning, "locked_by": workerID, "locked_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		job.Status, job.LockedBy, job.LockedAt = StatusRunning, &workerID, &now
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *Repo) MarkDone(ctx context.Context, id int64) error {
	return r.DB.WithContext(ctx).Model(&Job{}).Where("id = ?", id).
		Updates(map[string]any{"status": StatusDone, "locked_by": nil, "locked_at": nil}).Error
}

func (r *Repo) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	return r.DB.WithContext(ctx).Model(&Job{}).Where("id = ?", id).
		Updates(map[string]any{"status": StatusFailed, "last_error": errMsg, "locked_by": nil, "locked_at": nil}).Error
}

func (r *Repo) RetryLater(ctx context.Context, id int64, attempts int, runAt time.Time, errMsg string) error {
	return r.DB.WithContext(ctx).Model(&Job{}).Where("id = ?", id).
		Updates(map[string]any{
			"status":     StatusPending,
			"attempts":   attempts,
			"run_at":     runAt.UTC(),
			"locked_by":  nil,
			"locked_at":  nil,
			"last_error": errMsg,
		}).Error
}
