package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"time"

	"github.com/anonto42/letterbox/backend/internal/push"
)

// maxPerTick bounds how many jobs one tick drains.
const maxPerTick = 50

// PushSender is the delivery side of a push job.
type PushSender interface {
	SendToUser(ctx context.Context, userID uint, msg push.Message) (int, error)
}

type Worker struct {
	ID       string
	Repo     *Repo
	Push     PushSender
	Interval time.Duration
	Log      *slog.Logger
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	w.Log.Info("job worker started", "worker_id", w.ID, "interval", w.Interval)
	for {
		select {
		case <-ctx.Done():
			w.Log.Info("job worker stopped", "worker_id", w.ID)
			return
		case <-ticker.C:
			w.Drain(ctx)
		}
	}
}

// Drain handles due jobs until none is left or the per-tick bound is hit.
func (w *Worker) Drain(ctx context.Context) int {
	handled := 0
	for handled < maxPerTick && ctx.Err() == nil {
		job, err := w.Repo.Claim(ctx, w.ID)
		if err != nil {
			w.Log.Error("worker claim error", "error", err)
			return handled
		}
		if job == nil {
			return handled
		}
		w.handle(ctx, job)
		handled++
	}
	return handled
}

func (w *Worker) handle(ctx context.Context, job *Job) {
	switch job.Type {
	case TypePushDispatch:
		w.handlePush(ctx, job)
	default:
		_ = w.Repo.MarkFailed(ctx, job.ID, "unknown job type")
	}
}

func (w *Worker) handlePush(ctx context.Context, job *Job) {
	var msg push.Message
	if err := json.Unmarshal(job.Payload, &msg); err != nil {
		_ = w.Repo.MarkFailed(ctx, job.ID, "bad payload")
		return
	}

	delivered, err := w.Push.SendToUser(ctx, job.UserID, msg)
	if err != nil {
		w.Log.Warn("push delivery failed", "job_id", job.ID, "user_id", job.UserID, "attempt", job.Attempts+1, "error", err)
		w.retry(ctx, job, err.Error())
		return
	}
	w.Log.Debug("push delivered", "job_id", job.ID, "user_id", job.UserID, "devices", delivered)
	_ = w.Repo.MarkDone(ctx, job.ID)
}

func (w *Worker) retry(ctx context.Context, job *Job, errMsg string) {
	attempts := job.Attempts + 1
	if attempts >= job.MaxAttempts {
		_ = w.Repo.MarkFailed(ctx, job.ID, errMsg)
		return
	}

	sec := math.Min(math.Pow(2, float64(attempts)), 600)
	next := w.Repo.Now().Add(time.Duration(sec) * time.Second)

	_ = w.Repo.RetryLater(ctx, job.ID, attempts, next, errMsg)
}
