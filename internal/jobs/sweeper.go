package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/anonto42/letterbox/backend/pkg/etcdlock"
)

const sweepLockKey = "sweeper"

// Purger hard-deletes content soft-deleted before the cutoff.
type Purger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int, error)
}

// HighlightExpirer clears a highlight set before the cutoff.
type HighlightExpirer interface {
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (bool, error)
}

// LeaderLock keeps concurrent replicas from sweeping at the same time.
type LeaderLock interface {
	TryLock(ctx context.Context, key string) (*etcdlock.Lock, error)
}

// Sweeper runs the periodic purge and highlight expiry. Both passes are
// idempotent; Lock is optional.
type Sweeper struct {
	Purger    Purger
	Highlight HighlightExpirer
	Lock      LeaderLock

	Interval        time.Duration
	Retention       time.Duration
	HighlightMaxAge time.Duration

	Now func() time.Time
	Log *slog.Logger
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Log.Info("sweeper started", "interval", s.Interval, "retention", s.Retention)
	for {
		select {
		case <-ctx.Done():
			s.Log.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one sweep, skipping it if another replica holds the lock.
func (s *Sweeper) Tick(ctx context.Context) {
	if s.Lock != nil {
		lock, err := s.Lock.TryLock(ctx, sweepLockKey)
		if errors.Is(err, etcdlock.ErrLocked) {
			s.Log.Debug("sweep skipped, another replica holds the lock")
			return
		}
		if err != nil {
			s.Log.Warn("sweep lock unavailable", "error", err)
			return
		}
		defer lock.Unlock()
	}

	now := s.now()
	start := time.Now()
	purged, err := s.Purger.PurgeExpired(ctx, now.Add(-s.Retention))
	if err != nil {
		s.Log.Error("purge sweep failed", "purged", purged, "error", err)
	} else {
		s.Log.Info("purge sweep completed", "purged", purged, "duration_ms", time.Since(start).Milliseconds())
	}

	if s.HighlightMaxAge <= 0 || s.Highlight == nil {
		return
	}
	expired, err := s.Highlight.ExpireOlderThan(ctx, now.Add(-s.HighlightMaxAge))
	if err != nil {
		s.Log.Error("highlight expiry failed", "error", err)
		return
	}
	if expired {
		s.Log.Info("highlight expired", "max_age", s.HighlightMaxAge)
	}
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
