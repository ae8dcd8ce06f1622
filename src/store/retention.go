package store

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"devsonar/src/logger"
)

// DefaultRetentionSchedule prunes once an hour.
const DefaultRetentionSchedule = "@hourly"

// Retention periodically removes records older than MaxAge.
type Retention struct {
	store  Store
	maxAge time.Duration
	logger logger.Logger
	now    func() time.Time
	cron   *cron.Cron
}

// NewRetention creates a pruning job. A non-positive maxAge disables pruning.
func NewRetention(st Store, maxAge time.Duration, log logger.Logger) *Retention {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &Retention{store: st, maxAge: maxAge, logger: log, now: time.Now}
}

// PruneOnce deletes records forwarded before now minus MaxAge.
func (r *Retention) PruneOnce(ctx context.Context) (int, error) {
	if r.maxAge <= 0 {
		return 0, nil
	}
	cutoff := r.now().Add(-r.maxAge)
	n, err := r.store.Prune(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	if n > 0 {
		r.logger.Info("[Retention] Pruned %d records older than %s", n, cutoff.Format(time.RFC3339))
	}
	return n, nil
}

// Start runs PruneOnce immediately and then on schedule until ctx is done.
func (r *Retention) Start(ctx context.Context, schedule string) error {
	if r.maxAge <= 0 {
		return nil
	}
	if _, err := r.PruneOnce(ctx); err != nil {
		r.logger.Warn("[Retention] %v", err)
	}

	r.cron = cron.New()
	_, err := r.cron.AddFunc(schedule, func() {
		if _, err := r.PruneOnce(ctx); err != nil {
			r.logger.Warn("[Retention] %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	r.cron.Start()

	go func() {
		<-ctx.Done()
		<-r.cron.Stop().Done()
	}()
	return nil
}
