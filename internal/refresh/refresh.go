// Package refresh re-runs a background refresh on a fixed interval.
package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// DefaultInterval is the polling period for the displayed location.
const DefaultInterval = 2 * time.Minute

// Refreshable is anything that can refresh itself in the background.
type Refreshable interface {
	Refresh(ctx context.Context) error
}

// RefreshFunc adapts a function to Refreshable.
type RefreshFunc func(ctx context.Context) error

// Refresh calls f.
func (f RefreshFunc) Refresh(ctx context.Context) error {
	return f(ctx)
}

// Refresher invokes a Refreshable on a schedule. Errors are swallowed: they are
// logged at debug and counted, and never stop the schedule.
type Refresher struct {
	target    Refreshable
	interval  time.Duration
	timeout   time.Duration
	scheduler *gocron.Scheduler
	logger    *zap.Logger
}

// New creates a Refresher. A non-positive interval uses DefaultInterval; the
// per-run timeout is the interval itself.
func New(target Refreshable, interval time.Duration, logger *zap.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		target:    target,
		interval:  interval,
		timeout:   interval,
		scheduler: gocron.NewScheduler(time.UTC),
		logger:    logger,
	}
}

// Start schedules the refresh job. The first run happens one interval from now.
func (r *Refresher) Start() error {
	_, err := r.scheduler.Every(r.interval).WaitForSchedule().SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.RefreshOnce(ctx)
	})
	if err != nil {
		return err
	}
	r.scheduler.StartAsync()
	r.logger.Info("background refresh started", zap.Duration("interval", r.interval))
	return nil
}

// Stop stops the scheduler and drops future runs.
func (r *Refresher) Stop() {
	if r.scheduler != nil {
		r.scheduler.Stop()
	}
}

// RefreshOnce runs one refresh and reports whether it succeeded.
func (r *Refresher) RefreshOnce(ctx context.Context) bool {
	start := time.Now()
	err := r.target.Refresh(ctx)
	if err != nil {
		observability.RefreshTotal.WithLabelValues("error").Inc()
		r.logger.Debug("background refresh failed",
			zap.Duration("duration", time.Since(start)),
			zap.Bool("timeout", errors.Is(err, context.DeadlineExceeded)),
			zap.Error(err))
		return false
	}
	observability.RefreshTotal.WithLabelValues("success").Inc()
	r.logger.Debug("background refresh completed", zap.Duration("duration", time.Since(start)))
	return true
}
