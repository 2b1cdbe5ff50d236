package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/final-year-project/doubtfire-api/internal/service"
)

const refreshTimeout = 30 * time.Second

// StatsRefresher recomputes the cached dashboard series on a cron schedule.
type StatsRefresher struct {
	stats  *service.StatsService
	cron   *cron.Cron
	logger *zap.Logger
}

// NewStatsRefresher schedules a refresh with a standard cron spec or an
// "@every" descriptor.
func NewStatsRefresher(stats *service.StatsService, schedule string, logger *zap.Logger) (*StatsRefresher, error) {
	r := &StatsRefresher{
		stats:  stats,
		cron:   cron.New(cron.WithLocation(time.UTC)),
		logger: logger,
	}
	if _, err := r.cron.AddFunc(schedule, r.tick); err != nil {
		return nil, fmt.Errorf("invalid stats refresh schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start runs the scheduler in the background.
func (r *StatsRefresher) Start() {
	r.cron.Start()
	r.logger.Info("stats refresher started", zap.Int("jobs", len(r.cron.Entries())))
}

// Stop halts the scheduler and waits for a running refresh to finish or ctx to end.
func (r *StatsRefresher) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
		r.logger.Warn("stats refresher stop timed out")
	}
}

// RunOnce recomputes the dashboard series immediately.
func (r *StatsRefresher) RunOnce(ctx context.Context) error {
	series, err := r.stats.RefreshDashboard(ctx)
	if err != nil {
		return err
	}
	r.logger.Debug("dashboard series refreshed", zap.Int("points", len(series)))
	return nil
}

func (r *StatsRefresher) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := r.RunOnce(ctx); err != nil {
		r.logger.Error("dashboard refresh failed", zap.Error(err))
	}
}
