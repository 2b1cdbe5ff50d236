package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/final-year-project/doubtfire-api/internal/clock"
	"github.com/final-year-project/doubtfire-api/internal/config"
	"github.com/final-year-project/doubtfire-api/internal/domain"
	"github.com/final-year-project/doubtfire-api/internal/observability"
	"github.com/final-year-project/doubtfire-api/internal/repository"
	"github.com/final-year-project/doubtfire-api/pkg/util/errorutil"
)

// SeriesCache stores the precomputed dashboard series. Set must refuse a
// series whose generation predates the latest Invalidate.
type SeriesCache interface {
	Get(ctx context.Context) ([]domain.SeriesPoint, bool, error)
	Generation(ctx context.Context) (int64, error)
	Set(ctx context.Context, generation int64, series []domain.SeriesPoint) (bool, error)
	Invalidate(ctx context.Context) error
}

// StatsService computes helpdesk statistics.
type StatsService struct {
	tickets  repository.TicketRepository
	sessions *SessionService
	cache    SeriesCache
	clock    clock.Clock
	cfg      config.StatsConfig
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// StatsDependencies bundles collaborators for the stats service.
type StatsDependencies struct {
	TicketRepo repository.TicketRepository
	Sessions   *SessionService
	Cache      SeriesCache
	Clock      clock.Clock
	Config     config.StatsConfig
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// ReportInput selects the window of a combined report. A nil To means now.
type ReportInput struct {
	From            *time.Time
	To              *time.Time
	IntervalSeconds int
	IncludeSessions bool
}

// Report is the combined statistics response.
type Report struct {
	GraphData []domain.SeriesPoint
	Tickets   domain.TicketStats
	Sessions  map[int64]domain.StaffSessionStats
}

// NewStatsService constructs the service.
func NewStatsService(deps StatsDependencies) *StatsService {
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &StatsService{
		tickets:  deps.TicketRepo,
		sessions: deps.Sessions,
		cache:    deps.Cache,
		clock:    deps.Clock,
		cfg:      deps.Config,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// Now exposes the service clock so callers default windows consistently.
func (s *StatsService) Now() time.Time {
	return s.clock.Now()
}

// TicketStats summarises resolutions in [from, to] and the current backlog.
// Without from every resolved ticket counts.
func (s *StatsService) TicketStats(ctx context.Context, from *time.Time, to time.Time) (domain.TicketStats, error) {
	var lower, upper *time.Time
	if from != nil {
		lower, upper = from, &to
	}
	summary, err := s.tickets.ResolutionSummary(ctx, lower, upper)
	if err != nil {
		return domain.TicketStats{}, fmt.Errorf("resolution summary: %w", err)
	}
	unresolved, err := s.tickets.Count(ctx, repository.TicketFilter{States: domain.FilterOpen.States()})
	if err != nil {
		return domain.TicketStats{}, fmt.Errorf("count unresolved: %w", err)
	}

	var avg float64
	if summary.AverageMinutes != nil {
		avg = *summary.AverageMinutes
	}
	return domain.TicketStats{
		ResolvedCount:            summary.Count,
		NumberUnresolved:         unresolved,
		AverageResolveTimeInMins: avg,
		AverageWaitTimeInMins:    WaitTime(avg, unresolved),
	}, nil
}

// WaitTime estimates queueing delay as the mean resolve time times the backlog.
func WaitTime(averageResolveMins float64, unresolved int) float64 {
	return averageResolveMins * float64(unresolved)
}

// ValidateInterval rejects intervals that would produce more than limit points
// between from and to.
func ValidateInterval(from, to time.Time, intervalSeconds, limit int) error {
	if intervalSeconds <= 0 {
		return errorutil.NewValidationError("interval must be positive", map[string]any{"interval": intervalSeconds})
	}
	if limit <= 0 {
		return errorutil.NewValidationError("data point limit must be positive", map[string]any{"limit": limit})
	}
	minInterval := to.Sub(from).Seconds() / float64(limit)
	if float64(intervalSeconds) < minInterval {
		return errorutil.NewIntervalTooSmall(minInterval)
	}
	return nil
}

// DashboardSeries walks [start, end) in bucket steps. The final bucket may run
// past end. Each point counts tickets created in its bucket that are still
// open at the bucket's end, and scales the mean resolve time of tickets
// resolved in the bucket by that count.
func (s *StatsService) DashboardSeries(ctx context.Context, start, end time.Time, bucket time.Duration) ([]domain.SeriesPoint, error) {
	if bucket <= 0 {
		return nil, errorutil.NewValidationError("bucket must be positive", nil)
	}
	n := 0
	for t := start; t.Before(end); t = t.Add(bucket) {
		n++
	}
	series := make([]domain.SeriesPoint, n)
	if n == 0 {
		return series, nil
	}
	lastEnd := start.Add(time.Duration(n) * bucket)

	created, err := s.tickets.List(ctx, repository.TicketFilter{
		CreatedFrom:   &start,
		CreatedBefore: &lastEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("list created tickets: %w", err)
	}
	resolved, err := s.tickets.List(ctx, repository.TicketFilter{
		States:     domain.FilterResolved.States(),
		ClosedFrom: &start,
		ClosedTo:   &lastEnd,
	})
	if err != nil {
		return nil, fmt.Errorf("list resolved tickets: %w", err)
	}

	for i := range series {
		series[i].Timestamp = start.Add(time.Duration(i) * bucket)
	}
	for _, ticket := range created {
		i := int(ticket.CreatedAt.Sub(start) / bucket)
		bucketEnd := series[i].Timestamp.Add(bucket)
		if ticket.ClosedAt == nil || ticket.ClosedAt.After(bucketEnd) {
			series[i].UnresolvedCount++
		}
	}

	sums := make([]float64, n)
	counts := make([]int, n)
	for _, ticket := range resolved {
		i := int(ticket.ClosedAt.Sub(start) / bucket)
		if i >= n {
			continue
		}
		sums[i] += *ticket.MinutesToResolve
		counts[i]++
	}
	for i := range series {
		if counts[i] > 0 {
			series[i].AverageWaitTime = WaitTime(sums[i]/float64(counts[i]), series[i].UnresolvedCount)
		}
	}
	return series, nil
}

// Report assembles graph data, ticket stats and optionally session stats.
// Graph data is only produced when From is set.
func (s *StatsService) Report(ctx context.Context, input ReportInput) (*Report, error) {
	to := s.clock.Now()
	if input.To != nil {
		to = *input.To
	}
	interval := input.IntervalSeconds
	if interval == 0 {
		interval = s.cfg.DefaultIntervalSeconds
	}

	report := &Report{}
	if input.From != nil {
		if to.Before(*input.From) {
			return nil, errorutil.NewValidationError("from must not be after to", nil)
		}
		if err := ValidateInterval(*input.From, to, interval, s.cfg.DataPointLimit); err != nil {
			return nil, err
		}
		series, err := s.DashboardSeries(ctx, *input.From, to, time.Duration(interval)*time.Second)
		if err != nil {
			return nil, err
		}
		report.GraphData = series
	}

	tickets, err := s.TicketStats(ctx, input.From, to)
	if err != nil {
		return nil, err
	}
	report.Tickets = tickets

	if input.IncludeSessions {
		sessions, err := s.sessions.StatsByStaff(ctx, input.From, to)
		if err != nil {
			return nil, err
		}
		report.Sessions = sessions
	}
	return report, nil
}

// Dashboard returns the rolling dashboard series, from cache when fresh.
func (s *StatsService) Dashboard(ctx context.Context) ([]domain.SeriesPoint, error) {
	if s.cache != nil {
		series, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("stats cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheLookup(ok)
		if ok {
			return series, nil
		}
	}
	return s.RefreshDashboard(ctx)
}

// RefreshDashboard recomputes the dashboard series and stores it in the cache.
func (s *StatsService) RefreshDashboard(ctx context.Context) ([]domain.SeriesPoint, error) {
	var (
		generation int64
		cacheable  = s.cache != nil
	)
	if cacheable {
		gen, err := s.cache.Generation(ctx)
		if err != nil {
			s.logger.Warn("stats cache generation read failed", zap.Error(err))
			cacheable = false
		}
		generation = gen
	}

	end := s.clock.Now()
	start := end.Add(-s.cfg.DashboardWindow())
	series, err := s.DashboardSeries(ctx, start, end, s.cfg.DashboardBucket())
	if err != nil {
		return nil, err
	}
	if cacheable {
		stored, err := s.cache.Set(ctx, generation, series)
		switch {
		case err != nil:
			s.logger.Warn("stats cache write failed", zap.Error(err))
		case !stored:
			s.logger.Debug("stats cache invalidated during refresh, series not stored")
		}
	}
	return series, nil
}

// InvalidateDashboard drops the cached series.
func (s *StatsService) InvalidateDashboard(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx)
}
