package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/final-year-project/doubtfire-api/internal/domain"
	"github.com/final-year-project/doubtfire-api/pkg/util/errorutil"
)

func TestTicketStatsScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var created []*domain.Ticket
	for i := int64(1); i <= 3; i++ {
		project := f.addStudent(i)
		ticket, err := f.tickets.Create(ctx, i, project, TicketCreateInput{})
		require.NoError(t, err)
		created = append(created, ticket)
	}
	f.clock.Advance(10 * time.Minute)
	_, err := f.tickets.Resolve(ctx, 50, created[0])
	require.NoError(t, err)

	stats, err := f.stats.TicketStats(ctx, nil, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ResolvedCount)
	assert.Equal(t, 2, stats.NumberUnresolved)
	assert.Equal(t, 10.0, stats.AverageResolveTimeInMins)
	assert.Equal(t, 20.0, stats.AverageWaitTimeInMins)
}

func TestTicketStatsWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p1 := f.addStudent(1)
	p2 := f.addStudent(2)

	t1, err := f.tickets.Create(ctx, 1, p1, TicketCreateInput{})
	require.NoError(t, err)
	f.clock.Advance(4 * time.Minute)
	_, err = f.tickets.Resolve(ctx, 50, t1)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	from := f.clock.Now()
	t2, err := f.tickets.Create(ctx, 2, p2, TicketCreateInput{})
	require.NoError(t, err)
	f.clock.Advance(8 * time.Minute)
	_, err = f.tickets.Resolve(ctx, 50, t2)
	require.NoError(t, err)

	windowed, err := f.stats.TicketStats(ctx, &from, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, windowed.ResolvedCount)
	assert.Equal(t, 8.0, windowed.AverageResolveTimeInMins)
	assert.Equal(t, 0, windowed.NumberUnresolved)
	assert.Equal(t, 0.0, windowed.AverageWaitTimeInMins)

	all, err := f.stats.TicketStats(ctx, nil, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, all.ResolvedCount)
	assert.Equal(t, 6.0, all.AverageResolveTimeInMins)

	later := f.clock.Now().Add(time.Hour)
	empty, err := f.stats.TicketStats(ctx, &later, later.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStats{}, empty)
}

func TestWaitTimeIsResolveTimesBacklog(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("wait equals average resolve time times open tickets", prop.ForAll(
		func(minutes []int, open int) bool {
			f := newFixture(t)
			ctx := context.Background()
			repo := f.store.Tickets()
			var id int64
			for _, m := range minutes {
				id++
				closedAt := epoch.Add(time.Duration(m) * time.Second)
				resolveMins := domain.MinutesBetween(epoch, closedAt)
				if err := repo.Create(ctx, &domain.Ticket{
					ProjectID: id, UserID: id, State: domain.TicketStateResolved,
					CreatedAt: epoch, ClosedAt: &closedAt, MinutesToResolve: &resolveMins,
				}); err != nil {
					return false
				}
			}
			for i := 0; i < open; i++ {
				id++
				if err := repo.Create(ctx, &domain.Ticket{
					ProjectID: id, UserID: id, State: domain.TicketStateOpen, CreatedAt: epoch,
				}); err != nil {
					return false
				}
			}
			stats, err := f.stats.TicketStats(ctx, nil, epoch.Add(48*time.Hour))
			if err != nil {
				return false
			}
			return stats.NumberUnresolved == open &&
				stats.ResolvedCount == len(minutes) &&
				stats.AverageWaitTimeInMins == stats.AverageResolveTimeInMins*float64(open)
		},
		gen.SliceOfN(5, gen.IntRange(1, 86400)),
		gen.IntRange(0, 6),
	))

	properties.TestingRun(t)
}

func TestValidateInterval(t *testing.T) {
	from := epoch
	to := epoch.Add(48 * time.Hour)

	err := ValidateInterval(from, to, 5759, 30)
	require.Error(t, err)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeIntervalTooSmall))
	assert.Contains(t, err.Error(), "5760.00 seconds = 96 minutes = 1 hours = 0 days")

	assert.NoError(t, ValidateInterval(from, to, 5760, 30))
	assert.True(t, errorutil.HasCode(ValidateInterval(from, to, 0, 30), errorutil.CodeValidation))
	assert.True(t, errorutil.HasCode(ValidateInterval(from, to, 60, 0), errorutil.CodeValidation))
}

func TestValidateIntervalAcceptsExactlyLargeEnoughIntervals(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("accepted iff interval >= window/limit", prop.ForAll(
		func(windowSeconds, limit, interval int) bool {
			to := epoch.Add(time.Duration(windowSeconds) * time.Second)
			err := ValidateInterval(epoch, to, interval, limit)
			minimum := float64(windowSeconds) / float64(limit)
			if float64(interval) >= minimum {
				return err == nil
			}
			return errorutil.HasCode(err, errorutil.CodeIntervalTooSmall)
		},
		gen.IntRange(0, 30*24*3600),
		gen.IntRange(1, 200),
		gen.IntRange(1, 200000),
	))

	properties.TestingRun(t)
}

func TestDashboardSeriesShape(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	series, err := f.stats.DashboardSeries(ctx, epoch, epoch.Add(6*time.Minute), time.Minute)
	require.NoError(t, err)
	require.Len(t, series, 6)
	for i := 1; i < len(series); i++ {
		assert.Equal(t, 60*time.Second, series[i].Timestamp.Sub(series[i-1].Timestamp))
	}

	partial, err := f.stats.DashboardSeries(ctx, epoch, epoch.Add(6*time.Minute+30*time.Second), time.Minute)
	require.NoError(t, err)
	assert.Len(t, partial, 7)

	none, err := f.stats.DashboardSeries(ctx, epoch, epoch, time.Minute)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.stats.DashboardSeries(ctx, epoch, epoch.Add(time.Minute), 0)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeValidation))
}

func TestDashboardSeriesBuckets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p1, p2, p3 := f.addStudent(1), f.addStudent(2), f.addStudent(3)

	f.clock.Set(epoch.Add(10 * time.Second))
	quick, err := f.tickets.Create(ctx, 3, p3, TicketCreateInput{})
	require.NoError(t, err)

	f.clock.Set(epoch.Add(30 * time.Second))
	slow, err := f.tickets.Create(ctx, 1, p1, TicketCreateInput{})
	require.NoError(t, err)

	f.clock.Set(epoch.Add(40 * time.Second))
	_, err = f.tickets.Close(ctx, 50, quick)
	require.NoError(t, err)

	f.clock.Set(epoch.Add(70 * time.Second))
	_, err = f.tickets.Create(ctx, 2, p2, TicketCreateInput{})
	require.NoError(t, err)

	f.clock.Set(epoch.Add(90 * time.Second))
	_, err = f.tickets.Resolve(ctx, 50, slow)
	require.NoError(t, err)

	series, err := f.stats.DashboardSeries(ctx, epoch, epoch.Add(3*time.Minute), time.Minute)
	require.NoError(t, err)
	require.Len(t, series, 3)

	assert.Equal(t, domain.SeriesPoint{Timestamp: epoch, UnresolvedCount: 1}, series[0])
	assert.Equal(t, domain.SeriesPoint{Timestamp: epoch.Add(time.Minute), UnresolvedCount: 1, AverageWaitTime: 1}, series[1])
	assert.Equal(t, domain.SeriesPoint{Timestamp: epoch.Add(2 * time.Minute)}, series[2])
}

func TestReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	project := f.addStudent(1)
	staff := f.addStaff(50, domain.RoleTutor)

	_, err := f.tickets.Create(ctx, 1, project, TicketCreateInput{})
	require.NoError(t, err)
	_, err = f.sessions.ClockOn(ctx, staff.ID, staff, epoch.Add(time.Hour))
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)

	report, err := f.stats.Report(ctx, ReportInput{})
	require.NoError(t, err)
	assert.Nil(t, report.GraphData)
	assert.Nil(t, report.Sessions)
	assert.Equal(t, 1, report.Tickets.NumberUnresolved)

	from := epoch
	report, err = f.stats.Report(ctx, ReportInput{From: &from, IntervalSeconds: 240, IncludeSessions: true})
	require.NoError(t, err)
	assert.Len(t, report.GraphData, 30)
	assert.Equal(t, 1, report.GraphData[0].UnresolvedCount)
	assert.Equal(t, domain.StaffSessionStats{AverageDurationHours: 1, Count: 1}, report.Sessions[staff.ID])

	_, err = f.stats.Report(ctx, ReportInput{From: &from, IntervalSeconds: 60})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeIntervalTooSmall))

	to := epoch.Add(-time.Hour)
	_, err = f.stats.Report(ctx, ReportInput{From: &from, To: &to})
	assert.True(t, errorutil.HasCode(err, errorutil.CodeValidation))
}

type stubCache struct {
	series     []domain.SeriesPoint
	stored     bool
	err        error
	sets       int
	generation int64
	// onGeneration runs after the generation is read, before the series is computed.
	onGeneration func()
}

func (c *stubCache) Get(context.Context) ([]domain.SeriesPoint, bool, error) {
	if c.err != nil {
		return nil, false, c.err
	}
	return c.series, c.stored, nil
}

func (c *stubCache) Generation(context.Context) (int64, error) {
	gen := c.generation
	if c.onGeneration != nil {
		c.onGeneration()
	}
	return gen, nil
}

func (c *stubCache) Set(_ context.Context, generation int64, series []domain.SeriesPoint) (bool, error) {
	if generation != c.generation {
		return false, nil
	}
	c.series, c.stored = series, true
	c.sets++
	return true, nil
}

func (c *stubCache) Invalidate(context.Context) error {
	c.series, c.stored = nil, false
	c.generation++
	return nil
}

func TestDashboardUsesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cache := &stubCache{}
	stats := NewStatsService(StatsDependencies{
		TicketRepo: f.store.Tickets(),
		Sessions:   f.sessions,
		Cache:      cache,
		Clock:      f.clock,
		Config:     statsConfig(),
		Metrics:    f.metrics,
	})

	first, err := stats.Dashboard(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 180)
	assert.Equal(t, 1, cache.sets)

	second, err := stats.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.sets)

	require.NoError(t, stats.InvalidateDashboard(ctx))
	cache.err = errors.New("redis down")
	_, err = stats.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.sets)

	seriesCount, err := testutil.GatherAndCount(f.metrics.Registry(), "helpdesk_stats_cache_lookups_total")
	require.NoError(t, err)
	assert.Equal(t, 2, seriesCount)
}

func TestRefreshDoesNotRestoreInvalidatedDashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cache := &stubCache{}
	stats := NewStatsService(StatsDependencies{
		TicketRepo: f.store.Tickets(),
		Sessions:   f.sessions,
		Cache:      cache,
		Clock:      f.clock,
		Config:     statsConfig(),
		Metrics:    f.metrics,
	})
	cache.onGeneration = func() {
		cache.onGeneration = nil
		require.NoError(t, stats.InvalidateDashboard(ctx))
	}

	series, err := stats.RefreshDashboard(ctx)
	require.NoError(t, err)
	assert.Len(t, series, 180)
	assert.False(t, cache.stored)
	assert.Equal(t, 0, cache.sets)

	_, err = stats.Dashboard(ctx)
	require.NoError(t, err)
	assert.True(t, cache.stored)
	assert.Equal(t, 1, cache.sets)
}
