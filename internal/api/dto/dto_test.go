package dto

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/final-year-project/doubtfire-api/internal/domain"
	apperrors "github.com/final-year-project/doubtfire-api/pkg/util/errorutil"
)

func TestValidateReportsWireNames(t *testing.T) {
	err := Validate(CreateTicketRequest{Description: strings.Repeat("x", 2049)})
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidation, de.Code)
	assert.Equal(t, "is required", de.Details["project_id"])
	assert.Equal(t, "must be at most 2048 characters", de.Details["description"])

	assert.NoError(t, Validate(CreateTicketRequest{ProjectID: 3}))
}

func TestValidateQueries(t *testing.T) {
	assert.NoError(t, Validate(TicketListQuery{Filter: "unresolved"}))
	assert.Error(t, Validate(TicketListQuery{Filter: "pending"}))

	assert.NoError(t, Validate(StatsQuery{From: "2024-03-04T09:00:00Z", Interval: 60}))
	err := Validate(StatsQuery{From: "yesterday"})
	require.Error(t, err)
	assert.Equal(t, "must be an RFC3339 timestamp", apperrors.ToDomainError(err).Details["from"])
	assert.Error(t, Validate(StatsQuery{Interval: -1}))
}

func TestStatsQueryWindow(t *testing.T) {
	from, to := StatsQuery{From: "2024-03-04T19:00:00+10:00"}.Window()
	require.NotNil(t, from)
	assert.Nil(t, to)
	assert.Equal(t, time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC), *from)
}

func TestNewGraphData(t *testing.T) {
	start := time.Unix(1700000000, 0).UTC()
	graph := NewGraphData([]domain.SeriesPoint{
		{Timestamp: start, UnresolvedCount: 2, AverageWaitTime: 7.5},
		{Timestamp: start.Add(time.Minute)},
	})
	assert.Equal(t, [][2]float64{{1700000000, 2}, {1700000060, 0}}, graph.Unresolved)
	assert.Equal(t, [][2]float64{{1700000000, 7.5}, {1700000060, 0}}, graph.AverageWaitTimeInMins)
}

func TestTicketResponseDerivedFlags(t *testing.T) {
	created := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	resolved, _ := domain.Ticket{ID: 1, State: domain.TicketStateOpen, CreatedAt: created}.Resolve(created.Add(time.Minute))
	resp := NewTicketResponse(&resolved)
	assert.True(t, resp.IsClosed)
	assert.True(t, resp.IsResolved)
	assert.Equal(t, resp.ClosedAt, resp.ResolvedAt)
}
