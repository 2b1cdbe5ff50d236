package dto

import (
	"time"

	"github.com/final-year-project/doubtfire-api/internal/domain"
	"github.com/final-year-project/doubtfire-api/internal/service"
)

const rfc3339Tag = "2006-01-02T15:04:05Z07:00"

// StatsQuery selects a statistics window. Empty To means now.
type StatsQuery struct {
	From     string `query:"from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To       string `query:"to" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Interval int    `query:"interval" validate:"omitempty,gt=0"`
}

// Window parses the validated timestamps.
func (q StatsQuery) Window() (from, to *time.Time) {
	return parseOptional(q.From), parseOptional(q.To)
}

func parseOptional(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(rfc3339Tag, raw)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// TicketStatsResponse summarises ticket throughput.
type TicketStatsResponse struct {
	ResolvedCount            int     `json:"resolved_count"`
	NumberUnresolved         int     `json:"number_unresolved"`
	AverageResolveTimeInMins float64 `json:"average_resolve_time_in_mins"`
	AverageWaitTimeInMins    float64 `json:"average_wait_time_in_mins"`
}

// NewTicketStatsResponse maps ticket stats.
func NewTicketStatsResponse(s domain.TicketStats) TicketStatsResponse {
	return TicketStatsResponse{
		ResolvedCount:            s.ResolvedCount,
		NumberUnresolved:         s.NumberUnresolved,
		AverageResolveTimeInMins: s.AverageResolveTimeInMins,
		AverageWaitTimeInMins:    s.AverageWaitTimeInMins,
	}
}

// GraphData holds [unix seconds, value] pairs per series.
type GraphData struct {
	Unresolved            [][2]float64 `json:"unresolved"`
	AverageWaitTimeInMins [][2]float64 `json:"average_wait_time_in_mins"`
}

// NewGraphData splits a series into its two plotted lines.
func NewGraphData(series []domain.SeriesPoint) GraphData {
	graph := GraphData{
		Unresolved:            make([][2]float64, 0, len(series)),
		AverageWaitTimeInMins: make([][2]float64, 0, len(series)),
	}
	for _, p := range series {
		ts := float64(p.Timestamp.Unix())
		graph.Unresolved = append(graph.Unresolved, [2]float64{ts, float64(p.UnresolvedCount)})
		graph.AverageWaitTimeInMins = append(graph.AverageWaitTimeInMins, [2]float64{ts, p.AverageWaitTime})
	}
	return graph
}

// StaffSessionStatsResponse summarises one staff member's sessions.
type StaffSessionStatsResponse struct {
	AverageDurationHours float64 `json:"average_duration_hours"`
	Count                int     `json:"count"`
}

// ReportResponse is the combined statistics payload.
type ReportResponse struct {
	GraphData *GraphData                          `json:"graph_data,omitempty"`
	Tickets   TicketStatsResponse                 `json:"tickets"`
	Sessions  map[int64]StaffSessionStatsResponse `json:"sessions,omitempty"`
}

// NewReportResponse maps a combined report.
func NewReportResponse(r *service.Report) ReportResponse {
	resp := ReportResponse{Tickets: NewTicketStatsResponse(r.Tickets)}
	if r.GraphData != nil {
		graph := NewGraphData(r.GraphData)
		resp.GraphData = &graph
	}
	if r.Sessions != nil {
		resp.Sessions = make(map[int64]StaffSessionStatsResponse, len(r.Sessions))
		for userID, s := range r.Sessions {
			resp.Sessions[userID] = StaffSessionStatsResponse{
				AverageDurationHours: s.AverageDurationHours,
				Count:                s.Count,
			}
		}
	}
	return resp
}
