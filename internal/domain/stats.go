package domain

import "time"

// TicketStats summarises ticket throughput over a window.
type TicketStats struct {
	ResolvedCount            int
	NumberUnresolved         int
	AverageResolveTimeInMins float64
	AverageWaitTimeInMins    float64
}

// SeriesPoint is one bucket of a dashboard graph, keyed by the bucket start.
type SeriesPoint struct {
	Timestamp       time.Time `json:"timestamp"`
	AverageWaitTime float64   `json:"average_wait_time"`
	UnresolvedCount int       `json:"unresolved_count"`
}
