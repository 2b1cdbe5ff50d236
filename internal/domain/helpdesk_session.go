package domain

import "time"

// HelpdeskSession is one staff member's stint on helpdesk duty.
type HelpdeskSession struct {
	ID           int64
	UserID       int64
	ClockOnTime  time.Time
	ClockOffTime time.Time
	CreatedAt    time.Time
}

// ClockedOn reports whether the session is still running at now.
func (s HelpdeskSession) ClockedOn(now time.Time) bool {
	return s.ClockOffTime.After(now)
}

// Duration is the scheduled or actual length of the session.
func (s HelpdeskSession) Duration() time.Duration {
	return s.ClockOffTime.Sub(s.ClockOnTime)
}

// ClockOff ends the session at now. The bool is false when it had already ended.
func (s HelpdeskSession) ClockOff(now time.Time) (HelpdeskSession, bool) {
	if !s.ClockedOn(now) {
		return s, false
	}
	s.ClockOffTime = now
	return s, true
}

// StaffSessionStats summarises a staff member's sessions.
type StaffSessionStats struct {
	AverageDurationHours float64
	Count                int
}
