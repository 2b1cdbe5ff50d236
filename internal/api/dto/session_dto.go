package dto

import (
	"time"

	"github.com/final-year-project/doubtfire-api/internal/domain"
)

// CreateSessionRequest clocks a staff member on. UserID defaults to the caller.
type CreateSessionRequest struct {
	ClockOffTime time.Time `json:"clock_off_time" validate:"required"`
	UserID       *int64    `json:"user_id" validate:"omitempty,gt=0"`
}

// SessionListQuery filters session listings.
type SessionListQuery struct {
	UserID   int64 `query:"user_id" validate:"omitempty,gt=0"`
	IsActive bool  `query:"is_active"`
}

// SessionResponse is the wire form of a helpdesk session.
type SessionResponse struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	ClockOnTime  time.Time `json:"clock_on_time"`
	ClockOffTime time.Time `json:"clock_off_time"`
	ClockedOn    bool      `json:"clocked_on"`
}

// NewSessionResponse maps a session as seen at now.
func NewSessionResponse(s *domain.HelpdeskSession, now time.Time) SessionResponse {
	return SessionResponse{
		ID:           s.ID,
		UserID:       s.UserID,
		ClockOnTime:  s.ClockOnTime,
		ClockOffTime: s.ClockOffTime,
		ClockedOn:    s.ClockedOn(now),
	}
}

// NewSessionList maps sessions.
func NewSessionList(sessions []domain.HelpdeskSession, now time.Time) []SessionResponse {
	out := make([]SessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, NewSessionResponse(&sessions[i], now))
	}
	return out
}

// UserResponse describes a staff member on duty.
type UserResponse struct {
	ID        int64       `json:"id"`
	Username  string      `json:"username"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
}

// NewUserList maps users.
func NewUserList(users []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, UserResponse{
			ID:        u.ID,
			Username:  u.Username,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
			Role:      u.Role,
		})
	}
	return out
}
