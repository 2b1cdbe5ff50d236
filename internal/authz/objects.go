package authz

import "github.com/final-year-project/doubtfire-api/internal/domain"

// Kind names a resource kind in the policy table.
type Kind string

const (
	KindProject Kind = "project"
	KindTicket  Kind = "helpdesk_ticket"
	KindSession Kind = "helpdesk_session"
)

// Action names a permission in the policy table.
type Action string

const (
	ActionCreateTicket              Action = "create_ticket"
	ActionGetDetails                Action = "get_details"
	ActionGetTickets                Action = "get_tickets"
	ActionGetOwnTickets             Action = "get_own_tickets"
	ActionResolveTicket             Action = "resolve_ticket"
	ActionCloseTicket               Action = "close_ticket"
	ActionGetStats                  Action = "get_stats"
	ActionGetHistory                Action = "get_history"
	ActionCreateSession             Action = "create_session"
	ActionCreateSessionForOthers    Action = "create_session_for_others"
	ActionClockOffSession           Action = "clock_off_session"
	ActionGetSessions               Action = "get_sessions"
	ActionGetAllCurrentSessionUsers Action = "get_all_current_session_users"
)

// Object is anything a permission check can target. RoleFor returns the
// role the user acts in for this object, or false when they have none.
type Object interface {
	Kind() Kind
	RoleFor(user *domain.User) (domain.Role, bool)
}

type typeObject Kind

func (o typeObject) Kind() Kind { return Kind(o) }

func (o typeObject) RoleFor(user *domain.User) (domain.Role, bool) {
	return user.Role, user.Role.Valid()
}

// Type-level objects check the user's own role.
var (
	TicketType  Object = typeObject(KindTicket)
	SessionType Object = typeObject(KindSession)
	ProjectType Object = typeObject(KindProject)
)

type ownedObject struct {
	kind    Kind
	ownerID int64
}

func (o ownedObject) Kind() Kind { return o.kind }

// The owner acts as a student; other staff keep their own role.
func (o ownedObject) RoleFor(user *domain.User) (domain.Role, bool) {
	if user.ID == o.ownerID {
		return domain.RoleStudent, true
	}
	if user.Role.IsStaff() {
		return user.Role, true
	}
	return "", false
}

// Project targets a specific project.
func Project(p *domain.Project) Object {
	return ownedObject{kind: KindProject, ownerID: p.UserID}
}

// Ticket targets a specific ticket.
func Ticket(t *domain.Ticket) Object {
	return ownedObject{kind: KindTicket, ownerID: t.UserID}
}

type sessionObject struct {
	userID int64
}

func (sessionObject) Kind() Kind { return KindSession }

func (o sessionObject) RoleFor(user *domain.User) (domain.Role, bool) {
	switch {
	case user.ID == o.userID && user.Role.Valid():
		return user.Role, true
	case user.Role == domain.RoleConvenor || user.Role == domain.RoleAdmin:
		return user.Role, true
	}
	return "", false
}

// Session targets a specific helpdesk session.
func Session(s *domain.HelpdeskSession) Object {
	return sessionObject{userID: s.UserID}
}
