package domain

// Role is the LMS role a user holds.
type Role string

const (
	RoleStudent  Role = "student"
	RoleTutor    Role = "tutor"
	RoleConvenor Role = "convenor"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTutor, RoleConvenor, RoleAdmin:
		return true
	}
	return false
}

// IsStaff is true for every role above student.
func (r Role) IsStaff() bool {
	return r.Valid() && r != RoleStudent
}

// User is an LMS account. The helpdesk reads users but never writes them.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	Email     string
	Role      Role
}
