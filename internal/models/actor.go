package models

// Role is the permission level of a caller.
type Role string

// Roles, in increasing order of privilege.
const (
	RoleReader Role = "reader"
	RoleWriter Role = "writer"
	RoleAdmin  Role = "admin"
)

func (r Role) rank() int {
	switch r {
	case RoleReader:
		return 1
	case RoleWriter:
		return 2
	case RoleAdmin:
		return 3
	}
	return 0
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r.rank() > 0 }

// AtLeast reports whether r grants at least the privileges of want.
func (r Role) AtLeast(want Role) bool { return r.Valid() && r.rank() >= want.rank() }

// Actor is the authenticated caller of a service operation.
type Actor struct {
	Subject string `json:"sub"`
	Role    Role   `json:"role"`
}

// System is the actor used when authentication is disabled and by local tools.
var System = Actor{Subject: "system", Role: RoleAdmin}

// CanWrite reports whether the actor may create and edit stories.
func (a Actor) CanWrite() bool { return a.Role.AtLeast(RoleWriter) }

// Owns reports whether the actor may modify a story by author. Admins own
// every story; stories without an author belong to every writer.
func (a Actor) Owns(author string) bool {
	if a.Role == RoleAdmin {
		return true
	}
	return a.CanWrite() && (author == "" || author == a.Subject)
}
