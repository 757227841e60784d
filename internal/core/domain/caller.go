package domain

import "strings"

type Role string

const (
	RoleClient    Role = "CLIENT"
	RoleTherapist Role = "THERAPIST"
	RoleModerator Role = "MODERATOR"
	RoleAdmin     Role = "ADMIN"
)

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", invalid("role", "unknown role %q", s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleTherapist, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Caller is the identity resolved by the authentication collaborator.
type Caller struct {
	ID   string
	Role Role
}

func (c Caller) Validate() error {
	if strings.TrimSpace(c.ID) == "" || !c.Role.Valid() {
		return &AuthorizationError{CallerID: c.ID, Role: c.Role, Operation: "act without a caller identity"}
	}
	return nil
}

// Actor is the display projection of a user joined onto log entries at read time.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
