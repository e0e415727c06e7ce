package domain

import "github.com/google/uuid"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValid checks if the role is valid
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Identity is the authenticated caller.
type Identity struct {
	ID   uuid.UUID
	Role Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanAccess reports whether the caller owns the record or is an administrator.
func (i Identity) CanAccess(record *ModelRecord) bool {
	return i.IsAdmin() || record.OwnerID == i.ID
}
