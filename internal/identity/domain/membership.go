package domain

import "time"

// Role is the access level an account holds within one organization.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleViewer Role = "viewer"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

// Satisfies reports whether r meets the required role. Admin satisfies any
// requirement; other roles satisfy only an exact match. An empty requirement
// is met by any membership.
func (r Role) Satisfies(required Role) bool {
	if required == "" || r == RoleAdmin {
		return true
	}
	return r == required
}

// Membership links one account to one organization with exactly one role.
// The (account, organization) pair is unique and the row is removed when
// either parent is deleted.
type Membership struct {
	ID             string
	AccountID      string
	OrganizationID string
	Role           Role
	JoinedAt       time.Time
	UpdatedAt      time.Time
}
