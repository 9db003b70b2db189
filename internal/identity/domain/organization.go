package domain

import "time"

// DefaultOrganizationName is the organization joined by registrations that
// do not name one. It is created lazily by the first such registration.
const DefaultOrganizationName = "Default Organization"

type Organization struct {
	ID        string
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
