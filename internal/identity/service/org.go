package service

import (
	"context"

	"github.com/iris-platform/identity/internal/identity/store"
)

// OrgService serves organization listings. Membership checks live at the
// HTTP boundary; by the time these run the caller is already authorized.
type OrgService struct {
	Store store.Store
}

// ListForAccount returns the caller's organizations with their role in each.
func (s *OrgService) ListForAccount(ctx context.Context, accountID string) ([]store.AccountOrganization, error) {
	return s.Store.Memberships().ListByAccount(ctx, accountID)
}

// ListMembers returns every member of an organization.
func (s *OrgService) ListMembers(ctx context.Context, orgID string) ([]store.OrganizationMember, error) {
	return s.Store.Memberships().ListMembers(ctx, orgID)
}
