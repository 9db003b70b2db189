// Package store defines the persistence interfaces for the identity
// service. Concrete drivers (sqlite) implement Store; services receive the
// interface so tests can run against an in-memory database.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/iris-platform/identity/internal/identity/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface, exposing sub-repositories to
// keep concerns tidy and testable.
type Store interface {
	Accounts() Accounts
	Organizations() Organizations
	Memberships() Memberships
	APIKeys() APIKeys
	SessionLogs() SessionLogs

	ApplyMigrations() error

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. Registration's
	// three-table write and MFA commits go through here.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transaction-scoped Store. Nested transactions are not supported.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Accounts interface {
	// GetByID returns an account by id.
	GetByID(ctx context.Context, id string) (domain.Account, error)

	// GetByEmail looks up an account by its normalized email.
	GetByEmail(ctx context.Context, email string) (domain.Account, error)

	// Create inserts a new account (id is provided by the app via ULID).
	// Returns ErrAlreadyExists when the email is taken.
	Create(ctx context.Context, a domain.Account) error

	// UpdateTOTPSecret commits or clears the account's TOTP secret.
	UpdateTOTPSecret(ctx context.Context, accountID string, secret *string) error

	// UpdateLastLogin records a successful login.
	UpdateLastLogin(ctx context.Context, accountID string, at time.Time) error

	// SetActive toggles the active flag.
	SetActive(ctx context.Context, accountID string, active bool) error

	// Delete removes the account; memberships and API keys cascade.
	Delete(ctx context.Context, accountID string) error
}

type Organizations interface {
	// GetByID returns an organization by id.
	GetByID(ctx context.Context, id string) (domain.Organization, error)

	// GetByName returns an organization by exact name. Used to find the
	// default organization during registration.
	GetByName(ctx context.Context, name string) (domain.Organization, error)

	// Create inserts a new organization.
	Create(ctx context.Context, o domain.Organization) error

	// Delete removes the organization; memberships and API keys cascade.
	Delete(ctx context.Context, orgID string) error
}

// AccountOrganization is a membership joined with its organization, as
// returned for profile and organization listings.
type AccountOrganization struct {
	Organization domain.Organization
	Role         domain.Role
	JoinedAt     time.Time
}

// OrganizationMember is a membership joined with its account, as returned
// for member listings.
type OrganizationMember struct {
	AccountID string
	Name      string
	Email     string
	Role      domain.Role
	JoinedAt  time.Time
}

type Memberships interface {
	// Create inserts a membership. Returns ErrAlreadyExists when the
	// (account, organization) pair already has one.
	Create(ctx context.Context, m domain.Membership) error

	// Get returns the membership for an (account, organization) pair.
	Get(ctx context.Context, accountID, orgID string) (domain.Membership, error)

	// ListByAccount returns the caller's memberships with org metadata.
	ListByAccount(ctx context.Context, accountID string) ([]AccountOrganization, error)

	// ListMembers returns every member of an organization with account
	// metadata.
	ListMembers(ctx context.Context, orgID string) ([]OrganizationMember, error)
}

type APIKeys interface {
	// Create stores a new API key record (hash at rest, never the raw key).
	Create(ctx context.Context, k domain.APIKey) error

	// GetByHash returns an active key by its fingerprint.
	GetByHash(ctx context.Context, keyHash string) (domain.APIKey, error)

	// ListByAccount returns all keys issued by an account, newest first.
	ListByAccount(ctx context.Context, accountID string) ([]domain.APIKey, error)

	// Deactivate flips a key inactive. Scoped to the owning account.
	Deactivate(ctx context.Context, accountID, keyID string) error

	// TouchLastUsed records key usage.
	TouchLastUsed(ctx context.Context, keyID string, at time.Time) error

	// DeleteExpired removes keys past their expiry (housekeeping).
	DeleteExpired(ctx context.Context, now time.Time) error
}

type SessionLogs interface {
	// Create appends one audit row.
	Create(ctx context.Context, l domain.SessionLog) error

	// DeleteOlderThan prunes aged rows (housekeeping).
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error

	// CountByAccount returns the number of audit rows for an account.
	CountByAccount(ctx context.Context, accountID string) (int, error)
}
