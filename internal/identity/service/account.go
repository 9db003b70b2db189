package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/iris-platform/identity/internal/identity/domain"
	"github.com/iris-platform/identity/internal/identity/store"
	"github.com/iris-platform/identity/pkg/cryptox"
	"github.com/iris-platform/identity/pkg/idx"
	"github.com/iris-platform/identity/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrEmailTaken         = errors.New("email_taken")
	ErrMFARequired        = errors.New("mfa_required")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 8 characters with a lowercase letter, an uppercase letter, and a digit")
)

// AccountService owns registration, login, and profile reads.
type AccountService struct {
	Store  store.Store
	Tokens *TokenService
	MFA    *MFAService
}

// Profile is an account joined with its organization memberships.
type Profile struct {
	Account       domain.Account
	Organizations []store.AccountOrganization
}

// Register creates an account and places it in an organization, all in
// one transaction so a failure partway leaves nothing behind.
//
// With no organization name the account joins the shared default
// organization as a member, creating it on first use. A named
// organization is created fresh with the registrant as its admin.
func (s *AccountService) Register(ctx context.Context, email, password, name, orgName string) (Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	orgName = strings.TrimSpace(orgName)

	if err := validateEmail(email); err != nil {
		return Profile{}, err
	}
	if err := validatePassword(password); err != nil {
		return Profile{}, err
	}
	if name == "" {
		name = email
	}

	// Cheap pre-check for a friendlier error. The unique index on email
	// still backstops races inside the transaction.
	if _, err := s.Store.Accounts().GetByEmail(ctx, email); err == nil {
		return Profile{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return Profile{}, err
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return Profile{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	account := domain.Account{
		ID:           idx.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var (
		org  domain.Organization
		role domain.Role
	)

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Accounts().Create(ctx, account); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrEmailTaken
			}
			return err
		}

		if orgName == "" {
			org, err = tx.Organizations().GetByName(ctx, domain.DefaultOrganizationName)
			switch {
			case errors.Is(err, store.ErrNotFound):
				org = domain.Organization{
					ID:        idx.New().String(),
					Name:      domain.DefaultOrganizationName,
					Active:    true,
					CreatedAt: now,
					UpdatedAt: now,
				}
				if err := tx.Organizations().Create(ctx, org); err != nil {
					return err
				}
			case err != nil:
				return err
			}
			role = domain.RoleMember
		} else {
			org = domain.Organization{
				ID:        idx.New().String(),
				Name:      orgName,
				Active:    true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := tx.Organizations().Create(ctx, org); err != nil {
				return err
			}
			role = domain.RoleAdmin
		}

		return tx.Memberships().Create(ctx, domain.Membership{
			ID:             idx.New().String(),
			AccountID:      account.ID,
			OrganizationID: org.ID,
			Role:           role,
			JoinedAt:       now,
			UpdatedAt:      now,
		})
	})
	if err != nil {
		return Profile{}, err
	}

	return Profile{
		Account: account,
		Organizations: []store.AccountOrganization{
			{Organization: org, Role: role, JoinedAt: now},
		},
	}, nil
}

// Login authenticates by email and password and mints a token pair.
//
// Every failure that involves the credentials themselves comes back as
// ErrInvalidCredentials, so a caller cannot tell which emails exist.
// Accounts with MFA enabled must supply a valid code; absence of one is
// reported as ErrMFARequired so the client can prompt and retry.
func (s *AccountService) Login(ctx context.Context, email, password, totpCode string) (domain.Account, *domain.TokenPair, error) {
	l := slogx.FromContext(ctx)
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := s.Store.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Account{}, nil, ErrInvalidCredentials
		}
		return domain.Account{}, nil, err
	}
	if !account.Active {
		return domain.Account{}, nil, ErrInvalidCredentials
	}

	if err := cryptox.VerifyPassword(password, account.PasswordHash); err != nil {
		l.Info("password verification failed", "account_id", account.ID)
		return domain.Account{}, nil, ErrInvalidCredentials
	}

	if account.MFAEnabled() {
		if totpCode == "" {
			return domain.Account{}, nil, ErrMFARequired
		}
		if err := s.MFA.VerifyLogin(ctx, account, totpCode); err != nil {
			l.Info("TOTP verification failed", "account_id", account.ID)
			return domain.Account{}, nil, ErrInvalidCredentials
		}
	}

	tokens, err := s.Tokens.Mint(ctx, account)
	if err != nil {
		return domain.Account{}, nil, err
	}

	// Best effort; a failed timestamp update must not break the login.
	if err := s.Store.Accounts().UpdateLastLogin(ctx, account.ID, time.Now().UTC()); err != nil {
		l.Warn("failed to record last login", "account_id", account.ID, "error", err)
	}

	return account, tokens, nil
}

// GetProfile returns the account with its organization memberships.
func (s *AccountService) GetProfile(ctx context.Context, accountID string) (Profile, error) {
	account, err := s.Store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return Profile{}, err
	}
	orgs, err := s.Store.Memberships().ListByAccount(ctx, accountID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Account: account, Organizations: orgs}, nil
}

func validateEmail(email string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !lower || !upper || !digit {
		return ErrWeakPassword
	}
	return nil
}
