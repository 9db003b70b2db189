package domain

import "time"

type Account struct {
	ID            string
	Email         string // lower-cased, unique
	Name          string
	PasswordHash  string     // argon2id PHC encoded
	TOTPSecret    *string    // committed TOTP secret (nullable, base32 encoded)
	Active        bool       // inactive accounts fail every auth path
	EmailVerified bool
	LastLoginAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MFAEnabled reports whether the account has a committed TOTP secret. An
// account with a committed secret cannot complete login without a valid code.
func (a Account) MFAEnabled() bool {
	return a.TOTPSecret != nil && *a.TOTPSecret != ""
}
