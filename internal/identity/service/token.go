package service

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iris-platform/identity/internal/identity/cache"
	"github.com/iris-platform/identity/internal/identity/domain"
	"github.com/iris-platform/identity/pkg/idx"
	"github.com/iris-platform/identity/pkg/slogx"
)

const refreshTokenType = "refresh"

var (
	ErrTokenInvalid      = errors.New("invalid_token")
	ErrTokenExpired      = errors.New("token_expired")
	ErrTokenRevoked      = errors.New("token_revoked")
	ErrTokenTypeMismatch = errors.New("token_type_mismatch")
	ErrRefreshStale      = errors.New("stale_refresh_token")
)

// AccessClaims ride on short-lived bearer tokens handed to clients.
type AccessClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims carry an explicit type marker so a refresh token can
// never be presented where an access token is expected, and vice versa.
type RefreshClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenService mints, verifies, rotates, and revokes bearer tokens.
//
// Access and refresh tokens are signed with independent HMAC secrets so
// leaking one class of token never compromises the other. Revocation
// state lives in the cache: a blacklist entry per revoked access token
// and a single refresh slot per account.
type TokenService struct {
	Cache         cache.Cache
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Mint issues a fresh access/refresh pair for the account and stores
// the refresh token in the account's slot, displacing any previous one.
func (s *TokenService) Mint(ctx context.Context, account domain.Account) (*domain.TokenPair, error) {
	now := time.Now()

	accessToken, err := s.signAccess(account, now)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.signRefresh(account.ID, now)
	if err != nil {
		return nil, err
	}

	if err := s.Cache.PutRefresh(ctx, account.ID, refreshToken, s.RefreshTTL); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.AccessTTL.Seconds()),
	}, nil
}

// VerifyAccess checks the token's signature and expiry first, then the
// revocation blacklist. A forged or expired token is rejected before
// the cache is ever consulted.
func (s *TokenService) VerifyAccess(ctx context.Context, token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, s.keyFor(s.AccessSecret),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(s.Issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	revoked, err := s.Cache.IsAccessBlacklisted(ctx, token)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

// RotateRefresh exchanges a valid refresh token for a new pair. The
// presented token must match the account's current slot byte for byte;
// anything else, including a replay of an already-rotated token, fails
// with ErrRefreshStale. Concurrent rotations admit exactly one winner.
func (s *TokenService) RotateRefresh(ctx context.Context, account domain.Account, presented string) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	claims, err := s.decodeRefresh(presented)
	if err != nil {
		return nil, err
	}
	if claims.Subject != account.ID {
		return nil, ErrTokenInvalid
	}

	accessToken, err := s.signAccess(account, now)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.signRefresh(account.ID, now)
	if err != nil {
		return nil, err
	}

	if err := s.Cache.RotateRefresh(ctx, account.ID, presented, refreshToken, s.RefreshTTL); err != nil {
		if errors.Is(err, cache.ErrRefreshStale) {
			l.Warn("refresh token replay rejected", "account_id", account.ID)
			return nil, ErrRefreshStale
		}
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.AccessTTL.Seconds()),
	}, nil
}

// Subject decodes a refresh token just far enough to learn which
// account presented it. Signature and type marker are still enforced.
func (s *TokenService) Subject(token string) (string, error) {
	claims, err := s.decodeRefresh(token)
	if err != nil {
		return "", err
	}
	if _, err := idx.Parse(claims.Subject); err != nil {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}

// RevokeAccess blacklists an access token for its remaining lifetime.
// Tokens that are already expired, or otherwise unparseable, are a
// no-op: they can no longer be used anyway.
func (s *TokenService) RevokeAccess(ctx context.Context, token string) error {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, s.keyFor(s.AccessSecret),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	)
	if err != nil || claims.ExpiresAt == nil {
		return nil
	}

	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return nil
	}
	return s.Cache.BlacklistAccess(ctx, token, remaining)
}

// RevokeRefresh clears the account's refresh slot so the current
// refresh token can never be exchanged again.
func (s *TokenService) RevokeRefresh(ctx context.Context, accountID string) error {
	return s.Cache.DeleteRefresh(ctx, accountID)
}

func (s *TokenService) decodeRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	_, err := jwt.ParseWithClaims(token, claims, s.keyFor(s.RefreshSecret),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(s.Issuer),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if claims.TokenType != refreshTokenType {
		return nil, ErrTokenTypeMismatch
	}
	return claims, nil
}

func (s *TokenService) signAccess(account domain.Account, now time.Time) (string, error) {
	claims := AccessClaims{
		Email: account.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        idx.New().String(),
			Subject:   account.ID,
			Issuer:    s.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.AccessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.AccessSecret)
}

func (s *TokenService) signRefresh(accountID string, now time.Time) (string, error) {
	claims := RefreshClaims{
		TokenType: refreshTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        idx.New().String(),
			Subject:   accountID,
			Issuer:    s.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.RefreshTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.RefreshSecret)
}

func (s *TokenService) keyFor(secret []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		return secret, nil
	}
}
