package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/iris-platform/identity/internal/identity/cache"
	"github.com/iris-platform/identity/internal/identity/domain"
	"github.com/iris-platform/identity/internal/identity/store"
)

const (
	totpPeriod = 30
	// Codes from up to two steps either side of now are accepted, which
	// tolerates client clock drift of about a minute.
	totpSkew = 2

	pendingSetupTTL = 5 * time.Minute

	// Edge length in pixels of the rendered QR code.
	qrCodeSize = 200
)

var (
	ErrInvalidTOTPCode   = errors.New("invalid TOTP code")
	ErrMFANotEnabled     = errors.New("MFA not enabled for this account")
	ErrMFAAlreadyEnabled = errors.New("MFA already enabled for this account")
	ErrMFASetupExpired   = errors.New("MFA setup session expired")
)

type MFAService struct {
	Store  store.Store
	Cache  cache.Cache
	Issuer string
}

// BeginSetup generates a TOTP secret for the account and parks it in a
// short-lived pending slot. Nothing is committed until ConfirmSetup
// proves the authenticator was actually provisioned. Calling BeginSetup
// again before confirming simply replaces the pending secret.
func (s *MFAService) BeginSetup(ctx context.Context, accountID string) (domain.MFAEnrollment, error) {
	account, err := s.Store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("load account: %w", err)
	}
	if account.MFAEnabled() {
		return domain.MFAEnrollment{}, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: account.Email,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("generate TOTP key: %w", err)
	}

	qr, err := renderQRCode(key)
	if err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("render QR code: %w", err)
	}

	if err := s.Cache.PutPendingTOTP(ctx, accountID, key.Secret(), pendingSetupTTL); err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("stash pending secret: %w", err)
	}

	return domain.MFAEnrollment{
		Secret:          key.Secret(),
		ProvisioningURI: key.URL(),
		QRCode:          qr,
		Issuer:          s.Issuer,
		Account:         account.Email,
	}, nil
}

// renderQRCode encodes the key's otpauth URI as a PNG data URL so clients
// can show it without a second round trip.
func renderQRCode(key *otp.Key) (string, error) {
	img, err := key.Image(qrCodeSize, qrCodeSize)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ConfirmSetup validates a code against the pending secret and, on
// success, commits the secret to the account and clears the slot. A
// wrong code leaves the pending slot intact so the user can retry
// within the setup window.
func (s *MFAService) ConfirmSetup(ctx context.Context, accountID, code string) error {
	secret, err := s.Cache.GetPendingTOTP(ctx, accountID)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return ErrMFASetupExpired
		}
		return err
	}

	if !validateTOTP(code, secret) {
		return ErrInvalidTOTPCode
	}

	if err := s.Store.Accounts().UpdateTOTPSecret(ctx, accountID, &secret); err != nil {
		return fmt.Errorf("store MFA secret: %w", err)
	}
	// Best effort; the slot lapses on its own TTL anyway.
	_ = s.Cache.DeletePendingTOTP(ctx, accountID)

	return nil
}

// VerifyLogin checks a code against the account's committed secret.
func (s *MFAService) VerifyLogin(ctx context.Context, account domain.Account, code string) error {
	if !account.MFAEnabled() {
		return ErrMFANotEnabled
	}
	if !validateTOTP(code, *account.TOTPSecret) {
		return ErrInvalidTOTPCode
	}
	return nil
}

// Disable removes the account's TOTP secret after a final code check.
func (s *MFAService) Disable(ctx context.Context, account domain.Account, code string) error {
	if err := s.VerifyLogin(ctx, account, code); err != nil {
		return err
	}
	if err := s.Store.Accounts().UpdateTOTPSecret(ctx, account.ID, nil); err != nil {
		return fmt.Errorf("clear MFA secret: %w", err)
	}
	return nil
}

func validateTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
