package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jjcims/jjcims/internal/domain"
	"github.com/jjcims/jjcims/internal/store"
	"github.com/jjcims/jjcims/pkg/cryptox"
	"github.com/jjcims/jjcims/pkg/slogx"
	"github.com/jjcims/jjcims/pkg/totpx"
)

var (
	ErrAlreadyEnrolled  = errors.New("already_enrolled")
	ErrIneligibleAccess = errors.New("ineligible_access")
	ErrCodeInvalid      = errors.New("code_invalid")
	ErrNotEnrolled      = errors.New("not_enrolled")
	ErrSecretInvalid    = errors.New("secret_invalid")
)

// TwoFactorService owns the per-user 2FA lifecycle. Secrets transit the
// cipher on the way in and out of the store; a secret, once set, can only
// be replaced through AdministrativeClear.
type TwoFactorService struct {
	Store       store.Store
	Cipher      *cryptox.Cipher
	Provisioner totpx.Provisioner
}

// HasSecret reports whether the user has a 2FA secret on record.
func (s *TwoFactorService) HasSecret(ctx context.Context, username string) (bool, error) {
	rec, err := s.Store.Employees().GetByUsername(ctx, username)
	if err != nil {
		return false, err
	}
	return rec.Enrolled(), nil
}

// Enroll commits a candidate secret after the user has proven possession
// of it with a fresh code. The write is transactional: a visible success
// implies a durable secret.
func (s *TwoFactorService) Enroll(ctx context.Context, username, candidateSecret, code string) error {
	rec, err := s.Store.Employees().GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if rec.Enrolled() {
		return ErrAlreadyEnrolled
	}
	if !rec.AccessLevel.RequiresTwoFactor() {
		return ErrIneligibleAccess
	}
	if !s.Provisioner.Verify(candidateSecret, code) {
		return ErrCodeInvalid
	}
	return s.persistSecret(ctx, username, candidateSecret)
}

// ImportSecret enrolls a pre-existing seed from another authenticator,
// subject to the same eligibility and only-once-set checks.
func (s *TwoFactorService) ImportSecret(ctx context.Context, username, rawSecret string) error {
	rec, err := s.Store.Employees().GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if rec.Enrolled() {
		return ErrAlreadyEnrolled
	}
	if !rec.AccessLevel.RequiresTwoFactor() {
		return ErrIneligibleAccess
	}
	if !totpx.ValidSecret(rawSecret) {
		return ErrSecretInvalid
	}
	return s.persistSecret(ctx, username, totpx.NormalizeSecret(rawSecret))
}

func (s *TwoFactorService) persistSecret(ctx context.Context, username, secret string) error {
	ct, err := s.Cipher.EncryptToken(secret)
	if err != nil {
		return fmt.Errorf("encrypt totp secret: %w", err)
	}
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Employees().UpdateTOTPSecret(ctx, username, ct, false)
	})
	if errors.Is(err, store.ErrSecretAlreadySet) {
		return ErrAlreadyEnrolled
	}
	return err
}

// Challenge verifies a login code against the stored secret. For a
// username not in the directory the result is indistinguishable from a
// wrong code.
func (s *TwoFactorService) Challenge(ctx context.Context, username, code string) error {
	rec, err := s.Store.Employees().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrCodeInvalid
		}
		return err
	}
	if !rec.Enrolled() {
		return ErrNotEnrolled
	}

	secret, err := s.decryptSecret(ctx, rec)
	if err != nil {
		return err
	}
	if !s.Provisioner.Verify(secret, code) {
		return ErrCodeInvalid
	}
	return nil
}

// AdministrativeClear removes the stored secret so the user can enroll
// again. Reserved for the administrative surface; the login and recovery
// flows never reach it.
func (s *TwoFactorService) AdministrativeClear(ctx context.Context, username string) error {
	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		return tx.Employees().UpdateTOTPSecret(ctx, username, "", true)
	})
}

// decryptSecret recovers the plaintext seed, quarantining records whose
// secret does not decrypt or does not parse as base32.
func (s *TwoFactorService) decryptSecret(ctx context.Context, rec domain.Employee) (string, error) {
	secret, err := s.Cipher.DecryptToken(rec.TOTPSecretCiphertext)
	if err != nil {
		slogx.FromContext(ctx).Error("stored totp secret failed decryption",
			"username", rec.Username, "err", err)
		return "", ErrCredentialCorrupted
	}
	if !totpx.ValidSecret(secret) {
		slogx.FromContext(ctx).Error("stored totp secret is not a valid seed",
			"username", rec.Username)
		return "", ErrCredentialCorrupted
	}
	return secret, nil
}
