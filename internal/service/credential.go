// Package service implements the authentication and 2FA credential
// lifecycle: password verification, two-factor enrollment and challenge,
// the login state machine, the recovery flow, and the process session.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/jjcims/jjcims/internal/domain"
	"github.com/jjcims/jjcims/internal/store"
	"github.com/jjcims/jjcims/pkg/cryptox"
	"github.com/jjcims/jjcims/pkg/slogx"
)

var (
	// ErrInvalidCredentials collapses "user not found" and "wrong
	// password" into one user-visible failure. Keeping them
	// indistinguishable is the primary information leak to close.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrCredentialCorrupted means a stored ciphertext failed to decrypt
	// under the current key. Operator diagnostic; the account needs
	// administrative intervention and is never silently reset.
	ErrCredentialCorrupted = errors.New("credential_corrupted")
)

type CredentialService struct {
	Store  store.Store
	Cipher *cryptox.Cipher
}

// VerifyPassword checks the plaintext against the stored ciphertext and
// returns the record's access level on a match.
func (s *CredentialService) VerifyPassword(ctx context.Context, username, password string) (domain.AccessLevel, error) {
	rec, err := s.Store.Employees().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LevelUnknown, ErrInvalidCredentials
		}
		return domain.LevelUnknown, err
	}

	stored, err := s.Cipher.DecryptToken(rec.PasswordCiphertext)
	if err != nil {
		slogx.FromContext(ctx).Error("stored password failed decryption",
			"username", rec.Username, "err", err)
		return domain.LevelUnknown, ErrCredentialCorrupted
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(password)) != 1 {
		return domain.LevelUnknown, ErrInvalidCredentials
	}
	return rec.AccessLevel, nil
}

// ResetPassword encrypts and writes a new password. It does not require
// the old one; callers gate it externally (the recovery flow's 2FA step
// or the administrative surface).
func (s *CredentialService) ResetPassword(ctx context.Context, username, newPassword string) error {
	ct, err := s.Cipher.EncryptToken(newPassword)
	if err != nil {
		return fmt.Errorf("encrypt password: %w", err)
	}
	if err := s.Store.Employees().UpdatePassword(ctx, username, ct); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}

// LookupAccessLevel returns the record's access level for routing
// decisions, or store.ErrNotFound.
func (s *CredentialService) LookupAccessLevel(ctx context.Context, username string) (domain.AccessLevel, error) {
	rec, err := s.Store.Employees().GetByUsername(ctx, username)
	if err != nil {
		return domain.LevelUnknown, err
	}
	return rec.AccessLevel, nil
}
