package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jjcims/jjcims/internal/domain"
	"github.com/jjcims/jjcims/internal/store"
	"github.com/jjcims/jjcims/pkg/cryptox"
	"github.com/jjcims/jjcims/pkg/idx"
	"github.com/jjcims/jjcims/pkg/slogx"
)

var (
	// ErrAdminRequired rejects administrative operations when the
	// current session is absent or Level 1.
	ErrAdminRequired = errors.New("admin_required")

	ErrUsernameInvalid = errors.New("username_invalid")
)

// AdminService is the administrative surface over the directory: record
// maintenance, out-of-band password resets, and 2FA clears. Every
// operation requires an administrative session.
type AdminService struct {
	Store       store.Store
	Cipher      *cryptox.Cipher
	Sessions    *SessionContext
	Credentials *CredentialService
	TwoFactor   *TwoFactorService
}

func (s *AdminService) requireAdmin() error {
	sess, ok := s.Sessions.Get()
	if !ok || !sess.Level.Administrative() {
		return ErrAdminRequired
	}
	return nil
}

// CreateEmployee adds a record with an encrypted initial password.
func (s *AdminService) CreateEmployee(ctx context.Context, e domain.Employee, password string) (domain.Employee, error) {
	if err := s.requireAdmin(); err != nil {
		return domain.Employee{}, err
	}

	e.Username = strings.TrimSpace(e.Username)
	if e.Username == "" {
		return domain.Employee{}, ErrUsernameInvalid
	}
	if _, err := domain.ParseAccessLevel(e.AccessLevel.String()); err != nil {
		return domain.Employee{}, fmt.Errorf("access level: %w", err)
	}

	ct, err := s.Cipher.EncryptToken(password)
	if err != nil {
		return domain.Employee{}, fmt.Errorf("encrypt password: %w", err)
	}

	e.ID = idx.New().String()
	e.PasswordCiphertext = ct
	e.TOTPSecretCiphertext = ""

	if err := s.Store.Employees().Create(ctx, e); err != nil {
		return domain.Employee{}, err
	}
	slogx.FromContext(ctx).Info("employee record created",
		"username", e.Username, "level", e.AccessLevel.String())
	return e, nil
}

// DeleteEmployee removes a record.
func (s *AdminService) DeleteEmployee(ctx context.Context, username string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if err := s.Store.Employees().Delete(ctx, username); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("employee record deleted", "username", username)
	return nil
}

// ListDirectory returns the whole directory.
func (s *AdminService) ListDirectory(ctx context.Context) ([]domain.Employee, error) {
	if err := s.requireAdmin(); err != nil {
		return nil, err
	}
	return s.Store.Employees().List(ctx)
}

// ResetPassword sets a new password out of band, without the recovery
// flow's 2FA gate.
func (s *AdminService) ResetPassword(ctx context.Context, username, newPassword string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if err := s.Credentials.ResetPassword(ctx, username, newPassword); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("password reset by administrator",
		"username", username)
	return nil
}

// ClearTwoFactor removes the stored 2FA secret so the user can re-enroll
// through the wizard.
func (s *AdminService) ClearTwoFactor(ctx context.Context, username string) error {
	if err := s.requireAdmin(); err != nil {
		return err
	}
	if _, err := s.Store.Employees().GetByUsername(ctx, username); err != nil {
		return err
	}
	if err := s.TwoFactor.AdministrativeClear(ctx, username); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("2fa secret cleared by administrator",
		"username", username)
	return nil
}
