package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jjcims/jjcims/internal/store"
	"github.com/jjcims/jjcims/pkg/idx"
	"github.com/jjcims/jjcims/pkg/slogx"
)

// ErrRecoveryDenied rejects a recovery attempt without distinguishing
// unknown user, ineligible access, missing enrollment, or wrong code.
var ErrRecoveryDenied = errors.New("recovery_denied")

// DefaultRecoveryTokenTTL bounds how long the password-set sub-flow
// stays open after a successful 2FA challenge.
const DefaultRecoveryTokenTTL = 10 * time.Minute

// RecoveryFlow is the 2FA-gated password reset. A successful challenge
// yields a single-use in-memory token that the password-set sub-flow
// consumes; nothing recovery-related is persisted.
type RecoveryFlow struct {
	Store       store.Store
	TwoFactor   *TwoFactorService
	Credentials *CredentialService

	// TokenTTL defaults to DefaultRecoveryTokenTTL.
	TokenTTL time.Duration

	// Now is overridable for tests.
	Now func() time.Time

	mu      sync.Mutex
	pending map[idx.ID]pendingReset
}

type pendingReset struct {
	username string
	expires  time.Time
}

func (f *RecoveryFlow) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now().UTC()
}

func (f *RecoveryFlow) ttl() time.Duration {
	if f.TokenTTL > 0 {
		return f.TokenTTL
	}
	return DefaultRecoveryTokenTTL
}

// Begin accepts (username, code). Unknown users, Level 1 users, users
// without 2FA, and wrong codes all fail with the same ErrRecoveryDenied;
// only a stored secret that fails decryption surfaces differently, as an
// operator-facing ErrCredentialCorrupted.
func (f *RecoveryFlow) Begin(ctx context.Context, username, code string) (idx.ID, error) {
	rec, err := f.Store.Employees().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrRecoveryDenied
		}
		return "", err
	}
	if !rec.AccessLevel.Administrative() || !rec.Enrolled() {
		// Level 1 users have no password to reset; the others must
		// enroll first. The caller cannot tell these apart.
		return "", ErrRecoveryDenied
	}

	secret, err := f.TwoFactor.decryptSecret(ctx, rec)
	if err != nil {
		return "", err
	}
	if !f.TwoFactor.Provisioner.Verify(secret, code) {
		return "", ErrRecoveryDenied
	}

	token := idx.New()
	f.mu.Lock()
	if f.pending == nil {
		f.pending = make(map[idx.ID]pendingReset)
	}
	f.pending[token] = pendingReset{
		username: rec.Username,
		expires:  f.now().Add(f.ttl()),
	}
	f.mu.Unlock()

	slogx.FromContext(ctx).Info("recovery challenge passed",
		"username", rec.Username)
	return token, nil
}

// CompleteReset consumes the token from Begin and writes the new
// password. The token is single-use regardless of outcome.
func (f *RecoveryFlow) CompleteReset(ctx context.Context, token idx.ID, newPassword string) error {
	f.mu.Lock()
	p, ok := f.pending[token]
	delete(f.pending, token)
	f.mu.Unlock()

	if !ok || f.now().After(p.expires) {
		return ErrRecoveryDenied
	}

	if err := f.Credentials.ResetPassword(ctx, p.username, newPassword); err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("password reset via recovery",
		"username", p.username)
	return nil
}
