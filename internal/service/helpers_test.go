package service

import (
	"context"
	"crypto/rand"
	"net/url"
	"testing"
	"time"

	"github.com/jjcims/jjcims/internal/domain"
	"github.com/jjcims/jjcims/internal/store/drivers/sqlite"
	"github.com/jjcims/jjcims/pkg/cryptox"
	"github.com/jjcims/jjcims/pkg/idx"
	"github.com/jjcims/jjcims/pkg/totpx"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store       *sqlite.Store
	cipher      *cryptox.Cipher
	provisioner totpx.Provisioner

	sessions    *SessionContext
	credentials *CredentialService
	twoFactor   *TwoFactorService
	auth        *AuthFlow
	wizard      *EnrollmentWizard
	recovery    *RecoveryFlow
	admin       *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	key := make([]byte, cryptox.KeySize)
	_, err = rand.Read(key)
	require.NoError(t, err)
	cipher, err := cryptox.NewCipher(key)
	require.NoError(t, err)

	env := &testEnv{
		store:       st,
		cipher:      cipher,
		provisioner: totpx.Provisioner{Issuer: "JJCIMS-TEST"},
		sessions:    &SessionContext{},
	}
	env.credentials = &CredentialService{Store: st, Cipher: cipher}
	env.twoFactor = &TwoFactorService{Store: st, Cipher: cipher, Provisioner: env.provisioner}
	env.auth = &AuthFlow{
		Store:       st,
		Credentials: env.credentials,
		TwoFactor:   env.twoFactor,
		Sessions:    env.sessions,
		// Keep the cross-flow limiter out of the way unless a test
		// opts in; the per-flow budget is exercised separately.
		Limits: AttemptLimitConfig{Attempts: 10_000, Window: time.Minute},
	}
	env.wizard = &EnrollmentWizard{Store: st, TwoFactor: env.twoFactor, Provisioner: env.provisioner}
	env.recovery = &RecoveryFlow{Store: st, TwoFactor: env.twoFactor, Credentials: env.credentials}
	env.admin = &AdminService{
		Store:       st,
		Cipher:      cipher,
		Sessions:    env.sessions,
		Credentials: env.credentials,
		TwoFactor:   env.twoFactor,
	}
	return env
}

type seedSpec struct {
	username   string
	first      string
	middle     string
	last       string
	password   string
	level      domain.AccessLevel
	totpSecret string // plaintext seed; encrypted on the way in
}

func (env *testEnv) seed(t *testing.T, spec seedSpec) domain.Employee {
	t.Helper()

	ct, err := env.cipher.EncryptToken(spec.password)
	require.NoError(t, err)

	e := domain.Employee{
		ID:                 idx.New().String(),
		Username:           spec.username,
		FirstName:          spec.first,
		MiddleName:         spec.middle,
		LastName:           spec.last,
		PasswordCiphertext: ct,
		AccessLevel:        spec.level,
	}
	if spec.totpSecret != "" {
		e.TOTPSecretCiphertext, err = env.cipher.EncryptToken(spec.totpSecret)
		require.NoError(t, err)
	}
	require.NoError(t, env.store.Employees().Create(context.Background(), e))
	return e
}

// secretFromURI extracts the shared secret from an otpauth URI.
func secretFromURI(t *testing.T, uri string) string {
	t.Helper()
	u, err := url.Parse(uri)
	require.NoError(t, err)
	secret := u.Query().Get("secret")
	require.NotEmpty(t, secret)
	return secret
}
