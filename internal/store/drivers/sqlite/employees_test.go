package sqlite

import (
	"context"
	"testing"

	"github.com/jjcims/jjcims/internal/domain"
	"github.com/jjcims/jjcims/internal/store"
	"github.com/jjcims/jjcims/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

func seedEmployee(t *testing.T, s *Store, e domain.Employee) domain.Employee {
	t.Helper()
	if e.ID == "" {
		e.ID = idx.New().String()
	}
	if e.AccessLevel == domain.LevelUnknown {
		e.AccessLevel = domain.Level1
	}
	require.NoError(t, s.Employees().Create(context.Background(), e))
	return e
}

func TestGetByUsernameCaseInsensitive(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	seedEmployee(t, s, domain.Employee{Username: "JDoe", FirstName: "Jane", LastName: "Doe"})

	for _, q := range []string{"jdoe", "JDOE", "JDoe"} {
		got, err := s.Employees().GetByUsername(ctx, q)
		require.NoError(t, err)
		// Stored case survives the lookup.
		require.Equal(t, "JDoe", got.Username)
	}

	_, err := s.Employees().GetByUsername(ctx, "nobody")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreateRejectsDuplicateUsernameAnyCase(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	seedEmployee(t, s, domain.Employee{Username: "admin1"})

	err := s.Employees().Create(context.Background(), domain.Employee{
		ID:          idx.New().String(),
		Username:    "ADMIN1",
		AccessLevel: domain.Level2,
	})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestSearchByNameParts(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	seedEmployee(t, s, domain.Employee{Username: "jdoe", FirstName: "Jane", LastName: "Doe"})
	seedEmployee(t, s, domain.Employee{Username: "admin1", FirstName: "Ada", MiddleName: "M", LastName: "Lovelace", AccessLevel: domain.Level2})

	t.Run("username substring", func(t *testing.T) {
		got, err := s.Employees().SearchByNameParts(ctx, "doe")
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, "jdoe", got[0].Username)
	})

	t.Run("case-insensitive equivalence", func(t *testing.T) {
		upper, err := s.Employees().SearchByNameParts(ctx, "JANE")
		require.NoError(t, err)
		lower, err := s.Employees().SearchByNameParts(ctx, "jane")
		require.NoError(t, err)
		require.Equal(t, lower, upper)
		require.Len(t, lower, 1)
	})

	t.Run("full name concatenation", func(t *testing.T) {
		got, err := s.Employees().SearchByNameParts(ctx, "ada m lovelace")
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, "admin1", got[0].Username)
	})

	t.Run("no match", func(t *testing.T) {
		got, err := s.Employees().SearchByNameParts(ctx, "zzz")
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("stable order", func(t *testing.T) {
		got, err := s.Employees().SearchByNameParts(ctx, "a")
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, "jdoe", got[0].Username)
		require.Equal(t, "admin1", got[1].Username)
	})
}

func TestUpdatePassword(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	seedEmployee(t, s, domain.Employee{Username: "admin1", PasswordCiphertext: "old", AccessLevel: domain.Level2})

	require.NoError(t, s.Employees().UpdatePassword(ctx, "ADMIN1", "new"))
	got, err := s.Employees().GetByUsername(ctx, "admin1")
	require.NoError(t, err)
	require.Equal(t, "new", got.PasswordCiphertext)

	require.ErrorIs(t, s.Employees().UpdatePassword(ctx, "ghost", "x"), store.ErrNotFound)
}

func TestUpdateTOTPSecretOnlyOnce(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	seedEmployee(t, s, domain.Employee{Username: "admin1", AccessLevel: domain.Level2})

	require.NoError(t, s.Employees().UpdateTOTPSecret(ctx, "admin1", "ct1", false))

	// Second non-override write is rejected.
	err := s.Employees().UpdateTOTPSecret(ctx, "admin1", "ct2", false)
	require.ErrorIs(t, err, store.ErrSecretAlreadySet)

	got, err := s.Employees().GetByUsername(ctx, "admin1")
	require.NoError(t, err)
	require.Equal(t, "ct1", got.TOTPSecretCiphertext)

	// Administrative override may replace or clear.
	require.NoError(t, s.Employees().UpdateTOTPSecret(ctx, "admin1", "", true))
	got, err = s.Employees().GetByUsername(ctx, "admin1")
	require.NoError(t, err)
	require.False(t, got.Enrolled())

	// Once cleared, the normal path works again.
	require.NoError(t, s.Employees().UpdateTOTPSecret(ctx, "admin1", "ct3", false))

	require.ErrorIs(t, s.Employees().UpdateTOTPSecret(ctx, "ghost", "x", false), store.ErrNotFound)
}

func TestEmptySecretTreatedAsAbsent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	// Write an empty string directly; it must read back as not enrolled.
	e := seedEmployee(t, s, domain.Employee{Username: "jdoe"})
	_, err := s.db.ExecContext(ctx, `UPDATE employees SET totp_secret = '' WHERE id = ?`, e.ID)
	require.NoError(t, err)

	got, err := s.Employees().GetByUsername(ctx, "jdoe")
	require.NoError(t, err)
	require.False(t, got.Enrolled())

	// Empty counts as absent for the only-once-set guard too.
	require.NoError(t, s.Employees().UpdateTOTPSecret(ctx, "jdoe", "ct", false))
}

func TestListUsernamesAndList(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	seedEmployee(t, s, domain.Employee{Username: "jdoe"})
	seedEmployee(t, s, domain.Employee{Username: "admin1", AccessLevel: domain.Level2})

	names, err := s.Employees().ListUsernames(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"jdoe", "admin1"}, names)

	all, err := s.Employees().List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestDelete(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	seedEmployee(t, s, domain.Employee{Username: "jdoe"})

	require.NoError(t, s.Employees().Delete(ctx, "JDOE"))
	_, err := s.Employees().GetByUsername(ctx, "jdoe")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, s.Employees().Delete(ctx, "jdoe"), store.ErrNotFound)
}

func TestVerifySchema(t *testing.T) {
	t.Parallel()

	t.Run("migrated store passes", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.VerifySchema(context.Background()))
	})

	t.Run("unmigrated store fails", func(t *testing.T) {
		s, err := NewStore(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		require.ErrorIs(t, s.VerifySchema(context.Background()), store.ErrSchemaMismatch)
	})

	t.Run("missing column fails", func(t *testing.T) {
		s, err := NewStore(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })

		_, err = s.db.Exec(`CREATE TABLE employees (id TEXT PRIMARY KEY, username TEXT)`)
		require.NoError(t, err)

		require.ErrorIs(t, s.VerifySchema(context.Background()), store.ErrSchemaMismatch)
	})
}

func TestWithTxRollsBackOnError(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()

	seedEmployee(t, s, domain.Employee{Username: "admin1", AccessLevel: domain.Level2})

	sentinel := store.ErrUnavailable
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Employees().UpdatePassword(ctx, "admin1", "partial"); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	got, err := s.Employees().GetByUsername(ctx, "admin1")
	require.NoError(t, err)
	require.Empty(t, got.PasswordCiphertext, "rolled-back write must not be visible")
}
