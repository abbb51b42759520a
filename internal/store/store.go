// Package store defines the data access interface for the employee
// directory. Exactly one directory store is open per process and every
// read and write goes through it. Concrete drivers live under drivers/.
package store

import (
	"context"
	"errors"

	"github.com/jjcims/jjcims/internal/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrSecretAlreadySet guards the only-once-set policy on TOTP
	// secrets: a non-empty secret is never overwritten unless the caller
	// asserts the administrative override capability.
	ErrSecretAlreadySet = errors.New("store: totp secret already set")

	// ErrUnavailable is a transient connection failure. User surfaces
	// render it as a generic "try again later".
	ErrUnavailable = errors.New("store: unavailable")

	// ErrSchemaMismatch means the store file exists but lacks expected
	// columns. Operator diagnostic; not recoverable at runtime.
	ErrSchemaMismatch = errors.New("store: schema mismatch")
)

// Store is the root data access interface. The directory is shared-read,
// single-writer; drivers serialize writes and readers observe committed
// state only.
type Store interface {
	Employees() Employees

	ApplyMigrations() error

	// VerifySchema probes the expected column set and returns
	// ErrSchemaMismatch when the store predates it.
	VerifySchema(ctx context.Context) error

	// Tx starts a read/write transaction scoped Store. The caller MUST
	// call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back when fn
	// errors and committing otherwise. Prefer this over Tx directly.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

// Tx is a transactional store.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Employees interface {
	// GetByUsername returns the record whose username matches
	// case-insensitively. Stored case is preserved on the result.
	GetByUsername(ctx context.Context, username string) (domain.Employee, error)

	// SearchByNameParts returns records where the lowercased query
	// equals or is contained in the lowercase username, any name part,
	// or the full-name concatenation. Results come back in stable
	// insertion order.
	SearchByNameParts(ctx context.Context, query string) ([]domain.Employee, error)

	// ListUsernames returns all usernames for identification-step
	// suggestions, in stable insertion order.
	ListUsernames(ctx context.Context) ([]string, error)

	// List returns the whole directory in stable insertion order.
	List(ctx context.Context) ([]domain.Employee, error)

	// Create inserts a new record (id assigned by the caller via ULID).
	Create(ctx context.Context, e domain.Employee) error

	// Delete removes a record by username (case-insensitive).
	Delete(ctx context.Context, username string) error

	// UpdatePassword atomically replaces the password ciphertext.
	UpdatePassword(ctx context.Context, username, ciphertext string) error

	// UpdateTOTPSecret atomically replaces the TOTP secret ciphertext.
	// An empty ciphertext clears the secret. Overwriting a non-empty
	// secret fails with ErrSecretAlreadySet unless adminOverride is set.
	UpdateTOTPSecret(ctx context.Context, username, ciphertext string, adminOverride bool) error
}
