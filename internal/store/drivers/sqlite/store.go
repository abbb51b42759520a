// Package sqlite is the SQLite driver for the employee directory store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jjcims/jjcims/internal/domain"
	"github.com/jjcims/jjcims/internal/store"

	_ "modernc.org/sqlite"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so the employees repo
// can run inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	// Single-writer model: one connection serializes all writes and
	// keeps :memory: databases coherent across goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// VerifySchema selects every expected column once. A store file that
// predates the schema surfaces as ErrSchemaMismatch rather than failing
// obscurely on first use.
func (s *Store) VerifySchema(ctx context.Context) error {
	const q = `SELECT id, username, first_name, middle_name, last_name,
	                  password, totp_secret, access_level, created_at, updated_at
	           FROM employees LIMIT 1`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrSchemaMismatch, err)
	}
	return rows.Close()
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return &txStore{tx: tx}, nil
}

// WithTx executes fn within a transaction, automatically handling
// commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // safe to call after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Employees() store.Employees { return &employeesRepo{db: s.db} }

// mapErr translates driver errors to store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such table"), strings.Contains(msg, "no such column"):
		return fmt.Errorf("%w: %v", store.ErrSchemaMismatch, err)
	case strings.Contains(msg, "UNIQUE constraint failed"),
		strings.Contains(msg, "constraint failed: employees.username"):
		return store.ErrAlreadyExists
	case strings.Contains(msg, "unable to open"), strings.Contains(msg, "database is locked"):
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return err
}

func mapNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func mapStringNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func scanEmployee(scan func(dest ...any) error) (domain.Employee, error) {
	var (
		e       domain.Employee
		secret  sql.NullString
		level   string
		created time.Time
		updated time.Time
	)
	err := scan(&e.ID, &e.Username, &e.FirstName, &e.MiddleName, &e.LastName,
		&e.PasswordCiphertext, &secret, &level, &created, &updated)
	if err != nil {
		return domain.Employee{}, mapErr(err)
	}

	// NULL and "" are the same state: not enrolled.
	e.TOTPSecretCiphertext = mapNullString(secret)
	e.CreatedAt = created
	e.UpdatedAt = updated

	e.AccessLevel, err = domain.ParseAccessLevel(level)
	if err != nil {
		return domain.Employee{}, fmt.Errorf("%w: %v", store.ErrSchemaMismatch, err)
	}
	return e, nil
}
