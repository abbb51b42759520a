package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/jjcims/jjcims/internal/domain"
	"github.com/jjcims/jjcims/internal/store"
)

const employeeColumns = `id, username, first_name, middle_name, last_name,
	password, totp_secret, access_level, created_at, updated_at`

type employeesRepo struct {
	db dbtx
}

func (r *employeesRepo) GetByUsername(ctx context.Context, username string) (domain.Employee, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE lower(username) = lower(?)`,
		username,
	)
	return scanEmployee(row.Scan)
}

func (r *employeesRepo) SearchByNameParts(ctx context.Context, query string) ([]domain.Employee, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, nil
	}

	// The directory is small (one shop's staff); filtering the scan in
	// one pass keeps the containment rules in one place instead of
	// spread across SQL expressions.
	var out []domain.Employee
	for _, e := range all {
		if matchesNameParts(e, q) {
			out = append(out, e)
		}
	}
	return out, nil
}

func matchesNameParts(e domain.Employee, q string) bool {
	for _, field := range []string{
		e.Username,
		e.FirstName,
		e.MiddleName,
		e.LastName,
		e.FullName(),
	} {
		if field == "" {
			continue
		}
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func (r *employeesRepo) ListUsernames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT username FROM employees ORDER BY created_at, id`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, u)
	}
	return out, mapErr(rows.Err())
}

func (r *employeesRepo) List(ctx context.Context) ([]domain.Employee, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+employeeColumns+` FROM employees ORDER BY created_at, id`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []domain.Employee
	for rows.Next() {
		e, err := scanEmployee(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, mapErr(rows.Err())
}

func (r *employeesRepo) Create(ctx context.Context, e domain.Employee) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO employees (id, username, first_name, middle_name, last_name,
		                        password, totp_secret, access_level, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Username, e.FirstName, e.MiddleName, e.LastName,
		e.PasswordCiphertext, mapStringNull(e.TOTPSecretCiphertext),
		e.AccessLevel.String(), now, now,
	)
	return mapErr(err)
}

func (r *employeesRepo) Delete(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM employees WHERE lower(username) = lower(?)`, username)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *employeesRepo) UpdatePassword(ctx context.Context, username, ciphertext string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE employees SET password = ?, updated_at = ? WHERE lower(username) = lower(?)`,
		ciphertext, time.Now().UTC(), username)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *employeesRepo) UpdateTOTPSecret(ctx context.Context, username, ciphertext string, adminOverride bool) error {
	now := time.Now().UTC()

	if adminOverride {
		res, err := r.db.ExecContext(ctx,
			`UPDATE employees SET totp_secret = ?, updated_at = ? WHERE lower(username) = lower(?)`,
			mapStringNull(ciphertext), now, username)
		if err != nil {
			return mapErr(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return mapErr(err)
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	}

	// Only-once-set: the write lands only when no secret is on record.
	res, err := r.db.ExecContext(ctx,
		`UPDATE employees SET totp_secret = ?, updated_at = ?
		 WHERE lower(username) = lower(?) AND (totp_secret IS NULL OR totp_secret = '')`,
		mapStringNull(ciphertext), now, username)
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n > 0 {
		return nil
	}

	// Distinguish "no such record" from "secret already set".
	if _, err := r.GetByUsername(ctx, username); err != nil {
		return err
	}
	return store.ErrSecretAlreadySet
}
