package domain

import (
	"fmt"
	"strings"
	"time"
)

// Employee is one human principal in the directory. Credential fields
// hold cipher tokens produced by cryptox; plaintext never reaches
// storage.
type Employee struct {
	ID         string // ULID
	Username   string // unique, matched case-insensitively, case preserved
	FirstName  string
	MiddleName string
	LastName   string

	// PasswordCiphertext is the reversibly encrypted password token.
	PasswordCiphertext string

	// TOTPSecretCiphertext is the encrypted TOTP seed. Empty means not
	// enrolled; the store normalizes NULL and "" to the same state.
	TOTPSecretCiphertext string

	AccessLevel AccessLevel

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Enrolled reports whether the employee has a 2FA secret on record.
func (e Employee) Enrolled() bool {
	return e.TOTPSecretCiphertext != ""
}

// DisplayName is the name shown for the active session: the username
// when present, otherwise the assembled full name.
func (e Employee) DisplayName() string {
	if e.Username != "" {
		return e.Username
	}
	return e.FullName()
}

// FullName joins the non-empty name parts in natural order.
func (e Employee) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{e.FirstName, e.MiddleName, e.LastName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// AccessLevel is the graded trust tier that gates which UI surface an
// employee reaches and whether 2FA applies.
type AccessLevel int

const (
	// LevelUnknown is the zero value; it never appears on a stored record.
	LevelUnknown AccessLevel = iota

	// Level1 is the employee surface. No password step during login.
	Level1

	// Level2 is the administrative surface.
	Level2

	// Level3 is the administrative surface with full rights.
	Level3
)

// ParseAccessLevel reads the stored text form ("Level 1".."Level 3").
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch strings.TrimSpace(s) {
	case "Level 1":
		return Level1, nil
	case "Level 2":
		return Level2, nil
	case "Level 3":
		return Level3, nil
	}
	return LevelUnknown, fmt.Errorf("unknown access level %q", s)
}

func (l AccessLevel) String() string {
	switch l {
	case Level1:
		return "Level 1"
	case Level2:
		return "Level 2"
	case Level3:
		return "Level 3"
	}
	return "Level ?"
}

// Administrative reports whether l reaches the administrative surface.
func (l AccessLevel) Administrative() bool {
	return l == Level2 || l == Level3
}

// RequiresTwoFactor reports whether login at this level must pass a 2FA
// challenge once the employee has enrolled.
func (l AccessLevel) RequiresTwoFactor() bool {
	return l.Administrative()
}
