package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"unicode"

	"github.com/jjcims/jjcims/internal/domain"
	"github.com/jjcims/jjcims/internal/store"
	"github.com/jjcims/jjcims/pkg/slogx"
)

var (
	// ErrUnknownIdentity rejects the identification step. Identification
	// runs on the employee surface where the name list is not secret, so
	// this may be shown as-is.
	ErrUnknownIdentity = errors.New("unknown_identity")

	// ErrTooManyAttempts reports an exhausted attempt budget; the flow
	// has returned to idle.
	ErrTooManyAttempts = errors.New("too_many_attempts")

	// ErrInvalidState rejects a submit that does not match the flow's
	// current state.
	ErrInvalidState = errors.New("invalid_state")
)

// FlowState is the login state machine position.
type FlowState int

const (
	StateIdle FlowState = iota
	StateIdentified
	StateAwaitingPassword
	StateAwaiting2FA
	StatePromptEnroll
	StateAuthenticated
	StateRejected
)

func (s FlowState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateIdentified:
		return "identified"
	case StateAwaitingPassword:
		return "awaiting_password"
	case StateAwaiting2FA:
		return "awaiting_2fa"
	case StatePromptEnroll:
		return "prompt_enroll"
	case StateAuthenticated:
		return "authenticated"
	case StateRejected:
		return "rejected"
	}
	return "unknown"
}

// DefaultMaxAttempts is the per-flow budget for the password and 2FA
// steps.
const DefaultMaxAttempts = 5

// AuthFlow builds login flows. One AuthFlow serves the whole process;
// each login attempt gets its own Login.
type AuthFlow struct {
	Store       store.Store
	Credentials *CredentialService
	TwoFactor   *TwoFactorService
	Sessions    *SessionContext

	// MaxAttempts is the per-flow budget; zero means DefaultMaxAttempts.
	MaxAttempts int

	// Limits configures the cross-flow per-username limiter; the zero
	// value means DefaultAttemptLimit.
	Limits AttemptLimitConfig

	limiterOnce sync.Once
	limiter     *attemptLimiter
}

func (f *AuthFlow) maxAttempts() int {
	if f.MaxAttempts > 0 {
		return f.MaxAttempts
	}
	return DefaultMaxAttempts
}

func (f *AuthFlow) allow(username string) bool {
	f.limiterOnce.Do(func() {
		f.limiter = newAttemptLimiter(f.Limits)
	})
	return f.limiter.Allow(username)
}

// Begin starts a new login flow in the idle state.
func (f *AuthFlow) Begin() *Login {
	return &Login{flow: f}
}

// Login is one pass through the login state machine. Each submit
// advances the machine atomically: the mutex guarantees a second submit
// cannot begin until the first resolves.
type Login struct {
	flow *AuthFlow

	mu       sync.Mutex
	state    FlowState
	record   domain.Employee
	attempts int
	session  domain.Session
}

// State returns the current machine position.
func (l *Login) State() FlowState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Session returns the released session after authentication.
func (l *Login) Session() (domain.Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateAuthenticated {
		return domain.Session{}, false
	}
	return l.session, true
}

// Identify resolves an identifier (username or any part of a registered
// name) to a record. Level 1 employees authenticate immediately; others
// move to the password step.
func (l *Login) Identify(ctx context.Context, identifier string) (FlowState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateIdle {
		return l.state, ErrInvalidState
	}

	identifier = strings.TrimSpace(identifier)
	if !validIdentifier(identifier) {
		l.state = StateRejected
		return l.state, ErrUnknownIdentity
	}

	matches, err := l.flow.Store.Employees().SearchByNameParts(ctx, identifier)
	if err != nil {
		return l.state, err
	}
	if len(matches) == 0 {
		l.state = StateRejected
		return l.state, ErrUnknownIdentity
	}

	l.record = resolveMatch(matches, identifier)

	if l.record.AccessLevel == domain.Level1 {
		// Employee surface: no password step.
		l.authenticate(ctx)
		return l.state, nil
	}

	l.state = StateAwaitingPassword
	return l.state, nil
}

// SubmitPassword verifies the password for the identified administrative
// record. On success the flow routes to the 2FA challenge when a secret
// exists, or to the enrollment prompt when it does not.
func (l *Login) SubmitPassword(ctx context.Context, password string) (FlowState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateAwaitingPassword {
		return l.state, ErrInvalidState
	}
	if !l.flow.allow(l.record.Username) {
		l.reset()
		return l.state, ErrTooManyAttempts
	}

	_, err := l.flow.Credentials.VerifyPassword(ctx, l.record.Username, password)
	switch {
	case err == nil:
		// fall through below

	case errors.Is(err, ErrInvalidCredentials):
		return l.state, l.failAttempt(err)

	case errors.Is(err, ErrCredentialCorrupted):
		l.state = StateRejected
		return l.state, err

	default:
		return l.state, err
	}

	enrolled, err := l.flow.TwoFactor.HasSecret(ctx, l.record.Username)
	if err != nil {
		return l.state, err
	}
	if enrolled {
		l.state = StateAwaiting2FA
	} else {
		// First administrative login: offer enrollment; deferring is
		// allowed.
		l.state = StatePromptEnroll
	}
	return l.state, nil
}

// SubmitCode answers the 2FA challenge.
func (l *Login) SubmitCode(ctx context.Context, code string) (FlowState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateAwaiting2FA {
		return l.state, ErrInvalidState
	}
	if !l.flow.allow(l.record.Username) {
		l.reset()
		return l.state, ErrTooManyAttempts
	}

	err := l.flow.TwoFactor.Challenge(ctx, l.record.Username, code)
	switch {
	case err == nil:
		l.authenticate(ctx)
		return l.state, nil

	case errors.Is(err, ErrCodeInvalid):
		return l.state, l.failAttempt(err)

	case errors.Is(err, ErrCredentialCorrupted), errors.Is(err, ErrNotEnrolled):
		l.state = StateRejected
		return l.state, err

	default:
		return l.state, err
	}
}

// DeferEnrollment skips first-time 2FA enrollment and completes login.
func (l *Login) DeferEnrollment(ctx context.Context) (FlowState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StatePromptEnroll {
		return l.state, ErrInvalidState
	}
	slogx.FromContext(ctx).Info("2fa enrollment deferred",
		"username", l.record.Username)
	l.authenticate(ctx)
	return l.state, nil
}

// FinishEnrollment completes login after the enrollment wizard ran. If
// the wizard persisted a secret, the user already proved possession of
// it in the wizard's verify step and the flow releases the session; a
// cancelled wizard returns to the prompt.
func (l *Login) FinishEnrollment(ctx context.Context) (FlowState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StatePromptEnroll {
		return l.state, ErrInvalidState
	}

	enrolled, err := l.flow.TwoFactor.HasSecret(ctx, l.record.Username)
	if err != nil {
		return l.state, err
	}
	if !enrolled {
		return l.state, nil
	}
	l.authenticate(ctx)
	return l.state, nil
}

// failAttempt counts a failed submit against the per-flow budget,
// returning the flow to idle when it is exhausted.
func (l *Login) failAttempt(cause error) error {
	l.attempts++
	if l.attempts >= l.flow.maxAttempts() {
		l.reset()
		return ErrTooManyAttempts
	}
	return cause
}

func (l *Login) reset() {
	l.state = StateIdle
	l.record = domain.Employee{}
	l.attempts = 0
}

func (l *Login) authenticate(ctx context.Context) {
	l.session = l.flow.Sessions.Set(l.record.DisplayName(), l.record.AccessLevel)
	l.state = StateAuthenticated
	slogx.FromContext(ctx).Info("login complete",
		"user", l.session.User,
		"level", l.session.Level.String(),
		"session_id", l.session.ID.String())
}

// validIdentifier accepts usernames and name fragments: it needs at
// least one letter and tolerates digits, spaces, hyphens, apostrophes,
// and periods. Everything else is rejected before the store is queried.
func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	hasLetter := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r), r == ' ', r == '-', r == '\'', r == '.':
		default:
			return false
		}
	}
	return hasLetter
}

// resolveMatch picks deterministically among multiple matches: exact
// username, then exact full name, then the first record in stable
// iteration order.
func resolveMatch(matches []domain.Employee, identifier string) domain.Employee {
	q := strings.ToLower(identifier)
	for _, m := range matches {
		if strings.ToLower(m.Username) == q {
			return m
		}
	}
	for _, m := range matches {
		if strings.ToLower(m.FullName()) == q {
			return m
		}
	}
	return matches[0]
}
