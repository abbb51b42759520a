package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jjcims/jjcims/internal/domain"
	"github.com/jjcims/jjcims/internal/store"
	"github.com/jjcims/jjcims/pkg/slogx"
	"github.com/jjcims/jjcims/pkg/totpx"
)

// WizardStep is a position in the 2FA enrollment wizard.
type WizardStep int

const (
	StepIdentify WizardStep = iota + 1
	StepGenerate
	StepVerify
	StepSuccess
	StepImport
)

func (s WizardStep) String() string {
	switch s {
	case StepIdentify:
		return "identify"
	case StepGenerate:
		return "generate"
	case StepVerify:
		return "verify"
	case StepSuccess:
		return "success"
	case StepImport:
		return "import"
	}
	return "unknown"
}

// SuccessDismissAfter is how long the success step stays up before the
// UI auto-dismisses it.
const SuccessDismissAfter = 5 * time.Second

// QRSizePixels is the rendered QR payload edge length.
const QRSizePixels = 256

var (
	// ErrStepNotAllowed rejects a navigation outside the wizard's
	// progression rules.
	ErrStepNotAllowed = errors.New("step_not_allowed")

	// ErrCandidateMissing means the verify step ran without a generated
	// candidate; the wizard has dropped back to the identify step.
	ErrCandidateMissing = errors.New("candidate_missing")
)

// EnrollmentWizard builds enrollment sessions.
type EnrollmentWizard struct {
	Store       store.Store
	TwoFactor   *TwoFactorService
	Provisioner totpx.Provisioner
}

// Begin opens a wizard session at the identify step.
func (w *EnrollmentWizard) Begin() *Enrollment {
	return &Enrollment{
		wizard:  w,
		step:    StepIdentify,
		visited: []WizardStep{StepIdentify},
	}
}

// Enrollment is one wizard session. Forward navigation is strictly
// 1→2→3→4 or 1→5→4; backward navigation reaches only already-visited
// steps that precede the current one. The candidate secret is
// wizard-scoped and is committed only after a verification code passes.
type Enrollment struct {
	wizard *EnrollmentWizard

	mu      sync.Mutex
	step    WizardStep
	visited []WizardStep

	record          domain.Employee
	candidateSecret string
	uri             string
	qr              []byte
}

// Step returns the current wizard position.
func (e *Enrollment) Step() WizardStep {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

// Candidate exposes the provisioning material for the UI: the otpauth
// URI and its QR PNG payload.
func (e *Enrollment) Candidate() (uri string, qr []byte, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.uri, e.qr, e.candidateSecret != ""
}

// Identify binds the wizard to a username, checking existence and
// access eligibility. Enrollment state is checked on the transition out
// of this step, not here.
func (e *Enrollment) Identify(ctx context.Context, username string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.step != StepIdentify {
		return ErrStepNotAllowed
	}

	rec, err := e.wizard.Store.Employees().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownIdentity
		}
		return err
	}
	if !rec.AccessLevel.RequiresTwoFactor() {
		return ErrIneligibleAccess
	}

	e.record = rec
	return nil
}

// Generate advances to the generate step, producing a candidate secret,
// its provisioning URI, and the QR payload. An already-enrolled user is
// bounced back to the identify step.
func (e *Enrollment) Generate(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.step != StepIdentify || e.record.Username == "" {
		return ErrStepNotAllowed
	}
	if e.record.Enrolled() {
		return ErrAlreadyEnrolled
	}

	secret, err := e.wizard.Provisioner.GenerateSecret()
	if err != nil {
		return fmt.Errorf("generate candidate secret: %w", err)
	}
	uri := e.wizard.Provisioner.ProvisioningURI(secret, e.record.Username)
	qr, err := totpx.RenderQR(uri, QRSizePixels)
	if err != nil {
		return fmt.Errorf("render qr payload: %w", err)
	}

	e.candidateSecret = secret
	e.uri = uri
	e.qr = qr
	e.advance(StepGenerate)
	return nil
}

// Verify advances through the verify step: a code generated from the
// candidate must pass before the secret is persisted. Success lands on
// the success step.
func (e *Enrollment) Verify(ctx context.Context, code string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.step != StepGenerate && e.step != StepVerify {
		return ErrStepNotAllowed
	}
	if e.candidateSecret == "" {
		// Cannot verify what was never generated; drop back to the
		// identify step.
		e.step = StepIdentify
		e.visited = []WizardStep{StepIdentify}
		return ErrCandidateMissing
	}
	e.advance(StepVerify)

	if !totpx.ValidCode(code) {
		return ErrCodeInvalid
	}
	if err := e.wizard.TwoFactor.Enroll(ctx, e.record.Username, e.candidateSecret, code); err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("2fa enrollment complete",
		"username", e.record.Username)
	e.advance(StepSuccess)
	return nil
}

// Import takes the alternate path: the user supplies a seed from an
// existing authenticator instead of generating one.
func (e *Enrollment) Import(ctx context.Context, rawSecret string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.step != StepIdentify && e.step != StepImport {
		return ErrStepNotAllowed
	}
	if e.record.Username == "" {
		return ErrStepNotAllowed
	}
	e.advance(StepImport)

	if err := e.wizard.TwoFactor.ImportSecret(ctx, e.record.Username, rawSecret); err != nil {
		if errors.Is(err, ErrAlreadyEnrolled) {
			// Surface the rejection and return to the identify step.
			e.step = StepIdentify
		}
		return err
	}

	slogx.FromContext(ctx).Info("2fa secret imported",
		"username", e.record.Username)
	e.advance(StepSuccess)
	return nil
}

// Back navigates to target, which must be an already-visited step
// preceding the current one.
func (e *Enrollment) Back(target WizardStep) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !slices.Contains(e.visited, target) || !precedes(target, e.step) {
		return ErrStepNotAllowed
	}
	e.step = target
	return nil
}

// Cancel dismisses the wizard, discarding the candidate secret with no
// side effects.
func (e *Enrollment) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.candidateSecret = ""
	e.uri = ""
	e.qr = nil
	e.step = StepIdentify
	e.visited = []WizardStep{StepIdentify}
	e.record = domain.Employee{}
}

func (e *Enrollment) advance(step WizardStep) {
	e.step = step
	if !slices.Contains(e.visited, step) {
		e.visited = append(e.visited, step)
	}
}

// precedes orders steps along the canonical progressions 1→2→3→4 and
// 1→5→4.
func precedes(a, b WizardStep) bool {
	return progressionIndex(a) < progressionIndex(b)
}

func progressionIndex(s WizardStep) int {
	switch s {
	case StepIdentify:
		return 0
	case StepGenerate, StepImport:
		return 1
	case StepVerify:
		return 2
	case StepSuccess:
		return 3
	}
	return -1
}
