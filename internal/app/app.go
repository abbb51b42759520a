// Package app wires the credential core together: configuration, path
// resolution, the sqlite directory store, the key file, and the
// services. The GUI sits on top of Application; this package has no UI
// concerns of its own.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jjcims/jjcims/internal/service"
	"github.com/jjcims/jjcims/internal/store"
	"github.com/jjcims/jjcims/internal/store/drivers/sqlite"
	"github.com/jjcims/jjcims/pkg/cryptox"
	"github.com/jjcims/jjcims/pkg/pathx"
	"github.com/jjcims/jjcims/pkg/slogx"
	"github.com/jjcims/jjcims/pkg/totpx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application holds the initialized credential core.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db        store.Store
	storePath string
	cipher    *cryptox.Cipher

	Credentials *service.CredentialService
	TwoFactor   *service.TwoFactorService
	Auth        *service.AuthFlow
	Enrollment  *service.EnrollmentWizard
	Recovery    *service.RecoveryFlow
	Admin       *service.AdminService
	Sessions    *service.SessionContext
}

// New initializes every dependency or fails before any UI could start.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			App:     "jjcims",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}
	if err := app.initCipher(); err != nil {
		return nil, err
	}
	app.initServices()

	return app, nil
}

func (app *Application) initStore() error {
	resolver := pathx.Default()
	resolver.Explicit = app.cfg.StorePath
	app.storePath = resolver.Resolve(app.cfg.StoreFile)

	db, err := sqlite.NewStore(app.storePath)
	if err != nil {
		return fmt.Errorf("open directory store: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("apply migrations: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.VerifySchema(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("verify store schema: %w", err)
	}

	app.db = db
	app.logger.Info("directory store opened", "path", app.storePath)
	return nil
}

func (app *Application) initCipher() error {
	key, err := cryptox.LoadOrCreateKey(app.cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("load encryption key: %w", err)
	}
	cipher, err := cryptox.NewCipher(key)
	if err != nil {
		return fmt.Errorf("initialize cipher: %w", err)
	}
	app.cipher = cipher
	app.logger.Info("encryption key loaded", "path", app.cfg.KeyFile)
	return nil
}

func (app *Application) initServices() {
	skew := app.cfg.TOTPSkew
	provisioner := totpx.Provisioner{
		Issuer:    app.cfg.Issuer,
		SkewSteps: &skew,
	}

	app.Sessions = &service.SessionContext{}
	app.Credentials = &service.CredentialService{Store: app.db, Cipher: app.cipher}
	app.TwoFactor = &service.TwoFactorService{
		Store:       app.db,
		Cipher:      app.cipher,
		Provisioner: provisioner,
	}
	app.Auth = &service.AuthFlow{
		Store:       app.db,
		Credentials: app.Credentials,
		TwoFactor:   app.TwoFactor,
		Sessions:    app.Sessions,
		MaxAttempts: app.cfg.MaxAttempts,
		Limits: service.AttemptLimitConfig{
			Attempts: app.cfg.MaxAttempts,
			Window:   app.cfg.AttemptWindow,
		},
	}
	app.Enrollment = &service.EnrollmentWizard{
		Store:       app.db,
		TwoFactor:   app.TwoFactor,
		Provisioner: provisioner,
	}
	app.Recovery = &service.RecoveryFlow{
		Store:       app.db,
		TwoFactor:   app.TwoFactor,
		Credentials: app.Credentials,
	}
	app.Admin = &service.AdminService{
		Store:       app.db,
		Cipher:      app.cipher,
		Sessions:    app.Sessions,
		Credentials: app.Credentials,
		TwoFactor:   app.TwoFactor,
	}
}

// StorePath reports where the credential store was resolved to.
func (app *Application) StorePath() string { return app.storePath }

// Logger returns the application logger for the UI layer.
func (app *Application) Logger() *slog.Logger { return app.logger }

// SelfCheck verifies the store is reachable and the schema is intact.
// The desktop shell runs it at startup before showing the login surface.
func (app *Application) SelfCheck(ctx context.Context) error {
	if err := app.db.Ping(ctx); err != nil {
		return err
	}
	return app.db.VerifySchema(ctx)
}

// Close releases the store. The session slot clears with the process.
func (app *Application) Close() error {
	app.Sessions.Clear()
	return app.db.Close()
}
