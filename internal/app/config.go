package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Config is layered: built-in defaults, then an optional jjcims.toml
// next to the executable or in the working directory, then environment
// variables. Environment always wins.
type Config struct {
	// StorePath overrides credential store resolution entirely.
	StorePath string `env:"JJCIMS_DB" toml:"store_path"`

	// StoreFile is the filename the path resolver searches for.
	StoreFile string `env:"JJCIMS_DB_FILE" toml:"store_file"`

	// KeyFile is the symmetric key location.
	KeyFile string `env:"JJCIMS_KEY_FILE" toml:"key_file"`

	// Issuer appears in provisioning URIs and authenticator apps.
	Issuer string `env:"JJCIMS_ISSUER" toml:"issuer"`

	// MaxAttempts is the per-flow password/2FA budget.
	MaxAttempts int `env:"JJCIMS_MAX_ATTEMPTS" toml:"max_attempts"`

	// TOTPSkew is the accepted window in steps either side of now.
	TOTPSkew uint `env:"JJCIMS_TOTP_SKEW" toml:"totp_skew"`

	// AttemptWindow is the cross-flow limiter window per username.
	AttemptWindow time.Duration `env:"JJCIMS_ATTEMPT_WINDOW" toml:"attempt_window"`

	Env       string `env:"JJCIMS_ENV" toml:"env"`
	LogLevel  string `env:"JJCIMS_LOG_LEVEL" toml:"log_level"`
	LogFormat string `env:"JJCIMS_LOG_FORMAT" toml:"log_format"`
}

// ConfigFileName is searched next to the executable and in the working
// directory.
const ConfigFileName = "jjcims.toml"

func defaultConfig() Config {
	return Config{
		StoreFile:     "jjcims.db",
		KeyFile:       "jjcims.key",
		Issuer:        "JJCIMS",
		MaxAttempts:   5,
		TOTPSkew:      1,
		AttemptWindow: time.Minute,
		Env:           "prod",
		LogLevel:      "info",
		LogFormat:     "text",
	}
}

// LoadConfig assembles the layered configuration.
func LoadConfig() (Config, error) {
	cfg := defaultConfig()

	if path, ok := findConfigFile(); ok {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// No envDefault tags: absent variables leave the file layer alone.
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

func findConfigFile() (string, bool) {
	var candidates []string
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), ConfigFileName))
	}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(wd, ConfigFileName))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, true
		}
	}
	return "", false
}
