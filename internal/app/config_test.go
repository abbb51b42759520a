package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfigFileLayer(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	contents := []byte("issuer = \"Acme Hardware\"\nmax_attempts = 3\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), contents, 0o644))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "Acme Hardware", cfg.Issuer)
	require.Equal(t, 3, cfg.MaxAttempts)

	// Untouched keys keep their defaults.
	require.Equal(t, "jjcims.db", cfg.StoreFile)
	require.Equal(t, uint(1), cfg.TOTPSkew)
}

func TestLoadConfigEnvironmentWins(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	contents := []byte("issuer = \"Acme Hardware\"\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), contents, 0o644))

	t.Setenv("JJCIMS_ISSUER", "Acme HQ")
	t.Setenv("JJCIMS_ATTEMPT_WINDOW", "2m")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "Acme HQ", cfg.Issuer)
	require.Equal(t, 2*time.Minute, cfg.AttemptWindow)
}

func TestLoadConfigMalformedFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("issuer = ["), 0o644))

	_, err := LoadConfig()
	require.Error(t, err)
}
