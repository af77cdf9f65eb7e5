package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server_url: https://parsec.example.com\norganization_id: acme\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://parsec.example.com", cfg.ServerURL)
	require.Equal(t, "acme", cfg.OrganizationID)
	require.Equal(t, "info", cfg.Log.Level)
	require.NotZero(t, cfg.Retry.InitialInterval)
	require.NotZero(t, cfg.Retry.MaxInterval)
	require.NotEmpty(t, cfg.StorageDir)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server_url: https://parsec.example.com
organization_id: acme
storage_dir: /var/lib/parsec
log:
  level: debug
  json_output: false
retry:
  initial_interval: 1s
  max_interval: 1m
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/parsec", cfg.StorageDir)
	require.Equal(t, "debug", cfg.Log.Level)
	require.False(t, cfg.Log.JSONOutput)
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	path := writeConfig(t, "storage_dir: /tmp/x\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
