package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
noise:
  authority_public_key_hex: "ab"
  authority_private_key_hex: "cd"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 34254, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Server.ReadTimeout)
	assert.Equal(t, uint64(50), cfg.Channel.ShareBatchSize)
	assert.Equal(t, 8, cfg.Channel.ExtranoncePrefixSize)
	assert.Equal(t, 30*24*time.Hour, cfg.Noise.CertValidity)
	assert.Equal(t, "localhost", cfg.Redis.Host)
	assert.Equal(t, "sv2:", cfg.Redis.KeyPrefix)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("SV2_TEST_POSTGRES_PASSWORD", "s3cret")
	path := writeConfigFile(t, `
noise:
  authority_public_key_hex: "ab"
  authority_private_key_hex: "cd"
postgres:
  password: "${SV2_TEST_POSTGRES_PASSWORD}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Postgres.Password)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsMissingAuthorityKeys(t *testing.T) {
	path := writeConfigFile(t, `server:
  port: 34254
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 70000
noise:
  authority_public_key_hex: "ab"
  authority_private_key_hex: "cd"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsTLSEnabledWithoutCertFiles(t *testing.T) {
	path := writeConfigFile(t, `
server:
  tls:
    enabled: true
noise:
  authority_public_key_hex: "ab"
  authority_private_key_hex: "cd"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsExtranoncePrefixSizeOutOfRange(t *testing.T) {
	path := writeConfigFile(t, `
channel:
  extranonce_prefix_size: 33
noise:
  authority_public_key_hex: "ab"
  authority_private_key_hex: "cd"
`)
	_, err := Load(path)
	assert.Error(t, err)
}
