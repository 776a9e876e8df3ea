package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 90*24*time.Hour, cfg.AgentValidityDuration())
	assert.Equal(t, time.Hour, cfg.SessionTTLDuration())
	assert.Equal(t, 5*time.Minute, cfg.CleanupIntervalDuration())
}

func TestLoad_MergesWithDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: sqlite
ca:
  organization: Example Org
  agent_validity: 30d
session:
  ttl: 15m
permissions:
  build-agent: ["tasks:decompose", "claude-md:read"]
admin:
  token: secret-token
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StorageDriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "Example Org", cfg.CA.Organization)
	assert.Equal(t, "Agent Root CA", cfg.CA.CommonName)
	assert.Equal(t, 30*24*time.Hour, cfg.AgentValidityDuration())
	assert.Equal(t, 15*time.Minute, cfg.SessionTTLDuration())
	assert.Equal(t, []string{"tasks:decompose", "claude-md:read"}, cfg.Permissions["build-agent"])
	assert.Equal(t, "secret-token", cfg.Admin.Token)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeConfig(t, "server: [unclosed"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"listen addr", func(c *Config) { c.Server.ListenAddr = "" }, "server.listen_addr"},
		{"driver", func(c *Config) { c.Storage.Driver = "s3" }, "storage.driver"},
		{"root dir", func(c *Config) { c.Storage.RootDir = "" }, "storage.root_dir"},
		{"key type", func(c *Config) { c.CA.KeyType = "dsa" }, "ca.key_type"},
		{"validity", func(c *Config) { c.CA.AgentValidity = "soon" }, "ca.agent_validity"},
		{"ttl too long", func(c *Config) { c.Session.TTL = "91d" }, "session.ttl"},
		{"interval", func(c *Config) { c.Session.CleanupInterval = "0s" }, "session.cleanup_interval"},
		{"empty permissions", func(c *Config) { c.Permissions = map[string][]string{"x": nil} }, "permissions.x"},
		{"admin token", func(c *Config) { c.Admin.Token = "" }, "admin.token"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("AGENT_CA_ADMIN_TOKEN", "from-env")
	t.Setenv("AGENT_CA_STORAGE_DIR", "/var/lib/agentca")
	t.Setenv("AGENT_CA_LOG_LEVEL", "debug")

	cfg, err := LoadWithEnv("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Admin.Token)
	assert.Equal(t, "/var/lib/agentca", cfg.Storage.RootDir)
	assert.Equal(t, "debug", cfg.Logging.Level)

	t.Setenv("AGENT_CA_STORAGE_DRIVER", "bogus")
	_, err = LoadWithEnv("")
	assert.ErrorContains(t, err, "storage.driver")
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("90d")
	require.NoError(t, err)
	assert.Equal(t, 90*24*time.Hour, d)

	d, err = parseDuration("90m")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, d)

	_, err = parseDuration("xd")
	assert.Error(t, err)
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "agentca.example.yaml"))
	require.NoError(t, err)
	assert.Equal(t, StorageDriverFile, cfg.Storage.Driver)
	assert.Equal(t, "auto", cfg.Logging.Format)
	assert.Contains(t, cfg.Permissions, "build-agent")
}
