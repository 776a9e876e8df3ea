package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// DefaultAdminToken is the placeholder admin token shipped in Default()
const DefaultAdminToken = "change-me-admin-token"

// Storage drivers
const (
	StorageDriverFile   = "file"
	StorageDriverSQLite = "sqlite"
)

// Config holds all configuration for the application
type Config struct {
	Server      ServerConfig        `yaml:"server"`
	Storage     StorageConfig       `yaml:"storage"`
	Database    DatabaseConfig      `yaml:"database"`
	CA          CAConfig            `yaml:"ca"`
	Session     SessionConfig       `yaml:"session"`
	Permissions map[string][]string `yaml:"permissions"`
	Admin       AdminConfig         `yaml:"admin"`
	Logging     LoggingConfig       `yaml:"logging"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// StorageConfig selects where CA, agent and session records live
type StorageConfig struct {
	Driver  string `yaml:"driver"`
	RootDir string `yaml:"root_dir"`
}

// DatabaseConfig contains database configuration. The database holds the
// audit log, and the records too when storage.driver is sqlite.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CAConfig contains root authority configuration
type CAConfig struct {
	KeyType       string `yaml:"key_type"`
	CommonName    string `yaml:"common_name"`
	Organization  string `yaml:"organization"`
	Country       string `yaml:"country"`
	AgentValidity string `yaml:"agent_validity"`
}

// SessionConfig contains session configuration
type SessionConfig struct {
	TTL             string `yaml:"ttl"`
	CleanupInterval string `yaml:"cleanup_interval"`
}

// AdminConfig contains admin configuration
type AdminConfig struct {
	Token      string `yaml:"token"`
	TOTPSecret string `yaml:"totp_secret"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a valid baseline configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:8443",
		},
		Storage: StorageConfig{
			Driver:  StorageDriverFile,
			RootDir: ".claude/security",
		},
		Database: DatabaseConfig{
			Path: ".claude/security/agentca.db",
		},
		CA: CAConfig{
			KeyType:       "ed25519",
			CommonName:    "Agent Root CA",
			Organization:  "Agent Authority",
			Country:       "US",
			AgentValidity: "90d",
		},
		Session: SessionConfig{
			TTL:             "1h",
			CleanupInterval: "5m",
		},
		Admin: AdminConfig{
			Token: DefaultAdminToken,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Server validation
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}

	// Storage validation
	switch c.Storage.Driver {
	case StorageDriverFile:
		if c.Storage.RootDir == "" {
			return fmt.Errorf("storage.root_dir is required for the file driver")
		}
	case StorageDriverSQLite:
	default:
		return fmt.Errorf("storage.driver must be 'file' or 'sqlite'")
	}

	// Database validation
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// CA validation
	if c.CA.KeyType != "ed25519" && c.CA.KeyType != "rsa" {
		return fmt.Errorf("ca.key_type must be 'ed25519' or 'rsa'")
	}
	if c.CA.CommonName == "" {
		return fmt.Errorf("ca.common_name is required")
	}
	validity, err := parseDuration(c.CA.AgentValidity)
	if err != nil {
		return fmt.Errorf("ca.agent_validity is invalid: %w", err)
	}
	if validity <= 0 {
		return fmt.Errorf("ca.agent_validity must be positive")
	}

	// Session validation
	ttl, err := parseDuration(c.Session.TTL)
	if err != nil {
		return fmt.Errorf("session.ttl is invalid: %w", err)
	}
	if ttl <= 0 || ttl >= validity {
		return fmt.Errorf("session.ttl must be positive and shorter than ca.agent_validity")
	}
	interval, err := parseDuration(c.Session.CleanupInterval)
	if err != nil {
		return fmt.Errorf("session.cleanup_interval is invalid: %w", err)
	}
	if interval <= 0 {
		return fmt.Errorf("session.cleanup_interval must be positive")
	}

	// Permission validation
	for agentType, perms := range c.Permissions {
		if strings.TrimSpace(agentType) == "" {
			return fmt.Errorf("permissions: agent type must not be empty")
		}
		if len(perms) == 0 {
			return fmt.Errorf("permissions.%s must list at least one permission", agentType)
		}
	}

	// Admin validation
	if c.Admin.Token == "" {
		return fmt.Errorf("admin.token is required")
	}
	if c.Admin.Token == DefaultAdminToken {
		fmt.Fprintf(os.Stderr, "WARNING: Using default admin token. Please change it in production!\n")
	}

	// Logging validation
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" && c.Logging.Format != "auto" {
		return fmt.Errorf("logging.format must be 'json', 'text' or 'auto'")
	}

	return nil
}

// AgentValidityDuration returns the agent certificate validity as time.Duration
func (c *Config) AgentValidityDuration() time.Duration {
	d, _ := parseDuration(c.CA.AgentValidity)
	return d
}

// SessionTTLDuration returns the session lifetime as time.Duration
func (c *Config) SessionTTLDuration() time.Duration {
	d, _ := parseDuration(c.Session.TTL)
	return d
}

// CleanupIntervalDuration returns the session sweep interval as time.Duration
func (c *Config) CleanupIntervalDuration() time.Duration {
	d, _ := parseDuration(c.Session.CleanupInterval)
	return d
}

// parseDuration parses duration with support for days (e.g., "90d")
func parseDuration(s string) (time.Duration, error) {
	// Handle "d" suffix for days
	if len(s) > 1 && s[len(s)-1] == 'd' {
		days := s[:len(s)-1]
		var d int
		if _, err := fmt.Sscanf(days, "%d", &d); err != nil {
			return 0, err
		}
		return time.Duration(d) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
