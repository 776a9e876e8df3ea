package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file. Keys missing from the file
// keep their Default() values.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithEnv loads configuration from a file and applies environment
// variable overrides. An empty path starts from Default().
func LoadWithEnv(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = read(path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if listenAddr := os.Getenv("AGENT_CA_LISTEN_ADDR"); listenAddr != "" {
		cfg.Server.ListenAddr = listenAddr
	}

	if driver := os.Getenv("AGENT_CA_STORAGE_DRIVER"); driver != "" {
		cfg.Storage.Driver = driver
	}

	if rootDir := os.Getenv("AGENT_CA_STORAGE_DIR"); rootDir != "" {
		cfg.Storage.RootDir = rootDir
	}

	if dbPath := os.Getenv("AGENT_CA_DB_PATH"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if adminToken := os.Getenv("AGENT_CA_ADMIN_TOKEN"); adminToken != "" {
		cfg.Admin.Token = adminToken
	}

	if totpSecret := os.Getenv("AGENT_CA_ADMIN_TOTP_SECRET"); totpSecret != "" {
		cfg.Admin.TOTPSecret = totpSecret
	}

	if level := os.Getenv("AGENT_CA_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
