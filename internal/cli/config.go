// Package cli holds shared helpers for the flagdeck command line tool:
// configuration resolution and output formatting.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration file.
type Config struct {
	DefaultEnv   string               `yaml:"default_env"`
	Environments map[string]EnvConfig `yaml:"environments"`
}

// EnvConfig represents configuration for a specific environment.
type EnvConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// GetConfigPath returns the path to the config file.
func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".flagdeck", "config.yaml"), nil
}

// LoadConfig loads the configuration from file. A missing file yields an
// empty config, not an error.
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{
				DefaultEnv:   "default",
				Environments: make(map[string]EnvConfig),
			}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return &cfg, nil
}

// SaveConfig saves the configuration to file.
func SaveConfig(cfg *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// InitConfig writes a starter config file, refusing to clobber an
// existing one.
func InitConfig() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists at %s", configPath)
	}
	return SaveConfig(&Config{
		DefaultEnv: "default",
		Environments: map[string]EnvConfig{
			"default": {BaseURL: "http://localhost:8080"},
		},
	})
}

// GetEnvConfig resolves the base URL and API key for an environment.
// Precedence: explicit flags > FLAGDECK_* environment variables > config file.
func GetEnvConfig(env, flagBaseURL, flagAPIKey string) (EnvConfig, error) {
	resolved := EnvConfig{
		BaseURL: flagBaseURL,
		APIKey:  flagAPIKey,
	}
	if resolved.BaseURL == "" {
		resolved.BaseURL = os.Getenv("FLAGDECK_BASE_URL")
	}
	if resolved.APIKey == "" {
		resolved.APIKey = os.Getenv("FLAGDECK_API_KEY")
	}

	if resolved.BaseURL == "" || resolved.APIKey == "" {
		cfg, err := LoadConfig()
		if err != nil {
			return EnvConfig{}, err
		}
		if env == "" {
			env = cfg.DefaultEnv
		}
		if stored, ok := cfg.Environments[env]; ok {
			if resolved.BaseURL == "" {
				resolved.BaseURL = stored.BaseURL
			}
			if resolved.APIKey == "" {
				resolved.APIKey = stored.APIKey
			}
		}
	}

	if resolved.BaseURL == "" {
		resolved.BaseURL = "http://localhost:8080"
	}
	return resolved, nil
}
