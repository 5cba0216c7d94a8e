package userconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	configDirName   = "webgate"
	configFileName  = "config.json"
	storageFileName = "storage.json"

	// EnvConfigDir overrides the configuration directory
	EnvConfigDir = "WEBGATE_CONFIG_DIR"
)

// UserConfig represents the user's local configuration stored in ~/.config/webgate/config.json
type UserConfig struct {
	ServerURL   string `json:"server_url,omitempty"`
	ProxyTarget string `json:"proxy_target,omitempty"`
	Storage     string `json:"storage,omitempty"`
	StoragePath string `json:"storage_path,omitempty"`
}

// ConfigDir returns the directory holding the user config and file storage
func ConfigDir() (string, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", configDirName), nil
}

// GetConfigPath returns the path to the user config file
func GetConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// DefaultStoragePath returns where the file storage backend keeps its data
func DefaultStoragePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, storageFileName), nil
}

// Load reads the user configuration file
func Load() (*UserConfig, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	// If config doesn't exist, return empty config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return &UserConfig{}, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read user config file: %w", err)
	}

	var cfg UserConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the user configuration to a file
func Save(cfg *UserConfig) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write user config file: %w", err)
	}

	return nil
}

// Update loads the config, applies fn and saves the result
func Update(fn func(*UserConfig)) error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	fn(cfg)
	return Save(cfg)
}

// SetProxyTarget updates the selected proxy target and saves the config
func SetProxyTarget(target string) error {
	return Update(func(cfg *UserConfig) {
		cfg.ProxyTarget = target
	})
}

// GetProxyTarget returns the selected proxy target, or empty string if not set
func GetProxyTarget() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}
	return cfg.ProxyTarget, nil
}
