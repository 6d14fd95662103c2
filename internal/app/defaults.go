package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigPathEnv overrides the default config file location.
const ConfigPathEnv = "SBK_CONFIG_PATH"

// DefaultConfigName is the config file looked up in the working directory.
const DefaultConfigName = "backup_config.toml"

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - SBK_CONFIG_PATH: config file location (default: <cwd>/backup_config.toml)
//
// Relative paths in the config file are resolved against base_dir, the
// working directory.
func GetDefaults() (map[string]string, error) {
	baseDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("cannot determine working directory: %w", err)
	}

	configPath := os.Getenv(ConfigPathEnv)
	if configPath == "" {
		configPath = filepath.Join(baseDir, DefaultConfigName)
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
	}, nil
}
