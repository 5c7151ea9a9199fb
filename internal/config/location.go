package config

import (
	"os"
	"path/filepath"

	"github.com/joeycumines/renderdemo/internal/storage"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "RENDERDEMO_CONFIG"

// GetConfigPath returns $RENDERDEMO_CONFIG if set, else
// ~/.renderdemo/config.
func GetConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}
	dir, err := storage.UserDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config"), nil
}

// EnsureConfigDir ensures that the configuration directory exists.
func EnsureConfigDir() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	return os.MkdirAll(filepath.Dir(path), 0755)
}
