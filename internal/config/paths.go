// Package config provides layered configuration loading for the
// orchestrator: a global file, a project file, then environment
// overrides, in that priority order.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths contains the standard XDG-ish paths for pair's own config.
type Paths struct {
	Config string // ~/.config/pair
}

// GetPaths returns the standard paths used to locate configuration.
func GetPaths() *Paths {
	return &Paths{
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", defaultConfigHome()), "pair"),
	}
}

// EnsurePaths creates the config directory if missing.
func (p *Paths) EnsurePaths() error {
	return os.MkdirAll(p.Config, 0755)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultConfigHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".config")
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	return filepath.Join(GetPaths().Config, "pair.json")
}

// ProjectConfigPath returns the path to the project-local config file.
func ProjectConfigPath(directory string) string {
	return filepath.Join(directory, ".pair", "pair.json")
}
