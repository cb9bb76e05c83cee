package config

import (
	"os"
	"path/filepath"
)

const appName = "inputsim"

// baseDir resolves an XDG base directory: the env var when set, otherwise
// fallback joined under the home directory, otherwise the working directory.
func baseDir(env string, fallback ...string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

// ConfigDir is the per-user directory holding the config file.
func ConfigDir() string {
	return filepath.Join(baseDir("XDG_CONFIG_HOME", ".config"), appName)
}

// DataDir is the per-user directory holding history and logs.
func DataDir() string {
	return filepath.Join(baseDir("XDG_DATA_HOME", ".local", "share"), appName)
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DefaultDBPath returns the default path for the session history database.
func DefaultDBPath() string {
	return filepath.Join(DataDir(), "history.db")
}

// DefaultLogDir returns the directory receiving per-session log files.
func DefaultLogDir() string {
	return filepath.Join(DataDir(), "logs")
}
