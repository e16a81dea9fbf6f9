package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
	appName        = "nodesync"
	configFileName = "config.toml"
	databaseName   = "nodesync.db"
	tokenFileName  = "token.json"
	pidFileName    = "nodesync.pid"
)

// DefaultConfigDir returns the platform-specific directory for config
// files, matching the teacher's XDG-on-Linux / Application Support-on-
// macOS convention.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDir(home, "XDG_CONFIG_HOME", ".config")
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// DefaultDataDir returns the platform-specific directory for the sync
// database.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDir(home, "XDG_DATA_HOME", ".local/share")
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

func linuxDir(home, xdgVar, fallback string) string {
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, fallback, appName)
}

// DefaultConfigPath returns the full path to the default config file.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return configFileName
	}

	return filepath.Join(dir, configFileName)
}

// DefaultDatabasePath returns the full path to the default sync database.
func DefaultDatabasePath() string {
	dir := DefaultDataDir()
	if dir == "" {
		return databaseName
	}

	return filepath.Join(dir, databaseName)
}

// DefaultTokenPath returns the full path to the default API token file.
// Obtaining the token (login/OAuth) is out of scope; this is only where
// commands that need remote access expect one to already exist.
func DefaultTokenPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return tokenFileName
	}

	return filepath.Join(dir, tokenFileName)
}

// DefaultPIDPath returns the full path to the --watch daemon's PID file.
func DefaultPIDPath() string {
	dir := DefaultDataDir()
	if dir == "" {
		return pidFileName
	}

	return filepath.Join(dir, pidFileName)
}

// DefaultSyncDir returns ~/nodesync as the out-of-the-box sync root.
func DefaultSyncDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return appName
	}

	return filepath.Join(home, appName)
}
