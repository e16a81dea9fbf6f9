package config

import (
	"log/slog"
	"os"
)

// Environment variable names for overrides, same naming convention as
// the teacher's ONEDRIVE_GO_* variables.
const (
	EnvConfig = "NODESYNC_CONFIG"
	EnvDry    = "NODESYNC_DRY_RUN"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string
}

// ReadEnvOverrides reads environment variables and returns any overrides
// found. Does not modify a Config; callers apply the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{ConfigPath: os.Getenv(EnvConfig)}
}

// ResolveConfigPath determines the config file path using CLI > env >
// platform default priority, the same three-layer rule the teacher's
// root.go applies.
func ResolveConfigPath(env EnvOverrides, cliPath string, logger *slog.Logger) string {
	path := DefaultConfigPath()
	source := "default"

	if env.ConfigPath != "" {
		path = env.ConfigPath
		source = "env"
	}

	if cliPath != "" {
		path = cliPath
		source = "cli"
	}

	logger.Debug("config path resolved", "path", path, "source", source)

	return path
}
