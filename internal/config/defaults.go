package config

// Default values for configuration options, the "layer 0" of the
// default -> config file -> environment -> CLI flag override chain.
const (
	defaultStorageFolder = "osfstorage"
	defaultEventDebounce = "5s"
	defaultLogLevel      = "info"
	defaultLogFormat     = "auto"
	defaultAPIBaseURL    = "https://api.osf.io/v2"
)

// defaultIgnoredNames mirrors the original osf-offline IGNORED_NAMES set:
// OS-generated metadata files and the .git directory, which should never
// sync. Editor swap files are matched by defaultIgnoredGlobs instead.
var defaultIgnoredNames = []string{
	".DS_Store", "Thumbs.db", "desktop.ini", ".git",
}

// defaultIgnoredGlobs mirrors the original IGNORED_PATTERNS set.
var defaultIgnoredGlobs = []string{
	"*.swp", "*.tmp", "~$*",
}

// DefaultConfig returns a Config populated with all default values. Used
// both as the decode target (so unset TOML fields keep their defaults)
// and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		SyncRoot:      DefaultSyncDir(),
		DatabasePath:  "",
		StorageFolder: defaultStorageFolder,
		EventDebounce: defaultEventDebounce,
		IgnoredNames:  append([]string(nil), defaultIgnoredNames...),
		IgnoredGlobs:  append([]string(nil), defaultIgnoredGlobs...),
		LogLevel:      defaultLogLevel,
		LogFormat:     defaultLogFormat,
		APIBaseURL:    defaultAPIBaseURL,
	}
}
