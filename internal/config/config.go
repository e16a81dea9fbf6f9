// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for nodesync. Grounded on the
// teacher's internal/config package: same load/defaults/paths/unknown-key
// split, scaled down to this domain's flat settings (no per-drive
// sections — a synced Node's selection lives in the database, not the
// config file).
package config

// Config is the top-level TOML-decoded configuration.
type Config struct {
	SyncRoot      string   `toml:"sync_root"`
	DatabasePath  string   `toml:"database_path"`
	StorageFolder string   `toml:"storage_folder"`
	EventDebounce string   `toml:"event_debounce"`
	IgnoredNames  []string `toml:"ignored_names"`
	IgnoredGlobs  []string `toml:"ignored_patterns"`
	Dry           bool     `toml:"dry_run"`
	LogLevel      string   `toml:"log_level"`
	LogFormat     string   `toml:"log_format"`
	APIBaseURL    string   `toml:"api_base_url"`
}
