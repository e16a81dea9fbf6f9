package config

import (
	"fmt"
	"time"
)

// Validate checks a decoded Config for internally consistent values.
func Validate(cfg *Config) error {
	if cfg.SyncRoot == "" {
		return fmt.Errorf("sync_root must not be empty")
	}

	if _, err := time.ParseDuration(cfg.EventDebounce); err != nil {
		return fmt.Errorf("event_debounce %q: %w", cfg.EventDebounce, err)
	}

	if cfg.StorageFolder == "" {
		return fmt.Errorf("storage_folder must not be empty")
	}

	return nil
}
