package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTemp(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	return path
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.toml"), testLogger())
	require.NoError(t, err)
	assert.Equal(t, defaultStorageFolder, cfg.StorageFolder)
	assert.Equal(t, defaultEventDebounce, cfg.EventDebounce)
}

func TestLoadAppliesOverridesOverDefaults(t *testing.T) {
	path := writeTemp(t, `
sync_root = "/home/user/projects"
event_debounce = "2s"
dry_run = true
`)

	cfg, err := Load(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, "/home/user/projects", cfg.SyncRoot)
	assert.Equal(t, "2s", cfg.EventDebounce)
	assert.True(t, cfg.Dry)
	assert.Equal(t, defaultStorageFolder, cfg.StorageFolder) // untouched default survives
}

func TestLoadRejectsUnknownKeyWithSuggestion(t *testing.T) {
	path := writeTemp(t, `storag_folder = "osfstorage"`)

	_, err := Load(path, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `did you mean "storage_folder"`)
}

func TestLoadRejectsInvalidDebounce(t *testing.T) {
	path := writeTemp(t, `event_debounce = "not-a-duration"`)

	_, err := Load(path, testLogger())
	assert.Error(t, err)
}

func TestDefaultPathsAreNonEmpty(t *testing.T) {
	assert.NotEmpty(t, DefaultConfigPath())
	assert.NotEmpty(t, DefaultDatabasePath())
	assert.NotEmpty(t, DefaultSyncDir())
}
