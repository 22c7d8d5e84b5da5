package config_test

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"quill/pkg/config"
)

func tempConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Defaults(root)
	cfg.SetPath(filepath.Join(root, "config.json"))
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := config.Defaults("/tmp/quill-test")

	require.Equal(t, "2.0", cfg.Version)
	require.True(t, cfg.Security.EncryptionEnabled)
	require.False(t, cfg.Security.PasswordEnabled)
	require.Equal(t, filepath.Join("/tmp/quill-test", "journal"), cfg.Paths.Journal)
	require.Equal(t, 0.15, cfg.Search.FuzzyThreshold)
	require.Equal(t, "local", cfg.Sync.Backend)
	require.True(t, cfg.Sync.RestorePoint)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg := config.Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.Equal(t, "2.0", cfg.Version)
	require.True(t, cfg.Security.EncryptionEnabled)
}

func TestLoadCorruptFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	cfg := config.Load(path)
	require.Equal(t, "2.0", cfg.Version)
	// The unreadable file stays on disk for inspection.
	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestLoadOverlaysStoredValues(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "config.json")
	stored := fmt.Sprintf(`{"alias": "bird", "security": {"encryption_enabled": false}, "paths": {"root": %q}}`, root)
	require.NoError(t, os.WriteFile(path, []byte(stored), 0600))

	cfg := config.Load(path)
	require.Equal(t, "bird", cfg.Alias)
	require.False(t, cfg.Security.EncryptionEnabled)
	// Keys absent from the file keep their defaults.
	require.Equal(t, "2.0", cfg.Version)
	require.Equal(t, 0.15, cfg.Search.FuzzyThreshold)
}

func TestSavePreservesUnknownKeys(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "config.json")
	stored := fmt.Sprintf(`{
		"alias": "bird",
		"paths": {"root": %q, "journal": %q, "cache": %q, "backups": %q},
		"future_block": {"setting": 42}
	}`, root,
		filepath.Join(root, "journal"),
		filepath.Join(root, "cache"),
		filepath.Join(root, "backups"))
	require.NoError(t, os.WriteFile(path, []byte(stored), 0600))

	cfg := config.Load(path)
	cfg.Tone = "direct"
	require.NoError(t, cfg.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))

	require.Equal(t, "bird", raw["alias"])
	require.Equal(t, "direct", raw["tone"])
	future, ok := raw["future_block"].(map[string]interface{})
	require.True(t, ok, "unknown key should survive a save")
	require.Equal(t, float64(42), future["setting"])
}

func TestSaveCreatesPathTableDirectories(t *testing.T) {
	cfg := tempConfig(t)
	require.NoError(t, cfg.Save())

	for _, dir := range []string{cfg.Paths.Journal, cfg.Paths.Cache, cfg.Paths.Backups} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}

func TestEnsureSaltIsStable(t *testing.T) {
	cfg := tempConfig(t)

	first, err := cfg.EnsureSalt()
	require.NoError(t, err)
	require.Len(t, first, 32)

	second, err := cfg.EnsureSalt()
	require.NoError(t, err)
	require.Equal(t, first, second)

	// The salt survives a reload.
	reloaded := config.Load(cfg.Path())
	third, err := reloaded.EnsureSalt()
	require.NoError(t, err)
	require.Equal(t, first, third)
}

func TestEnsureKeySeedIsStable(t *testing.T) {
	cfg := tempConfig(t)

	first, err := cfg.EnsureKeySeed()
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := cfg.EnsureKeySeed()
	require.NoError(t, err)
	require.Equal(t, first, second)

	reloaded := config.Load(cfg.Path())
	require.Equal(t, first, reloaded.Security.KeySeed)
}
