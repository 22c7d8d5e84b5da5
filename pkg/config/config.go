package config

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"os/user"
	"path/filepath"

	"quill/pkg/crypto"
	"quill/pkg/errors"
)

// SecurityConfig holds the password and encryption settings. The salt and key
// seed are created lazily on first use and must never be regenerated once set:
// changing either invalidates all previously encrypted content.
type SecurityConfig struct {
	PasswordEnabled   bool   `json:"password_enabled"`
	PasswordHash      string `json:"password_hash"`
	Salt              string `json:"salt"`
	EncryptionEnabled bool   `json:"encryption_enabled"`
	KeySeed           string `json:"key_seed"`
}

// PathsConfig is the path table for everything the application persists.
type PathsConfig struct {
	Root    string `json:"root"`
	Journal string `json:"journal"`
	Cache   string `json:"cache"`
	Backups string `json:"backups"`
}

// ProfileConfig describes the journal owner.
type ProfileConfig struct {
	Name string `json:"name"`
	Goal string `json:"goal"`
}

// SearchConfig carries the recall tuning knobs. The weights and thresholds are
// empirically chosen, so they live in configuration rather than constants.
type SearchConfig struct {
	FuzzyThreshold    float64 `json:"fuzzy_threshold"`
	DateBonus         float64 `json:"date_bonus"`
	FuzzyWeight       float64 `json:"fuzzy_weight"`
	SemanticWeight    float64 `json:"semantic_weight"`
	EmbeddingDim      int     `json:"embedding_dim"`
	RecapLookbackDays int     `json:"recap_lookback_days"`
	RecapSentences    int     `json:"recap_sentences"`
}

// LocalSyncConfig configures the local-copy backup backend.
type LocalSyncConfig struct {
	Path string `json:"path"`
}

// S3SyncConfig configures the object-storage backup backend.
type S3SyncConfig struct {
	Enabled   bool   `json:"enabled"`
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix"`
	Endpoint  string `json:"endpoint"`
	Region    string `json:"region"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// WebDAVSyncConfig configures the WebDAV backup backend.
type WebDAVSyncConfig struct {
	Enabled  bool   `json:"enabled"`
	URL      string `json:"url"`
	Path     string `json:"path"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// SyncConfig selects and configures the backup backend.
type SyncConfig struct {
	Backend      string           `json:"backend"`
	RestorePoint bool             `json:"restore_point"`
	DryRun       bool             `json:"dry_run"`
	Local        LocalSyncConfig  `json:"local"`
	S3           S3SyncConfig     `json:"s3"`
	WebDAV       WebDAVSyncConfig `json:"webdav"`
}

// Config is the full runtime configuration. It is constructed once at startup
// and passed explicitly to every component; there is no package-level
// singleton.
type Config struct {
	Version  string         `json:"version"`
	Alias    string         `json:"alias"`
	Tone     string         `json:"tone"`
	Security SecurityConfig `json:"security"`
	Paths    PathsConfig    `json:"paths"`
	Profile  ProfileConfig  `json:"profile"`
	Search   SearchConfig   `json:"search"`
	Sync     SyncConfig     `json:"sync"`

	path  string
	extra map[string]interface{}
}

// DefaultConfigPath returns the location of the config file.
func DefaultConfigPath() string {
	currentUser, err := user.Current()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(currentUser.HomeDir, ".config", "quill", "config.json")
}

// DefaultDataRoot returns the default storage root.
func DefaultDataRoot() string {
	currentUser, err := user.Current()
	if err != nil {
		return "./data"
	}
	return filepath.Join(currentUser.HomeDir, ".quill")
}

// Defaults returns a fully-populated configuration rooted at dataRoot.
func Defaults(dataRoot string) *Config {
	if dataRoot == "" {
		dataRoot = DefaultDataRoot()
	}
	return &Config{
		Version: "2.0",
		Alias:   "quill",
		Tone:    "friendly",
		Security: SecurityConfig{
			EncryptionEnabled: true,
		},
		Paths: PathsConfig{
			Root:    dataRoot,
			Journal: filepath.Join(dataRoot, "journal"),
			Cache:   filepath.Join(dataRoot, "cache"),
			Backups: filepath.Join(dataRoot, "backups"),
		},
		Profile: ProfileConfig{
			Name: "Friend",
			Goal: "journal",
		},
		Search: SearchConfig{
			FuzzyThreshold:    0.15,
			DateBonus:         0.15,
			FuzzyWeight:       0.6,
			SemanticWeight:    0.65,
			EmbeddingDim:      48,
			RecapLookbackDays: 90,
			RecapSentences:    4,
		},
		Sync: SyncConfig{
			Backend:      "local",
			RestorePoint: true,
			S3:           S3SyncConfig{Prefix: "quill/"},
			WebDAV:       WebDAVSyncConfig{Path: "/quill"},
		},
	}
}

// Load reads the config file at path (DefaultConfigPath when empty) and merges
// it over defaults. A missing or corrupt file is not an error: defaults are
// returned and the unreadable file is left in place for manual inspection.
func Load(path string) *Config {
	if path == "" {
		path = DefaultConfigPath()
	}
	cfg := Defaults("")
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		errors.ErrConfigCorrupt.WithContext("path", path).Log()
		return cfg
	}
	// Unmarshalling into the pre-populated struct overlays only the keys
	// actually present in the file.
	if err := json.Unmarshal(data, cfg); err != nil {
		errors.ErrConfigCorrupt.WithContext("path", path).Log()
		cfg = Defaults("")
		cfg.path = path
		return cfg
	}
	cfg.path = path
	cfg.extra = raw
	return cfg
}

// Path returns the file this configuration is persisted to.
func (c *Config) Path() string {
	return c.path
}

// SetPath overrides the persistence location (used by tests and the CLI).
func (c *Config) SetPath(path string) {
	c.path = path
}

// Save writes the full configuration back and ensures every directory in the
// path table exists. Keys present in the stored file but unknown to this
// version are preserved.
func (c *Config) Save() error {
	if c.path == "" {
		c.path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return errors.Wrap(err, errors.ErrTypeConfig, "CONFIG_SAVE_FAILED", "failed to create config directory")
	}

	known, err := json.Marshal(c)
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeConfig, "CONFIG_SAVE_FAILED", "failed to marshal configuration")
	}
	var knownMap map[string]interface{}
	if err := json.Unmarshal(known, &knownMap); err != nil {
		return errors.Wrap(err, errors.ErrTypeConfig, "CONFIG_SAVE_FAILED", "failed to marshal configuration")
	}

	merged := mergeMaps(c.extra, knownMap)
	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrTypeConfig, "CONFIG_SAVE_FAILED", "failed to marshal configuration")
	}
	if err := os.WriteFile(c.path, data, 0600); err != nil {
		return errors.Wrap(err, errors.ErrTypeConfig, "CONFIG_SAVE_FAILED", "failed to write configuration")
	}

	for _, dir := range []string{c.Paths.Root, c.Paths.Journal, c.Paths.Cache, c.Paths.Backups} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, errors.ErrTypeFileSystem, "DIR_CREATE_FAILED", "failed to create storage directory").
				WithContext("dir", dir)
		}
	}
	return nil
}

// mergeMaps overlays incoming onto base recursively and returns the result.
// Values present in incoming win; keys only in base survive.
func mergeMaps(base, incoming map[string]interface{}) map[string]interface{} {
	if base == nil {
		return incoming
	}
	out := make(map[string]interface{}, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range incoming {
		if bv, ok := out[k].(map[string]interface{}); ok {
			if iv, ok := v.(map[string]interface{}); ok {
				out[k] = mergeMaps(bv, iv)
				continue
			}
		}
		out[k] = v
	}
	return out
}

// EnsureSalt returns the persisted salt, creating and saving it on first use.
// An existing salt is never overwritten.
func (c *Config) EnsureSalt() ([]byte, error) {
	if c.Security.Salt != "" {
		return hex.DecodeString(c.Security.Salt)
	}
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	c.Security.Salt = hex.EncodeToString(salt)
	if err := c.Save(); err != nil {
		return nil, err
	}
	return salt, nil
}

// EnsureKeySeed returns the persisted key seed, creating and saving it on
// first use. The seed stands in for a user password when none is configured.
func (c *Config) EnsureKeySeed() (string, error) {
	if c.Security.KeySeed != "" {
		return c.Security.KeySeed, nil
	}
	seed, err := crypto.GenerateSalt()
	if err != nil {
		return "", err
	}
	c.Security.KeySeed = hex.EncodeToString(seed)
	if err := c.Save(); err != nil {
		return "", err
	}
	return c.Security.KeySeed, nil
}

// EntriesFile returns the canonical location of the journal entries file.
func (c *Config) EntriesFile() string {
	return filepath.Join(c.Paths.Journal, "entries.json")
}
