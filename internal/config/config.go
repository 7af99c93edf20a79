package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidConfig  = errors.New("invalid config")
)

const (
	// FileName is the per-repository config file, looked up from the
	// working directory towards the filesystem root.
	FileName = ".rbclient.yaml"

	// CurrentVersion is the config_version written by this release.
	CurrentVersion = "1.0.0"

	DefaultMercurialBinary  = "hg"
	DefaultCommandTimeoutMs = 300000 // 5 minutes
	DefaultLogLevel         = "warn"
	DefaultLogFormat        = "text"
	DefaultWatchDebounceMs  = 500
)

// Environment variables that override file settings.
const (
	EnvServerURL = "REVIEWBOARD_URL"
	EnvAPIToken  = "RBCLIENT_API_TOKEN"
	EnvLogLevel  = "RBCLIENT_LOG_LEVEL"
	EnvLogFormat = "RBCLIENT_LOG_FORMAT"
)

// userHomeDir is os.UserHomeDir. Var for testing.
var userHomeDir = os.UserHomeDir

// Config represents the client configuration.
type Config struct {
	ConfigVersion          string           `yaml:"config_version,omitempty"`
	ReviewBoardURL         string           `yaml:"reviewboard_url,omitempty"`
	APIToken               string           `yaml:"api_token,omitempty"`
	Repository             string           `yaml:"repository,omitempty"` // repository name on the server
	TrackingBranch         string           `yaml:"tracking_branch,omitempty"`
	ParentBranch           string           `yaml:"parent_branch,omitempty"`
	ExcludePatterns        []string         `yaml:"exclude_patterns,omitempty"`
	SuppressClientWarnings bool             `yaml:"suppress_client_warnings,omitempty"`
	Editor                 string           `yaml:"editor,omitempty"`
	Mercurial              *MercurialConfig `yaml:"mercurial,omitempty"`
	Log                    *LogConfig       `yaml:"log,omitempty"`
	Watch                  *WatchConfig     `yaml:"watch,omitempty"`

	// Exclude is the comma-separated form used before 1.0.0. Migrate
	// moves it into ExcludePatterns.
	Exclude string `yaml:"exclude,omitempty"`

	// path is the file this config was loaded from, empty for defaults.
	path string `yaml:"-"`
}

// MercurialConfig controls how hg is run.
type MercurialConfig struct {
	Binary           string `yaml:"binary,omitempty"`
	ReadUserConfig   bool   `yaml:"read_user_config,omitempty"`
	CommandTimeoutMs int    `yaml:"command_timeout_ms,omitempty"`
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // "text" or "json"
}

// WatchConfig controls diff --watch.
type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms,omitempty"`
}

// Default returns a config with every setting at its default.
func Default() *Config {
	return &Config{ConfigVersion: CurrentVersion}
}

// Path returns the file the config was loaded from, or "".
func (c *Config) Path() string {
	return c.path
}

// Discover returns the config file for startDir: the nearest FileName in
// startDir or one of its parents, else ~/.rbclient/config.yaml. It returns
// ErrConfigNotFound when neither exists.
func Discover(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", startDir, err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if fileExists(candidate) {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if home, err := userHomeDir(); err == nil {
		candidate := filepath.Join(home, ".rbclient", "config.yaml")
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", ErrConfigNotFound
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load reads, migrates and validates the config at configPath.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, configPath, err)
	}

	if err := cfg.Migrate(); err != nil {
		return nil, fmt.Errorf("config migration failed: %w", err)
	}
	cfg.path = configPath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Mercurial != nil {
		cfg.Mercurial.Binary = expandHome(cfg.Mercurial.Binary)
	}
	cfg.Editor = expandHome(cfg.Editor)
	return cfg, nil
}

// LoadForDir discovers and loads the config for dir, falling back to
// defaults when there is no config file. Environment overrides, including
// those from a .env file in dir, are applied last.
func LoadForDir(dir string) (*Config, error) {
	cfg := Default()
	path, err := Discover(dir)
	switch {
	case err == nil:
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	case !errors.Is(err, ErrConfigNotFound):
		return nil, err
	}

	if err := LoadEnvFile(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads variables from a dotenv file without overriding ones
// already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if !fileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvServerURL)); v != "" {
		c.ReviewBoardURL = v
	}
	if v := strings.TrimSpace(getenv(EnvAPIToken)); v != "" {
		c.APIToken = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.logConfig().Level = v
	}
	if v := strings.TrimSpace(getenv(EnvLogFormat)); v != "" {
		c.logConfig().Format = v
	}
}

func (c *Config) logConfig() *LogConfig {
	if c.Log == nil {
		c.Log = &LogConfig{}
	}
	return c.Log
}

// Migrate rolls an older config forward to CurrentVersion.
//
// Before 1.0.0 exclude patterns were a single comma-separated "exclude"
// string.
func (c *Config) Migrate() error {
	from := c.ConfigVersion
	if from == "" {
		from = "0.0.0"
	}
	v, err := semver.NewVersion(from)
	if err != nil {
		return fmt.Errorf("%w: config_version %q: %v", ErrInvalidConfig, c.ConfigVersion, err)
	}

	if v.LessThan(semver.MustParse("1.0.0")) {
		for _, p := range strings.Split(c.Exclude, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.ExcludePatterns = append(c.ExcludePatterns, p)
			}
		}
		c.Exclude = ""
	}

	if v.LessThan(semver.MustParse(CurrentVersion)) {
		c.ConfigVersion = CurrentVersion
	}
	return nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if c.Exclude != "" {
		return fmt.Errorf("%w: exclude was replaced by exclude_patterns in config_version 1.0.0", ErrInvalidConfig)
	}
	if c.ReviewBoardURL != "" {
		u, err := url.Parse(c.ReviewBoardURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: reviewboard_url must be an http(s) URL, got %q", ErrInvalidConfig, c.ReviewBoardURL)
		}
	}
	for _, p := range c.ExcludePatterns {
		if !doublestar.ValidatePattern(strings.TrimSpace(p)) {
			return fmt.Errorf("%w: invalid exclude pattern %q", ErrInvalidConfig, p)
		}
	}
	if c.Mercurial != nil && c.Mercurial.CommandTimeoutMs < 0 {
		return fmt.Errorf("%w: mercurial.command_timeout_ms must be >= 0", ErrInvalidConfig)
	}
	if c.Watch != nil && c.Watch.DebounceMs < 0 {
		return fmt.Errorf("%w: watch.debounce_ms must be >= 0", ErrInvalidConfig)
	}
	if c.Log != nil {
		switch strings.ToLower(c.Log.Level) {
		case "", "trace", "debug", "info", "warn", "error", "disabled":
		default:
			return fmt.Errorf("%w: unknown log.level %q", ErrInvalidConfig, c.Log.Level)
		}
		switch c.Log.Format {
		case "", "text", "json":
		default:
			return fmt.Errorf("%w: log.format must be \"text\" or \"json\", got %q", ErrInvalidConfig, c.Log.Format)
		}
	}
	return nil
}

// GetMercurialBinary returns the hg executable. Defaults to "hg".
func (c *Config) GetMercurialBinary() string {
	if c.Mercurial == nil || strings.TrimSpace(c.Mercurial.Binary) == "" {
		return DefaultMercurialBinary
	}
	return c.Mercurial.Binary
}

// GetReadUserConfig reports whether hg may read the user's hgrc.
func (c *Config) GetReadUserConfig() bool {
	return c.Mercurial != nil && c.Mercurial.ReadUserConfig
}

// GetCommandTimeoutMs returns the per-command timeout in ms. Defaults to 300000.
func (c *Config) GetCommandTimeoutMs() int {
	if c.Mercurial == nil || c.Mercurial.CommandTimeoutMs <= 0 {
		return DefaultCommandTimeoutMs
	}
	return c.Mercurial.CommandTimeoutMs
}

// CommandTimeout returns the per-command timeout as a time.Duration.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.GetCommandTimeoutMs()) * time.Millisecond
}

// GetLogLevel returns the log level. Defaults to "warn".
func (c *Config) GetLogLevel() string {
	if c.Log == nil || c.Log.Level == "" {
		return DefaultLogLevel
	}
	return strings.ToLower(c.Log.Level)
}

// GetLogFormat returns the log format. Defaults to "text".
func (c *Config) GetLogFormat() string {
	if c.Log == nil || c.Log.Format == "" {
		return DefaultLogFormat
	}
	return c.Log.Format
}

// GetWatchDebounceMs returns the watch debounce in ms. Defaults to 500.
func (c *Config) GetWatchDebounceMs() int {
	if c.Watch == nil || c.Watch.DebounceMs <= 0 {
		return DefaultWatchDebounceMs
	}
	return c.Watch.DebounceMs
}

// WatchDebounce returns the watch debounce as a time.Duration.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.GetWatchDebounceMs()) * time.Millisecond
}

// GetExcludePatterns returns the configured exclude patterns.
func (c *Config) GetExcludePatterns() []string {
	return c.ExcludePatterns
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := userHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
