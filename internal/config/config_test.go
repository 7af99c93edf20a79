package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func withHome(t *testing.T, home string) {
	t.Helper()
	old := userHomeDir
	userHomeDir = func() (string, error) { return home, nil }
	t.Cleanup(func() { userHomeDir = old })
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	withHome(t, "/home/tester")
	path := writeConfig(t, tmpDir, FileName, `
config_version: 1.0.0
reviewboard_url: https://reviews.example.com
repository: myrepo
exclude_patterns:
  - "docs/**"
  - "*.lock"
editor: ~/bin/edit -w
mercurial:
  binary: /usr/local/bin/hg
  command_timeout_ms: 1000
log:
  level: debug
  format: json
watch:
  debounce_ms: 250
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Path() != path {
		t.Errorf("Path() = %q, want %q", cfg.Path(), path)
	}
	if cfg.ReviewBoardURL != "https://reviews.example.com" || cfg.Repository != "myrepo" {
		t.Errorf("cfg = %+v", cfg)
	}
	if want := []string{"docs/**", "*.lock"}; !reflect.DeepEqual(cfg.GetExcludePatterns(), want) {
		t.Errorf("GetExcludePatterns() = %q, want %q", cfg.GetExcludePatterns(), want)
	}
	if cfg.Editor != "/home/tester/bin/edit -w" {
		t.Errorf("Editor = %q, want ~ expanded", cfg.Editor)
	}
	if cfg.GetMercurialBinary() != "/usr/local/bin/hg" {
		t.Errorf("GetMercurialBinary() = %q", cfg.GetMercurialBinary())
	}
	if cfg.CommandTimeout() != time.Second {
		t.Errorf("CommandTimeout() = %v, want 1s", cfg.CommandTimeout())
	}
	if cfg.GetLogLevel() != "debug" || cfg.GetLogFormat() != "json" {
		t.Errorf("log = %q %q", cfg.GetLogLevel(), cfg.GetLogFormat())
	}
	if cfg.WatchDebounce() != 250*time.Millisecond {
		t.Errorf("WatchDebounce() = %v", cfg.WatchDebounce())
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, t.TempDir(), FileName, `{"config_version": "1.0.0", "reviewboard_url": "http://127.0.0.1:8080"}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.ReviewBoardURL != "http://127.0.0.1:8080" {
		t.Errorf("ReviewBoardURL = %q", cfg.ReviewBoardURL)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), FileName, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.ConfigVersion != CurrentVersion {
		t.Errorf("ConfigVersion = %q, want %q", cfg.ConfigVersion, CurrentVersion)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "reviewboard_url: http://rb\nbogus: 1\n"},
		{"bad yaml", "reviewboard_url: [\n"},
		{"bad url", "reviewboard_url: ftp://rb.example.com\n"},
		{"bad pattern", "config_version: 1.0.0\nexclude_patterns: ['[unclosed']\n"},
		{"negative timeout", "mercurial:\n  command_timeout_ms: -1\n"},
		{"bad log format", "log:\n  format: xml\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"bad version", "config_version: not-a-version\n"},
		{"legacy key on current version", "config_version: 1.0.0\nexclude: a,b\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), FileName, tt.content)
			_, err := Load(path)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Load() error = %v, want ErrConfigNotFound", err)
	}
}

func TestMigrate(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		wantPattern []string
		wantVersion string
	}{
		{
			name:        "unversioned exclude string",
			cfg:         Config{Exclude: "docs/*, *.lock ,,"},
			wantPattern: []string{"docs/*", "*.lock"},
			wantVersion: CurrentVersion,
		},
		{
			name:        "pre-release version",
			cfg:         Config{ConfigVersion: "0.9.2", Exclude: "a", ExcludePatterns: []string{"b"}},
			wantPattern: []string{"b", "a"},
			wantVersion: CurrentVersion,
		},
		{
			name:        "current version untouched",
			cfg:         Config{ConfigVersion: "1.0.0", ExcludePatterns: []string{"x"}},
			wantPattern: []string{"x"},
			wantVersion: "1.0.0",
		},
		{
			name:        "newer version kept",
			cfg:         Config{ConfigVersion: "1.4.0"},
			wantVersion: "1.4.0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if err := cfg.Migrate(); err != nil {
				t.Fatalf("Migrate() error: %v", err)
			}
			if !reflect.DeepEqual(cfg.ExcludePatterns, tt.wantPattern) {
				t.Errorf("ExcludePatterns = %q, want %q", cfg.ExcludePatterns, tt.wantPattern)
			}
			if cfg.Exclude != "" {
				t.Errorf("Exclude = %q, want cleared", cfg.Exclude)
			}
			if cfg.ConfigVersion != tt.wantVersion {
				t.Errorf("ConfigVersion = %q, want %q", cfg.ConfigVersion, tt.wantVersion)
			}
		})
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	home := t.TempDir()
	withHome(t, home)

	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := Discover(nested); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("Discover() error = %v, want ErrConfigNotFound", err)
	}

	homeConfig := writeConfig(t, home, filepath.Join(".rbclient", "config.yaml"), "")
	if got, err := Discover(nested); err != nil || got != homeConfig {
		t.Errorf("Discover() = %q, %v; want %q", got, err, homeConfig)
	}

	repoConfig := writeConfig(t, root, filepath.Join("a", FileName), "")
	if got, err := Discover(nested); err != nil || got != repoConfig {
		t.Errorf("Discover() = %q, %v; want %q", got, err, repoConfig)
	}
}

func TestLoadForDir_Defaults(t *testing.T) {
	withHome(t, t.TempDir())
	for _, key := range []string{EnvServerURL, EnvAPIToken, EnvLogLevel, EnvLogFormat} {
		t.Setenv(key, "")
	}

	cfg, err := LoadForDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadForDir() error: %v", err)
	}
	if cfg.Path() != "" {
		t.Errorf("Path() = %q, want empty for defaults", cfg.Path())
	}
	if cfg.GetMercurialBinary() != DefaultMercurialBinary {
		t.Errorf("GetMercurialBinary() = %q", cfg.GetMercurialBinary())
	}
	if cfg.GetCommandTimeoutMs() != DefaultCommandTimeoutMs {
		t.Errorf("GetCommandTimeoutMs() = %d", cfg.GetCommandTimeoutMs())
	}
	if cfg.GetLogLevel() != DefaultLogLevel || cfg.GetLogFormat() != DefaultLogFormat {
		t.Errorf("log = %q %q", cfg.GetLogLevel(), cfg.GetLogFormat())
	}
	if cfg.GetWatchDebounceMs() != DefaultWatchDebounceMs {
		t.Errorf("GetWatchDebounceMs() = %d", cfg.GetWatchDebounceMs())
	}
	if cfg.GetReadUserConfig() {
		t.Error("GetReadUserConfig() should default to false")
	}
}

func TestLoadForDir_EnvOverrides(t *testing.T) {
	withHome(t, t.TempDir())
	dir := t.TempDir()
	writeConfig(t, dir, FileName, "reviewboard_url: http://from-file.example.com\napi_token: file-token\n")
	writeConfig(t, dir, ".env", "RBCLIENT_API_TOKEN=dotenv-token\nRBCLIENT_LOG_FORMAT=json\n")

	t.Setenv(EnvServerURL, "https://from-env.example.com")
	t.Setenv(EnvLogLevel, "info")
	// Unset so the .env file can provide them; godotenv never overrides
	// variables that are already present.
	for _, key := range []string{EnvAPIToken, EnvLogFormat} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := LoadForDir(dir)
	if err != nil {
		t.Fatalf("LoadForDir() error: %v", err)
	}
	if cfg.ReviewBoardURL != "https://from-env.example.com" {
		t.Errorf("ReviewBoardURL = %q, want the environment value", cfg.ReviewBoardURL)
	}
	if cfg.APIToken != "dotenv-token" {
		t.Errorf("APIToken = %q, want the .env value", cfg.APIToken)
	}
	if cfg.GetLogLevel() != "info" || cfg.GetLogFormat() != "json" {
		t.Errorf("log = %q %q", cfg.GetLogLevel(), cfg.GetLogFormat())
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{EnvLogLevel: " debug "}
	cfg := Default()
	cfg.ApplyEnv(func(key string) string { return env[key] })

	if cfg.GetLogLevel() != "debug" {
		t.Errorf("GetLogLevel() = %q, want debug", cfg.GetLogLevel())
	}
	if cfg.ReviewBoardURL != "" {
		t.Errorf("ReviewBoardURL = %q, want unset", cfg.ReviewBoardURL)
	}
}

func TestLoadEnvFile_Missing(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("LoadEnvFile() error = %v, want nil for a missing file", err)
	}
}
