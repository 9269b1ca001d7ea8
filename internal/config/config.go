package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains the remote endpoints and credentials for the streaming
// service backend.
type Server struct {
	APIBaseURL     string `toml:"api_base_url"`
	PushURL        string `toml:"push_url"`
	AuthToken      string `toml:"auth_token"`
	UserID         string `toml:"user_id"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Realtime contains tuning knobs for the push channel and the registries fed
// by it.
type Realtime struct {
	TypingExpirySeconds  int `toml:"typing_expiry_seconds"`
	EchoMatchWindowSecs  int `toml:"echo_match_window_seconds"`
	EventBuffer          int `toml:"event_buffer"`
	NotificationPageSize int `toml:"notification_page_size"`
}

// Paths contains local directory configuration.
type Paths struct {
	CacheDir string `toml:"cache_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the waveline client.
//
// Sections by subsystem:
//   - Server: REST base URL, push channel URL, auth token
//   - Realtime: typing expiry, optimistic echo matching, event buffering
//   - Paths: local cache and log directories
//   - Logging: log format and level
type Config struct {
	Server   Server   `toml:"server"`
	Realtime Realtime `toml:"realtime"`
	Paths    Paths    `toml:"paths"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/waveline/config.toml")
}

// Load locates, parses, and validates a configuration file. When path is
// empty the default location is used; a missing file yields defaults.
func Load(path string) (*Config, error) {
	resolved := strings.TrimSpace(path)
	if resolved == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return nil, err
		}
		resolved = defaultPath
	} else {
		expanded, err := expandPath(resolved)
		if err != nil {
			return nil, err
		}
		resolved = expanded
	}

	cfg := Default()
	data, err := os.ReadFile(resolved)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Fall through with defaults.
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", resolved, err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", expanded, err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the cache and log directories if needed.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.Server.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Server.APIBaseURL), "/")
	c.Server.PushURL = strings.TrimSpace(c.Server.PushURL)
	c.Server.AuthToken = strings.TrimSpace(c.Server.AuthToken)
	c.Server.UserID = strings.TrimSpace(c.Server.UserID)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	if expanded, err := expandPath(c.Paths.CacheDir); err == nil {
		c.Paths.CacheDir = expanded
	}
	if expanded, err := expandPath(c.Paths.LogDir); err == nil {
		c.Paths.LogDir = expanded
	}

	defaults := Default()
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = defaults.Server.RequestTimeout
	}
	if c.Realtime.TypingExpirySeconds <= 0 {
		c.Realtime.TypingExpirySeconds = defaults.Realtime.TypingExpirySeconds
	}
	if c.Realtime.EchoMatchWindowSecs <= 0 {
		c.Realtime.EchoMatchWindowSecs = defaults.Realtime.EchoMatchWindowSecs
	}
	if c.Realtime.EventBuffer <= 0 {
		c.Realtime.EventBuffer = defaults.Realtime.EventBuffer
	}
	if c.Realtime.NotificationPageSize <= 0 {
		c.Realtime.NotificationPageSize = defaults.Realtime.NotificationPageSize
	}
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
