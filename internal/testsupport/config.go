package testsupport

import (
	"path/filepath"
	"testing"

	"waveline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Server.APIBaseURL = "http://127.0.0.1:0"
	cfgVal.Server.PushURL = "ws://127.0.0.1:0/realtime"
	cfgVal.Server.AuthToken = "test-token"
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{t: t, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithAPIBaseURL points the REST client at the given base URL.
func WithAPIBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.APIBaseURL = url
	}
}

// WithPushURL points the push channel at the given websocket URL.
func WithPushURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.PushURL = url
	}
}

// WithAuthToken sets the bearer token on the test config.
func WithAuthToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.AuthToken = token
	}
}

// WithTypingExpiry overrides the typing expiry window in seconds.
func WithTypingExpiry(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Realtime.TypingExpirySeconds = seconds
	}
}
