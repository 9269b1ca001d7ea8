package config

// Default returns the baseline configuration used before any file overrides
// are applied.
func Default() Config {
	return Config{
		Server: Server{
			APIBaseURL:     "http://localhost:8000",
			PushURL:        "ws://localhost:8000/ws",
			RequestTimeout: 15,
		},
		Realtime: Realtime{
			TypingExpirySeconds:  4,
			EchoMatchWindowSecs:  10,
			EventBuffer:          256,
			NotificationPageSize: 20,
		},
		Paths: Paths{
			CacheDir: "~/.cache/waveline",
			LogDir:   "~/.local/share/waveline/logs",
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
