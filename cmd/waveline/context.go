package main

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"waveline/internal/cache"
	"waveline/internal/config"
	"waveline/internal/logging"
)

type commandContext struct {
	configFlag *string
	userFlag   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, userFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		userFlag:   userFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// userID resolves the signed-in user, preferring the --user flag over the
// config file.
func (c *commandContext) userID() (string, error) {
	if c.userFlag != nil {
		if user := strings.TrimSpace(*c.userFlag); user != "" {
			return user, nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	if cfg.Server.UserID != "" {
		return cfg.Server.UserID, nil
	}
	return "", errors.New("no user id: set server.user_id in the config or pass --user")
}

func (c *commandContext) newLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		LogPath: filepath.Join(cfg.Paths.LogDir, "waveline.log"),
	})
}

// withCache opens the snapshot cache for offline reads and closes it when fn
// returns.
func (c *commandContext) withCache(fn func(*cache.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := cache.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
