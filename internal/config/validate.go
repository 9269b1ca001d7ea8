package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for values that would prevent the client
// from starting. It reports all problems at once.
func (c *Config) Validate() error {
	var problems []string

	if c.Server.APIBaseURL == "" {
		problems = append(problems, "server.api_base_url is required")
	} else if _, err := url.Parse(c.Server.APIBaseURL); err != nil {
		problems = append(problems, fmt.Sprintf("server.api_base_url is not a valid URL: %v", err))
	}

	if c.Server.PushURL == "" {
		problems = append(problems, "server.push_url is required")
	} else if parsed, err := url.Parse(c.Server.PushURL); err != nil {
		problems = append(problems, fmt.Sprintf("server.push_url is not a valid URL: %v", err))
	} else if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		problems = append(problems, fmt.Sprintf("server.push_url must use ws or wss scheme, got %q", parsed.Scheme))
	}

	if c.Paths.CacheDir == "" {
		problems = append(problems, "paths.cache_dir is required")
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format must be console or json, got %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
