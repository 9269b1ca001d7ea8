// Package config loads and validates the TOML configuration for the waveline
// client.
//
// Load resolves the config path (defaulting to ~/.config/waveline), applies
// defaults for missing values, normalizes paths and URLs, and validates the
// result so downstream packages never see a partially-formed Config.
package config
