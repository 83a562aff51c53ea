// Package config loads, validates, and normalizes the copydesk configuration
// from its TOML file. Values are read once at startup; components receive the
// resulting immutable Config.
package config
