package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable for a live run. Research
// provider credentials are intentionally not required: a missing provider
// degrades the bundle, it never blocks a run.
func (c *Config) Validate() error {
	if err := c.validateGenerator(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateGenerator() error {
	if c.Generator.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/copydesk/config.toml"
		}
		return fmt.Errorf("generator.api_key is required. Set COPYDESK_GENERATOR_API_KEY or edit %s (create with 'copydesk config init')", defaultPath)
	}
	if strings.TrimSpace(c.Generator.Model) == "" {
		return errors.New("generator.model must be set")
	}
	if c.Generator.MaxOutputTokens < 1024 {
		return errors.New("generator.max_output_tokens must be at least 1024")
	}
	return nil
}

func (c *Config) validatePublish() error {
	if c.Publish.BaseURL == "" {
		return errors.New("publish.base_url must be set")
	}
	if c.Publish.Username == "" {
		return errors.New("publish.username must be set")
	}
	if strings.TrimSpace(c.Publish.AppPassword) == "" {
		return errors.New("publish.app_password must be set (set COPYDESK_PUBLISH_APP_PASSWORD)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
