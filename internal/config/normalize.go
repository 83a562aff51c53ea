package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Normalize expands paths, trims string fields, and backfills defaults for
// any zero-valued tuning knobs.
func (c *Config) Normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(orDefault(c.Paths.DataDir, defaultDataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(orDefault(c.Paths.LogDir, defaultLogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.KnowledgeDir, err = expandPath(orDefault(c.Paths.KnowledgeDir, defaultKnowledgeDir)); err != nil {
		return fmt.Errorf("paths.knowledge_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.RulesPath) != "" {
		if c.Paths.RulesPath, err = expandPath(c.Paths.RulesPath); err != nil {
			return fmt.Errorf("paths.rules_path: %w", err)
		}
	}

	c.Generator.APIKey = strings.TrimSpace(c.Generator.APIKey)
	c.Generator.BaseURL = orDefault(c.Generator.BaseURL, defaultGeneratorBaseURL)
	c.Generator.Model = orDefault(c.Generator.Model, defaultGeneratorModel)
	if c.Generator.TimeoutSeconds <= 0 {
		c.Generator.TimeoutSeconds = defaultGeneratorTimeoutSeconds
	}
	if c.Generator.MaxOutputTokens <= 0 {
		c.Generator.MaxOutputTokens = defaultGeneratorMaxOutputTokens
	}
	if c.Generator.MaxFormatRetries < 0 {
		c.Generator.MaxFormatRetries = defaultGeneratorFormatRetries
	}

	c.Research.QuestionEndpoint = orDefault(c.Research.QuestionEndpoint, defaultQuestionEndpoint)
	c.Research.EvidenceEndpoint = orDefault(c.Research.EvidenceEndpoint, defaultEvidenceEndpoint)
	c.Research.EvidenceModel = orDefault(c.Research.EvidenceModel, defaultEvidenceModel)
	if c.Research.QuestionTimeoutSeconds <= 0 {
		c.Research.QuestionTimeoutSeconds = defaultQuestionTimeoutSeconds
	}
	if c.Research.EvidenceTimeoutSeconds <= 0 {
		c.Research.EvidenceTimeoutSeconds = defaultEvidenceTimeoutSeconds
	}
	if c.Research.CompetitorPages < 0 {
		c.Research.CompetitorPages = defaultCompetitorPages
	}
	if c.Research.CompetitorTimeoutSeconds <= 0 {
		c.Research.CompetitorTimeoutSeconds = defaultCompetitorTimeout
	}

	c.Publish.BaseURL = strings.TrimRight(strings.TrimSpace(c.Publish.BaseURL), "/")
	c.Publish.Username = strings.TrimSpace(c.Publish.Username)
	if c.Publish.TimeoutSeconds <= 0 {
		c.Publish.TimeoutSeconds = defaultPublishTimeoutSeconds
	}

	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}

	if c.Pipeline.MaxValidationRetries < 0 {
		c.Pipeline.MaxValidationRetries = defaultMaxValidationRetries
	}
	if c.Pipeline.ErrorLogLimit <= 0 {
		c.Pipeline.ErrorLogLimit = defaultErrorLogLimit
	}

	c.Logging.Format = strings.ToLower(orDefault(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(orDefault(c.Logging.Level, defaultLogLevel))
	return nil
}

func orDefault(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("path is empty")
	}
	if trimmed == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Clean(trimmed), nil
}
