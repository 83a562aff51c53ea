package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	LogDir       string `toml:"log_dir"`
	KnowledgeDir string `toml:"knowledge_dir"`
	RulesPath    string `toml:"rules_path"`
}

// Generator contains connection settings for the generative text service.
type Generator struct {
	APIKey           string `toml:"api_key"`
	BaseURL          string `toml:"base_url"`
	Model            string `toml:"model"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	MaxOutputTokens  int    `toml:"max_output_tokens"`
	MaxFormatRetries int    `toml:"max_format_retries"`
}

// Research contains settings for the optional research providers.
type Research struct {
	QuestionEndpoint         string `toml:"question_endpoint"`
	QuestionLogin            string `toml:"question_login"`
	QuestionPassword         string `toml:"question_password"`
	QuestionTimeoutSeconds   int    `toml:"question_timeout_seconds"`
	EvidenceEndpoint         string `toml:"evidence_endpoint"`
	EvidenceAPIKey           string `toml:"evidence_api_key"`
	EvidenceModel            string `toml:"evidence_model"`
	EvidenceTimeoutSeconds   int    `toml:"evidence_timeout_seconds"`
	CompetitorPages          int    `toml:"competitor_pages"`
	CompetitorTimeoutSeconds int    `toml:"competitor_timeout_seconds"`
}

// Publish contains settings for the draft publish target.
type Publish struct {
	BaseURL        string `toml:"base_url"`
	Username       string `toml:"username"`
	AppPassword    string `toml:"app_password"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	RunEvents      bool   `toml:"run_events"`
	Review         bool   `toml:"review"`
	Errors         bool   `toml:"errors"`
}

// Pipeline contains orchestration tuning.
type Pipeline struct {
	MaxValidationRetries int `toml:"max_validation_retries"`
	ErrorLogLimit        int `toml:"error_log_limit"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration document.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Generator     Generator     `toml:"generator"`
	Research      Research      `toml:"research"`
	Publish       Publish       `toml:"publish"`
	Notifications Notifications `toml:"notifications"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/copydesk/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The boolean reports
// whether a file was found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Normalize(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// QueueDatabasePath returns the location of the sqlite queue database.
func (c *Config) QueueDatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// RunLockPath returns the location of the batch-run lock file.
func (c *Config) RunLockPath() string {
	return filepath.Join(c.Paths.DataDir, "copydesk.lock")
}

// EnsureDirectories creates the directories the pipeline writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
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
		return fmt.Errorf("stat config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

func resolveConfigPath(path string) (string, bool, error) {
	candidate := path
	if candidate == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		candidate = defaultPath
	}
	expanded, err := expandPath(candidate)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", expanded)
	}
	return expanded, true, nil
}

func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("COPYDESK_GENERATOR_API_KEY"); key != "" {
		cfg.Generator.APIKey = key
	}
	if key := os.Getenv("COPYDESK_EVIDENCE_API_KEY"); key != "" {
		cfg.Research.EvidenceAPIKey = key
	}
	if password := os.Getenv("COPYDESK_PUBLISH_APP_PASSWORD"); password != "" {
		cfg.Publish.AppPassword = password
	}
}
