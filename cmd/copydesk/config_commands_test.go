package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err = runCLI(t, []string{"config", "init", "--path", target}, env.configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	// refuses to overwrite
	if _, err := runCLI(t, []string{"config", "init", "--path", target}, env.configPath); err == nil {
		t.Fatal("expected second init to fail")
	}
}

func TestConfigPathPrintsResolvedLocation(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, []string{"config", "path"}, env.configPath)
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	requireContains(t, out, env.configPath)
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("COPYDESK_GENERATOR_API_KEY", "super-secret")

	out, err := runCLI(t, []string{"config", "show"}, env.configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[generator]")
	requireContains(t, out, "[set]")
	if strings.Contains(out, "super-secret") {
		t.Fatal("secret leaked into config show output")
	}
}

func TestRunDryRunWithEmptyQueue(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := runCLI(t, []string{"run", "--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("run --dry-run: %v", err)
	}
	requireContains(t, out, "No pending items to process")
}

func TestRunRequiresGeneratorKey(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("COPYDESK_GENERATOR_API_KEY", "")
	t.Setenv("COPYDESK_EVIDENCE_API_KEY", "")
	t.Setenv("COPYDESK_PUBLISH_APP_PASSWORD", "")

	_, err := runCLI(t, []string{"run"}, env.configPath)
	if err == nil {
		t.Fatal("expected live run without credentials to fail")
	}
	requireContains(t, err.Error(), "generator.api_key")
}
