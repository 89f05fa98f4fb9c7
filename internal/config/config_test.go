package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points the user config at an empty directory.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "")
}

func TestLoadFrom_Defaults(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	want := Default(dir)
	if cfg.Execution != want.Execution {
		t.Errorf("Execution = %+v, want %+v", cfg.Execution, want.Execution)
	}
	if cfg.Execution.ManualTimeout != 0 {
		t.Errorf("review tickets should not expire by default, ManualTimeout = %v", cfg.Execution.ManualTimeout)
	}
	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Root != dir {
		t.Errorf("Root = %q, want %q", cfg.Root, dir)
	}
	if got := cfg.StatePath(); got != filepath.Join(dir, ".qualgate", "state.db") {
		t.Errorf("StatePath = %q", got)
	}
}

func TestLoadFrom_ProjectConfigSearchedUpward(t *testing.T) {
	isolate(t)
	root := t.TempDir()
	content := `
catalog:
  path: checklists/catalog.yaml
execution:
  criterion_timeout: 90s
  pass_threshold: 85
recommender:
  enabled: true
  model: claude-sonnet-4-5
`
	if err := os.WriteFile(filepath.Join(root, ProjectConfigName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "svc", "api")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(nested)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Root != root {
		t.Errorf("Root = %q, want %q", cfg.Root, root)
	}
	if cfg.Execution.CriterionTimeout != 90*time.Second || cfg.Execution.PassThreshold != 85 {
		t.Errorf("Execution = %+v", cfg.Execution)
	}
	if cfg.Execution.ManualTimeout != 0 {
		t.Errorf("unset keys keep defaults, ManualTimeout = %v", cfg.Execution.ManualTimeout)
	}
	if !cfg.Recommender.Enabled || cfg.Recommender.Model != "claude-sonnet-4-5" {
		t.Errorf("Recommender = %+v", cfg.Recommender)
	}
	if got := cfg.Resolve(cfg.Catalog.Path); got != filepath.Join(root, "checklists", "catalog.yaml") {
		t.Errorf("Resolve = %q", got)
	}
}

func TestLoadFrom_UserConfig(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	if err := os.MkdirAll(filepath.Join(xdg, "qualgate"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(xdg, "qualgate", "config.yaml"), []byte("server:\n  addr: :9999\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("QUALGATE_EXECUTION_PASS_THRESHOLD", "90")
	t.Setenv("QUALGATE_SERVER_ADDR", ":7000")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env-123456")

	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Execution.PassThreshold != 90 {
		t.Errorf("PassThreshold = %v", cfg.Execution.PassThreshold)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if cfg.Recommender.APIKey != "sk-ant-from-env-123456" {
		t.Errorf("APIKey = %q", cfg.Recommender.APIKey)
	}
}

func TestLoadFrom_DotEnv(t *testing.T) {
	isolate(t)
	const name = "QUALGATE_NOTIFY_DIR"
	os.Unsetenv(name)
	t.Cleanup(func() { os.Unsetenv(name) })

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(name+"=/var/qualgate/notify\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFrom(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Notify.Dir != "/var/qualgate/notify" {
		t.Errorf("Notify.Dir = %q", cfg.Notify.Dir)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
execution:
  pass_threshold: 120
recommender:
  use_bedrock: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFromPath(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"pass_threshold", "aws_region"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	isolate(t)
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	if got := expandEnv("${TEST_VAR}"); got != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", got)
	}
	if got := expandEnv("prefix-${TEST_VAR}-suffix"); got != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", got)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if dir := getUserConfigDir(); dir != "/custom/config/qualgate" {
		t.Errorf("expected %q, got %q", "/custom/config/qualgate", dir)
	}
}

func TestSettings_MasksKey(t *testing.T) {
	cfg := Default("/repo")
	cfg.Recommender.APIKey = "sk-ant-abcdefghijklmnop"
	var keys []string
	for _, kv := range cfg.Settings() {
		keys = append(keys, kv[0])
		if kv[0] == "recommender.api_key" && kv[1] != "sk-ant-...mnop" {
			t.Errorf("api key shown as %q", kv[1])
		}
		if kv[0] == "logging.path" && kv[1] != "/repo/.qualgate/logs/debug.log" {
			t.Errorf("logging.path = %q", kv[1])
		}
	}
	if len(keys) != 15 || keys[0] != "catalog.path" {
		t.Errorf("keys = %v", keys)
	}
}
