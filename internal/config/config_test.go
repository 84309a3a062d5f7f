package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Scheduler.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Scheduler.Workers)
	}
	if cfg.Scheduler.TaskTimeout != 180*time.Second {
		t.Errorf("expected task timeout 180s, got %v", cfg.Scheduler.TaskTimeout)
	}
	if cfg.Gate.ConfidenceThreshold != 0.6 {
		t.Errorf("expected confidence threshold 0.6, got %v", cfg.Gate.ConfidenceThreshold)
	}
	if cfg.Gate.MaxTokens != 50 {
		t.Errorf("expected gate max tokens 50, got %d", cfg.Gate.MaxTokens)
	}
	if cfg.Cache.Capacity != 1000 {
		t.Errorf("expected cache capacity 1000, got %d", cfg.Cache.Capacity)
	}
	if cfg.Cache.TTL != 7*24*time.Hour {
		t.Errorf("expected cache ttl 7d, got %v", cfg.Cache.TTL)
	}
	if cfg.Cache.Backend != BackendSQLite {
		t.Errorf("expected sqlite backend, got %q", cfg.Cache.Backend)
	}
	if len(cfg.Lexicon.Separators) == 0 {
		t.Error("expected default separators")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
anthropic:
  model: claude-3-haiku
scheduler:
  workers: 5
  task_timeout: 30s
cache:
  backend: memory
  capacity: 10
  ttl: 1h
gate:
  confidence_threshold: 0.8
lexicon:
  separators: ["|"]
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.Model != "claude-3-haiku" {
		t.Errorf("expected model claude-3-haiku, got %q", cfg.Anthropic.Model)
	}
	if cfg.Scheduler.Workers != 5 {
		t.Errorf("expected 5 workers, got %d", cfg.Scheduler.Workers)
	}
	if cfg.Scheduler.TaskTimeout != 30*time.Second {
		t.Errorf("expected task timeout 30s, got %v", cfg.Scheduler.TaskTimeout)
	}
	if cfg.Cache.Backend != BackendMemory || cfg.Cache.Capacity != 10 || cfg.Cache.TTL != time.Hour {
		t.Errorf("unexpected cache config: %+v", cfg.Cache)
	}
	if cfg.Gate.ConfidenceThreshold != 0.8 {
		t.Errorf("expected threshold 0.8, got %v", cfg.Gate.ConfidenceThreshold)
	}
	if len(cfg.Lexicon.Separators) != 1 || cfg.Lexicon.Separators[0] != "|" {
		t.Errorf("expected separators to be replaced, got %v", cfg.Lexicon.Separators)
	}
	if len(cfg.Lexicon.ExplicitParallel) == 0 {
		t.Error("unset lexicon lists should keep defaults")
	}
	if cfg.Escalation.MaxAttempts != Default().Escalation.MaxAttempts {
		t.Errorf("unset escalation keys should keep defaults, got %d", cfg.Escalation.MaxAttempts)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Logging.Level)
	}
}

func TestLoadFromPath_EnvOverride(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("scheduler:\n  workers: 2\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("INTENTROUTER_SCHEDULER_WORKERS", "7")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env-000000")

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.Scheduler.Workers != 7 {
		t.Errorf("expected env override 7, got %d", cfg.Scheduler.Workers)
	}
	if cfg.Anthropic.APIKey != "sk-ant-from-env-000000" {
		t.Errorf("expected api key from env, got %q", cfg.Anthropic.APIKey)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown backend", "cache:\n  backend: etcd\n", "cache.backend"},
		{"redis without addr", "cache:\n  backend: redis\n", "redis_addr"},
		{"zero workers", "scheduler:\n  workers: 0\n", "scheduler.workers"},
		{"threshold out of range", "gate:\n  confidence_threshold: 1.5\n", "confidence_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := LoadFromPath(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Scheduler.Workers = 4
	cfg.Cache.Backend = BackendMemory
	cfg.Escalation.Timeout = 12 * time.Second

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.Scheduler.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", loaded.Scheduler.Workers)
	}
	if loaded.Cache.Backend != BackendMemory {
		t.Errorf("expected memory backend, got %q", loaded.Cache.Backend)
	}
	if loaded.Escalation.Timeout != 12*time.Second {
		t.Errorf("expected escalation timeout 12s, got %v", loaded.Escalation.Timeout)
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("ROUTER_TEST_DIR", "/tmp/router")

	if got := expandPath("${ROUTER_TEST_DIR}/catalog"); got != "/tmp/router/catalog" {
		t.Errorf("expected /tmp/router/catalog, got %q", got)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/catalog"); got != filepath.Join(home, "catalog") {
		t.Errorf("expected home expansion, got %q", got)
	}
	if got := expandPath("relative/path"); got != "relative/path" {
		t.Errorf("relative paths should be untouched, got %q", got)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	if dir := getUserConfigDir(); dir != "/custom/config/intentrouter" {
		t.Errorf("expected /custom/config/intentrouter, got %q", dir)
	}
	if path := GetUserConfigPath(); path != "/custom/config/intentrouter/config.yaml" {
		t.Errorf("unexpected user config path %q", path)
	}
}

func TestFindProjectConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, projectConfigName)
	if err := os.WriteFile(want, []byte("scheduler:\n  workers: 2\n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Chdir(nested)

	got, err := filepath.EvalSymlinks(findProjectConfig())
	if err != nil {
		t.Fatalf("project config not found: %v", err)
	}
	wantResolved, _ := filepath.EvalSymlinks(want)
	if got != wantResolved {
		t.Errorf("expected %q, got %q", wantResolved, got)
	}
}
