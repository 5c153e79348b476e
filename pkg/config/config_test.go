package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Flows.CategoryLimit != 3 || cfg.Flows.CentreLimit != 5 {
		t.Errorf("unexpected flow limits: %+v", cfg.Flows)
	}
	if cfg.Flows.ChunkLimit != 4000 || cfg.Flows.DescriptionLimit != 700 {
		t.Errorf("unexpected text limits: %+v", cfg.Flows)
	}
	if cfg.OneMap.Endpoint == "" {
		t.Error("default OneMap endpoint missing")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	content := `
telegram:
  token: file-token
  poll_timeout: 10s
flows:
  category_limit: 2
  session_ttl: 15m
newsletters:
  bedok: /data/bedok.pdf
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Telegram.Token != "file-token" {
		t.Errorf("token = %q", cfg.Telegram.Token)
	}
	if time.Duration(cfg.Telegram.PollTimeout) != 10*time.Second {
		t.Errorf("poll_timeout = %v", cfg.Telegram.PollTimeout)
	}
	if cfg.Flows.CategoryLimit != 2 {
		t.Errorf("category_limit = %d", cfg.Flows.CategoryLimit)
	}
	if time.Duration(cfg.Flows.SessionTTL) != 15*time.Minute {
		t.Errorf("session_ttl = %v", cfg.Flows.SessionTTL)
	}
	// Unset fields keep their defaults.
	if cfg.Flows.CentreLimit != 5 {
		t.Errorf("centre_limit = %d", cfg.Flows.CentreLimit)
	}
	if cfg.Newsletters["bedok"] != "/data/bedok.pdf" {
		t.Errorf("newsletters = %v", cfg.Newsletters)
	}
}

func TestLoadEnvFallback(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("ONEMAP_API_TOKEN", "env-onemap")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("token fallback = %q", cfg.Telegram.Token)
	}
	if cfg.OneMap.Token != "env-onemap" {
		t.Errorf("onemap token fallback = %q", cfg.OneMap.Token)
	}
}

func TestGenerateDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "cfg.yaml")
	if err := GenerateDefault(path); err != nil {
		t.Fatalf("GenerateDefault failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load of generated file failed: %v", err)
	}
	if time.Duration(cfg.Flows.SessionTTL) != 30*time.Minute {
		t.Errorf("session_ttl survived badly: %v", cfg.Flows.SessionTTL)
	}
}

func TestDurationYAML(t *testing.T) {
	var out struct {
		D Duration `yaml:"d"`
	}
	if err := yaml.Unmarshal([]byte("d: 90s"), &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if time.Duration(out.D) != 90*time.Second {
		t.Errorf("got %v", time.Duration(out.D))
	}

	if err := yaml.Unmarshal([]byte("d: notaduration"), &out); err == nil {
		t.Error("expected error for invalid duration")
	}
}
