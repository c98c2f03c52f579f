// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromBytes(t *testing.T) {
	configYAML := `
platform: datatest
output_dir: "./out"
timeouts:
  detection: 5s
limits:
  stall_before_abort: 7
`

	config, err := LoadFromBytes([]byte(configYAML))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}

	if config.Platform != "datatest" {
		t.Errorf("expected platform 'datatest', got %q", config.Platform)
	}
	if config.Timeouts.Detection != 5*time.Second {
		t.Errorf("expected detection timeout 5s, got %v", config.Timeouts.Detection)
	}
	if config.Timeouts.Navigation != 15*time.Second {
		t.Errorf("expected default navigation timeout, got %v", config.Timeouts.Navigation)
	}
	if config.Limits.StallBeforeAbort != 7 {
		t.Errorf("expected stall_before_abort 7, got %d", config.Limits.StallBeforeAbort)
	}
	if config.Limits.MaxScreens != 200 {
		t.Errorf("expected default max_screens 200, got %d", config.Limits.MaxScreens)
	}
	if !config.Browser.Headless {
		t.Error("expected headless default to survive a missing browser section")
	}
	if config.Output.Index.Driver != "sqlite3" || config.Output.Mongo.Collection != "lessons" {
		t.Errorf("expected output defaults, got %+v", config.Output)
	}
}

func TestLoadFromBytesEnvExpansion(t *testing.T) {
	t.Setenv("LESSONFLOW_TEST_BASE", "https://staging.dataqa.example")

	config, err := LoadFromBytes([]byte("platform: dataqa\nbase_url: ${LESSONFLOW_TEST_BASE}\n"))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}
	if config.BaseURL != "https://staging.dataqa.example" {
		t.Errorf("expected expanded base_url, got %q", config.BaseURL)
	}
}

func TestLoadFromBytesErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"empty", "", "cannot be empty"},
		{"bad yaml", "platform: [", "failed to parse"},
		{"unknown platform", "platform: nowhere", "unknown platform"},
		{"unordered limits", "limits:\n  stall_before_escape: 4\n  stall_before_continue: 3\n", "escape <= continue <= abort"},
		{"bad driver", "browser:\n  driver: selenium\n", "chromedp or rod"},
		{"bad selector", "screen_types:\n  - id: quiz\n    rule:\n      any: ['div[']\n", "invalid CSS selector"},
		{"empty rule", "screen_types:\n  - id: quiz\n", "rule has no clauses"},
		{"bad metrics address", "metrics:\n  enabled: true\n  listen_address: nope\n", "host:port"},
		{"bad index driver", "output:\n  index:\n    driver: oracle\n", "sqlite3, postgres or mysql"},
		{"bad mongo uri", "output:\n  mongo:\n    uri: http://db\n", "must be a mongodb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lessonflow.yaml")
	configYAML := `
platform: dataqa
screen_types:
  - id: quiz
    name: Quiz
    extract: true
    rule:
      any: ['[data-qa-ex="ex-quiz"]']
`
	if err := os.WriteFile(path, []byte(configYAML), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	config, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if len(config.ScreenTypes) != 1 || config.ScreenTypes[0].ID != "quiz" {
		t.Fatalf("expected one screen type override, got %+v", config.ScreenTypes)
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveToFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	original := DefaultConfig()
	original.Platform = "datatest"
	original.Limits.MaxScreens = 42

	if err := SaveToFile(original, path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Platform != "datatest" || loaded.Limits.MaxScreens != 42 {
		t.Errorf("unexpected round trip result: platform=%s max_screens=%d", loaded.Platform, loaded.Limits.MaxScreens)
	}
}

func TestLiveLimits(t *testing.T) {
	ll := NewLiveLimits(DefaultLimits())
	if ll.Get().StallBeforeAbort != 5 {
		t.Fatalf("expected default abort threshold 5, got %d", ll.Get().StallBeforeAbort)
	}

	if ll.Set(LimitsConfig{StallBeforeEscape: 9, StallBeforeContinue: 2, StallBeforeAbort: 3}) {
		t.Error("expected unordered limits to be rejected")
	}
	if ll.Get().StallBeforeAbort != 5 {
		t.Error("rejected limits must not replace current ones")
	}

	if !ll.Set(LimitsConfig{StallBeforeAbort: 8}) {
		t.Fatal("expected partial limits to be accepted with defaults")
	}
	if got := ll.Get(); got.StallBeforeAbort != 8 || got.MaxScreens != 200 {
		t.Errorf("unexpected limits after update: %+v", got)
	}
}

func TestConfigWatcherReloadsLimits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("platform: dataqa\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cw, err := NewConfigWatcher(path, nil)
	if err != nil {
		t.Skipf("file watching unavailable: %v", err)
	}
	defer cw.Close()

	ll := NewLiveLimits(DefaultLimits())
	ll.Bind(cw)

	if err := os.WriteFile(path, []byte("platform: dataqa\nlimits:\n  max_screens: 25\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if ll.Get().MaxScreens == 25 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Errorf("expected max_screens reload to 25, got %d", ll.Get().MaxScreens)
}
