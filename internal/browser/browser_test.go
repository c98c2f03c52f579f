// internal/browser/browser_test.go
package browser

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestDefaultBrowserConfig(t *testing.T) {
	config := DefaultBrowserConfig()

	if config == nil {
		t.Fatal("Expected non-nil config")
	}

	if config.Driver != DriverChromedp {
		t.Errorf("Expected chromedp driver by default, got %q", config.Driver)
	}

	if !config.Headless {
		t.Error("Expected headless mode by default")
	}

	if config.ViewportWidth != 1280 || config.ViewportHeight != 900 {
		t.Errorf("Expected 1280x900 viewport, got %dx%d", config.ViewportWidth, config.ViewportHeight)
	}

	if config.ActionRate <= 0 {
		t.Error("Expected action pacing to be enabled by default")
	}
}

func TestNewPage_UnknownDriver(t *testing.T) {
	_, err := NewPage(&BrowserConfig{Driver: "netscape"})
	if err == nil {
		t.Fatal("Expected error for unknown driver")
	}
	if !strings.Contains(err.Error(), "netscape") {
		t.Errorf("Expected driver name in error, got %v", err)
	}
}

func TestTargetString(t *testing.T) {
	if got := At("button.option", 0).String(); got != "button.option" {
		t.Errorf("Expected bare selector, got %q", got)
	}
	if got := At("button.option", 3).String(); got != "button.option[3]" {
		t.Errorf("Expected indexed selector, got %q", got)
	}
}

func TestLocateScriptQuotesSelector(t *testing.T) {
	script := locateScript(At(`button[data-testid="check"]`, 2))
	if !strings.Contains(script, `"button[data-testid=\"check\"]", 2`) {
		t.Errorf("Expected JSON-quoted selector and index in script:\n%s", script)
	}
	if strings.Contains(script, "return null") {
		t.Error("Locate script must never evaluate to null")
	}
}

func TestActionLimiter(t *testing.T) {
	unlimited := newActionLimiter(&BrowserConfig{ActionRate: 0})
	for i := 0; i < 100; i++ {
		if !unlimited.Allow() {
			t.Fatal("Expected unlimited limiter to allow every action")
		}
	}

	paced := newActionLimiter(&BrowserConfig{ActionRate: 1, ActionBurst: 2})
	if !paced.Allow() || !paced.Allow() {
		t.Fatal("Expected burst of two actions")
	}
	if paced.Allow() {
		t.Error("Expected third immediate action to be throttled")
	}
}

func TestChromeClient_TrustedClick(t *testing.T) {
	config := DefaultBrowserConfig()
	config.Timeout = 15 * time.Second
	config.ActionRate = 0

	client, err := NewChromeClient(config)
	if err != nil {
		t.Skipf("Skipping browser test - Chrome may not be available: %v", err)
	}
	defer client.Close()

	ctx := context.Background()
	page := `data:text/html,<html><body>` +
		`<button id="b" onclick="document.getElementById('out').textContent=String(event.isTrusted)">Go</button>` +
		`<input id="i"><p id="out">none</p></body></html>`
	if err := client.Navigate(ctx, page); err != nil {
		t.Skipf("Skipping browser test - navigation failed: %v", err)
	}

	if err := client.Click(ctx, At("#b", 0)); err != nil {
		t.Fatalf("Click failed: %v", err)
	}
	var out string
	if err := client.Evaluate(ctx, `document.getElementById('out').textContent`, &out); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if out != "true" {
		t.Errorf("Expected trusted click event, got %q", out)
	}

	if err := client.Type(ctx, At("#i", 0), "bonjour"); err != nil {
		t.Fatalf("Type failed: %v", err)
	}
	var value string
	if err := client.Evaluate(ctx, `document.getElementById('i').value`, &value); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if value != "bonjour" {
		t.Errorf("Expected typed value, got %q", value)
	}

	if err := client.Click(ctx, At("#missing", 0)); err == nil {
		t.Error("Expected error clicking a missing element")
	}

	stats := client.GetStats()
	if stats.Clicks < 2 {
		t.Errorf("Expected at least 2 clicks recorded, got %d", stats.Clicks)
	}
}
