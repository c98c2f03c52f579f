// internal/browser/types.go
package browser

import (
	"context"
	"fmt"
	"time"
)

// Driver names accepted in BrowserConfig.Driver
const (
	DriverChromedp = "chromedp"
	DriverRod      = "rod"
)

// BrowserConfig defines browser automation configuration
type BrowserConfig struct {
	Driver         string        `yaml:"driver" json:"driver"`
	Headless       bool          `yaml:"headless" json:"headless"`
	UserDataDir    string        `yaml:"user_data_dir,omitempty" json:"user_data_dir,omitempty"`
	ExecPath       string        `yaml:"exec_path,omitempty" json:"exec_path,omitempty"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout"`
	ViewportWidth  int           `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int           `yaml:"viewport_height" json:"viewport_height"`
	UserAgent      string        `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	DisableImages  bool          `yaml:"disable_images" json:"disable_images"`
	// ActionRate limits state-changing actions (clicks, typing, keys) per second.
	// Zero or negative means unlimited.
	ActionRate  float64 `yaml:"action_rate" json:"action_rate"`
	ActionBurst int     `yaml:"action_burst" json:"action_burst"`
}

// DefaultBrowserConfig returns default browser configuration
func DefaultBrowserConfig() *BrowserConfig {
	return &BrowserConfig{
		Driver:         DriverChromedp,
		Headless:       true,
		Timeout:        30 * time.Second,
		ViewportWidth:  1280,
		ViewportHeight: 900,
		DisableImages:  false,
		ActionRate:     4,
		ActionBurst:    2,
	}
}

// Target addresses the Index-th element matching Selector
type Target struct {
	Selector string `json:"selector"`
	Index    int    `json:"index"`
}

// String returns a compact representation for logs
func (t Target) String() string {
	if t.Index == 0 {
		return t.Selector
	}
	return fmt.Sprintf("%s[%d]", t.Selector, t.Index)
}

// At is shorthand for Target{Selector: selector, Index: index}
func At(selector string, index int) Target {
	return Target{Selector: selector, Index: index}
}

// Cookie is a driver-neutral cookie. The JSON form is the cookie file format.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Page is the browser automation boundary the engine depends on.
// Click, Type and KeyPress must produce trusted input events.
type Page interface {
	// Navigate loads a URL and waits for the load event
	Navigate(ctx context.Context, url string) error

	// URL returns the current location
	URL(ctx context.Context) (string, error)

	// HTML returns the serialized document
	HTML(ctx context.Context) (string, error)

	// Evaluate runs a JavaScript expression and unmarshals its result into out.
	// The expression must not evaluate to null or undefined.
	Evaluate(ctx context.Context, script string, out interface{}) error

	// Click dispatches a trusted pointer click at the target's centre
	Click(ctx context.Context, target Target) error

	// Type focuses the target and inserts text, replacing its current value
	Type(ctx context.Context, target Target, text string) error

	// WaitForSelector waits until an element matching selector is visible
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error

	// KeyPress presses a named key such as "Escape" or "Enter"
	KeyPress(ctx context.Context, key string) error

	// Cookies returns all cookies of the browser session
	Cookies(ctx context.Context) ([]Cookie, error)

	// SetCookies installs cookies into the browser session
	SetCookies(ctx context.Context, cookies []Cookie) error

	// Close releases the page and its browser
	Close() error
}

// BrowserStats contains browser automation statistics
type BrowserStats struct {
	PagesLoaded      int           `json:"pages_loaded"`
	AverageLoadTime  time.Duration `json:"average_load_time"`
	Clicks           int           `json:"clicks"`
	Errors           int           `json:"errors"`
	JavaScriptErrors int           `json:"javascript_errors"`
	TimeoutsOccurred int           `json:"timeouts_occurred"`
}

func (s *BrowserStats) recordLoad(d time.Duration) {
	s.PagesLoaded++
	if s.PagesLoaded == 1 {
		s.AverageLoadTime = d
	} else {
		s.AverageLoadTime = (s.AverageLoadTime + d) / 2
	}
}

// NewPage launches a browser using the configured driver
func NewPage(config *BrowserConfig) (Page, error) {
	if config == nil {
		config = DefaultBrowserConfig()
	}
	switch config.Driver {
	case "", DriverChromedp:
		return NewChromeClient(config)
	case DriverRod:
		return NewRodClient(config)
	default:
		return nil, fmt.Errorf("unknown browser driver: %s", config.Driver)
	}
}

// locateScript returns the viewport centre of the target after scrolling it
// into view. It always evaluates to an object.
func locateScript(t Target) string {
	return fmt.Sprintf(`(function(sel, idx) {
	const els = document.querySelectorAll(sel);
	const el = els[idx];
	if (!el) return {found: false, x: 0, y: 0};
	el.scrollIntoView({block: 'center', inline: 'center'});
	const r = el.getBoundingClientRect();
	const s = window.getComputedStyle(el);
	if (r.width === 0 || r.height === 0 || s.visibility === 'hidden' || s.display === 'none') {
		return {found: false, x: 0, y: 0};
	}
	return {found: true, x: r.left + r.width / 2, y: r.top + r.height / 2};
})(%s, %d)`, jsString(t.Selector), t.Index)
}

type point struct {
	Found bool    `json:"found"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}
