// internal/browser/rod.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"golang.org/x/time/rate"
)

// RodClient implements Page on top of go-rod. It is the fallback driver
// for environments where the chromedp allocator cannot start Chrome.
type RodClient struct {
	browser *rod.Browser
	page    *rod.Page
	config  *BrowserConfig
	limiter *rate.Limiter
	stats   *BrowserStats
	mu      sync.Mutex
}

var _ Page = (*RodClient)(nil)

// NewRodClient launches Chrome through the rod launcher and opens a blank page
func NewRodClient(config *BrowserConfig) (*RodClient, error) {
	if config == nil {
		config = DefaultBrowserConfig()
	}

	l := launcher.New().Headless(config.Headless).NoSandbox(true)
	if config.ExecPath != "" {
		l = l.Bin(config.ExecPath)
	}
	if config.UserDataDir != "" {
		l = l.UserDataDir(config.UserDataDir)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             config.ViewportWidth,
		Height:            config.ViewportHeight,
		DeviceScaleFactor: 1.0,
	}).Call(page); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}
	if config.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: config.UserAgent}); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	return &RodClient{
		browser: b,
		page:    page,
		config:  config,
		limiter: newActionLimiter(config),
		stats:   &BrowserStats{},
	}, nil
}

func (r *RodClient) bound(ctx context.Context, timeout time.Duration) *rod.Page {
	if timeout <= 0 {
		timeout = r.config.Timeout
	}
	return r.page.Context(ctx).Timeout(timeout)
}

// Navigate loads url and waits for the load event
func (r *RodClient) Navigate(ctx context.Context, url string) error {
	start := time.Now()
	p := r.bound(ctx, 0)
	if err := p.Navigate(url); err != nil {
		r.countError()
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		r.countError()
		return fmt.Errorf("navigation failed: %w", err)
	}
	r.mu.Lock()
	r.stats.recordLoad(time.Since(start))
	r.mu.Unlock()
	return nil
}

// URL returns the current location
func (r *RodClient) URL(ctx context.Context) (string, error) {
	info, err := r.bound(ctx, 0).Info()
	if err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return info.URL, nil
}

// HTML returns the serialized document
func (r *RodClient) HTML(ctx context.Context) (string, error) {
	html, err := r.bound(ctx, 0).HTML()
	if err != nil {
		r.countError()
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return html, nil
}

// Evaluate runs a JavaScript expression and decodes the result into out
func (r *RodClient) Evaluate(ctx context.Context, script string, out interface{}) error {
	res, err := r.bound(ctx, 0).Evaluate(&rod.EvalOptions{
		JS:      "() => (" + strings.TrimSpace(script) + ")",
		ByValue: true,
	})
	if err != nil {
		r.mu.Lock()
		r.stats.JavaScriptErrors++
		r.mu.Unlock()
		return fmt.Errorf("script execution failed: %w", err)
	}
	if out == nil {
		return nil
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to read script result: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode script result: %w", err)
	}
	return nil
}

func (r *RodClient) element(ctx context.Context, target Target) (*rod.Element, error) {
	els, err := r.bound(ctx, 10*time.Second).Elements(target.Selector)
	if err != nil {
		return nil, fmt.Errorf("query %s failed: %w", target, err)
	}
	if target.Index < 0 || target.Index >= len(els) {
		return nil, fmt.Errorf("element '%s' not found or not visible", target)
	}
	return els[target.Index], nil
}

// Click scrolls the target into view and dispatches a trusted left click
func (r *RodClient) Click(ctx context.Context, target Target) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	el, err := r.element(ctx, target)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		r.countError()
		return fmt.Errorf("click %s failed: %w", target, err)
	}
	r.mu.Lock()
	r.stats.Clicks++
	r.mu.Unlock()
	return nil
}

// Type focuses the target with a click and inserts text over its current value
func (r *RodClient) Type(ctx context.Context, target Target, text string) error {
	if err := r.Click(ctx, target); err != nil {
		return err
	}
	el, err := r.element(ctx, target)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("type into %s failed: %w", target, err)
	}
	if err := el.Input(text); err != nil {
		r.countError()
		return fmt.Errorf("type into %s failed: %w", target, err)
	}
	return nil
}

// WaitForSelector waits until selector matches a visible element
func (r *RodClient) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	el, err := r.bound(ctx, timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element wait timeout: %w", err)
	}
	if err := el.WaitVisible(); err != nil {
		return fmt.Errorf("element wait timeout: %w", err)
	}
	return nil
}

// KeyPress presses a named key
func (r *RodClient) KeyPress(ctx context.Context, key string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	var k input.Key
	switch key {
	case "Escape":
		k = input.Escape
	case "Enter":
		k = input.Enter
	case "Tab":
		k = input.Tab
	case "Backspace":
		k = input.Backspace
	default:
		return fmt.Errorf("unsupported key %q", key)
	}
	if err := r.bound(ctx, 5*time.Second).Keyboard.Press(k); err != nil {
		return fmt.Errorf("key press %q failed: %w", key, err)
	}
	return nil
}

// Cookies returns all browser cookies
func (r *RodClient) Cookies(ctx context.Context) ([]Cookie, error) {
	res, err := proto.NetworkGetCookies{}.Call(r.bound(ctx, 0))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	cookies := make([]Cookie, 0, len(res.Cookies))
	for _, c := range res.Cookies {
		cookies = append(cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return cookies, nil
}

// SetCookies installs cookies into the browser
func (r *RodClient) SetCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		params = append(params, p)
	}
	if err := r.bound(ctx, 0).SetCookies(params); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

// GetStats returns a copy of browser statistics
func (r *RodClient) GetStats() BrowserStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.stats
}

func (r *RodClient) countError() {
	r.mu.Lock()
	r.stats.Errors++
	r.mu.Unlock()
}

// Close closes the page and the browser process
func (r *RodClient) Close() error {
	if r.page != nil {
		_ = r.page.Close()
	}
	if r.browser != nil {
		return r.browser.Close()
	}
	return nil
}
