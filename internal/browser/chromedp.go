// internal/browser/chromedp.go
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"golang.org/x/time/rate"
)

// ChromeClient implements Page using chromedp
type ChromeClient struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	config      *BrowserConfig
	limiter     *rate.Limiter
	stats       *BrowserStats
	mu          sync.Mutex
}

var _ Page = (*ChromeClient)(nil)

// NewChromeClient creates a new Chrome browser client
func NewChromeClient(config *BrowserConfig) (*ChromeClient, error) {
	if config == nil {
		config = DefaultBrowserConfig()
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox, // Required for Docker environments
		chromedp.WindowSize(config.ViewportWidth, config.ViewportHeight),
	}
	if config.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if config.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(config.UserDataDir))
	}
	if config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(config.ExecPath))
	}
	if config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(config.UserAgent))
	}
	if config.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	client := &ChromeClient{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		config:      config,
		limiter:     newActionLimiter(config),
		stats:       &BrowserStats{},
	}

	if err := client.initialize(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize browser: %w", err)
	}

	return client, nil
}

// initialize starts the browser and sets the viewport
func (c *ChromeClient) initialize() error {
	return chromedp.Run(c.ctx,
		chromedp.EmulateViewport(int64(c.config.ViewportWidth), int64(c.config.ViewportHeight)),
	)
}

// run executes actions on the browser context bounded by ctx and the default timeout
func (c *ChromeClient) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if timeout <= 0 {
		timeout = c.config.Timeout
	}
	runCtx, cancel := context.WithTimeout(c.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		c.mu.Lock()
		c.stats.TimeoutsOccurred++
		c.mu.Unlock()
	}
	return err
}

// Navigate navigates to a URL and waits for page load
func (c *ChromeClient) Navigate(ctx context.Context, url string) error {
	start := time.Now()
	if err := c.run(ctx, 0, chromedp.Navigate(url)); err != nil {
		c.countError()
		return fmt.Errorf("navigation failed: %w", err)
	}
	c.mu.Lock()
	c.stats.recordLoad(time.Since(start))
	c.mu.Unlock()
	return nil
}

// URL returns the current location
func (c *ChromeClient) URL(ctx context.Context) (string, error) {
	var loc string
	if err := c.run(ctx, 0, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

// HTML returns the current page HTML
func (c *ChromeClient) HTML(ctx context.Context) (string, error) {
	var html string
	if err := c.run(ctx, 0, chromedp.Evaluate(`document.documentElement.outerHTML`, &html)); err != nil {
		c.countError()
		return "", fmt.Errorf("failed to get HTML: %w", err)
	}
	return html, nil
}

// Evaluate runs JavaScript and decodes the result into out
func (c *ChromeClient) Evaluate(ctx context.Context, script string, out interface{}) error {
	var raw json.RawMessage
	if err := c.run(ctx, 0, chromedp.Evaluate(script, &raw)); err != nil {
		c.mu.Lock()
		c.stats.JavaScriptErrors++
		c.mu.Unlock()
		return fmt.Errorf("script execution failed: %w", err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode script result: %w", err)
	}
	return nil
}

// Click resolves the target's centre and dispatches a trusted mouse click.
// Synthetic element.click() calls are ignored by the lesson UIs for
// state-changing interactions, so only Input.dispatchMouseEvent is used.
func (c *ChromeClient) Click(ctx context.Context, target Target) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	pt, err := c.locate(ctx, target)
	if err != nil {
		return err
	}

	err = c.run(ctx, 10*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		if err := input.DispatchMouseEvent(input.MouseMoved, pt.X, pt.Y).Do(ctx); err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MousePressed, pt.X, pt.Y).
			WithButton(input.Left).WithButtons(1).WithClickCount(1).Do(ctx); err != nil {
			return err
		}
		return input.DispatchMouseEvent(input.MouseReleased, pt.X, pt.Y).
			WithButton(input.Left).WithButtons(0).WithClickCount(1).Do(ctx)
	}))
	if err != nil {
		c.countError()
		return fmt.Errorf("click %s failed: %w", target, err)
	}
	c.mu.Lock()
	c.stats.Clicks++
	c.mu.Unlock()
	return nil
}

func (c *ChromeClient) locate(ctx context.Context, target Target) (point, error) {
	var pt point
	if err := c.Evaluate(ctx, locateScript(target), &pt); err != nil {
		return pt, err
	}
	if !pt.Found {
		return pt, fmt.Errorf("element '%s' not found or not visible", target)
	}
	return pt, nil
}

// Type focuses the target with a trusted click and inserts text
func (c *ChromeClient) Type(ctx context.Context, target Target, text string) error {
	if err := c.Click(ctx, target); err != nil {
		return err
	}
	err := c.run(ctx, 10*time.Second,
		chromedp.Evaluate(`(function(){const e=document.activeElement; if (e && e.select) { e.select(); } return true;})()`, nil),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return input.InsertText(text).Do(ctx)
		}),
	)
	if err != nil {
		c.countError()
		return fmt.Errorf("type into %s failed: %w", target, err)
	}
	return nil
}

// WaitForSelector waits for an element to appear
func (c *ChromeClient) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if err := c.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("element wait timeout: %w", err)
	}
	return nil
}

// KeyPress dispatches trusted key events for a named key
func (c *ChromeClient) KeyPress(ctx context.Context, key string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := c.run(ctx, 5*time.Second, chromedp.KeyEvent(keyName(key))); err != nil {
		return fmt.Errorf("key press %q failed: %w", key, err)
	}
	return nil
}

func keyName(key string) string {
	switch key {
	case "Escape":
		return kb.Escape
	case "Enter":
		return kb.Enter
	case "Tab":
		return kb.Tab
	case "Backspace":
		return kb.Backspace
	default:
		return key
	}
}

// Cookies returns all browser cookies
func (c *ChromeClient) Cookies(ctx context.Context) ([]Cookie, error) {
	var raw []*network.Cookie
	err := c.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, rc := range raw {
		cookies = append(cookies, Cookie{
			Name:     rc.Name,
			Value:    rc.Value,
			Domain:   rc.Domain,
			Path:     rc.Path,
			Expires:  rc.Expires,
			HTTPOnly: rc.HTTPOnly,
			Secure:   rc.Secure,
			SameSite: string(rc.SameSite),
		})
	}
	return cookies, nil
}

// SetCookies installs cookies into the browser
func (c *ChromeClient) SetCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, ck := range cookies {
		p := &network.CookieParam{
			Name:     ck.Name,
			Value:    ck.Value,
			Domain:   ck.Domain,
			Path:     ck.Path,
			HTTPOnly: ck.HTTPOnly,
			Secure:   ck.Secure,
			SameSite: network.CookieSameSite(ck.SameSite),
		}
		if ck.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(int64(ck.Expires), 0))
			p.Expires = &exp
		}
		params = append(params, p)
	}
	err := c.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

// GetStats returns a copy of browser statistics
func (c *ChromeClient) GetStats() BrowserStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.stats
}

func (c *ChromeClient) countError() {
	c.mu.Lock()
	c.stats.Errors++
	c.mu.Unlock()
}

// Close closes the browser
func (c *ChromeClient) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	return nil
}

func newActionLimiter(config *BrowserConfig) *rate.Limiter {
	if config.ActionRate <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := config.ActionBurst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(config.ActionRate), burst)
}

// jsString quotes s as a JavaScript string literal
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
