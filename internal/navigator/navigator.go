// Package navigator owns the browser page: navigation with bounded waits,
// cookie persistence, the generic continue click and lazy-media scrolling.
package navigator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/valpere/LessonFlow/internal/browser"
	"github.com/valpere/LessonFlow/internal/config"
	"github.com/valpere/LessonFlow/internal/detect"
	"github.com/valpere/LessonFlow/internal/output"
	"github.com/valpere/LessonFlow/internal/platform"
	"github.com/valpere/LessonFlow/internal/utils"
)

// LoginState is derived from the URL after navigation
type LoginState int

const (
	LoginUnknown LoginState = iota
	LoggedIn
	LoggedOut
)

func (s LoginState) String() string {
	switch s {
	case LoggedIn:
		return "logged_in"
	case LoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// Navigator drives one page for one platform
type Navigator struct {
	page     browser.Page
	platform *platform.Platform
	timeouts config.TimeoutConfig
	logger   utils.Logger
}

// Launch starts a browser with the configured driver and wraps it
func Launch(cfg *config.Config, p *platform.Platform, logger utils.Logger) (*Navigator, error) {
	page, err := browser.NewPage(&cfg.Browser)
	if err != nil {
		return nil, utils.NewError(utils.ErrCodeBrowserFailed, "failed to launch browser").
			WithCause(err).
			WithSeverity(utils.SeverityCritical).
			WithStackTrace(4).
			Build()
	}
	return New(page, p, cfg.Timeouts, logger), nil
}

// New wraps an existing page
func New(page browser.Page, p *platform.Platform, timeouts config.TimeoutConfig, logger utils.Logger) *Navigator {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Navigator{
		page:     page,
		platform: p,
		timeouts: timeouts,
		logger:   logger.WithField("component", "navigator"),
	}
}

// Page returns the underlying page
func (n *Navigator) Page() browser.Page {
	return n.page
}

// Platform returns the platform adapter
func (n *Navigator) Platform() *platform.Platform {
	return n.platform
}

// Close closes the browser
func (n *Navigator) Close() error {
	return n.page.Close()
}

// LoadCookies installs cookies from path. A missing or corrupt file is not
// an error; it only means the user has to log in again.
func (n *Navigator) LoadCookies(ctx context.Context, path string) bool {
	if path == "" {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			n.logger.Warnf("failed to read cookie file %s: %v", path, err)
		}
		return false
	}
	var cookies []browser.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		n.logger.Warnf("ignoring corrupt cookie file %s: %v", path, err)
		return false
	}
	if len(cookies) == 0 {
		return false
	}
	if err := n.page.SetCookies(ctx, cookies); err != nil {
		n.logger.Warnf("failed to install cookies: %v", err)
		return false
	}
	n.logger.Infof("loaded %d cookies from %s", len(cookies), path)
	return true
}

// SaveCookies writes the session cookies to path atomically
func (n *Navigator) SaveCookies(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	cookies, err := n.page.Cookies(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode cookies: %w", err)
	}
	if err := output.WriteFileAtomic(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	n.logger.Infof("saved %d cookies to %s", len(cookies), path)
	return nil
}

// GoToDashboard opens the platform dashboard
func (n *Navigator) GoToDashboard(ctx context.Context) (LoginState, error) {
	return n.goTo(ctx, n.platform.DashboardURL())
}

// GoToLesson opens a lesson URL
func (n *Navigator) GoToLesson(ctx context.Context, url string) (LoginState, error) {
	return n.goTo(ctx, url)
}

// goTo navigates with a bounded load wait. When the wait expires the
// navigator sleeps for the settle delay and carries on.
func (n *Navigator) goTo(ctx context.Context, url string) (LoginState, error) {
	navCtx, cancel := context.WithTimeout(ctx, n.timeouts.Navigation)
	err := n.page.Navigate(navCtx, url)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return LoginUnknown, ctx.Err()
		}
		n.logger.Warnf("navigation to %s did not settle: %v", url, err)
		if err := sleep(ctx, n.timeouts.Settle); err != nil {
			return LoginUnknown, err
		}
	}

	current, err := n.page.URL(ctx)
	if err != nil {
		return LoginUnknown, fmt.Errorf("failed to read location: %w", err)
	}
	state := LoggedIn
	if n.platform.IsLoginURL(current) {
		state = LoggedOut
	}
	n.logger.Debugf("at %s (%s)", current, state)
	return state, nil
}

// Snapshot captures the current page
func (n *Navigator) Snapshot(ctx context.Context) (*detect.Snapshot, error) {
	url, err := n.page.URL(ctx)
	if err != nil {
		return nil, err
	}
	html, err := n.page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return detect.NewSnapshot(url, html)
}

// WaitForScreenChange polls until the page fingerprint differs from the
// current one or the timeout expires. It never fails on expiry.
func (n *Navigator) WaitForScreenChange(ctx context.Context, timeout time.Duration) (bool, error) {
	before, err := n.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	return n.WaitForChangeFrom(ctx, before.Fingerprint(), timeout)
}

// WaitForChangeFrom polls until the page fingerprint differs from start, which
// is usually taken before an interaction. It reports false on expiry.
func (n *Navigator) WaitForChangeFrom(ctx context.Context, start string, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		snap, err := n.Snapshot(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return false, ctx.Err()
		case err != nil:
			n.logger.Debugf("snapshot during change wait failed: %v", err)
		case snap.Fingerprint() != start:
			return true, nil
		}
		if !time.Now().Before(deadline) {
			return false, nil
		}
		if err := sleep(ctx, n.timeouts.PollInterval); err != nil {
			return false, err
		}
	}
}

const scrollScript = `(function() {
	const before = window.scrollY;
	window.scrollBy(0, Math.max(200, Math.floor(window.innerHeight * 0.8)));
	return {moved: window.scrollY !== before, bottom: window.innerHeight + window.scrollY >= document.body.scrollHeight - 2};
})()`

// ScrollPage scrolls down in steps so lazily loaded media gets requested,
// then returns to the top
func (n *Navigator) ScrollPage(ctx context.Context) error {
	const maxSteps = 10
	for i := 0; i < maxSteps; i++ {
		var res struct {
			Moved  bool `json:"moved"`
			Bottom bool `json:"bottom"`
		}
		if err := n.page.Evaluate(ctx, scrollScript, &res); err != nil {
			return fmt.Errorf("scroll failed: %w", err)
		}
		if !res.Moved || res.Bottom {
			break
		}
		if err := sleep(ctx, n.timeouts.PollInterval); err != nil {
			return err
		}
	}
	var ok bool
	return n.page.Evaluate(ctx, `(function(){ window.scrollTo(0, 0); return true; })()`, &ok)
}

// Sleep waits for d or until ctx is done
func (n *Navigator) Sleep(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
