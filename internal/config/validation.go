// internal/config/validation.go
package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"

	"github.com/valpere/LessonFlow/internal/browser"
	"github.com/valpere/LessonFlow/internal/platform"
)

// ValidationError represents a detailed validation error
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []string          `json:"warnings"`
}

func (r *ValidationResult) addError(field, value, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Value: value, Message: message})
}

// Validate checks the configuration and returns a combined error
func (c *Config) Validate() error {
	result := c.ValidateWithDetails()
	if !result.Valid {
		return formatValidationError(result)
	}
	return nil
}

// ValidateWithDetails provides detailed validation results
func (c *Config) ValidateWithDetails() *ValidationResult {
	result := &ValidationResult{
		Errors:   make([]ValidationError, 0),
		Warnings: make([]string, 0),
	}

	c.validatePlatform(result)
	c.validateBrowser(result)
	c.validateTimeouts(result)
	c.validateLimits(result)
	c.validateMetrics(result)
	c.validateOutput(result)
	c.validateScreenTypes(result)

	result.Valid = len(result.Errors) == 0
	return result
}

func (c *Config) validatePlatform(result *ValidationResult) {
	if _, err := platform.Get(c.Platform, ""); err != nil {
		result.addError("platform", c.Platform, err.Error())
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			result.addError("base_url", c.BaseURL, "must be an absolute URL")
		} else if u.Scheme != "http" && u.Scheme != "https" {
			result.addError("base_url", c.BaseURL, "scheme must be http or https")
		}
	}
	if c.CookieFile == "" {
		result.Warnings = append(result.Warnings, "cookie_file is empty; sessions will not be persisted")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		result.addError("log_level", c.LogLevel, "must be one of debug, info, warn, error")
	}
}

func (c *Config) validateBrowser(result *ValidationResult) {
	switch c.Browser.Driver {
	case browser.DriverChromedp, browser.DriverRod:
	default:
		result.addError("browser.driver", c.Browser.Driver, "must be chromedp or rod")
	}
	if c.Browser.ViewportWidth < 320 || c.Browser.ViewportHeight < 240 {
		result.addError("browser.viewport", fmt.Sprintf("%dx%d", c.Browser.ViewportWidth, c.Browser.ViewportHeight),
			"viewport must be at least 320x240")
	}
	if c.Browser.ActionRate < 0 {
		result.addError("browser.action_rate", fmt.Sprintf("%g", c.Browser.ActionRate), "cannot be negative")
	}
	if c.Browser.ActionRate == 0 {
		result.Warnings = append(result.Warnings, "browser.action_rate is 0; actions are not paced")
	}
}

func (c *Config) validateTimeouts(result *ValidationResult) {
	t := c.Timeouts
	for field, d := range map[string]time.Duration{
		"timeouts.detection":     t.Detection,
		"timeouts.navigation":    t.Navigation,
		"timeouts.settle":        t.Settle,
		"timeouts.feedback":      t.Feedback,
		"timeouts.poll_interval": t.PollInterval,
	} {
		if d <= 0 {
			result.addError(field, d.String(), "must be positive")
		}
	}
	if t.PollInterval > t.Detection {
		result.addError("timeouts.poll_interval", t.PollInterval.String(), "cannot exceed timeouts.detection")
	}
}

func (c *Config) validateLimits(result *ValidationResult) {
	if err := c.Limits.Validate(); err != nil {
		result.addError("limits", "", err.Error())
	}
}

// Validate checks that escalation thresholds are positive and ordered
func (l LimitsConfig) Validate() error {
	if l.MaxScreens <= 0 {
		return fmt.Errorf("max_screens must be positive")
	}
	if l.StallBeforeEscape <= 0 || l.StallBeforeContinue <= 0 || l.StallBeforeAbort <= 0 {
		return fmt.Errorf("stall thresholds must be positive")
	}
	if !(l.StallBeforeEscape <= l.StallBeforeContinue && l.StallBeforeContinue <= l.StallBeforeAbort) {
		return fmt.Errorf("stall thresholds must satisfy escape <= continue <= abort (got %d, %d, %d)",
			l.StallBeforeEscape, l.StallBeforeContinue, l.StallBeforeAbort)
	}
	if l.TextSnapshotLength <= 0 {
		return fmt.Errorf("text_snapshot_length must be positive")
	}
	if l.SolverMaxAttempts <= 0 {
		return fmt.Errorf("solver_max_attempts must be positive")
	}
	return nil
}

func (c *Config) validateMetrics(result *ValidationResult) {
	if !c.Metrics.Enabled {
		return
	}
	if _, _, err := net.SplitHostPort(c.Metrics.ListenAddress); err != nil {
		result.addError("metrics.listen_address", c.Metrics.ListenAddress, "must be host:port")
	}
}

func (c *Config) validateOutput(result *ValidationResult) {
	switch c.Output.Index.Driver {
	case "sqlite3", "postgres", "mysql":
	default:
		result.addError("output.index.driver", c.Output.Index.Driver, "must be sqlite3, postgres or mysql")
	}
	if c.Output.Mongo.URI != "" {
		u, err := url.Parse(c.Output.Mongo.URI)
		if err != nil || (u.Scheme != "mongodb" && u.Scheme != "mongodb+srv") {
			result.addError("output.mongo.uri", "", "must be a mongodb:// or mongodb+srv:// URI")
		}
		if c.Output.Mongo.Timeout <= 0 {
			result.addError("output.mongo.timeout", c.Output.Mongo.Timeout.String(), "must be positive")
		}
	}
}

func (c *Config) validateScreenTypes(result *ValidationResult) {
	seen := make(map[string]bool)
	for i := range c.ScreenTypes {
		st := c.ScreenTypes[i]
		field := fmt.Sprintf("screen_types[%d]", i)
		if err := st.Validate(); err != nil {
			result.addError(field, st.ID, err.Error())
			continue
		}
		if seen[st.ID] {
			result.addError(field, st.ID, "duplicate screen type id")
		}
		seen[st.ID] = true
		for _, sel := range append(append(append([]string{}, st.Rule.Any...), st.Rule.All...), st.Rule.None...) {
			if err := validateCSSSelector(sel); err != nil {
				result.addError(field+".rule", sel, err.Error())
			}
		}
	}
}

// validateCSSSelector checks that a selector group parses
func validateCSSSelector(selector string) error {
	if strings.TrimSpace(selector) == "" {
		return fmt.Errorf("selector cannot be empty")
	}
	if _, err := cascadia.ParseGroup(selector); err != nil {
		return fmt.Errorf("invalid CSS selector: %w", err)
	}
	return nil
}

// formatValidationError creates a comprehensive error message
func formatValidationError(result *ValidationResult) error {
	var errorMsg strings.Builder

	errorMsg.WriteString("configuration validation failed:\n")
	for i, err := range result.Errors {
		errorMsg.WriteString(fmt.Sprintf("  %d. %s", i+1, err.Message))
		if err.Field != "" {
			errorMsg.WriteString(fmt.Sprintf(" (field: %s)", err.Field))
		}
		if err.Value != "" {
			errorMsg.WriteString(fmt.Sprintf(" (value: %s)", err.Value))
		}
		errorMsg.WriteString("\n")
	}

	return fmt.Errorf("%s", errorMsg.String())
}
