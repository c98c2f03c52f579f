// internal/config/config.go
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/valpere/LessonFlow/internal/browser"
)

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		Platform:    "dataqa",
		OutputDir:   "output",
		ProgressDir: "progress",
		CookieFile:  "cookies.json",
		LogLevel:    "info",
		Browser:     *browser.DefaultBrowserConfig(),
		Timeouts:    DefaultTimeouts(),
		Limits:      DefaultLimits(),
		Metrics: MetricsConfig{
			Enabled:       false,
			ListenAddress: "127.0.0.1:9464",
		},
		Output: DefaultOutput(),
	}
}

// DefaultOutput returns mirror settings with every mirror disabled
func DefaultOutput() OutputConfig {
	return OutputConfig{
		Index: IndexConfig{Driver: "sqlite3"},
		Mongo: MongoConfig{
			Database:   "lessonflow",
			Collection: "lessons",
			Timeout:    10 * time.Second,
		},
	}
}

// DefaultTimeouts returns the default wait tiers
func DefaultTimeouts() TimeoutConfig {
	return TimeoutConfig{
		Detection:    8 * time.Second,
		Navigation:   15 * time.Second,
		Settle:       2 * time.Second,
		Feedback:     2 * time.Second,
		PollInterval: 250 * time.Millisecond,
	}
}

// DefaultLimits returns the default escalation thresholds
func DefaultLimits() LimitsConfig {
	return LimitsConfig{
		MaxScreens:          200,
		StallBeforeEscape:   2,
		StallBeforeContinue: 3,
		StallBeforeAbort:    5,
		TextSnapshotLength:  500,
		SolverMaxAttempts:   10,
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration filename cannot be empty")
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", filename)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes. Keys that are absent
// keep their DefaultConfig values.
func LoadFromBytes(data []byte) (*Config, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("configuration data cannot be empty")
	}

	expandedData := expandEnvironmentVariables(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	applyDefaults(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadFromReader loads configuration from an io.Reader
func LoadFromReader(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from reader: %w", err)
	}

	return LoadFromBytes(data)
}

// SaveToFile saves configuration to a YAML file
func SaveToFile(config *Config, filename string) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	return nil
}

// expandEnvironmentVariables substitutes environment variables in the configuration
func expandEnvironmentVariables(content string) string {
	return os.ExpandEnv(content)
}

// applyDefaults fills values that were explicitly zeroed in the file
func applyDefaults(config *Config) {
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.OutputDir == "" {
		config.OutputDir = "output"
	}
	if config.ProgressDir == "" {
		config.ProgressDir = config.OutputDir
	}

	b := browser.DefaultBrowserConfig()
	if config.Browser.Driver == "" {
		config.Browser.Driver = b.Driver
	}
	if config.Browser.Timeout == 0 {
		config.Browser.Timeout = b.Timeout
	}
	if config.Browser.ViewportWidth == 0 {
		config.Browser.ViewportWidth = b.ViewportWidth
	}
	if config.Browser.ViewportHeight == 0 {
		config.Browser.ViewportHeight = b.ViewportHeight
	}

	t := DefaultTimeouts()
	if config.Timeouts.Detection == 0 {
		config.Timeouts.Detection = t.Detection
	}
	if config.Timeouts.Navigation == 0 {
		config.Timeouts.Navigation = t.Navigation
	}
	if config.Timeouts.Settle == 0 {
		config.Timeouts.Settle = t.Settle
	}
	if config.Timeouts.Feedback == 0 {
		config.Timeouts.Feedback = t.Feedback
	}
	if config.Timeouts.PollInterval == 0 {
		config.Timeouts.PollInterval = t.PollInterval
	}

	config.Limits.applyDefaults()

	if config.Metrics.ListenAddress == "" {
		config.Metrics.ListenAddress = "127.0.0.1:9464"
	}

	o := DefaultOutput()
	if config.Output.Index.Driver == "" {
		config.Output.Index.Driver = o.Index.Driver
	}
	if config.Output.Mongo.Database == "" {
		config.Output.Mongo.Database = o.Mongo.Database
	}
	if config.Output.Mongo.Collection == "" {
		config.Output.Mongo.Collection = o.Mongo.Collection
	}
	if config.Output.Mongo.Timeout == 0 {
		config.Output.Mongo.Timeout = o.Mongo.Timeout
	}
}

func (l *LimitsConfig) applyDefaults() {
	d := DefaultLimits()
	if l.MaxScreens == 0 {
		l.MaxScreens = d.MaxScreens
	}
	if l.StallBeforeEscape == 0 {
		l.StallBeforeEscape = d.StallBeforeEscape
	}
	if l.StallBeforeContinue == 0 {
		l.StallBeforeContinue = d.StallBeforeContinue
	}
	if l.StallBeforeAbort == 0 {
		l.StallBeforeAbort = d.StallBeforeAbort
	}
	if l.TextSnapshotLength == 0 {
		l.TextSnapshotLength = d.TextSnapshotLength
	}
	if l.SolverMaxAttempts == 0 {
		l.SolverMaxAttempts = d.SolverMaxAttempts
	}
}
