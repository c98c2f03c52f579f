// internal/config/types.go

// Package config provides configuration types and loading for LessonFlow.
// It defines the platform selection, browser settings, the three timeout
// tiers, the stuck-loop escalation limits and the output locations.
package config

import (
	"time"

	"github.com/valpere/LessonFlow/internal/browser"
	"github.com/valpere/LessonFlow/internal/detect"
)

// Config represents the main configuration of an extraction run
type Config struct {
	// Platform selects the built-in platform adapter
	Platform string `yaml:"platform" json:"platform"`

	// BaseURL overrides the platform's default base URL
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`

	// OutputDir receives one JSON file per lesson
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// ProgressDir receives one progress file per (platform, level)
	ProgressDir string `yaml:"progress_dir" json:"progress_dir"`

	// CookieFile stores the authenticated session
	CookieFile string `yaml:"cookie_file" json:"cookie_file"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log_level" json:"log_level"`

	Browser  browser.BrowserConfig `yaml:"browser" json:"browser"`
	Timeouts TimeoutConfig         `yaml:"timeouts" json:"timeouts"`
	Limits   LimitsConfig          `yaml:"limits" json:"limits"`
	Metrics  MetricsConfig         `yaml:"metrics" json:"metrics"`
	Output   OutputConfig          `yaml:"output" json:"output"`

	// ScreenTypes override or extend the platform screen table
	ScreenTypes []detect.ScreenType `yaml:"screen_types,omitempty" json:"screen_types,omitempty"`
}

// TimeoutConfig holds the three wait tiers
type TimeoutConfig struct {
	// Detection bounds the wait for any screen type to match
	Detection time.Duration `yaml:"detection" json:"detection"`

	// Navigation bounds the wait for a page load after navigating
	Navigation time.Duration `yaml:"navigation" json:"navigation"`

	// Settle is the fixed delay used when the navigation wait expires
	Settle time.Duration `yaml:"settle" json:"settle"`

	// Feedback bounds the poll for a feedback overlay after answering
	Feedback time.Duration `yaml:"feedback" json:"feedback"`

	// PollInterval is the delay between snapshot polls
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval"`
}

// LimitsConfig holds stuck-loop escalation thresholds and ceilings.
// Thresholds count consecutive iterations with unchanged page text.
type LimitsConfig struct {
	MaxScreens          int `yaml:"max_screens" json:"max_screens"`
	StallBeforeEscape   int `yaml:"stall_before_escape" json:"stall_before_escape"`
	StallBeforeContinue int `yaml:"stall_before_continue" json:"stall_before_continue"`
	StallBeforeAbort    int `yaml:"stall_before_abort" json:"stall_before_abort"`
	TextSnapshotLength  int `yaml:"text_snapshot_length" json:"text_snapshot_length"`
	SolverMaxAttempts   int `yaml:"solver_max_attempts" json:"solver_max_attempts"`
}

// MetricsConfig configures the status server
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	ListenAddress string `yaml:"listen_address" json:"listen_address"`
}

// OutputConfig configures optional output mirrors. The JSON files under
// OutputDir are always written; mirrors are best effort.
type OutputConfig struct {
	Index IndexConfig `yaml:"index" json:"index"`
	Mongo MongoConfig `yaml:"mongo" json:"mongo"`

	// Workbook is the default path of the spreadsheet export
	Workbook string `yaml:"workbook,omitempty" json:"workbook,omitempty"`
}

// IndexConfig enables the relational lesson index when DSN is set
type IndexConfig struct {
	// Driver is sqlite3, postgres or mysql
	Driver string `yaml:"driver" json:"driver"`
	DSN    string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

// MongoConfig enables the document mirror when URI is set
type MongoConfig struct {
	URI        string        `yaml:"uri,omitempty" json:"uri,omitempty"`
	Database   string        `yaml:"database" json:"database"`
	Collection string        `yaml:"collection" json:"collection"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}
