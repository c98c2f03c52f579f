// internal/errors/service.go - retry, circuit breaking and CLI error reporting
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valpere/LessonFlow/internal/utils"
)

// Exit codes of the lessonflow binary
const (
	ExitOK          = 0
	ExitGeneral     = 1
	ExitConfig      = 2
	ExitNetwork     = 3
	ExitBrowser     = 4
	ExitOutput      = 5
	ExitAuth        = 8
	ExitInterrupted = 130
)

// Service provides retry helpers and user-facing error formatting
type Service struct {
	retryConfig   RetryConfig
	showTechnical bool
}

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxRetries    int           `yaml:"max_retries" json:"max_retries"`
	BaseDelay     time.Duration `yaml:"base_delay" json:"base_delay"`
	BackoffFactor float64       `yaml:"backoff_factor" json:"backoff_factor"`
	MaxDelay      time.Duration `yaml:"max_delay" json:"max_delay"`
}

// NewService creates a service with the default retry policy
func NewService() *Service {
	return &Service{
		retryConfig: RetryConfig{
			MaxRetries:    2,
			BaseDelay:     2 * time.Second,
			BackoffFactor: 2.0,
			MaxDelay:      30 * time.Second,
		},
	}
}

// WithVerbose enables technical error details
func (s *Service) WithVerbose(verbose bool) *Service {
	s.showTechnical = verbose
	return s
}

// WithRetryConfig replaces the retry policy
func (s *Service) WithRetryConfig(cfg RetryConfig) *Service {
	s.retryConfig = cfg
	return s
}

// ExecuteWithRetry runs operation until it succeeds, fails with a
// non-retryable error, or the retries are exhausted
func (s *Service) ExecuteWithRetry(ctx context.Context, operation func() error, operationName string) error {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= s.retryConfig.MaxRetries; attempt++ {
		attempts++
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if !s.shouldRetry(err, attempt) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.calculateDelay(attempt)):
		}
	}

	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("operation %s failed after %d attempts: %w", operationName, attempts, lastErr)
}

func (s *Service) shouldRetry(err error, attempt int) bool {
	if attempt >= s.retryConfig.MaxRetries {
		return false
	}
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	if utils.IsRetryableError(err) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, retryable := range []string{"connection refused", "connection reset", "temporary", "503"} {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}
	return false
}

// calculateDelay computes exponential backoff delay
func (s *Service) calculateDelay(attempt int) time.Duration {
	delay := float64(s.retryConfig.BaseDelay)
	for i := 0; i < attempt; i++ {
		delay *= s.retryConfig.BackoffFactor
	}
	if d := time.Duration(delay); d < s.retryConfig.MaxDelay {
		return d
	}
	return s.retryConfig.MaxDelay
}

// GetUserFriendlyError converts an error into a title, message and hints
func (s *Service) GetUserFriendlyError(err error) (title, message string, suggestions []string) {
	if err == nil {
		return "", "", nil
	}
	if stderrors.Is(err, context.Canceled) {
		return "Interrupted",
			"The run was interrupted. Partial checkpoints were kept on disk.",
			[]string{"Run the same command again to resume the level"}
	}

	message = utils.GetUserFriendlyMessage(err)
	switch utils.CodeOf(err) {
	case utils.ErrCodeInvalidConfig:
		return "Configuration Error", message, []string{
			"Run 'lessonflow validate <config>' to list every problem",
			"Check YAML indentation (use spaces, not tabs)",
		}
	case utils.ErrCodeAuthFailed:
		return "Not Logged In", message, []string{
			"Run without --headless and --auto once to log in",
			"Check that cookie_file points to a writable location",
		}
	case utils.ErrCodeBrowserFailed:
		return "Browser Error", message, []string{
			"Check that Chrome or Chromium is installed",
			"Try the other driver with browser.driver: rod",
		}
	case utils.ErrCodeOutputFailed:
		return "Output Error", message, []string{
			"Check permissions of output_dir and progress_dir",
			"Check the index DSN and MongoDB URI",
		}
	case utils.ErrCodeNetworkTimeout, utils.ErrCodeUnrecoverableNavigation:
		return "Navigation Error", message, []string{
			"Check your internet connection",
			"Increase timeouts.navigation in the configuration",
		}
	}

	// Errors from outside the engine carry no code
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "yaml"):
		return "Configuration Error", "The configuration file has invalid YAML syntax.", []string{
			"Check YAML indentation (use spaces, not tabs)",
		}
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded"):
		return "Timeout", "An operation timed out.", []string{
			"Increase the timeouts in the configuration",
		}
	}
	return "Unexpected Error", message, []string{
		"Run again with --verbose for details",
	}
}

// GetExitCode returns the process exit code for err
func (s *Service) GetExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if stderrors.Is(err, context.Canceled) {
		return ExitInterrupted
	}

	switch utils.CodeOf(err) {
	case utils.ErrCodeInvalidConfig:
		return ExitConfig
	case utils.ErrCodeNetworkTimeout, utils.ErrCodeUnrecoverableNavigation:
		return ExitNetwork
	case utils.ErrCodeBrowserFailed:
		return ExitBrowser
	case utils.ErrCodeOutputFailed:
		return ExitOutput
	case utils.ErrCodeAuthFailed:
		return ExitAuth
	case utils.ErrCodeContextCanceled:
		return ExitInterrupted
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "config") || strings.Contains(errStr, "yaml") {
		return ExitConfig
	}
	return ExitGeneral
}

// FormatErrorForCLI formats an error for the terminal
func (s *Service) FormatErrorForCLI(err error) string {
	title, message, suggestions := s.GetUserFriendlyError(err)

	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s\n%s\n", title, message)
	if s.showTechnical {
		fmt.Fprintf(&b, "\nTechnical details: %s\n", err.Error())
		var se *utils.StructuredError
		if stderrors.As(err, &se) {
			for _, frame := range se.StackTrace {
				fmt.Fprintf(&b, "  at %s\n", frame)
			}
		}
	}
	if len(suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for _, suggestion := range suggestions {
			fmt.Fprintf(&b, "  - %s\n", suggestion)
		}
	}
	return b.String()
}

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	CircuitClosed CircuitBreakerState = iota
	CircuitOpen
	CircuitHalfOpen
)

// String returns the state name
func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures circuit breaker behavior
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures" json:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout" json:"reset_timeout"`
}

// CircuitBreaker stops calling a failing dependency for a while
type CircuitBreaker struct {
	name            string
	maxFailures     int
	resetTimeout    time.Duration
	state           CircuitBreakerState
	failures        int
	nextAttemptTime time.Time
	mu              sync.Mutex
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 3
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = time.Minute
	}
	return &CircuitBreaker{
		name:         name,
		maxFailures:  config.MaxFailures,
		resetTimeout: config.ResetTimeout,
	}
}

// Name returns the breaker name
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// CanExecute reports whether a call may go through. An open breaker lets
// one trial call through after the reset timeout.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if time.Now().After(cb.nextAttemptTime) {
			cb.state = CircuitHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess closes the breaker
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = CircuitClosed
}

// RecordFailure counts a failure and opens the breaker at the threshold
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = CircuitOpen
		cb.nextAttemptTime = time.Now().Add(cb.resetTimeout)
	}
}

// GetState returns the current state
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
