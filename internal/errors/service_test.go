// internal/errors/service_test.go
package errors

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/valpere/LessonFlow/internal/utils"
)

// Short delays keep the retry tests fast
var testRetryConfig = RetryConfig{
	MaxRetries:    3,
	BaseDelay:     time.Millisecond,
	BackoffFactor: 2.0,
	MaxDelay:      5 * time.Millisecond,
}

func TestService_ExecuteWithRetry_Success(t *testing.T) {
	service := NewService().WithRetryConfig(testRetryConfig)

	calls := 0
	err := service.ExecuteWithRetry(context.Background(), func() error {
		calls++
		return nil
	}, "noop")

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestService_ExecuteWithRetry_RetriesTransientErrors(t *testing.T) {
	service := NewService().WithRetryConfig(testRetryConfig)

	calls := 0
	err := service.ExecuteWithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("navigation timeout")
		}
		return nil
	}, "list_lessons")

	if err != nil {
		t.Fatalf("Expected eventual success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestService_ExecuteWithRetry_Exhausted(t *testing.T) {
	service := NewService().WithRetryConfig(testRetryConfig)

	calls := 0
	err := service.ExecuteWithRetry(context.Background(), func() error {
		calls++
		return utils.NewError(utils.ErrCodeNetworkTimeout, "timeline did not load").WithRetryable(true).Build()
	}, "list_lessons")

	if err == nil {
		t.Fatal("Expected error")
	}
	if calls != testRetryConfig.MaxRetries+1 {
		t.Errorf("Expected %d calls, got %d", testRetryConfig.MaxRetries+1, calls)
	}
	if !strings.Contains(err.Error(), "after 4 attempts") {
		t.Errorf("Unexpected error message: %v", err)
	}
	if utils.CodeOf(err) != utils.ErrCodeNetworkTimeout {
		t.Errorf("Expected wrapped code to survive, got %s", utils.CodeOf(err))
	}
}

func TestService_ExecuteWithRetry_NonRetryable(t *testing.T) {
	service := NewService().WithRetryConfig(testRetryConfig)

	calls := 0
	authErr := utils.NewError(utils.ErrCodeAuthFailed, "logged out").Build()
	err := service.ExecuteWithRetry(context.Background(), func() error {
		calls++
		return authErr
	}, "list_lessons")

	if calls != 1 {
		t.Errorf("Expected a single call, got %d", calls)
	}
	if err != authErr {
		t.Errorf("Expected the original error, got %v", err)
	}
}

func TestService_ExecuteWithRetry_ContextCanceled(t *testing.T) {
	service := NewService().WithRetryConfig(RetryConfig{
		MaxRetries:    3,
		BaseDelay:     time.Second,
		BackoffFactor: 2,
		MaxDelay:      time.Second,
	})
	ctx, cancel := context.WithCancel(context.Background())

	err := service.ExecuteWithRetry(ctx, func() error {
		cancel()
		return fmt.Errorf("timeout")
	}, "slow")

	if err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestService_CalculateDelay(t *testing.T) {
	service := NewService().WithRetryConfig(RetryConfig{
		MaxRetries:    5,
		BaseDelay:     100 * time.Millisecond,
		BackoffFactor: 2,
		MaxDelay:      300 * time.Millisecond,
	})

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 300 * time.Millisecond},
		{5, 300 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := service.calculateDelay(tt.attempt); got != tt.expected {
			t.Errorf("calculateDelay(%d) = %v, expected %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestService_GetExitCode(t *testing.T) {
	service := NewService()

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil", nil, ExitOK},
		{"config", utils.NewError(utils.ErrCodeInvalidConfig, "bad").Build(), ExitConfig},
		{"navigation", utils.NewError(utils.ErrCodeUnrecoverableNavigation, "gone").Build(), ExitNetwork},
		{"browser", utils.NewError(utils.ErrCodeBrowserFailed, "crash").Build(), ExitBrowser},
		{"output", utils.NewError(utils.ErrCodeOutputFailed, "disk").Build(), ExitOutput},
		{"auth", utils.NewError(utils.ErrCodeAuthFailed, "login").Build(), ExitAuth},
		{"canceled", fmt.Errorf("run: %w", context.Canceled), ExitInterrupted},
		{"plain yaml", fmt.Errorf("yaml: line 3: mapping values are not allowed"), ExitConfig},
		{"plain", fmt.Errorf("something else"), ExitGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := service.GetExitCode(tt.err); got != tt.expected {
				t.Errorf("GetExitCode() = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestService_FormatErrorForCLI(t *testing.T) {
	err := utils.NewError(utils.ErrCodeAuthFailed, "session expired").Build()

	out := NewService().FormatErrorForCLI(err)
	if !strings.Contains(out, "Not Logged In") {
		t.Errorf("Expected title in output: %s", out)
	}
	if !strings.Contains(out, "Suggestions:") {
		t.Errorf("Expected suggestions in output: %s", out)
	}
	if strings.Contains(out, "Technical details") {
		t.Error("Technical details should be hidden by default")
	}

	verbose := NewService().WithVerbose(true).FormatErrorForCLI(err)
	if !strings.Contains(verbose, "Technical details: [AUTH_FAILED]") && !strings.Contains(verbose, "session expired") {
		t.Errorf("Expected technical details in verbose output: %s", verbose)
	}

	traced := utils.NewError(utils.ErrCodeBrowserFailed, "launch failed").WithStackTrace(2).Build()
	if len(traced.StackTrace) == 0 {
		t.Fatal("Expected a captured stack")
	}
	verbose = NewService().WithVerbose(true).FormatErrorForCLI(fmt.Errorf("run: %w", traced))
	if !strings.Contains(verbose, "  at "+traced.StackTrace[0]) {
		t.Errorf("Expected stack frames in verbose output: %s", verbose)
	}
	if strings.Contains(NewService().FormatErrorForCLI(traced), "  at ") {
		t.Error("Stack frames should be hidden by default")
	}

	interrupted := NewService().FormatErrorForCLI(context.Canceled)
	if !strings.Contains(interrupted, "Interrupted") {
		t.Errorf("Expected interrupted title: %s", interrupted)
	}
}

func TestCircuitBreaker(t *testing.T) {
	cb := NewCircuitBreaker("index", CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: 20 * time.Millisecond})

	if !cb.CanExecute() || cb.GetState() != CircuitClosed {
		t.Fatal("Expected a closed breaker")
	}
	cb.RecordFailure()
	if cb.GetState() != CircuitClosed {
		t.Error("Expected breaker to stay closed below the threshold")
	}
	cb.RecordFailure()
	if cb.GetState() != CircuitOpen || cb.CanExecute() {
		t.Fatal("Expected breaker to open at the threshold")
	}

	time.Sleep(30 * time.Millisecond)
	if !cb.CanExecute() {
		t.Fatal("Expected a trial call after the reset timeout")
	}
	if cb.GetState() != CircuitHalfOpen {
		t.Errorf("Expected half-open state, got %s", cb.GetState())
	}

	cb.RecordFailure()
	if cb.GetState() != CircuitOpen {
		t.Error("Expected a failed trial call to reopen the breaker")
	}

	time.Sleep(30 * time.Millisecond)
	cb.CanExecute()
	cb.RecordSuccess()
	if cb.GetState() != CircuitClosed {
		t.Error("Expected a successful trial call to close the breaker")
	}
}
