// Package utils provides logging, structured errors and text helpers
// shared by the extraction engine.
package utils

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns string representation of error severity
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ErrorCode represents predefined error codes for categorization
type ErrorCode string

const (
	// Lesson flow errors
	ErrCodeDetectionTimeout        ErrorCode = "DETECTION_TIMEOUT"
	ErrCodeExtractionMiss          ErrorCode = "EXTRACTION_MISS"
	ErrCodeSolveFailure            ErrorCode = "SOLVE_FAILURE"
	ErrCodeStuckLoop               ErrorCode = "STUCK_LOOP"
	ErrCodeUnrecoverableNavigation ErrorCode = "UNRECOVERABLE_NAVIGATION"
	ErrCodeIterationCeiling        ErrorCode = "ITERATION_CEILING"

	// Browser and session errors
	ErrCodeBrowserFailed   ErrorCode = "BROWSER_FAILED"
	ErrCodeNetworkTimeout  ErrorCode = "NETWORK_TIMEOUT"
	ErrCodeAuthFailed      ErrorCode = "AUTH_FAILED"
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"

	// Configuration and output
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCodeOutputFailed  ErrorCode = "OUTPUT_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeUnknown  ErrorCode = "UNKNOWN_ERROR"
)

// StructuredError provides rich error information for better debugging and handling
type StructuredError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Severity    ErrorSeverity          `json:"severity"`
	Context     map[string]interface{} `json:"context,omitempty"`
	Cause       error                  `json:"-"`
	Timestamp   time.Time              `json:"timestamp"`
	StackTrace  []string               `json:"stack_trace,omitempty"`
	Retryable   bool                   `json:"retryable"`
	UserMessage string                 `json:"user_message,omitempty"`
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error unwrapping
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target error code
func (e *StructuredError) Is(target error) bool {
	if se, ok := target.(*StructuredError); ok {
		return e.Code == se.Code
	}
	return false
}

// WithContext adds contextual information to the error
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Sentinel values usable with errors.Is; matching is by code.
var (
	ErrDetectionTimeout        = &StructuredError{Code: ErrCodeDetectionTimeout, Message: "no screen type matched in time", Retryable: true}
	ErrExtractionMiss          = &StructuredError{Code: ErrCodeExtractionMiss, Message: "extractor root container absent", Retryable: true}
	ErrSolveFailure            = &StructuredError{Code: ErrCodeSolveFailure, Message: "no solver strategy succeeded", Retryable: true}
	ErrStuckLoop               = &StructuredError{Code: ErrCodeStuckLoop, Message: "page state unchanged across iterations"}
	ErrUnrecoverableNavigation = &StructuredError{Code: ErrCodeUnrecoverableNavigation, Message: "page left the lesson route"}
	ErrIterationCeiling        = &StructuredError{Code: ErrCodeIterationCeiling, Message: "iteration ceiling reached"}
)

// ErrorBuilder provides a fluent interface for creating structured errors
type ErrorBuilder struct {
	error *StructuredError
}

// NewError creates a new error builder
func NewError(code ErrorCode, message string) *ErrorBuilder {
	return &ErrorBuilder{
		error: &StructuredError{
			Code:      code,
			Message:   message,
			Severity:  SeverityError,
			Timestamp: time.Now(),
		},
	}
}

// WithSeverity sets the error severity
func (eb *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	eb.error.Severity = severity
	return eb
}

// WithCause sets the underlying cause
func (eb *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	eb.error.Cause = cause
	return eb
}

// WithContext adds contextual information
func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	if eb.error.Context == nil {
		eb.error.Context = make(map[string]interface{})
	}
	eb.error.Context[key] = value
	return eb
}

// WithRetryable marks the error as retryable
func (eb *ErrorBuilder) WithRetryable(retryable bool) *ErrorBuilder {
	eb.error.Retryable = retryable
	return eb
}

// WithUserMessage sets a user-friendly message
func (eb *ErrorBuilder) WithUserMessage(message string) *ErrorBuilder {
	eb.error.UserMessage = message
	return eb
}

// WithStackTrace captures the caller stack
func (eb *ErrorBuilder) WithStackTrace(depth int) *ErrorBuilder {
	eb.error.StackTrace = captureStackTrace(depth)
	return eb
}

// Build returns the constructed error
func (eb *ErrorBuilder) Build() *StructuredError {
	return eb.error
}

// WrapError wraps an existing error in a structured error
func WrapError(err error, code ErrorCode, message string) *StructuredError {
	return NewError(code, message).WithCause(err).Build()
}

// CodeOf returns the code of the first structured error in the chain
func CodeOf(err error) ErrorCode {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeUnknown
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Retryable
	}

	retryablePatterns := []string{
		"timeout",
		"deadline exceeded",
		"not found or not visible",
		"no node",
	}
	errorStr := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns {
		if strings.Contains(errorStr, pattern) {
			return true
		}
	}
	return false
}

// GetUserFriendlyMessage extracts a user-friendly message from an error
func GetUserFriendlyMessage(err error) string {
	var se *StructuredError
	if !errors.As(err, &se) {
		return "An error occurred. Please try again."
	}
	if se.UserMessage != "" {
		return se.UserMessage
	}
	switch se.Code {
	case ErrCodeBrowserFailed:
		return "The browser could not be started or crashed. Check that Chrome is installed."
	case ErrCodeAuthFailed:
		return "Not logged in. Run without --headless once to log in and store cookies."
	case ErrCodeInvalidConfig:
		return "The configuration file is invalid."
	case ErrCodeOutputFailed:
		return "Failed to save results. Check file permissions and available disk space."
	default:
		return "An unexpected error occurred. Partial results were kept on disk."
	}
}

func captureStackTrace(depth int) []string {
	if depth <= 0 {
		return nil
	}
	var stack []string
	for i := 2; len(stack) < depth; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		funcName := "unknown"
		if fn := runtime.FuncForPC(pc); fn != nil {
			funcName = fn.Name()
		}
		stack = append(stack, fmt.Sprintf("%s:%d (%s)", shortenFilePath(file), line, shortenFuncName(funcName)))
	}
	return stack
}

// shortenFilePath keeps only the last two path components
func shortenFilePath(filePath string) string {
	parts := strings.Split(filePath, "/")
	if len(parts) > 2 {
		return strings.Join(parts[len(parts)-2:], "/")
	}
	return filePath
}

func shortenFuncName(funcName string) string {
	parts := strings.Split(funcName, "/")
	last := parts[len(parts)-1]
	if dot := strings.LastIndex(last, "."); dot != -1 && dot < len(last)-1 {
		return last[dot+1:]
	}
	return last
}
