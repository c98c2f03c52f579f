// internal/utils/utils_test.go
package utils

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestNormalizeText(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"  Continue  ", "continue"},
		{"CHECK\n\tanswer", "check answer"},
		{"Ｃｏｎｔｉｎｕｅ", "continue"},
		{"Lesson  Complete", "lesson complete"},
		{"", ""},
	}
	for _, tc := range testCases {
		if got := NormalizeText(tc.input); got != tc.expected {
			t.Errorf("NormalizeText(%q) = %q, expected %q", tc.input, got, tc.expected)
		}
	}
}

func TestCleanTextKeepsCase(t *testing.T) {
	if got := CleanText("  Hola\n  Mundo "); got != "Hola Mundo" {
		t.Errorf("CleanText() = %q", got)
	}
}

func TestContainsAnyPhrase(t *testing.T) {
	text := "Lesson   COMPLETE! You earned 10 XP"
	if !ContainsAnyPhrase(text, []string{"nothing", "lesson complete"}) {
		t.Error("expected phrase match")
	}
	if ContainsAnyPhrase(text, []string{"", "  "}) {
		t.Error("blank phrases must not match")
	}
	if ContainsAnyPhrase("", []string{"lesson"}) {
		t.Error("empty text must not match")
	}
	if !EqualFold(" Check ", "CHECK") {
		t.Error("expected EqualFold match")
	}
}

func TestPrefix(t *testing.T) {
	testCases := []struct {
		input    string
		n        int
		expected string
	}{
		{"hello", 3, "hel"},
		{"hello", 10, "hello"},
		{"héllo", 2, "hé"},
		{"hello", 0, ""},
	}
	for _, tc := range testCases {
		if got := Prefix(tc.input, tc.n); got != tc.expected {
			t.Errorf("Prefix(%q, %d) = %q, expected %q", tc.input, tc.n, got, tc.expected)
		}
	}
}

func TestLessonKeyFromURL(t *testing.T) {
	testCases := []struct {
		url      string
		expected string
	}{
		{"https://app.dataqa.example/lesson/a1/l1", "a1-l1"},
		{"https://app.dataqa.example/lesson/A1/L2/?x=1", "a1-l2"},
		{"https://app.dataqa.example/l9", "l9"},
	}
	for _, tc := range testCases {
		if got := LessonKeyFromURL(tc.url); got != tc.expected {
			t.Errorf("LessonKeyFromURL(%q) = %q, expected %q", tc.url, got, tc.expected)
		}
	}

	root := LessonKeyFromURL("https://app.dataqa.example/")
	if len(root) != 12 || root != LessonKeyFromURL("https://app.dataqa.example/") {
		t.Errorf("expected a stable hash key for an empty path, got %q", root)
	}
}

func TestURLHelpers(t *testing.T) {
	normalized, err := NormalizeURL("https://APP.dataqa.example/lesson/a1/?b=2&a=1#top")
	if err != nil {
		t.Fatalf("NormalizeURL failed: %v", err)
	}
	if normalized != "https://app.dataqa.example/lesson/a1?a=1&b=2" {
		t.Errorf("NormalizeURL() = %q", normalized)
	}

	abs, err := ResolveURL("https://app.dataqa.example/timeline/a1", "/lesson/a1/l1")
	if err != nil || abs != "https://app.dataqa.example/lesson/a1/l1" {
		t.Errorf("ResolveURL() = %q, %v", abs, err)
	}

	if !IsValidURL("https://app.dataqa.example") || IsValidURL("/lesson/a1") || IsValidURL("") {
		t.Error("IsValidURL gave an unexpected answer")
	}
	if got := URLPath("https://app.dataqa.example/lesson/a1?x=1"); got != "/lesson/a1" {
		t.Errorf("URLPath() = %q", got)
	}
}

func TestFileNameHelpers(t *testing.T) {
	if got := CleanFileName(`a1: "intro"/part?`); got != "a1_intro_part" {
		t.Errorf("CleanFileName() = %q", got)
	}
	if got := CleanFileName("..."); got != "output" {
		t.Errorf("CleanFileName(...) = %q", got)
	}
	if got := JoinSlug("dataqa", " ", "a1"); got != "dataqa-a1" {
		t.Errorf("JoinSlug() = %q", got)
	}
	if got := TruncateString("abcdefgh", 6); got != "abc..." {
		t.Errorf("TruncateString() = %q", got)
	}
	if got := TruncateString("abc", 6); got != "abc" {
		t.Errorf("TruncateString() = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	testCases := []struct {
		d        time.Duration
		expected string
	}{
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1.5m"},
		{90 * time.Minute, "1.5h"},
	}
	for _, tc := range testCases {
		if got := FormatDuration(tc.d); got != tc.expected {
			t.Errorf("FormatDuration(%v) = %q, expected %q", tc.d, got, tc.expected)
		}
	}
}

func TestStructuredError(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := NewError(ErrCodeStuckLoop, "page did not change").
		WithCause(cause).
		WithContext("iterations", 5).
		WithStackTrace(3).
		Build()

	if !strings.Contains(err.Error(), "STUCK_LOOP: page did not change") {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if !errors.Is(err, ErrStuckLoop) {
		t.Error("expected errors.Is to match by code")
	}
	if errors.Is(err, ErrIterationCeiling) {
		t.Error("different codes must not match")
	}
	if !errors.Is(err, cause) {
		t.Error("expected the cause to be reachable")
	}
	if err.Context["iterations"] != 5 || len(err.StackTrace) == 0 {
		t.Errorf("context or stack missing: %+v", err)
	}

	wrapped := fmt.Errorf("lesson a1-l1: %w", err)
	if CodeOf(wrapped) != ErrCodeStuckLoop {
		t.Errorf("CodeOf() = %s", CodeOf(wrapped))
	}
	if CodeOf(cause) != ErrCodeUnknown {
		t.Errorf("CodeOf(plain) = %s", CodeOf(cause))
	}
}

func TestIsRetryableError(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"sentinel", ErrDetectionTimeout, true},
		{"structured", NewError(ErrCodeAuthFailed, "logged out").Build(), false},
		{"timeout text", fmt.Errorf("navigation timeout"), true},
		{"plain", fmt.Errorf("boom"), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryableError(tc.err); got != tc.expected {
				t.Errorf("IsRetryableError() = %v, expected %v", got, tc.expected)
			}
		})
	}
}

func TestGetUserFriendlyMessage(t *testing.T) {
	custom := NewError(ErrCodeAuthFailed, "x").WithUserMessage("Log in again.").Build()
	if got := GetUserFriendlyMessage(custom); got != "Log in again." {
		t.Errorf("GetUserFriendlyMessage() = %q", got)
	}
	if got := GetUserFriendlyMessage(NewError(ErrCodeOutputFailed, "disk").Build()); !strings.Contains(got, "disk space") {
		t.Errorf("GetUserFriendlyMessage() = %q", got)
	}
	if got := GetUserFriendlyMessage(fmt.Errorf("plain")); !strings.Contains(got, "try again") {
		t.Errorf("GetUserFriendlyMessage() = %q", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{"debug", DebugLevel, false},
		{"", InfoLevel, false},
		{"WARNING", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}
	for _, tc := range testCases {
		got, err := ParseLogLevel(tc.input)
		if (err != nil) != tc.wantErr || got != tc.expected {
			t.Errorf("ParseLogLevel(%q) = %v, %v", tc.input, got, err)
		}
	}

	logger, err := NewLoggerWithLevel(DebugLevel, true)
	if err != nil {
		t.Fatalf("NewLoggerWithLevel failed: %v", err)
	}
	logger.WithFields(map[string]interface{}{"lesson": "a1-l1"}).Debugf("screen %d", 1)
	logger.Sync()

	nop := NewNopLogger()
	nop.WithField("k", "v").Errorf("ignored %d", 1)
	if err := nop.Sync(); err != nil {
		t.Errorf("nop Sync() = %v", err)
	}
}
