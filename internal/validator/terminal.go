// internal/validator/terminal.go
package validator

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/valpere/LessonFlow/internal/utils"
	"github.com/valpere/LessonFlow/pkg/types"
)

// TerminalOptions configures a Terminal validator
type TerminalOptions struct {
	In  io.Reader
	Out io.Writer

	// PromptTimeout bounds review and continue prompts
	PromptTimeout time.Duration

	// ManualTimeout bounds the manual solve and login waits
	ManualTimeout time.Duration

	// ReviewScreens enables the per-screen review prompt
	ReviewScreens bool

	// Color toggles colored output
	Color bool
}

// Terminal prompts an operator on a terminal. Input is read by a single
// goroutine so an expired prompt never swallows the answer to the next one.
type Terminal struct {
	opts   TerminalOptions
	logger utils.Logger

	startOnce sync.Once
	lines     chan string
	readErr   chan error
}

var _ Validator = (*Terminal)(nil)

// NewTerminal creates a terminal validator on stdin/stdout unless overridden
func NewTerminal(opts TerminalOptions, logger utils.Logger) *Terminal {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.PromptTimeout <= 0 {
		opts.PromptTimeout = 60 * time.Second
	}
	if opts.ManualTimeout <= 0 {
		opts.ManualTimeout = 10 * time.Minute
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Terminal{
		opts:    opts,
		logger:  logger.WithField("component", "validator"),
		lines:   make(chan string),
		readErr: make(chan error, 1),
	}
}

func (t *Terminal) startReader() {
	t.startOnce.Do(func() {
		go func() {
			scanner := bufio.NewScanner(t.opts.In)
			for scanner.Scan() {
				t.lines <- scanner.Text()
			}
			err := scanner.Err()
			if err == nil {
				err = io.EOF
			}
			t.readErr <- err
		}()
	})
}

// readLine waits for one input line. ok is false on timeout or closed input.
func (t *Terminal) readLine(ctx context.Context, timeout time.Duration) (line string, ok bool, err error) {
	t.startReader()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case line := <-t.lines:
		return strings.TrimSpace(line), true, nil
	case rerr := <-t.readErr:
		// keep reporting the closed input to later prompts
		t.readErr <- rerr
		return "", false, nil
	case <-timer.C:
		return "", false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

func (t *Terminal) colorize(text string, attrs ...color.Attribute) string {
	if !t.opts.Color {
		return text
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(text)
}

func (t *Terminal) printf(format string, args ...interface{}) {
	fmt.Fprintf(t.opts.Out, format, args...)
}

func (t *Terminal) showRecord(rec types.ScreenRecord) {
	separator := strings.Repeat("=", 60)
	t.printf("\n%s\n", t.colorize(separator, color.FgCyan))
	t.printf("%s\n", t.colorize(fmt.Sprintf("Screen %d: %s (%s)", rec.Index, rec.TypeName, rec.TypeID), color.FgYellow, color.Bold))
	if data, err := json.MarshalIndent(rec.Content, "", "  "); err == nil {
		t.printf("%s\n", utils.TruncateString(string(data), 2000))
	}
	t.printf("%s\n", t.colorize(separator, color.FgCyan))
}

// Review shows the record and asks to accept, flag or skip it. Timeouts and
// closed input count as skipped.
func (t *Terminal) Review(ctx context.Context, rec types.ScreenRecord) (types.Validation, error) {
	if !t.opts.ReviewScreens {
		return types.Validation{Status: types.ValidationAccepted, At: time.Now()}, nil
	}

	t.showRecord(rec)
	t.printf("%s ", t.colorize("[a]ccept, [f]lag <note>, [s]kip:", color.FgCyan))

	line, ok, err := t.readLine(ctx, t.opts.PromptTimeout)
	if err != nil {
		return types.Validation{}, err
	}
	v := types.Validation{Status: types.ValidationSkipped, At: time.Now()}
	if !ok {
		t.printf("\n%s\n", t.colorize("No answer, screen skipped", color.FgRed))
		return v, nil
	}

	answer, note, _ := strings.Cut(line, " ")
	switch strings.ToLower(answer) {
	case "a", "accept", "y", "yes", "":
		v.Status = types.ValidationAccepted
	case "f", "flag":
		v.Status = types.ValidationFlagged
		v.Note = strings.TrimSpace(note)
	}
	t.logger.Debugf("screen %d reviewed: %s", rec.Index, v.Status)
	return v, nil
}

// AwaitManualSolve asks the operator to finish the exercise and press Enter
func (t *Terminal) AwaitManualSolve(ctx context.Context, rec types.ScreenRecord) error {
	t.printf("\n%s\n", t.colorize(
		fmt.Sprintf("Could not solve screen %d (%s). Solve it in the browser, then press Enter.", rec.Index, rec.TypeName),
		color.FgYellow, color.Bold))

	_, ok, err := t.readLine(ctx, t.opts.ManualTimeout)
	if err != nil {
		return err
	}
	if !ok {
		t.logger.Warnf("manual solve of screen %d not confirmed, continuing", rec.Index)
	}
	return nil
}

// ConfirmContinue defaults to continuing on empty input or timeout
func (t *Terminal) ConfirmContinue(ctx context.Context, cause error) bool {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	t.printf("\n%s %s\n", t.colorize("Error:", color.FgRed, color.Bold), msg)
	t.printf("%s ", t.colorize("Continue? [Y/n]:", color.FgCyan))

	line, ok, err := t.readLine(ctx, t.opts.PromptTimeout)
	if err != nil {
		return false
	}
	if !ok {
		return true
	}
	switch strings.ToLower(line) {
	case "n", "no", "q", "quit":
		return false
	}
	return true
}

// AwaitLogin asks the operator to log in through the browser window
func (t *Terminal) AwaitLogin(ctx context.Context) error {
	t.printf("\n%s\n", t.colorize("Not logged in. Log in using the browser window, then press Enter.", color.FgYellow, color.Bold))

	_, ok, err := t.readLine(ctx, t.opts.ManualTimeout)
	if err != nil {
		return err
	}
	if !ok {
		return utils.NewError(utils.ErrCodeAuthFailed, "login was not confirmed").
			WithSeverity(utils.SeverityCritical).
			Build()
	}
	return nil
}

// Prompt asks a free-form question and waits up to the manual timeout.
// ok is false on timeout or closed input.
func (t *Terminal) Prompt(ctx context.Context, question string) (answer string, ok bool, err error) {
	t.printf("%s ", t.colorize(question, color.FgCyan))
	return t.readLine(ctx, t.opts.ManualTimeout)
}
