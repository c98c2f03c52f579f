// internal/validator/validator.go

// Package validator lets a human review recorded screens, finish exercises
// the solvers could not, and decide whether a run continues after an error.
package validator

import (
	"context"
	"time"

	"github.com/valpere/LessonFlow/internal/utils"
	"github.com/valpere/LessonFlow/pkg/types"
)

// Validator is consulted by the orchestrator at fixed points of a run
type Validator interface {
	// Review inspects a freshly recorded screen
	Review(ctx context.Context, rec types.ScreenRecord) (types.Validation, error)

	// AwaitManualSolve blocks until the operator solved the screen in the browser
	AwaitManualSolve(ctx context.Context, rec types.ScreenRecord) error

	// ConfirmContinue asks whether the run goes on after a recoverable error
	ConfirmContinue(ctx context.Context, err error) bool

	// AwaitLogin blocks until the operator logged in through the browser
	AwaitLogin(ctx context.Context) error
}

// Auto accepts everything and never waits
type Auto struct{}

var _ Validator = Auto{}

// Review accepts the record
func (Auto) Review(ctx context.Context, rec types.ScreenRecord) (types.Validation, error) {
	return types.Validation{Status: types.ValidationAccepted, At: time.Now()}, nil
}

// AwaitManualSolve returns immediately
func (Auto) AwaitManualSolve(ctx context.Context, rec types.ScreenRecord) error {
	return ctx.Err()
}

// ConfirmContinue always continues
func (Auto) ConfirmContinue(ctx context.Context, err error) bool {
	return ctx.Err() == nil
}

// AwaitLogin fails: an unattended run needs a saved session
func (Auto) AwaitLogin(ctx context.Context) error {
	return utils.NewError(utils.ErrCodeAuthFailed, "not logged in and no operator available").
		WithSeverity(utils.SeverityCritical).
		WithUserMessage("Log in once in interactive mode so the session cookies are saved.").
		Build()
}
