// internal/engine/runner.go
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/valpere/LessonFlow/internal/checkpoint"
	"github.com/valpere/LessonFlow/internal/config"
	"github.com/valpere/LessonFlow/internal/detect"
	lferrors "github.com/valpere/LessonFlow/internal/errors"
	"github.com/valpere/LessonFlow/internal/navigator"
	"github.com/valpere/LessonFlow/internal/output"
	"github.com/valpere/LessonFlow/internal/progress"
	"github.com/valpere/LessonFlow/internal/utils"
	"github.com/valpere/LessonFlow/internal/validator"
	"github.com/valpere/LessonFlow/pkg/types"
)

// RunnerOptions configures a Runner
type RunnerOptions struct {
	Config *config.Config
	// Session is the template for every lesson session
	Session Options
	// Mirrors may be nil
	Mirrors *output.Manager
	// Retry guards timeline loading; nil uses the default policy
	Retry *lferrors.Service
}

// Runner processes lessons one at a time on a single page
type Runner struct {
	nav      *navigator.Navigator
	registry *detect.Registry
	cfg      *config.Config
	opts     RunnerOptions
	retry    *lferrors.Service
	logger   utils.Logger
}

// BatchReport summarizes a level run
type BatchReport struct {
	Level     string
	Total     int
	Skipped   int
	Completed int
	Partial   int
	Failed    []string
	Duration  time.Duration
}

// String returns a one-line summary
func (r *BatchReport) String() string {
	return fmt.Sprintf("level %s: %d lessons, %d already done, %d complete, %d partial, %d failed in %s",
		r.Level, r.Total, r.Skipped, r.Completed, r.Partial, len(r.Failed), utils.FormatDuration(r.Duration))
}

// NewRunner creates a runner
func NewRunner(nav *navigator.Navigator, registry *detect.Registry, opts RunnerOptions) *Runner {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Session.Logger == nil {
		opts.Session.Logger = utils.NewNopLogger()
	}
	if opts.Session.Validator == nil {
		opts.Session.Validator = validator.Auto{}
	}
	retry := opts.Retry
	if retry == nil {
		retry = lferrors.NewService()
	}
	return &Runner{
		nav:      nav,
		registry: registry,
		cfg:      opts.Config,
		opts:     opts,
		retry:    retry,
		logger:   opts.Session.Logger.WithField("component", "runner"),
	}
}

// EnsureLogin restores the saved session and, when that is not enough,
// waits for the operator to log in and saves the new cookies
func (r *Runner) EnsureLogin(ctx context.Context) error {
	r.nav.LoadCookies(ctx, r.cfg.CookieFile)
	state, err := r.nav.GoToDashboard(ctx)
	if err != nil {
		return err
	}
	if state != navigator.LoggedOut {
		return nil
	}
	return r.login(ctx)
}

func (r *Runner) login(ctx context.Context) error {
	if r.cfg.Browser.Headless {
		return utils.NewError(utils.ErrCodeAuthFailed, "not logged in").
			WithSeverity(utils.SeverityCritical).
			WithUserMessage("The saved session expired. Run once without --headless to log in.").
			WithStackTrace(4).
			Build()
	}
	r.logger.Warn("not logged in, waiting for the operator")
	if err := r.opts.Session.Validator.AwaitLogin(ctx); err != nil {
		return err
	}
	state, err := r.nav.GoToDashboard(ctx)
	if err != nil {
		return err
	}
	if state == navigator.LoggedOut {
		return utils.NewError(utils.ErrCodeAuthFailed, "still on the login page").
			WithSeverity(utils.SeverityCritical).
			WithStackTrace(4).
			Build()
	}
	if err := r.nav.SaveCookies(ctx, r.cfg.CookieFile); err != nil {
		r.logger.Warnf("failed to save cookies: %v", err)
	}
	return nil
}

// RunLesson opens meta and runs it to the end. Fatal errors are returned
// together with whatever was extracted.
func (r *Runner) RunLesson(ctx context.Context, meta types.LessonMeta) (*Result, error) {
	state, err := r.nav.GoToLesson(ctx, meta.URL)
	if err != nil {
		return nil, err
	}
	if state == navigator.LoggedOut {
		if err := r.login(ctx); err != nil {
			return nil, err
		}
		if _, err := r.nav.GoToLesson(ctx, meta.URL); err != nil {
			return nil, err
		}
	}

	saver := checkpoint.New(r.cfg.OutputDir, r.opts.Session.Logger)
	session := NewSession(r.nav, r.registry, saver, meta, r.opts.Session)
	res, err := session.Run(ctx)
	if err != nil {
		return res, err
	}
	r.publish(ctx, res)
	return res, nil
}

func (r *Runner) publish(ctx context.Context, res *Result) {
	if r.opts.Mirrors == nil || r.opts.Mirrors.Len() == 0 {
		return
	}
	// failures are logged by the manager and never touch the JSON output
	r.opts.Mirrors.Publish(ctx, res.Extraction, res.File)
}

// RunLevel extracts every lesson of level that is not completed yet. A
// failing lesson is logged and the batch moves on; only fatal errors stop it.
func (r *Runner) RunLevel(ctx context.Context, level string) (*BatchReport, error) {
	start := time.Now()
	report := &BatchReport{Level: level}
	defer func() { report.Duration = time.Since(start) }()

	p := r.nav.Platform()
	tracker, err := progress.Load(r.cfg.ProgressDir, p.Name, level, r.opts.Session.Logger)
	if err != nil {
		return report, utils.WrapError(err, utils.ErrCodeOutputFailed, "failed to load progress")
	}

	var lessons []types.LessonMeta
	err = r.retry.ExecuteWithRetry(ctx, func() error {
		var listErr error
		lessons, listErr = r.nav.ListLessons(ctx, level)
		return listErr
	}, "list_lessons")
	if err != nil {
		return report, err
	}

	pending := tracker.Pending(lessons)
	report.Total = len(lessons)
	report.Skipped = len(lessons) - len(pending)
	r.opts.Session.Tracker.SetPlanned(len(pending))
	r.logger.Infof("level %s: %d lessons, %d pending", level, len(lessons), len(pending))

	for i, meta := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		r.logger.Infof("lesson %d/%d: %s", i+1, len(pending), meta.Key)

		res, err := r.RunLesson(ctx, meta)
		if res != nil && res.Extraction != nil {
			tracker.Record(types.SummaryOf(res.Extraction, res.File))
			if saveErr := tracker.Save(); saveErr != nil {
				r.logger.Errorf("failed to save progress: %v", saveErr)
			}
		}
		switch {
		case err != nil && IsFatal(ctx, err):
			report.Failed = append(report.Failed, meta.Key)
			return report, err
		case err != nil:
			r.logger.Errorf("lesson %s failed: %v", meta.Key, err)
			report.Failed = append(report.Failed, meta.Key)
		case res.Extraction.Status == types.StatusComplete:
			report.Completed++
		default:
			report.Partial++
		}

		if i < len(pending)-1 {
			if _, err := r.nav.GoToLevel(ctx, level); err != nil {
				if ctx.Err() != nil {
					return report, ctx.Err()
				}
				r.logger.Warnf("failed to return to the timeline: %v", err)
			}
		}
	}
	return report, nil
}
