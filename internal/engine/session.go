// internal/engine/session.go

// Package engine runs the lesson state machine. A Session drives one lesson
// on one page; a Runner walks a level's lessons one at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/LessonFlow/internal/checkpoint"
	"github.com/valpere/LessonFlow/internal/config"
	"github.com/valpere/LessonFlow/internal/detect"
	"github.com/valpere/LessonFlow/internal/extract"
	"github.com/valpere/LessonFlow/internal/monitoring"
	"github.com/valpere/LessonFlow/internal/navigator"
	"github.com/valpere/LessonFlow/internal/solve"
	"github.com/valpere/LessonFlow/internal/utils"
	"github.com/valpere/LessonFlow/internal/validator"
	"github.com/valpere/LessonFlow/pkg/types"
)

// State is a position in the lesson state machine
type State string

const (
	StateAwaitingScreen   State = "awaiting_screen"
	StateClassified       State = "classified"
	StateInterstitial     State = "interstitial"
	StateLessonEnd        State = "lesson_end"
	StatePassThrough      State = "pass_through"
	StateExtractable      State = "extractable"
	StateExtracted        State = "extracted"
	StateSolved           State = "solved"
	StateAwaitingFeedback State = "awaiting_feedback"
	StateFeedbackRecorded State = "feedback_recorded"
	StateNoFeedback       State = "no_feedback"
	StateCompleted        State = "completed"
	StateAborted          State = "aborted"
)

// Terminal reports whether the state ends the run
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// Options configures a Session
type Options struct {
	Timeouts config.TimeoutConfig
	Limits   *config.LiveLimits

	// Supervised hands unsolved screens to the validator
	Supervised bool
	// Review sends every recorded screen to the validator
	Review bool

	Validator validator.Validator
	Metrics   *monitoring.Metrics
	Tracker   *monitoring.RunTracker
	Logger    utils.Logger
}

// Result is the outcome of one lesson run
type Result struct {
	Extraction *types.LessonExtraction
	// File is the final output file; empty when the run failed fatally
	File       string
	Iterations int
	Duration   time.Duration
}

// Session runs one lesson. Every per-run counter lives here so repeated or
// parallel sessions stay isolated.
type Session struct {
	nav      *navigator.Navigator
	registry *detect.Registry
	saver    *checkpoint.AutoSaver
	meta     types.LessonMeta
	opts     Options
	logger   utils.Logger

	le    *types.LessonExtraction
	state State

	iterations      int
	stuckCount      int
	errorCount      int
	lastContent     string
	lastFeedbackTip string
	lastFingerprint string
	lastExtractable int
	// feedbackFor is the record index the last feedback was linked to
	feedbackFor int
}

// NewSession prepares a run of meta. The page must already show the lesson.
func NewSession(nav *navigator.Navigator, registry *detect.Registry, saver *checkpoint.AutoSaver, meta types.LessonMeta, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = utils.NewNopLogger()
	}
	if opts.Validator == nil {
		opts.Validator = validator.Auto{}
	}
	if opts.Limits == nil {
		opts.Limits = config.NewLiveLimits(config.DefaultLimits())
	}
	return &Session{
		nav:             nav,
		registry:        registry,
		saver:           saver,
		meta:            meta,
		opts:            opts,
		logger:          opts.Logger.WithFields(map[string]interface{}{"component": "session", "lesson": meta.Key}),
		le:              types.NewLessonExtraction(meta),
		state:           StateAwaitingScreen,
		lastExtractable: -1,
		feedbackFor:     -1,
	}
}

// State returns the current state
func (s *Session) State() State {
	return s.state
}

// Extraction returns the extraction built so far
func (s *Session) Extraction() *types.LessonExtraction {
	return s.le
}

func (s *Session) platformName() string {
	return s.nav.Platform().Name
}

func (s *Session) setState(st State) {
	if s.state != st {
		s.logger.Debugf("%s -> %s", s.state, st)
	}
	s.state = st
	s.opts.Tracker.UpdateLesson(string(st), len(s.le.Screens))
}

// Run drives the lesson to Completed or Aborted and writes the final file.
// Only fatal errors are returned; the partial checkpoint stays on disk then.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	if _, err := s.saver.Init(s.meta); err != nil {
		return nil, err
	}
	s.opts.Metrics.RecordLessonStart()
	s.opts.Tracker.StartLesson(s.meta.Key, s.meta.URL)
	s.logger.Infof("starting lesson %s (session %s)", s.meta.URL, s.saver.SessionID())

	runErr := s.loop(ctx)

	res := &Result{Extraction: s.le, Iterations: s.iterations, Duration: time.Since(start)}
	status := string(s.le.Status)
	reason := string(s.le.AbortReason)
	if runErr != nil {
		reason = string(types.AbortFatal)
		s.opts.Metrics.RecordLessonEnd(s.platformName(), status, reason, res.Duration)
		s.opts.Tracker.FinishLesson(status, reason)
		s.logger.Errorf("lesson stopped after %d screens, partial kept at %s: %v",
			len(s.le.Screens), s.saver.PartialPath(), runErr)
		return res, runErr
	}

	file, err := s.saver.Finalize(s.le)
	s.opts.Metrics.RecordLessonEnd(s.platformName(), status, reason, res.Duration)
	s.opts.Tracker.FinishLesson(status, reason)
	if err != nil {
		return res, err
	}
	res.File = file
	s.logger.Infof("lesson %s: %s with %d screens in %s",
		s.meta.Key, describe(s.le), len(s.le.Screens), utils.FormatDuration(res.Duration))
	return res, nil
}

func describe(le *types.LessonExtraction) string {
	if le.AbortReason != types.AbortNone {
		return fmt.Sprintf("%s (%s)", le.Status, le.AbortReason)
	}
	return string(le.Status)
}

func (s *Session) loop(ctx context.Context) error {
	for !s.state.Terminal() {
		if err := ctx.Err(); err != nil {
			return err
		}
		limits := s.opts.Limits.Get()
		if s.iterations >= limits.MaxScreens {
			s.logger.Warnf("iteration ceiling of %d reached", limits.MaxScreens)
			s.abort(types.AbortCeiling)
			break
		}
		s.iterations++
		s.setState(StateAwaitingScreen)

		err := s.iterate(ctx, limits)
		if err == nil {
			s.errorCount = 0
			continue
		}
		if IsFatal(ctx, err) {
			return err
		}

		s.errorCount++
		s.logger.Warnf("iteration %d failed: %v", s.iterations, err)
		if s.errorCount >= limits.StallBeforeAbort {
			s.logger.Errorf("%d consecutive failed iterations", s.errorCount)
			s.abort(types.AbortFatal)
			break
		}
		if !s.opts.Validator.ConfirmContinue(ctx, err) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.abort(types.AbortDeclined)
		}
	}
	return nil
}

func (s *Session) complete() {
	s.le.Complete()
	s.setState(StateCompleted)
}

func (s *Session) abort(reason types.AbortReason) {
	s.le.Abort(reason)
	s.setState(StateAborted)
}

// iterate performs one pass over the current screen
func (s *Session) iterate(ctx context.Context, limits config.LimitsConfig) error {
	snap, err := s.nav.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}

	t, matched := s.registry.Detect(snap)
	if s.registry.IsLessonEnded(snap) || (matched && t.IsEnd) {
		s.setState(StateLessonEnd)
		s.complete()
		return nil
	}
	if s.registry.IsUnexpectedRoute(snap) {
		s.logger.Errorf("left the lesson for %s", snap.URL)
		s.abort(types.AbortNavigation)
		return nil
	}

	if escalated, err := s.checkStuck(ctx, snap, limits); escalated || err != nil {
		return err
	}

	if s.registry.IsInterstitial(snap) {
		s.setState(StateInterstitial)
		s.opts.Metrics.RecordSkip(s.platformName(), "interstitial")
		return s.clickContinue(ctx, snap)
	}

	if !matched {
		var waitErr error
		t, snap, waitErr = s.registry.WaitForScreen(ctx, s.nav, s.opts.Timeouts.Detection, s.opts.Timeouts.PollInterval)
		switch {
		case utils.CodeOf(waitErr) == utils.ErrCodeDetectionTimeout:
			s.opts.Metrics.RecordDetectionTimeout(s.platformName())
			s.logger.Warnf("no screen type matched at %s, trying continue", snapURL(snap))
			if snap == nil {
				return nil
			}
			return s.clickContinue(ctx, snap)
		case waitErr != nil:
			return waitErr
		case t.ID == "":
			// lesson end or interstitial, handled next iteration
			return nil
		}
	}

	s.setState(StateClassified)
	s.logger.Debugf("screen %q (%s)", t.ID, t.Name)

	switch {
	case t.IsEnd:
		s.setState(StateLessonEnd)
		s.complete()
		return nil
	case t.PassThrough:
		s.setState(StatePassThrough)
		if t.EndsLesson {
			s.logger.Infof("%s screen ends the lesson", t.Name)
			s.complete()
			return nil
		}
		return s.clickContinue(ctx, snap)
	case t.IsOverlay:
		s.recordFeedback(snap)
		return s.clickContinue(ctx, snap)
	case t.Extract:
		return s.handleExtractable(ctx, t, snap, limits)
	default:
		return s.clickContinue(ctx, snap)
	}
}

func snapURL(snap *detect.Snapshot) string {
	if snap == nil {
		return ""
	}
	return snap.URL
}

// checkStuck compares the visible text with the previous iteration and
// escalates while it stays unchanged. It reports whether this iteration was
// spent on recovery.
func (s *Session) checkStuck(ctx context.Context, snap *detect.Snapshot, limits config.LimitsConfig) (bool, error) {
	content := utils.Prefix(snap.Text, limits.TextSnapshotLength)
	if s.iterations == 1 || content != s.lastContent {
		s.lastContent = content
		s.stuckCount = 0
		return false, nil
	}
	s.stuckCount++
	s.logger.Debugf("page unchanged for %d iterations", s.stuckCount)

	switch {
	case s.stuckCount >= limits.StallBeforeAbort:
		s.logger.Warnf("page unchanged for %d iterations, giving up", s.stuckCount)
		s.opts.Metrics.RecordEscalation(s.platformName(), "abort")
		s.abort(types.AbortStuck)
		return true, nil

	case s.stuckCount >= limits.StallBeforeContinue:
		s.opts.Metrics.RecordEscalation(s.platformName(), "continue")
		strategy, err := s.nav.ClickContinueOn(ctx, snap)
		if err != nil {
			return true, err
		}
		if strategy == navigator.StrategyNone {
			if err := s.nav.Page().KeyPress(ctx, "Enter"); err != nil {
				return true, err
			}
		}
		return true, nil

	case s.stuckCount >= limits.StallBeforeEscape:
		s.opts.Metrics.RecordEscalation(s.platformName(), "escape")
		for _, key := range []string{"Escape", "Enter"} {
			if err := s.nav.Page().KeyPress(ctx, key); err != nil {
				return true, err
			}
		}
		return true, nil
	}
	return false, nil
}

func (s *Session) handleExtractable(ctx context.Context, t detect.ScreenType, snap *detect.Snapshot, limits config.LimitsConfig) error {
	s.setState(StateExtractable)
	p := s.nav.Platform()

	var rec *types.ScreenRecord
	fp := snap.Fingerprint()
	switch {
	case fp == s.lastFingerprint:
		s.logger.Debugf("screen %q already recorded", t.ID)
		s.opts.Metrics.RecordSkip(p.Name, "duplicate")
	default:
		content, ok := p.Extractors.Extract(t.ID, snap.Doc, &p.Vocabulary)
		if !ok {
			s.logger.Debugf("no %q content found, not recording", t.ID)
			s.opts.Metrics.RecordSkip(p.Name, "extraction_miss")
			// feedback for this screen must not attach to an older record
			s.lastExtractable = -1
			break
		}
		appended, err := s.le.Append(types.ScreenRecord{TypeID: t.ID, TypeName: t.Name, Content: content})
		if err != nil {
			return err
		}
		rec = &appended
		s.lastFingerprint = fp
		s.lastExtractable = appended.Index
		s.opts.Metrics.RecordScreen(p.Name, t.ID)
		s.setState(StateExtracted)
		s.checkpoint()
		s.review(ctx, appended)
	}

	if err := s.nav.ScrollPage(ctx); err != nil && ctx.Err() == nil {
		s.logger.Debugf("scroll failed: %v", err)
	}

	env := &solve.Env{
		Page:  s.nav.Page(),
		Doc:   snap.Doc,
		Vocab: &p.Vocabulary,
		Reload: func(ctx context.Context) (*goquery.Document, error) {
			fresh, err := s.nav.Snapshot(ctx)
			if err != nil {
				return nil, err
			}
			return fresh.Doc, nil
		},
		MaxAttempts: limits.SolverMaxAttempts,
		Logger:      s.logger,
	}
	result, err := p.Solvers.Solve(ctx, t.ID, env)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warnf("solver for %q failed: %v", t.ID, err)
		result.Solved = false
	}
	s.opts.Metrics.RecordSolve(p.Name, t.ID, result.Method, result.Solved)
	s.logger.Debugf("solve %q: %s", t.ID, result)
	s.setState(StateSolved)

	if result.EndsLesson {
		s.complete()
		return nil
	}

	manual := false
	if !result.Solved && s.opts.Supervised && rec != nil {
		if err := s.opts.Validator.AwaitManualSolve(ctx, *rec); err != nil {
			return err
		}
		manual = true
	}

	// the operator already pressed check
	if !manual {
		fresh, err := s.nav.Snapshot(ctx)
		if err != nil {
			return err
		}
		if err := s.clickContinue(ctx, fresh); err != nil {
			return err
		}
	}
	return s.awaitFeedback(ctx)
}

// awaitFeedback polls for a feedback overlay, records it and dismisses it.
// No overlay within the feedback timeout is a normal outcome.
func (s *Session) awaitFeedback(ctx context.Context) error {
	s.setState(StateAwaitingFeedback)
	deadline := time.Now().Add(s.opts.Timeouts.Feedback)
	for {
		snap, err := s.nav.Snapshot(ctx)
		if err != nil {
			return err
		}
		if s.registry.FeedbackVisible(snap) {
			s.recordFeedback(snap)
			return s.clickContinue(ctx, snap)
		}
		if !time.Now().Before(deadline) {
			s.setState(StateNoFeedback)
			return nil
		}
		if err := s.nav.Sleep(ctx, s.opts.Timeouts.PollInterval); err != nil {
			return err
		}
	}
}

// recordFeedback appends the overlay unless its tip repeats the previous one.
// Feedback is kept only as the first one following a recorded exercise.
func (s *Session) recordFeedback(snap *detect.Snapshot) {
	p := s.nav.Platform()
	switch {
	case s.lastExtractable < 0:
		s.logger.Debugf("discarding feedback without a recorded exercise")
		s.opts.Metrics.RecordSkip(p.Name, "orphan_feedback")
		s.setState(StateNoFeedback)
		return
	case s.feedbackFor == s.lastExtractable:
		s.logger.Debugf("screen %d already has feedback", s.lastExtractable)
		s.opts.Metrics.RecordSkip(p.Name, "extra_feedback")
		s.setState(StateNoFeedback)
		return
	}
	content, ok := p.Extractors.Extract(extract.TypeFeedback, snap.Doc, &p.Vocabulary)
	if !ok {
		s.setState(StateNoFeedback)
		return
	}
	fb, _ := content.(*extract.FeedbackTip)
	tip := ""
	if fb != nil {
		tip = utils.NormalizeText(fb.Tip)
	}
	if tip == "" || tip == s.lastFeedbackTip {
		s.logger.Debugf("discarding repeated feedback %q", tip)
		s.opts.Metrics.RecordSkip(p.Name, "duplicate_feedback")
		s.setState(StateNoFeedback)
		return
	}

	rec := types.ScreenRecord{TypeID: extract.TypeFeedback, TypeName: "Feedback", Content: content}
	if t, ok := s.registry.Get(extract.TypeFeedback); ok && t.Name != "" {
		rec.TypeName = t.Name
	}
	parent := s.lastExtractable
	rec.ParentScreen = &parent
	if _, err := s.le.Append(rec); err != nil {
		s.logger.Warnf("failed to record feedback: %v", err)
		return
	}
	s.lastFeedbackTip = tip
	s.feedbackFor = parent
	s.opts.Metrics.RecordScreen(p.Name, extract.TypeFeedback)
	s.setState(StateFeedbackRecorded)
	s.checkpoint()
}

// checkpoint saves the partial file. A failed save only costs crash safety.
func (s *Session) checkpoint() {
	if err := s.saver.Save(s.le); err != nil {
		s.logger.Errorf("checkpoint failed: %v", err)
	}
}

func (s *Session) review(ctx context.Context, rec types.ScreenRecord) {
	if !s.opts.Review {
		return
	}
	v, err := s.opts.Validator.Review(ctx, rec)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warnf("review of screen %d failed: %v", rec.Index, err)
		}
		return
	}
	if err := s.le.SetValidation(rec.Index, v); err != nil {
		s.logger.Warnf("failed to attach review: %v", err)
		return
	}
	s.checkpoint()
}

// clickContinue advances past snap and waits for the page to leave it, so the
// next snapshot does not catch the screen mid-transition
func (s *Session) clickContinue(ctx context.Context, snap *detect.Snapshot) error {
	strategy, err := s.nav.ClickContinueOn(ctx, snap)
	if err != nil {
		return err
	}
	if strategy == navigator.StrategyNone {
		s.logger.Debugf("no continue control on %s", snap.URL)
		return nil
	}
	s.opts.Metrics.RecordContinue(s.platformName(), string(strategy))
	changed, err := s.nav.WaitForChangeFrom(ctx, snap.Fingerprint(), s.opts.Timeouts.Detection)
	if err != nil {
		return err
	}
	if !changed {
		s.logger.Debugf("screen unchanged after continue via %s", strategy)
	}
	return nil
}

// IsFatal reports errors that end the run: cancellation, a dead browser and
// a lost login
func IsFatal(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return true
	}
	switch utils.CodeOf(err) {
	case utils.ErrCodeBrowserFailed, utils.ErrCodeAuthFailed, utils.ErrCodeContextCanceled:
		return true
	}
	return false
}
