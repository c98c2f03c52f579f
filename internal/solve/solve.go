// Package solve performs the minimal interaction that lets a lesson screen
// advance. Correctness comes only from hint attributes in the DOM, and every
// interaction goes through browser.Page so it is dispatched as trusted input.
package solve

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/LessonFlow/internal/browser"
	"github.com/valpere/LessonFlow/internal/extract"
	"github.com/valpere/LessonFlow/internal/utils"
	"github.com/valpere/LessonFlow/pkg/types"
)

// DefaultMaxAttempts bounds the re-query loops of sequential solvers
const DefaultMaxAttempts = 10

// Methods reported in SolveResult.Method
const (
	MethodPassive       = "passive"
	MethodLessonEnd     = "lesson_complete"
	MethodClickCorrect  = "click_correct"
	MethodClickAll      = "click_all_correct"
	MethodType          = "type_answer"
	MethodTiles         = "click_tiles_in_order"
	MethodPairs         = "click_pairs"
	MethodTrueFalse     = "pick_side"
	MethodNoHint        = "no_hint"
	MethodNotConverged  = "not_converged"
	MethodNoSolver      = "no_solver"
	MethodInteractError = "interaction_error"
)

// Env is everything a solver may touch
type Env struct {
	Page   browser.Page
	Doc    *goquery.Document
	Vocab  *extract.Vocabulary
	TypeID string
	// Reload returns a fresh document after the page changed
	Reload      func(ctx context.Context) (*goquery.Document, error)
	MaxAttempts int
	Logger      utils.Logger
}

func (e *Env) maxAttempts() int {
	if e.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return e.MaxAttempts
}

func (e *Env) reload(ctx context.Context) (*goquery.Document, error) {
	if e.Reload == nil {
		return e.Doc, nil
	}
	doc, err := e.Reload(ctx)
	if err != nil {
		return nil, err
	}
	e.Doc = doc
	return doc, nil
}

func (e *Env) logf(format string, args ...interface{}) {
	if e.Logger != nil {
		e.Logger.Debugf(format, args...)
	}
}

// Solver performs the interaction for one screen type
type Solver func(ctx context.Context, env *Env) (types.SolveResult, error)

// Registry maps screen type ids to solvers
type Registry map[string]Solver

// DefaultRegistry returns the built-in solvers
func DefaultRegistry() Registry {
	return Registry{
		extract.TypeVocab:       Passive,
		extract.TypeGrammarTip:  Passive,
		extract.TypeVideo:       Passive,
		extract.TypeDialogue:    Passive,
		extract.TypeMCQ:         SingleChoice,
		extract.TypeMultiSelect: MultiChoice,
		extract.TypeTrueFalse:   TrueFalse,
		extract.TypeTyping:      Typing,
		extract.TypeSpelling:    Spelling,
		extract.TypeFillGap:     Tiles,
		extract.TypeOrdering:    Tiles,
		extract.TypeMatching:    Matching,
		extract.TypeSpeech:      LessonComplete,
	}
}

// Solve runs the solver registered for typeID
func (r Registry) Solve(ctx context.Context, typeID string, env *Env) (types.SolveResult, error) {
	s, ok := r[typeID]
	if !ok {
		return types.SolveResult{Method: MethodNoSolver}, nil
	}
	env.TypeID = typeID
	return s(ctx, env)
}

func rootOf(env *Env) *goquery.Selection {
	sel := env.Vocab.Root(env.TypeID)
	if sel == "" {
		return env.Doc.Selection
	}
	r := env.Doc.Find(sel).First()
	if r.Length() == 0 {
		return env.Doc.Selection
	}
	return r
}

func interactionError(err error) (types.SolveResult, error) {
	return types.SolveResult{Method: MethodInteractError}, fmt.Errorf("solver interaction failed: %w", err)
}

// Passive screens need no interaction
func Passive(ctx context.Context, env *Env) (types.SolveResult, error) {
	return types.SolveResult{Solved: true, Method: MethodPassive}, nil
}

// LessonComplete is used for conversational and speech-only screens that
// cannot be automated; it ends the lesson run
func LessonComplete(ctx context.Context, env *Env) (types.SolveResult, error) {
	return types.SolveResult{Solved: true, Method: MethodLessonEnd, EndsLesson: true}, nil
}

// SingleChoice clicks the one option flagged correct
func SingleChoice(ctx context.Context, env *Env) (types.SolveResult, error) {
	idx := -1
	env.Doc.Find(env.Vocab.Option).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if env.Vocab.IsCorrect(s) {
			idx = i
			return false
		}
		return true
	})
	if idx < 0 {
		return types.SolveResult{Method: MethodNoHint}, nil
	}
	env.logf("clicking correct option %d", idx)
	if err := env.Page.Click(ctx, browser.At(env.Vocab.Option, idx)); err != nil {
		return interactionError(err)
	}
	return types.SolveResult{Solved: true, Method: MethodClickCorrect}, nil
}

// MultiChoice clicks every option flagged correct
func MultiChoice(ctx context.Context, env *Env) (types.SolveResult, error) {
	var targets []int
	env.Doc.Find(env.Vocab.Option).Each(func(i int, s *goquery.Selection) {
		if env.Vocab.IsCorrect(s) && !env.Vocab.IsConsumed(s) {
			targets = append(targets, i)
		}
	})
	if len(targets) == 0 {
		return types.SolveResult{Method: MethodNoHint}, nil
	}
	for _, i := range targets {
		if err := env.Page.Click(ctx, browser.At(env.Vocab.Option, i)); err != nil {
			return interactionError(err)
		}
	}
	return types.SolveResult{Solved: true, Method: MethodClickAll}, nil
}

// TrueFalse picks the hinted side
func TrueFalse(ctx context.Context, env *Env) (types.SolveResult, error) {
	v := env.Vocab
	r := rootOf(env)
	raw, ok := r.Attr(v.TruthAttr)
	if !ok || v.TruthAttr == "" {
		// Some screens flag the correct side like a choice option instead
		return SingleChoice(ctx, env)
	}
	sel := v.FalseButton
	if utils.EqualFold(raw, "true") {
		sel = v.TrueButton
	}
	if err := env.Page.Click(ctx, browser.At(sel, 0)); err != nil {
		return interactionError(err)
	}
	return types.SolveResult{Solved: true, Method: MethodTrueFalse}, nil
}

// Typing types the hinted answer into the input
func Typing(ctx context.Context, env *Env) (types.SolveResult, error) {
	answer, ok := env.Vocab.Answer(rootOf(env))
	if !ok || env.Vocab.Input == "" || env.Doc.Find(env.Vocab.Input).Length() == 0 {
		return types.SolveResult{Method: MethodNoHint}, nil
	}
	if err := env.Page.Type(ctx, browser.At(env.Vocab.Input, 0), answer); err != nil {
		return interactionError(err)
	}
	return types.SolveResult{Solved: true, Method: MethodType}, nil
}

// Spelling clicks letter tiles in order, or types the answer when the
// screen has a text input instead of tiles
func Spelling(ctx context.Context, env *Env) (types.SolveResult, error) {
	if env.Vocab.Token != "" && env.Doc.Find(env.Vocab.Token).Length() > 0 {
		return Tiles(ctx, env)
	}
	return Typing(ctx, env)
}
