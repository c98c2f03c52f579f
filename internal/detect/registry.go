// internal/detect/registry.go
package detect

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/valpere/LessonFlow/internal/utils"
)

// ScreenType describes one classifiable lesson screen
type ScreenType struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Rule        Rule   `yaml:"rule" json:"rule"`
	Extract     bool   `yaml:"extract" json:"extract"`
	PassThrough bool   `yaml:"pass_through" json:"pass_through"`
	IsEnd       bool   `yaml:"is_end" json:"is_end"`
	IsOverlay   bool   `yaml:"is_overlay" json:"is_overlay"`
	// EndsLesson marks pass-through screens that finish the lesson run
	EndsLesson bool `yaml:"ends_lesson" json:"ends_lesson"`
}

// Validate checks that the type is usable
func (t *ScreenType) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("screen type id is required")
	}
	if t.Rule.IsEmpty() {
		return fmt.Errorf("screen type %s: rule has no clauses", t.ID)
	}
	if t.Extract && t.PassThrough {
		return fmt.Errorf("screen type %s: extract and pass_through are exclusive", t.ID)
	}
	return t.Rule.Compile()
}

// Default phrase sets. Phrases are compared after text normalization.
var (
	DefaultInterstitialPhrases = []string{
		"day streak",
		"streak extended",
		"xp earned",
		"you earned",
		"daily challenge",
		"challenge unlocked",
		"reward unlocked",
		"claim your reward",
		"keep it up",
	}
	DefaultCompletionPhrases = []string{
		"lesson complete",
		"lesson completed",
		"you completed the lesson",
		"you finished the lesson",
	}
)

// Config holds the platform-specific selectors and URL shapes the
// special questions are answered from
type Config struct {
	// ActiveControl matches interactive exercise controls. Overlay types and
	// interstitial phrases are only considered when it matches nothing.
	ActiveControl         string   `yaml:"active_control" json:"active_control"`
	FeedbackSelector      string   `yaml:"feedback_selector" json:"feedback_selector"`
	InterstitialSelectors []string `yaml:"interstitial_selectors" json:"interstitial_selectors"`
	InterstitialPhrases   []string `yaml:"interstitial_phrases" json:"interstitial_phrases"`
	CompletionPhrases     []string `yaml:"completion_phrases" json:"completion_phrases"`
	// ListingURL matches top-level listing routes (dashboard, course timeline)
	ListingURL string `yaml:"listing_url" json:"listing_url"`
	// LessonURL matches routes that belong to a running lesson
	LessonURL string `yaml:"lesson_url" json:"lesson_url"`
}

// Registry is the ordered screen type table. The first matching type wins.
type Registry struct {
	types     []ScreenType
	config    Config
	listingRE *regexp.Regexp
	lessonRE  *regexp.Regexp
}

// NewRegistry validates and compiles the table
func NewRegistry(config Config, types []ScreenType) (*Registry, error) {
	r := &Registry{config: config}
	if len(r.config.InterstitialPhrases) == 0 {
		r.config.InterstitialPhrases = DefaultInterstitialPhrases
	}
	if len(r.config.CompletionPhrases) == 0 {
		r.config.CompletionPhrases = DefaultCompletionPhrases
	}

	var err error
	if config.ListingURL != "" {
		if r.listingRE, err = regexp.Compile(config.ListingURL); err != nil {
			return nil, fmt.Errorf("invalid listing_url: %w", err)
		}
	}
	if config.LessonURL != "" {
		if r.lessonRE, err = regexp.Compile(config.LessonURL); err != nil {
			return nil, fmt.Errorf("invalid lesson_url: %w", err)
		}
	}

	seen := make(map[string]bool, len(types))
	r.types = make([]ScreenType, 0, len(types))
	for _, t := range types {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("duplicate screen type id: %s", t.ID)
		}
		seen[t.ID] = true
		r.types = append(r.types, t)
	}
	return r, nil
}

// WithOverrides returns a new registry where overrides replace types with the
// same id in place and new types are evaluated before the built-in ones
func (r *Registry) WithOverrides(overrides []ScreenType) (*Registry, error) {
	if len(overrides) == 0 {
		return r, nil
	}
	index := make(map[string]int, len(r.types))
	for i, t := range r.types {
		index[t.ID] = i
	}

	merged := make([]ScreenType, len(r.types))
	copy(merged, r.types)
	var prepend []ScreenType
	for _, o := range overrides {
		if i, ok := index[o.ID]; ok {
			merged[i] = o
			continue
		}
		prepend = append(prepend, o)
	}
	return NewRegistry(r.config, append(prepend, merged...))
}

// Types returns a copy of the ordered table
func (r *Registry) Types() []ScreenType {
	out := make([]ScreenType, len(r.types))
	copy(out, r.types)
	return out
}

// Get returns the type with the given id
func (r *Registry) Get(id string) (ScreenType, bool) {
	for _, t := range r.types {
		if t.ID == id {
			return t, true
		}
	}
	return ScreenType{}, false
}

// Config returns the detector configuration
func (r *Registry) Config() Config {
	return r.config
}

func (r *Registry) hasActiveControl(s *Snapshot) bool {
	return r.config.ActiveControl != "" && s.Doc.Find(r.config.ActiveControl).Length() > 0
}

// Detect classifies the snapshot. It is a pure function of the snapshot and
// the table order.
func (r *Registry) Detect(s *Snapshot) (ScreenType, bool) {
	if s == nil || s.Doc == nil {
		return ScreenType{}, false
	}
	active := r.hasActiveControl(s)
	for i := range r.types {
		t := &r.types[i]
		if t.IsOverlay && active {
			continue
		}
		if t.Rule.Match(s) {
			return *t, true
		}
	}
	return ScreenType{}, false
}

// IsInterstitial reports reward, streak and challenge banners
func (r *Registry) IsInterstitial(s *Snapshot) bool {
	if s == nil || s.Doc == nil {
		return false
	}
	for _, sel := range r.config.InterstitialSelectors {
		if s.Doc.Find(sel).Length() > 0 {
			return true
		}
	}
	if r.hasActiveControl(s) {
		return false
	}
	return utils.ContainsAnyPhrase(s.Text, r.config.InterstitialPhrases)
}

// IsLessonEnded reports a return to a listing route or a completion message
func (r *Registry) IsLessonEnded(s *Snapshot) bool {
	if s == nil {
		return false
	}
	if r.isListing(s.URL) {
		return true
	}
	return utils.ContainsAnyPhrase(s.Text, r.config.CompletionPhrases)
}

// IsUnexpectedRoute reports a URL that is neither a lesson nor a listing route
func (r *Registry) IsUnexpectedRoute(s *Snapshot) bool {
	if s == nil || s.URL == "" || r.lessonRE == nil {
		return false
	}
	return !r.lessonRE.MatchString(s.URL) && !r.isListing(s.URL)
}

func (r *Registry) isListing(url string) bool {
	return r.listingRE != nil && url != "" && r.listingRE.MatchString(url)
}

// FeedbackVisible reports whether a feedback overlay is shown
func (r *Registry) FeedbackVisible(s *Snapshot) bool {
	if s == nil || s.Doc == nil || r.config.FeedbackSelector == "" {
		return false
	}
	return s.Doc.Find(r.config.FeedbackSelector).Length() > 0
}

// WaitForScreen polls the source until a screen type matches or the lesson
// ended. On expiry it returns the last snapshot with ErrDetectionTimeout.
func (r *Registry) WaitForScreen(ctx context.Context, src Source, timeout, poll time.Duration) (ScreenType, *Snapshot, error) {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	deadline := time.Now().Add(timeout)
	var last *Snapshot
	for {
		snap, err := src.Snapshot(ctx)
		if err != nil {
			return ScreenType{}, last, err
		}
		last = snap
		if t, ok := r.Detect(snap); ok {
			return t, snap, nil
		}
		if r.IsLessonEnded(snap) || r.IsInterstitial(snap) {
			return ScreenType{}, snap, nil
		}
		if !time.Now().Before(deadline) {
			return ScreenType{}, last, utils.NewError(utils.ErrCodeDetectionTimeout, "no screen type matched").
				WithSeverity(utils.SeverityWarning).
				WithRetryable(true).
				WithContext("url", snap.URL).
				WithContext("timeout", timeout.String()).
				Build()
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ScreenType{}, last, ctx.Err()
		case <-timer.C:
		}
	}
}
