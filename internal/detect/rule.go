// internal/detect/rule.go
package detect

import (
	"fmt"
	"regexp"

	"github.com/valpere/LessonFlow/internal/utils"
)

// Rule is a declarative screen predicate. Every non-empty clause must hold.
type Rule struct {
	// Any matches when at least one selector is present
	Any []string `yaml:"any,omitempty" json:"any,omitempty"`
	// All matches when every selector is present
	All []string `yaml:"all,omitempty" json:"all,omitempty"`
	// None matches when no selector is present
	None []string `yaml:"none,omitempty" json:"none,omitempty"`
	// TextAny matches when the visible text contains one of the phrases
	TextAny []string `yaml:"text_any,omitempty" json:"text_any,omitempty"`
	// URLMatch is a regular expression applied to the page URL
	URLMatch string `yaml:"url_match,omitempty" json:"url_match,omitempty"`

	urlRE *regexp.Regexp
}

// Compile prepares the URL expression
func (r *Rule) Compile() error {
	if r.URLMatch == "" {
		r.urlRE = nil
		return nil
	}
	re, err := regexp.Compile(r.URLMatch)
	if err != nil {
		return fmt.Errorf("invalid url_match %q: %w", r.URLMatch, err)
	}
	r.urlRE = re
	return nil
}

// IsEmpty reports whether the rule has no clauses
func (r *Rule) IsEmpty() bool {
	return len(r.Any) == 0 && len(r.All) == 0 && len(r.None) == 0 &&
		len(r.TextAny) == 0 && r.URLMatch == ""
}

// Match evaluates the rule against a snapshot. An empty rule never matches.
func (r *Rule) Match(s *Snapshot) bool {
	if s == nil || s.Doc == nil || r.IsEmpty() {
		return false
	}

	if r.URLMatch != "" {
		if r.urlRE == nil {
			if err := r.Compile(); err != nil {
				return false
			}
		}
		if !r.urlRE.MatchString(s.URL) {
			return false
		}
	}

	for _, sel := range r.All {
		if s.Doc.Find(sel).Length() == 0 {
			return false
		}
	}

	if len(r.Any) > 0 {
		found := false
		for _, sel := range r.Any {
			if s.Doc.Find(sel).Length() > 0 {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for _, sel := range r.None {
		if s.Doc.Find(sel).Length() > 0 {
			return false
		}
	}

	if len(r.TextAny) > 0 && !utils.ContainsAnyPhrase(s.Text, r.TextAny) {
		return false
	}

	return true
}
