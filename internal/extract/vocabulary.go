// Package extract turns classified lesson screens into structured content.
//
// Extractors are pure goquery functions parameterized by a platform
// Vocabulary. They never mutate the document and return nil when the
// expected root container is absent.
package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Vocabulary is the DOM vocabulary of one lesson platform: the selectors and
// hint attribute names extractors and solvers are written against.
type Vocabulary struct {
	// Roots maps a screen type id to its root container selector.
	// Types without an entry use ExerciseRoot.
	Roots        map[string]string `yaml:"roots" json:"roots"`
	ExerciseRoot string            `yaml:"exercise_root" json:"exercise_root"`
	Prompt       string            `yaml:"prompt" json:"prompt"`

	// Choice exercises
	Option       string `yaml:"option" json:"option"`
	CorrectAttr  string `yaml:"correct_attr" json:"correct_attr"`
	CorrectValue string `yaml:"correct_value" json:"correct_value"`

	// Free text. AnswerAttr is read from the input first, then the root.
	Input      string `yaml:"input" json:"input"`
	AnswerAttr string `yaml:"answer_attr" json:"answer_attr"`

	// Tokens and gaps. OrderAttr holds the zero-based target position.
	Token     string `yaml:"token" json:"token"`
	Gap       string `yaml:"gap" json:"gap"`
	OrderAttr string `yaml:"order_attr" json:"order_attr"`

	// Matching pairs share the same PairAttr value
	PairLeft  string `yaml:"pair_left" json:"pair_left"`
	PairRight string `yaml:"pair_right" json:"pair_right"`
	PairAttr  string `yaml:"pair_attr" json:"pair_attr"`

	// Consumed matches controls that were already used by an answer
	Consumed string `yaml:"consumed" json:"consumed"`

	// True/false. TruthAttr on the root holds "true" or "false".
	TrueButton  string `yaml:"true_button" json:"true_button"`
	FalseButton string `yaml:"false_button" json:"false_button"`
	TruthAttr   string `yaml:"truth_attr" json:"truth_attr"`

	// Vocabulary card
	Word          string `yaml:"word" json:"word"`
	Translation   string `yaml:"translation" json:"translation"`
	Example       string `yaml:"example" json:"example"`
	Pronunciation string `yaml:"pronunciation" json:"pronunciation"`

	// Video and grammar tips
	Transcript string `yaml:"transcript" json:"transcript"`
	TipTitle   string `yaml:"tip_title" json:"tip_title"`
	TipBody    string `yaml:"tip_body" json:"tip_body"`
	TipTable   string `yaml:"tip_table" json:"tip_table"`

	// Feedback overlay
	FeedbackRoot  string `yaml:"feedback_root" json:"feedback_root"`
	FeedbackTip   string `yaml:"feedback_tip" json:"feedback_tip"`
	FeedbackTitle string `yaml:"feedback_title" json:"feedback_title"`

	Media string `yaml:"media" json:"media"`
}

// Root returns the root selector for a screen type
func (v *Vocabulary) Root(typeID string) string {
	if sel, ok := v.Roots[typeID]; ok && sel != "" {
		return sel
	}
	return v.ExerciseRoot
}

// IsCorrect reports whether an option carries the correct-answer hint
func (v *Vocabulary) IsCorrect(s *goquery.Selection) bool {
	if v.CorrectAttr == "" {
		return false
	}
	val, ok := s.Attr(v.CorrectAttr)
	if !ok {
		return false
	}
	want := v.CorrectValue
	if want == "" {
		want = "true"
	}
	return strings.EqualFold(strings.TrimSpace(val), want)
}

// IsConsumed reports whether a control was already used
func (v *Vocabulary) IsConsumed(s *goquery.Selection) bool {
	if _, disabled := s.Attr("disabled"); disabled {
		return true
	}
	if aria, _ := s.Attr("aria-disabled"); aria == "true" {
		return true
	}
	return v.Consumed != "" && s.Is(v.Consumed)
}

// Answer returns the hinted answer string for a root, looking at the input first
func (v *Vocabulary) Answer(root *goquery.Selection) (string, bool) {
	if v.AnswerAttr == "" {
		return "", false
	}
	if v.Input != "" {
		if val, ok := root.Find(v.Input).First().Attr(v.AnswerAttr); ok && val != "" {
			return val, true
		}
	}
	if val, ok := root.Attr(v.AnswerAttr); ok && val != "" {
		return val, true
	}
	return "", false
}

// Order returns the hinted zero-based position of a token or gap answer
func (v *Vocabulary) Order(s *goquery.Selection) (int, bool) {
	if v.OrderAttr == "" {
		return 0, false
	}
	raw, ok := s.Attr(v.OrderAttr)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return n, true
}
