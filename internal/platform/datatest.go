// internal/platform/datatest.go
package platform

import (
	"github.com/valpere/LessonFlow/internal/detect"
	"github.com/valpere/LessonFlow/internal/extract"
	"github.com/valpere/LessonFlow/internal/solve"
)

// DataTest is the platform whose markup uses data-testid containers and
// data-correct / data-position hint attributes.
func DataTest() *Platform {
	types := []detect.ScreenType{
		{ID: extract.TypeLessonEnd, Name: "Lesson complete", IsEnd: true,
			Rule: detect.Rule{Any: []string{`[data-testid="session-complete"]`}}},
		{ID: extract.TypeConversation, Name: "Roleplay", PassThrough: true, EndsLesson: true,
			Rule: detect.Rule{Any: []string{`[data-testid="roleplay"]`}}},
		{ID: extract.TypeCommunity, Name: "Community", PassThrough: true, EndsLesson: true,
			Rule: detect.Rule{Any: []string{`[data-testid="community-prompt"]`}}},
		{ID: "placement", Name: "Placement hint", PassThrough: true,
			Rule: detect.Rule{Any: []string{`[data-testid="placement-hint"]`}}},

		extractable(extract.TypeVocab, "Vocabulary card", `[data-testid="card-vocabulary"]`),
		extractable(extract.TypeMCQ, "Select", `[data-testid="challenge-select"]`),
		extractable(extract.TypeMultiSelect, "Select all", `[data-testid="challenge-select-multi"]`),
		extractable(extract.TypeFillGap, "Gap fill", `[data-testid="challenge-gap-fill"]`),
		extractable(extract.TypeMatching, "Match", `[data-testid="challenge-match"]`),
		extractable(extract.TypeTrueFalse, "True or false", `[data-testid="challenge-true-false"]`),
		extractable(extract.TypeTyping, "Translate", `[data-testid="challenge-translate"]`),
		extractable(extract.TypeSpelling, "Spell", `[data-testid="challenge-spell"]`),
		extractable(extract.TypeOrdering, "Arrange", `[data-testid="challenge-arrange"]`),
		extractable(extract.TypeVideo, "Video", `[data-testid="card-video"]`),
		extractable(extract.TypeGrammarTip, "Tip", `[data-testid="card-tip"]`),
		extractable(extract.TypeDialogue, "Dialogue", `[data-testid="card-dialogue"]`),
		extractable(extract.TypeSpeech, "Speak", `[data-testid="challenge-speak"]`),

		{ID: extract.TypeFeedback, Name: "Feedback", IsOverlay: true,
			Rule: detect.Rule{Any: []string{`[data-testid="blame"]`}}},
	}

	return &Platform{
		Name:          "datatest",
		BaseURL:       "https://www.datatest.example",
		DashboardPath: "/learn",
		LevelPath:     "/learn/%s",
		LoginPattern:  `/(log-in|login|register)(/|\?|$)`,
		Vocabulary: extract.Vocabulary{
			Roots:         rootsFor(types),
			ExerciseRoot:  `[data-testid^="challenge-"], [data-testid^="card-"]`,
			Prompt:        `[data-testid="challenge-header"]`,
			Option:        `[data-testid="challenge-choice"]`,
			CorrectAttr:   "data-correct",
			CorrectValue:  "true",
			Input:         `[data-testid="challenge-text-input"]`,
			AnswerAttr:    "data-answer",
			Token:         `[data-testid="challenge-tap-token"]`,
			Gap:           ".gap",
			OrderAttr:     "data-position",
			PairLeft:      `[data-testid="match-source"]`,
			PairRight:     `[data-testid="match-target"]`,
			PairAttr:      "data-pair",
			Consumed:      `[aria-pressed="true"], .token-placed`,
			TrueButton:    `[data-testid="answer-true"]`,
			FalseButton:   `[data-testid="answer-false"]`,
			TruthAttr:     "data-truth",
			Word:          ".word",
			Translation:   ".translation",
			Example:       ".example",
			Pronunciation: ".phonetic",
			Transcript:    ".transcript",
			TipTitle:      "h2",
			TipBody:       ".tip-body",
			TipTable:      "table",
			FeedbackRoot:  `[data-testid="blame"]`,
			FeedbackTip:   `[data-testid="blame-tip"]`,
			FeedbackTitle: "h2",
		},
		Detector: detect.Config{
			ActiveControl: `[data-testid="challenge-choice"]:not([disabled]), ` +
				`[data-testid="challenge-text-input"]:not([disabled]), ` +
				`[data-testid="challenge-tap-token"]:not([disabled]), ` +
				`[data-testid="match-source"]:not([disabled]), ` +
				`[data-testid="answer-true"]:not([disabled])`,
			FeedbackSelector:      `[data-testid="blame"]`,
			InterstitialSelectors: []string{`[data-testid="streak-banner"]`, `[data-testid="xp-boost"]`},
			ListingURL:            `/learn(/[^/?#]*)?/?([?#].*)?$`,
			LessonURL:             `/lesson(/|$)`,
		},
		ScreenTypes:        types,
		Extractors:         extract.DefaultRegistry(),
		Solvers:            solve.DefaultRegistry(),
		ContinueSelectors:  []string{`[data-testid="player-next"]`},
		ContinueClasses:    []string{"._continue", ".player-next-btn"},
		LessonLinkSelector: `a[data-testid="skill-path-level"]`,
	}
}
