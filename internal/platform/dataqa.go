// internal/platform/dataqa.go
package platform

import (
	"github.com/valpere/LessonFlow/internal/detect"
	"github.com/valpere/LessonFlow/internal/extract"
	"github.com/valpere/LessonFlow/internal/solve"
)

// DataQA is the platform whose markup is annotated with data-qa-* attributes.
// Exercise containers carry data-qa-ex and correct options data-qa-pass.
func DataQA() *Platform {
	types := []detect.ScreenType{
		{ID: extract.TypeLessonEnd, Name: "Lesson complete", IsEnd: true,
			Rule: detect.Rule{Any: []string{"[data-qa-lesson-complete]"}}},
		{ID: extract.TypeConversation, Name: "Conversation", PassThrough: true, EndsLesson: true,
			Rule: detect.Rule{Any: []string{`[data-qa-ex="ex-conversation"]`}}},
		{ID: extract.TypeCommunity, Name: "Community", PassThrough: true, EndsLesson: true,
			Rule: detect.Rule{Any: []string{"[data-qa-community]"}}},
		{ID: "intro", Name: "Lesson intro", PassThrough: true,
			Rule: detect.Rule{Any: []string{"[data-qa-intro]"}}},

		extractable(extract.TypeVocab, "Vocabulary card", `[data-qa-ex="ex-flashcard"]`),
		extractable(extract.TypeMCQ, "Multiple choice", `[data-qa-ex="ex-mcq"]`),
		extractable(extract.TypeMultiSelect, "Multi-select", `[data-qa-ex="ex-mcq-multi"]`),
		extractable(extract.TypeFillGap, "Fill the gap", `[data-qa-ex="ex-fillgap"]`),
		extractable(extract.TypeMatching, "Matching pairs", `[data-qa-ex="ex-match"]`),
		extractable(extract.TypeTrueFalse, "True or false", `[data-qa-ex="ex-truefalse"]`),
		extractable(extract.TypeTyping, "Typing", `[data-qa-ex="ex-typing"]`),
		extractable(extract.TypeSpelling, "Spelling", `[data-qa-ex="ex-spelling"]`),
		extractable(extract.TypeOrdering, "Ordering", `[data-qa-ex="ex-order"]`),
		extractable(extract.TypeVideo, "Video", `[data-qa-ex="ex-video"]`),
		extractable(extract.TypeGrammarTip, "Grammar tip", `[data-qa-ex="ex-tip"]`),
		extractable(extract.TypeDialogue, "Dialogue", `[data-qa-ex="ex-dialogue"]`),
		extractable(extract.TypeSpeech, "Speaking", `[data-qa-ex="ex-speech"]`),

		{ID: extract.TypeFeedback, Name: "Feedback", IsOverlay: true,
			Rule: detect.Rule{Any: []string{"[data-qa-feedback]"}}},
	}

	return &Platform{
		Name:          "dataqa",
		BaseURL:       "https://app.dataqa.example",
		DashboardPath: "/dashboard",
		LevelPath:     "/timeline/%s",
		LoginPattern:  `/(login|signin)(/|\?|$)`,
		Vocabulary: extract.Vocabulary{
			Roots:         rootsFor(types),
			ExerciseRoot:  "[data-qa-ex]",
			Prompt:        "[data-qa-prompt]",
			Option:        "[data-qa-choice]",
			CorrectAttr:   "data-qa-pass",
			CorrectValue:  "true",
			Input:         "[data-qa-input]",
			AnswerAttr:    "data-qa-answer",
			Token:         "[data-qa-token]",
			Gap:           "[data-qa-gap]",
			OrderAttr:     "data-qa-order",
			PairLeft:      "[data-qa-match-left]",
			PairRight:     "[data-qa-match-right]",
			PairAttr:      "data-qa-pair",
			Consumed:      ".is-used, .is-matched",
			TrueButton:    "[data-qa-true]",
			FalseButton:   "[data-qa-false]",
			TruthAttr:     "data-qa-answer",
			Word:          "[data-qa-word]",
			Translation:   "[data-qa-translation]",
			Example:       "[data-qa-example]",
			Pronunciation: "[data-qa-phonetic]",
			Transcript:    "[data-qa-transcript]",
			TipTitle:      "[data-qa-tip-title]",
			TipBody:       "[data-qa-tip-body]",
			TipTable:      "table",
			FeedbackRoot:  "[data-qa-feedback]",
			FeedbackTip:   "[data-qa-feedback-tip]",
			FeedbackTitle: "[data-qa-feedback-title]",
		},
		Detector: detect.Config{
			ActiveControl: "[data-qa-choice]:not([disabled]), [data-qa-input]:not([disabled]), " +
				"[data-qa-token]:not([disabled]), [data-qa-match-left]:not([disabled]), [data-qa-true]:not([disabled])",
			FeedbackSelector:      "[data-qa-feedback]",
			InterstitialSelectors: []string{"[data-qa-streak]", "[data-qa-reward]"},
			ListingURL:            `/(dashboard|timeline)(/[^/?#]*)?/?([?#].*)?$`,
			LessonURL:             `/lesson/`,
		},
		ScreenTypes:        types,
		Extractors:         extract.DefaultRegistry(),
		Solvers:            solve.DefaultRegistry(),
		ContinueSelectors:  []string{"[data-qa-next]", "[data-qa-continue]"},
		ContinueClasses:    []string{".btn-continue", ".btn-check", ".cta-next"},
		LessonLinkSelector: "a[data-qa-lesson-link]",
	}
}
