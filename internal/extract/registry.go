// internal/extract/registry.go
package extract

import "github.com/PuerkitoBio/goquery"

// Registry maps screen type ids to extractors
type Registry map[string]Func

// DefaultRegistry returns the built-in extractors
func DefaultRegistry() Registry {
	return Registry{
		TypeVocab:       VocabCardFunc,
		TypeMCQ:         MultipleChoiceFunc,
		TypeMultiSelect: MultiSelectFunc,
		TypeFillGap:     FillGapFunc,
		TypeMatching:    MatchingFunc,
		TypeTrueFalse:   TrueFalseFunc,
		TypeTyping:      TypingFunc,
		TypeSpelling:    SpellingFunc,
		TypeOrdering:    OrderingFunc,
		TypeVideo:       VideoFunc,
		TypeGrammarTip:  GrammarTipFunc,
		TypeFeedback:    FeedbackFunc,
	}
}

// Has reports whether a specific extractor is registered
func (r Registry) Has(typeID string) bool {
	_, ok := r[typeID]
	return ok
}

// Extract runs the extractor for typeID, or the generic fallback when none is
// registered. The boolean is false when the extractor found no root.
func (r Registry) Extract(typeID string, doc *goquery.Document, v *Vocabulary) (interface{}, bool) {
	fn, ok := r[typeID]
	if !ok {
		fn = GenericFunc
	}
	content := fn(doc, v)
	return content, content != nil
}
