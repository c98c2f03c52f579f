// internal/extract/extractors.go
package extract

import (
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/LessonFlow/internal/utils"
)

// Screen type ids shared by the built-in platforms
const (
	TypeVocab        = "vocab"
	TypeMCQ          = "mcq"
	TypeMultiSelect  = "multi_select"
	TypeFillGap      = "fill_gap"
	TypeMatching     = "matching"
	TypeTrueFalse    = "true_false"
	TypeTyping       = "typing"
	TypeSpelling     = "spelling"
	TypeOrdering     = "ordering"
	TypeVideo        = "video"
	TypeGrammarTip   = "grammar_tip"
	TypeDialogue     = "dialogue"
	TypeSpeech       = "speech"
	TypeConversation = "conversation"
	TypeCommunity    = "community"
	TypeFeedback     = "feedback"
	TypeLessonEnd    = "lesson_end"
)

// gapMarker replaces each gap in a fill-gap sentence
const gapMarker = "___"

// Func extracts content from a document. It returns nil when the root is absent.
type Func func(doc *goquery.Document, v *Vocabulary) interface{}

func root(doc *goquery.Document, v *Vocabulary, typeID string) *goquery.Selection {
	sel := v.Root(typeID)
	if sel == "" || doc == nil {
		return nil
	}
	r := doc.Find(sel).First()
	if r.Length() == 0 {
		return nil
	}
	return r
}

func text(s *goquery.Selection) string {
	return utils.CleanText(s.Text())
}

func findText(r *goquery.Selection, sel string) string {
	if sel == "" {
		return ""
	}
	return text(r.Find(sel).First())
}

func media(r *goquery.Selection, v *Vocabulary) []string {
	sel := v.Media
	if sel == "" {
		sel = "img, audio, video, source"
	}
	var urls []string
	seen := make(map[string]bool)
	r.Find(sel).Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"src", "data-src", "poster"} {
			if u, ok := s.Attr(attr); ok && u != "" && !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	})
	return urls
}

type orderedToken struct {
	pos  int
	text string
}

// orderedTokens returns token texts sorted by their hinted position.
// Tokens without a position are distractors and are left out.
func orderedTokens(r *goquery.Selection, v *Vocabulary) (all []string, solution []string) {
	var ordered []orderedToken
	r.Find(v.Token).Each(func(_ int, s *goquery.Selection) {
		t := text(s)
		all = append(all, t)
		if pos, ok := v.Order(s); ok {
			ordered = append(ordered, orderedToken{pos: pos, text: t})
		}
	})
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].pos < ordered[j].pos })
	for _, o := range ordered {
		solution = append(solution, o.text)
	}
	return all, solution
}

// VocabCardFunc extracts a vocabulary card
func VocabCardFunc(doc *goquery.Document, v *Vocabulary) interface{} {
	r := root(doc, v, TypeVocab)
	if r == nil {
		return nil
	}
	card := &VocabCard{
		Word:          findText(r, v.Word),
		Translation:   findText(r, v.Translation),
		Example:       findText(r, v.Example),
		Pronunciation: findText(r, v.Pronunciation),
		Media:         media(r, v),
	}
	if card.Word == "" {
		return nil
	}
	return card
}

func choices(r *goquery.Selection, v *Vocabulary) []Choice {
	var options []Choice
	r.Find(v.Option).Each(func(_ int, s *goquery.Selection) {
		options = append(options, Choice{Text: text(s), Correct: v.IsCorrect(s)})
	})
	return options
}

// MultipleChoiceFunc extracts a single-answer question
func MultipleChoiceFunc(doc *goquery.Document, v *Vocabulary) interface{} {
	return multipleChoice(doc, v, TypeMCQ, false)
}

// MultiSelectFunc extracts a question with several correct options
func MultiSelectFunc(doc *goquery.Document, v *Vocabulary) interface{} {
	return multipleChoice(doc, v, TypeMultiSelect, true)
}

func multipleChoice(doc *goquery.Document, v *Vocabulary, typeID string, multi bool) interface{} {
	r := root(doc, v, typeID)
	if r == nil {
		return nil
	}
	options := choices(r, v)
	if len(options) == 0 {
		return nil
	}
	return &MultipleChoice{
		Prompt:  findText(r, v.Prompt),
		Options: options,
		Multi:   multi,
		Media:   media(r, v),
	}
}

// FillGapFunc extracts a fill-the-gap sentence
func FillGapFunc(doc *goquery.Document, v *Vocabulary) interface{} {
	r := root(doc, v, TypeFillGap)
	if r == nil {
		return nil
	}
	prompt := r.Find(v.Prompt).First().Clone()
	prompt.Find(v.Gap).ReplaceWithHtml(gapMarker)
	tokens, answers := orderedTokens(r, v)
	return &FillGap{
		Sentence: utils.CleanText(prompt.Text()),
		Answers:  answers,
		Tokens:   tokens,
	}
}

// MatchingFunc extracts matching pairs
func MatchingFunc(doc *goquery.Document, v *Vocabulary) interface{} {
	r := root(doc, v, TypeMatching)
	if r == nil {
		return nil
	}
	rights := make(map[string]string)
	r.Find(v.PairRight).Each(func(_ int, s *goquery.Selection) {
		if id, ok := s.Attr(v.PairAttr); ok {
			rights[id] = text(s)
		}
	})
	m := &Matching{Prompt: findText(r, v.Prompt)}
	r.Find(v.PairLeft).Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr(v.PairAttr)
		m.Pairs = append(m.Pairs, Pair{Left: text(s), Right: rights[id]})
	})
	if len(m.Pairs) == 0 {
		return nil
	}
	return m
}

// TrueFalseFunc extracts a true/false statement
func TrueFalseFunc(doc *goquery.Document, v *Vocabulary) interface{} {
	r := root(doc, v, TypeTrueFalse)
	if r == nil {
		return nil
	}
	tf := &TrueFalse{Statement: findText(r, v.Prompt)}
	if v.TruthAttr != "" {
		if raw, ok := r.Attr(v.TruthAttr); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
				tf.Answer = &b
			}
		}
	}
	return tf
}

// TypingFunc extracts a free-text question
func TypingFunc(doc *goquery.Document, v *Vocabulary) interface{} {
	r := root(doc, v, TypeTyping)
	if r == nil {
		return nil
	}
	answer, _ := v.Answer(r)
	return &Typing{Prompt: findText(r, v.Prompt), Answer: answer}
}

// SpellingFunc extracts a spelling exercise built from tiles or typed
func SpellingFunc(doc *goquery.Document, v *Vocabulary) interface{} {
	r := root(doc, v, TypeSpelling)
	if r == nil {
		return nil
	}
	letters, ordered := orderedTokens(r, v)
	answer, ok := v.Answer(r)
	if !ok {
		answer = strings.Join(ordered, "")
	}
	return &Spelling{Prompt: findText(r, v.Prompt), Answer: answer, Letters: letters}
}

// OrderingFunc extracts a word or sentence ordering exercise
func OrderingFunc(doc *goquery.Document, v *Vocabulary) interface{} {
	r := root(doc, v, TypeOrdering)
	if r == nil {
		return nil
	}
	items, solution := orderedTokens(r, v)
	if len(items) == 0 {
		return nil
	}
	return &Ordering{Prompt: findText(r, v.Prompt), Items: items, Solution: solution}
}

// VideoFunc extracts a video comprehension transcript
func VideoFunc(doc *goquery.Document, v *Vocabulary) interface{} {
	r := root(doc, v, TypeVideo)
	if r == nil {
		return nil
	}
	vt := &VideoTranscript{Title: findText(r, v.Prompt)}
	if m := media(r, v); len(m) > 0 {
		vt.VideoURL = m[0]
	}
	if v.Transcript != "" {
		tr := r.Find(v.Transcript).First()
		lines := tr.Find("p, li")
		if lines.Length() == 0 {
			if t := text(tr); t != "" {
				vt.Lines = append(vt.Lines, t)
			}
		}
		lines.Each(func(_ int, s *goquery.Selection) {
			if t := text(s); t != "" {
				vt.Lines = append(vt.Lines, t)
			}
		})
	}
	return vt
}

// GrammarTipFunc extracts a grammar tip and its example table
func GrammarTipFunc(doc *goquery.Document, v *Vocabulary) interface{} {
	r := root(doc, v, TypeGrammarTip)
	if r == nil {
		return nil
	}
	tip := &GrammarTip{
		Title: findText(r, v.TipTitle),
		Body:  findText(r, v.TipBody),
	}
	if v.TipTable != "" {
		table := r.Find(v.TipTable).First()
		table.Find("th").Each(func(_ int, s *goquery.Selection) {
			tip.Headers = append(tip.Headers, text(s))
		})
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			var cells []string
			row.Find("td").Each(func(_ int, c *goquery.Selection) {
				cells = append(cells, text(c))
			})
			if len(cells) > 0 {
				tip.Rows = append(tip.Rows, cells)
			}
		})
	}
	if tip.Title == "" && tip.Body == "" && len(tip.Rows) == 0 {
		return nil
	}
	return tip
}

// FeedbackFunc extracts the feedback overlay tip
func FeedbackFunc(doc *goquery.Document, v *Vocabulary) interface{} {
	if doc == nil || v.FeedbackRoot == "" {
		return nil
	}
	r := doc.Find(v.FeedbackRoot).First()
	if r.Length() == 0 {
		return nil
	}
	fb := &FeedbackTip{Title: findText(r, v.FeedbackTitle)}
	if v.FeedbackTip != "" {
		fb.Tip = findText(r, v.FeedbackTip)
	} else {
		fb.Tip = text(r)
	}
	return fb
}

// GenericFunc captures visible text, option-like controls and media of the
// exercise root, falling back to the body
func GenericFunc(doc *goquery.Document, v *Vocabulary) interface{} {
	if doc == nil {
		return nil
	}
	r := doc.Find("body")
	if v.ExerciseRoot != "" {
		if er := doc.Find(v.ExerciseRoot).First(); er.Length() > 0 {
			r = er
		}
	}
	if r.Length() == 0 {
		return nil
	}
	body := r.Clone()
	body.Find("script, style, noscript, template").Remove()

	g := &Generic{
		Text:  utils.CleanText(body.Text()),
		Media: media(r, v),
	}
	optionSel := "button, [role=button]"
	if v.Option != "" {
		optionSel = v.Option + ", " + optionSel
	}
	seen := make(map[string]bool)
	r.Find(optionSel).Each(func(_ int, s *goquery.Selection) {
		if t := text(s); t != "" && !seen[t] {
			seen[t] = true
			g.Options = append(g.Options, t)
		}
	})
	if g.Text == "" && len(g.Media) == 0 {
		return nil
	}
	return g
}
