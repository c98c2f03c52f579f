package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVocabulary() *Vocabulary {
	return &Vocabulary{
		Roots: map[string]string{
			TypeVocab:       `[data-ex="card"]`,
			TypeMCQ:         `[data-ex="mcq"]`,
			TypeMultiSelect: `[data-ex="multi"]`,
			TypeFillGap:     `[data-ex="gap"]`,
			TypeMatching:    `[data-ex="match"]`,
			TypeTrueFalse:   `[data-ex="tf"]`,
			TypeTyping:      `[data-ex="typing"]`,
			TypeSpelling:    `[data-ex="spell"]`,
			TypeOrdering:    `[data-ex="order"]`,
			TypeVideo:       `[data-ex="video"]`,
			TypeGrammarTip:  `[data-ex="tip"]`,
		},
		ExerciseRoot:  "[data-ex]",
		Prompt:        ".prompt",
		Option:        ".option",
		CorrectAttr:   "data-correct",
		Input:         "input.answer",
		AnswerAttr:    "data-answer",
		Token:         ".token",
		Gap:           ".gap",
		OrderAttr:     "data-pos",
		PairLeft:      ".left",
		PairRight:     ".right",
		PairAttr:      "data-pair",
		Consumed:      ".used",
		TrueButton:    ".yes",
		FalseButton:   ".no",
		TruthAttr:     "data-truth",
		Word:          ".word",
		Translation:   ".translation",
		Example:       ".example",
		Pronunciation: ".ipa",
		Transcript:    ".transcript",
		TipTitle:      "h3",
		TipBody:       ".body",
		TipTable:      "table",
		FeedbackRoot:  ".feedback",
		FeedbackTip:   ".tip",
		FeedbackTitle: ".title",
	}
}

func parse(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body>" + body + "</body></html>"))
	require.NoError(t, err)
	return doc
}

func TestVocabCard(t *testing.T) {
	doc := parse(t, `<div data-ex="card">
		<span class="word">la  casa</span><span class="translation">the house</span>
		<span class="ipa">/ˈka.sa/</span><p class="example">Mi casa es tu casa.</p>
		<img src="/img/casa.png"><audio data-src="/audio/casa.mp3"></audio><img src="/img/casa.png">
	</div>`)

	got := VocabCardFunc(doc, testVocabulary())
	require.IsType(t, &VocabCard{}, got)
	card := got.(*VocabCard)
	assert.Equal(t, "la casa", card.Word)
	assert.Equal(t, "the house", card.Translation)
	assert.Equal(t, "/ˈka.sa/", card.Pronunciation)
	assert.Equal(t, "Mi casa es tu casa.", card.Example)
	assert.Equal(t, []string{"/img/casa.png", "/audio/casa.mp3"}, card.Media)
}

func TestMultipleChoice(t *testing.T) {
	doc := parse(t, `<div data-ex="mcq"><p class="prompt">Pick "house"</p>
		<button class="option">perro</button>
		<button class="option" data-correct="TRUE">casa</button>
		<button class="option" data-correct="false">gato</button>
	</div>`)

	got := MultipleChoiceFunc(doc, testVocabulary()).(*MultipleChoice)
	assert.Equal(t, `Pick "house"`, got.Prompt)
	require.Len(t, got.Options, 3)
	assert.Equal(t, []int{1}, got.CorrectIndexes())
	assert.False(t, got.Multi)
}

func TestMultiSelect(t *testing.T) {
	doc := parse(t, `<div data-ex="multi"><p class="prompt">Pick the fruits</p>
		<button class="option" data-correct="true">apple</button>
		<button class="option">chair</button>
		<button class="option" data-correct="true">pear</button>
	</div>`)

	got := MultiSelectFunc(doc, testVocabulary()).(*MultipleChoice)
	assert.True(t, got.Multi)
	assert.Equal(t, []int{0, 2}, got.CorrectIndexes())
}

func TestFillGap(t *testing.T) {
	doc := parse(t, `<div data-ex="gap">
		<p class="prompt">I <span class="gap"></span> a <span class="gap"></span>.</p>
		<button class="token" data-pos="1">student</button>
		<button class="token">are</button>
		<button class="token" data-pos="0">am</button>
	</div>`)

	got := FillGapFunc(doc, testVocabulary()).(*FillGap)
	assert.Equal(t, "I ___ a ___.", got.Sentence)
	assert.Equal(t, []string{"am", "student"}, got.Answers)
	assert.Equal(t, []string{"student", "are", "am"}, got.Tokens)

	// extraction does not mutate the page
	assert.Equal(t, 2, doc.Find(".gap").Length())
}

func TestMatching(t *testing.T) {
	doc := parse(t, `<div data-ex="match">
		<button class="left" data-pair="a">dog</button>
		<button class="left" data-pair="b">cat</button>
		<button class="right" data-pair="b">gato</button>
		<button class="right" data-pair="a">perro</button>
	</div>`)

	got := MatchingFunc(doc, testVocabulary()).(*Matching)
	assert.Equal(t, []Pair{{Left: "dog", Right: "perro"}, {Left: "cat", Right: "gato"}}, got.Pairs)
}

func TestTrueFalse(t *testing.T) {
	doc := parse(t, `<div data-ex="tf" data-truth="false"><p class="prompt">Cats bark.</p>
		<button class="yes">True</button><button class="no">False</button></div>`)

	got := TrueFalseFunc(doc, testVocabulary()).(*TrueFalse)
	assert.Equal(t, "Cats bark.", got.Statement)
	require.NotNil(t, got.Answer)
	assert.False(t, *got.Answer)

	noHint := TrueFalseFunc(parse(t, `<div data-ex="tf"><p class="prompt">?</p></div>`), testVocabulary()).(*TrueFalse)
	assert.Nil(t, noHint.Answer)
}

func TestTypingAndSpelling(t *testing.T) {
	v := testVocabulary()

	typing := TypingFunc(parse(t, `<div data-ex="typing"><p class="prompt">Translate: house</p>
		<input class="answer" data-answer="casa"></div>`), v).(*Typing)
	assert.Equal(t, "casa", typing.Answer)

	rootHint := TypingFunc(parse(t, `<div data-ex="typing" data-answer="perro"><input class="answer"></div>`), v).(*Typing)
	assert.Equal(t, "perro", rootHint.Answer)

	tiles := SpellingFunc(parse(t, `<div data-ex="spell"><p class="prompt">Spell "sol"</p>
		<span class="token" data-pos="2">l</span><span class="token" data-pos="0">s</span><span class="token" data-pos="1">o</span>
	</div>`), v).(*Spelling)
	assert.Equal(t, "sol", tiles.Answer)
	assert.Equal(t, []string{"l", "s", "o"}, tiles.Letters)
}

func TestOrdering(t *testing.T) {
	v := testVocabulary()
	got := OrderingFunc(parse(t, `<div data-ex="order">
		<span class="token" data-pos="2">late</span><span class="token" data-pos="0">I</span>
		<span class="token">was</span><span class="token" data-pos="1">am</span>
	</div>`), v).(*Ordering)
	assert.Equal(t, []string{"I", "am", "late"}, got.Solution)
	assert.Len(t, got.Items, 4)

	assert.Nil(t, OrderingFunc(parse(t, `<div data-ex="order"></div>`), v))
}

func TestVideoTranscript(t *testing.T) {
	got := VideoFunc(parse(t, `<div data-ex="video"><p class="prompt">At the market</p>
		<video poster="/p.jpg"><source src="/v.mp4"></video>
		<div class="transcript"><p>Hola.</p><p> </p><p>¿Cuánto cuesta?</p></div>
	</div>`), testVocabulary()).(*VideoTranscript)
	assert.Equal(t, "At the market", got.Title)
	assert.Equal(t, "/p.jpg", got.VideoURL)
	assert.Equal(t, []string{"Hola.", "¿Cuánto cuesta?"}, got.Lines)
}

func TestGrammarTip(t *testing.T) {
	got := GrammarTipFunc(parse(t, `<div data-ex="tip"><h3>Ser vs estar</h3><div class="body">Use ser for traits.</div>
		<table><tr><th>Pronoun</th><th>Ser</th></tr><tr><td>yo</td><td>soy</td></tr><tr><td>tú</td><td>eres</td></tr></table>
	</div>`), testVocabulary()).(*GrammarTip)
	assert.Equal(t, "Ser vs estar", got.Title)
	assert.Equal(t, []string{"Pronoun", "Ser"}, got.Headers)
	assert.Equal(t, [][]string{{"yo", "soy"}, {"tú", "eres"}}, got.Rows)
}

func TestFeedback(t *testing.T) {
	v := testVocabulary()
	got := FeedbackFunc(parse(t, `<div class="feedback"><span class="title">Correct!</span><p class="tip">Casa is feminine.</p></div>`), v).(*FeedbackTip)
	assert.Equal(t, "Correct!", got.Title)
	assert.Equal(t, "Casa is feminine.", got.Tip)

	assert.Nil(t, FeedbackFunc(parse(t, `<p>nothing</p>`), v))
}

func TestExtractors_AbsentRootReturnsNil(t *testing.T) {
	doc := parse(t, `<p>unrelated</p>`)
	v := testVocabulary()
	for id, fn := range DefaultRegistry() {
		assert.Nil(t, fn(doc, v), id)
	}
}

func TestRegistry_GenericFallback(t *testing.T) {
	reg := DefaultRegistry()
	v := testVocabulary()
	assert.False(t, reg.Has(TypeDialogue))

	content, ok := reg.Extract(TypeDialogue, parse(t, `<div data-ex="dialogue"><p>— Hola</p><p>— Buenos días</p>
		<button class="option">Hola</button><button>Next</button><img src="/a.png"></div>`), v)
	require.True(t, ok)
	g := content.(*Generic)
	assert.Contains(t, g.Text, "Buenos días")
	assert.Equal(t, []string{"Hola", "Next"}, g.Options)
	assert.Equal(t, []string{"/a.png"}, g.Media)

	_, ok = reg.Extract(TypeMCQ, parse(t, `<p>no exercise</p>`), v)
	assert.False(t, ok)
}

func TestVocabulary_Helpers(t *testing.T) {
	v := testVocabulary()
	doc := parse(t, `<button class="token" disabled>a</button><button class="token used">b</button>
		<button class="token" aria-disabled="true">c</button><button class="token" data-pos=" 3 ">d</button>`)
	tokens := doc.Find(".token")

	assert.True(t, v.IsConsumed(tokens.Eq(0)))
	assert.True(t, v.IsConsumed(tokens.Eq(1)))
	assert.True(t, v.IsConsumed(tokens.Eq(2)))
	assert.False(t, v.IsConsumed(tokens.Eq(3)))

	pos, ok := v.Order(tokens.Eq(3))
	assert.True(t, ok)
	assert.Equal(t, 3, pos)
	_, ok = v.Order(tokens.Eq(0))
	assert.False(t, ok)

	assert.Equal(t, `[data-ex="mcq"]`, v.Root(TypeMCQ))
	assert.Equal(t, "[data-ex]", v.Root(TypeDialogue))
}
