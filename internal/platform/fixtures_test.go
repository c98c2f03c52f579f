// internal/platform/fixtures_test.go
package platform

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/LessonFlow/internal/browser/browsertest"
	"github.com/valpere/LessonFlow/internal/detect"
	"github.com/valpere/LessonFlow/internal/extract"
	"github.com/valpere/LessonFlow/internal/solve"
	"github.com/valpere/LessonFlow/pkg/types"
)

// screenFixtures holds one answerable screen per platform and extractable type
var screenFixtures = map[string]map[string]string{
	"dataqa": {
		extract.TypeVocab: `<div data-qa-ex="ex-flashcard">
			<span data-qa-word>hola</span><span data-qa-translation>hello</span></div>`,
		extract.TypeMCQ: `<div data-qa-ex="ex-mcq"><p data-qa-prompt>Pick the greeting</p>
			<button data-qa-choice>adios</button><button data-qa-choice data-qa-pass="true">hola</button></div>`,
		extract.TypeMultiSelect: `<div data-qa-ex="ex-mcq-multi"><p data-qa-prompt>Pick every greeting</p>
			<button data-qa-choice data-qa-pass="true">hola</button><button data-qa-choice>adios</button>
			<button data-qa-choice data-qa-pass="true">buenas</button></div>`,
		extract.TypeFillGap: `<div data-qa-ex="ex-fillgap"><p data-qa-prompt>Yo <span data-qa-gap></span> Ana</p>
			<button data-qa-token data-qa-order="0">soy</button><button data-qa-token>eres</button></div>`,
		extract.TypeMatching: `<div data-qa-ex="ex-match">
			<button data-qa-match-left data-qa-pair="1">hola</button><button data-qa-match-left data-qa-pair="2">adios</button>
			<button data-qa-match-right data-qa-pair="2">bye</button><button data-qa-match-right data-qa-pair="1">hello</button></div>`,
		extract.TypeTrueFalse: `<div data-qa-ex="ex-truefalse" data-qa-answer="true"><p data-qa-prompt>Hola means hello</p>
			<button data-qa-true>True</button><button data-qa-false>False</button></div>`,
		extract.TypeTyping: `<div data-qa-ex="ex-typing"><p data-qa-prompt>Translate: hello</p>
			<input data-qa-input data-qa-answer="hola"></div>`,
		extract.TypeSpelling: `<div data-qa-ex="ex-spelling"><p data-qa-prompt>Spell: no</p>
			<button data-qa-token data-qa-order="1">o</button><button data-qa-token data-qa-order="0">n</button></div>`,
		extract.TypeOrdering: `<div data-qa-ex="ex-order"><p data-qa-prompt>Build the sentence</p>
			<button data-qa-token data-qa-order="1">Ana</button><button data-qa-token data-qa-order="0">Soy</button></div>`,
		extract.TypeVideo: `<div data-qa-ex="ex-video"><p data-qa-prompt>At the cafe</p><video src="/media/cafe.mp4"></video>
			<div data-qa-transcript><p>Un cafe, por favor.</p></div></div>`,
		extract.TypeGrammarTip: `<div data-qa-ex="ex-tip"><h2 data-qa-tip-title>Ser</h2>
			<p data-qa-tip-body>Use ser for identity.</p></div>`,
		extract.TypeDialogue: `<div data-qa-ex="ex-dialogue"><p>Ana: Hola</p><p>Luis: Buenos dias</p></div>`,
		extract.TypeSpeech:   `<div data-qa-ex="ex-speech"><p data-qa-prompt>Say: buenos dias</p></div>`,
	},
	"datatest": {
		extract.TypeVocab: `<div data-testid="card-vocabulary">
			<span class="word">hola</span><span class="translation">hello</span></div>`,
		extract.TypeMCQ: `<div data-testid="challenge-select"><h1 data-testid="challenge-header">Pick the greeting</h1>
			<div role="button" data-testid="challenge-choice">adios</div>
			<div role="button" data-testid="challenge-choice" data-correct="true">hola</div></div>`,
		extract.TypeMultiSelect: `<div data-testid="challenge-select-multi"><h1 data-testid="challenge-header">Pick every greeting</h1>
			<div role="button" data-testid="challenge-choice" data-correct="true">hola</div>
			<div role="button" data-testid="challenge-choice">adios</div>
			<div role="button" data-testid="challenge-choice" data-correct="true">buenas</div></div>`,
		extract.TypeFillGap: `<div data-testid="challenge-gap-fill">
			<div data-testid="challenge-header">Yo <span class="gap"></span> Ana</div>
			<button data-testid="challenge-tap-token" data-position="0">soy</button>
			<button data-testid="challenge-tap-token">eres</button></div>`,
		extract.TypeMatching: `<div data-testid="challenge-match">
			<button data-testid="match-source" data-pair="a">hola</button><button data-testid="match-source" data-pair="b">adios</button>
			<button data-testid="match-target" data-pair="b">bye</button><button data-testid="match-target" data-pair="a">hello</button></div>`,
		extract.TypeTrueFalse: `<div data-testid="challenge-true-false" data-truth="false">
			<div data-testid="challenge-header">Adios means hello</div>
			<button data-testid="answer-true">True</button><button data-testid="answer-false">False</button></div>`,
		extract.TypeTyping: `<div data-testid="challenge-translate"><div data-testid="challenge-header">Translate: hello</div>
			<textarea data-testid="challenge-text-input" data-answer="hola"></textarea></div>`,
		extract.TypeSpelling: `<div data-testid="challenge-spell"><div data-testid="challenge-header">Spell: no</div>
			<button data-testid="challenge-tap-token" data-position="1">o</button>
			<button data-testid="challenge-tap-token" data-position="0">n</button></div>`,
		extract.TypeOrdering: `<div data-testid="challenge-arrange"><div data-testid="challenge-header">Build the sentence</div>
			<button data-testid="challenge-tap-token" data-position="1">Ana</button>
			<button data-testid="challenge-tap-token" data-position="0">Soy</button></div>`,
		extract.TypeVideo: `<div data-testid="card-video"><h1 data-testid="challenge-header">At the cafe</h1>
			<video src="/media/cafe.mp4"></video><div class="transcript"><p>Un cafe, por favor.</p></div></div>`,
		extract.TypeGrammarTip: `<div data-testid="card-tip"><h2>Ser</h2><p class="tip-body">Use ser for identity.</p></div>`,
		extract.TypeDialogue:   `<div data-testid="card-dialogue"><p>Ana: Hola</p><p>Luis: Buenos dias</p></div>`,
		extract.TypeSpeech: `<div data-testid="challenge-speak">
			<div data-testid="challenge-header">Say: buenos dias</div></div>`,
	},
}

// disableOnClick marks a clicked tile or pair item as used
func disableOnClick(doc *goquery.Document, clicked *goquery.Selection) {
	clicked.SetAttr("disabled", "")
}

func TestEveryScreenTypeDetectsExtractsAndSolves(t *testing.T) {
	ctx := context.Background()
	for _, name := range Names() {
		p, err := Get(name, "")
		require.NoError(t, err)
		reg, err := p.Registry(nil)
		require.NoError(t, err)
		fixtures, ok := screenFixtures[name]
		require.True(t, ok, "no fixtures for platform %s", name)

		for _, st := range p.ScreenTypes {
			if !st.Extract {
				continue
			}
			st := st
			t.Run(name+"/"+st.ID, func(t *testing.T) {
				body, ok := fixtures[st.ID]
				require.True(t, ok, "no fixture for %s", st.ID)
				url := p.BaseURL + "/lesson/1/1"
				html := "<html><body>" + body + "</body></html>"

				snap, err := detect.NewSnapshot(url, html)
				require.NoError(t, err)
				got, ok := reg.Detect(snap)
				require.True(t, ok)
				assert.Equal(t, st.ID, got.ID)

				content, ok := p.Extractors.Extract(st.ID, snap.Doc, &p.Vocabulary)
				require.True(t, ok)
				_, err = json.Marshal(content)
				require.NoError(t, err)
				le := types.NewLessonExtraction(types.LessonMeta{Key: "1-1", URL: url, Platform: name})
				_, err = le.Append(types.ScreenRecord{TypeID: st.ID, TypeName: st.Name, Content: content})
				require.NoError(t, err)
				require.NoError(t, le.Validate())

				page := browsertest.NewScriptedPage(browsertest.Step{
					URL: url, HTML: html, AdvanceOn: "-", OnClick: disableOnClick,
				})
				env := &solve.Env{
					Page:  page,
					Doc:   snap.Doc,
					Vocab: &p.Vocabulary,
					Reload: func(ctx context.Context) (*goquery.Document, error) {
						current, err := page.HTML(ctx)
						if err != nil {
							return nil, err
						}
						return goquery.NewDocumentFromReader(strings.NewReader(current))
					},
				}
				res, err := p.Solvers.Solve(ctx, st.ID, env)
				require.NoError(t, err)
				assert.True(t, res.Solved, "solver result %s", res)
			})
		}
	}
}

func TestFixturesCoverOnlyKnownTypes(t *testing.T) {
	for name, fixtures := range screenFixtures {
		p, err := Get(name, "")
		require.NoError(t, err)
		reg, err := p.Registry(nil)
		require.NoError(t, err)
		for id := range fixtures {
			st, ok := reg.Get(id)
			if assert.True(t, ok, "%s/%s", name, id) {
				assert.True(t, st.Extract, "%s/%s", name, id)
			}
		}
	}
}
