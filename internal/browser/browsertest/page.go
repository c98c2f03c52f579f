// Package browsertest provides a scripted in-memory browser.Page for tests.
//
// A ScriptedPage walks through a list of Steps. Each step is a static HTML
// document. Clicking an element that matches the step's AdvanceOn selector
// moves to the next step; any other click is passed to the step's OnClick
// hook so tests can mutate the document the way a real UI would.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/LessonFlow/internal/browser"
)

// DefaultAdvanceSelector matches the primary continue button used by fixtures
const DefaultAdvanceSelector = `[data-qa-next], [data-testid="player-next"], button.continue`

// Step is one page state
type Step struct {
	Name string
	URL  string
	HTML string
	// AdvanceOn overrides DefaultAdvanceSelector. "-" disables advancing.
	AdvanceOn string
	// OnClick is called for clicks that do not advance
	OnClick func(doc *goquery.Document, clicked *goquery.Selection)
	// OnKey is called for key presses; returning true advances
	OnKey func(key string) bool
}

// ScriptedPage implements browser.Page over a sequence of Steps
type ScriptedPage struct {
	mu      sync.Mutex
	routes  map[string][]Step
	steps   []Step
	pos     int
	doc     *goquery.Document
	url     string
	cookies []browser.Cookie

	Clicks      []browser.Target
	Typed       map[string]string
	Keys        []string
	Navigations []string
	Closed      bool
}

var _ browser.Page = (*ScriptedPage)(nil)

// NewScriptedPage returns a page positioned on the first step
func NewScriptedPage(steps ...Step) *ScriptedPage {
	p := &ScriptedPage{
		routes: make(map[string][]Step),
		Typed:  make(map[string]string),
	}
	p.load(steps)
	return p
}

// Route registers the steps shown after navigating to url
func (p *ScriptedPage) Route(url string, steps ...Step) *ScriptedPage {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[url] = steps
	return p
}

func (p *ScriptedPage) load(steps []Step) {
	p.steps = steps
	p.pos = 0
	p.render()
}

func (p *ScriptedPage) render() {
	html := "<html><body></body></html>"
	if p.pos < len(p.steps) {
		html = p.steps[p.pos].HTML
		if p.steps[p.pos].URL != "" {
			p.url = p.steps[p.pos].URL
		}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		panic(fmt.Sprintf("browsertest: invalid fixture html: %v", err))
	}
	p.doc = doc
}

func (p *ScriptedPage) advance() {
	if p.pos < len(p.steps)-1 {
		p.pos++
		p.render()
	}
}

// Position returns the index of the current step
func (p *ScriptedPage) Position() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

// StepName returns the name of the current step
func (p *ScriptedPage) StepName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos < len(p.steps) {
		return p.steps[p.pos].Name
	}
	return ""
}

func (p *ScriptedPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Navigations = append(p.Navigations, url)
	p.url = url
	if steps, ok := p.routes[url]; ok {
		p.load(steps)
	}
	return nil
}

func (p *ScriptedPage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *ScriptedPage) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return goquery.OuterHtml(p.doc.Selection)
}

// Evaluate cannot run scripts; it leaves out untouched
func (p *ScriptedPage) Evaluate(ctx context.Context, script string, out interface{}) error {
	return ctx.Err()
}

func (p *ScriptedPage) find(t browser.Target) (*goquery.Selection, error) {
	sel := p.doc.Find(t.Selector)
	if t.Index < 0 || t.Index >= sel.Length() {
		return nil, fmt.Errorf("element '%s' not found or not visible", t)
	}
	return sel.Eq(t.Index), nil
}

func (p *ScriptedPage) Click(ctx context.Context, target browser.Target) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.find(target)
	if err != nil {
		return err
	}
	p.Clicks = append(p.Clicks, target)

	if p.pos >= len(p.steps) {
		return nil
	}
	step := p.steps[p.pos]
	advanceOn := step.AdvanceOn
	if advanceOn == "" {
		advanceOn = DefaultAdvanceSelector
	}
	if advanceOn != "-" && el.Is(advanceOn) {
		p.advance()
		return nil
	}
	if step.OnClick != nil {
		step.OnClick(p.doc, el)
	}
	return nil
}

func (p *ScriptedPage) Type(ctx context.Context, target browser.Target, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.find(target)
	if err != nil {
		return err
	}
	el.SetAttr("value", text)
	p.Typed[target.String()] = text
	return nil
}

func (p *ScriptedPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("element wait timeout: %s", selector)
	}
	return nil
}

func (p *ScriptedPage) KeyPress(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Keys = append(p.Keys, key)
	if p.pos < len(p.steps) && p.steps[p.pos].OnKey != nil && p.steps[p.pos].OnKey(key) {
		p.advance()
	}
	return nil
}

func (p *ScriptedPage) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]browser.Cookie, len(p.cookies))
	copy(out, p.cookies)
	return out, nil
}

func (p *ScriptedPage) SetCookies(ctx context.Context, cookies []browser.Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookies = append(p.cookies[:0], cookies...)
	return nil
}

func (p *ScriptedPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}
