// internal/navigator/continue.go
package navigator

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/LessonFlow/internal/browser"
	"github.com/valpere/LessonFlow/internal/detect"
	"github.com/valpere/LessonFlow/internal/utils"
)

// Strategy names the heuristic that produced a continue click
type Strategy string

const (
	StrategyNone        Strategy = "none"
	StrategyTestID      Strategy = "test_id"
	StrategyClass       Strategy = "css_class"
	StrategyText        Strategy = "text"
	StrategyFirstButton Strategy = "first_button"
)

// ContinueVocabulary is matched against normalized button labels
var ContinueVocabulary = []string{"continue", "check", "next", "ok", "got it", "done", "close"}

const buttonSelector = `button, [role="button"]`

// ClickContinue clicks the most specific advance control on the page.
// It returns StrategyNone when nothing clickable was found.
func (n *Navigator) ClickContinue(ctx context.Context) (Strategy, error) {
	snap, err := n.Snapshot(ctx)
	if err != nil {
		return StrategyNone, err
	}
	return n.ClickContinueOn(ctx, snap)
}

// ClickContinueOn is ClickContinue against an existing snapshot
func (n *Navigator) ClickContinueOn(ctx context.Context, snap *detect.Snapshot) (Strategy, error) {
	for _, c := range n.continueCandidates(snap) {
		if err := n.page.Click(ctx, c.target); err != nil {
			if ctx.Err() != nil {
				return StrategyNone, ctx.Err()
			}
			n.logger.Debugf("continue candidate %s failed: %v", c.target, err)
			continue
		}
		n.logger.Debugf("continue via %s (%s)", c.strategy, c.target)
		return c.strategy, nil
	}
	return StrategyNone, nil
}

type candidate struct {
	strategy Strategy
	target   browser.Target
}

// continueCandidates lists one candidate per strategy in priority order
func (n *Navigator) continueCandidates(snap *detect.Snapshot) []candidate {
	if snap == nil || snap.Doc == nil {
		return nil
	}
	doc := snap.Doc
	var out []candidate

	for _, sel := range n.platform.ContinueSelectors {
		if i := firstUsable(doc, sel); i >= 0 {
			out = append(out, candidate{StrategyTestID, browser.At(sel, i)})
			break
		}
	}

	for _, sel := range n.platform.ContinueClasses {
		if i := firstUsable(doc, sel); i >= 0 {
			out = append(out, candidate{StrategyClass, browser.At(sel, i)})
			break
		}
	}

	textIdx, firstIdx := -1, -1
	doc.Find(buttonSelector).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if !usable(s) {
			return true
		}
		if firstIdx < 0 {
			firstIdx = i
		}
		label := utils.NormalizeText(s.Text())
		if label == "" {
			label = utils.NormalizeText(s.AttrOr("aria-label", ""))
		}
		for _, word := range ContinueVocabulary {
			if label == word {
				textIdx = i
				return false
			}
		}
		return true
	})
	if textIdx >= 0 {
		out = append(out, candidate{StrategyText, browser.At(buttonSelector, textIdx)})
	}
	if firstIdx >= 0 && firstIdx != textIdx {
		out = append(out, candidate{StrategyFirstButton, browser.At(buttonSelector, firstIdx)})
	}
	return out
}

func firstUsable(doc *goquery.Document, sel string) int {
	idx := -1
	doc.Find(sel).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if usable(s) {
			idx = i
			return false
		}
		return true
	})
	return idx
}

// usable approximates visible and enabled from markup alone
func usable(s *goquery.Selection) bool {
	if _, ok := s.Attr("disabled"); ok {
		return false
	}
	if s.AttrOr("aria-disabled", "") == "true" {
		return false
	}
	for node := s; node.Length() > 0; node = node.Parent() {
		if _, ok := node.Attr("hidden"); ok {
			return false
		}
		if node.AttrOr("aria-hidden", "") == "true" {
			return false
		}
		style := strings.ReplaceAll(strings.ToLower(node.AttrOr("style", "")), " ", "")
		if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
			return false
		}
	}
	return true
}
