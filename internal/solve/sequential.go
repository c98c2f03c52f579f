// internal/solve/sequential.go
package solve

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/LessonFlow/internal/browser"
	"github.com/valpere/LessonFlow/pkg/types"
)

// Answering tiles and pairs moves elements around, so both solvers re-read
// the document after every click and pick the next target from scratch.

// Tiles clicks tokens in their hinted order. Used for fill-gap, ordering and
// spelling tiles.
func Tiles(ctx context.Context, env *Env) (types.SolveResult, error) {
	v := env.Vocab
	if v.Token == "" || v.OrderAttr == "" {
		return types.SolveResult{Method: MethodNoHint}, nil
	}

	clicked := 0
	for attempt := 0; attempt < env.maxAttempts(); attempt++ {
		doc, err := env.reload(ctx)
		if err != nil {
			return interactionError(err)
		}

		next, found := nextTile(doc, env)
		if !found {
			if clicked == 0 && !hasOrderedTiles(doc, env) {
				return types.SolveResult{Method: MethodNoHint}, nil
			}
			return types.SolveResult{Solved: true, Method: MethodTiles}, nil
		}

		env.logf("tile attempt %d: clicking token %d", attempt, next)
		if err := env.Page.Click(ctx, browser.At(v.Token, next)); err != nil {
			return interactionError(err)
		}
		clicked++
	}

	doc, err := env.reload(ctx)
	if err != nil {
		return interactionError(err)
	}
	if _, pending := nextTile(doc, env); !pending {
		return types.SolveResult{Solved: true, Method: MethodTiles}, nil
	}
	return types.SolveResult{Method: MethodNotConverged}, nil
}

// nextTile returns the index of the unconsumed token with the lowest position
func nextTile(doc *goquery.Document, env *Env) (int, bool) {
	best, bestPos := -1, 0
	doc.Find(env.Vocab.Token).Each(func(i int, s *goquery.Selection) {
		if env.Vocab.IsConsumed(s) {
			return
		}
		pos, ok := orderOf(s, env)
		if !ok {
			return
		}
		if best < 0 || pos < bestPos {
			best, bestPos = i, pos
		}
	})
	return best, best >= 0
}

func hasOrderedTiles(doc *goquery.Document, env *Env) bool {
	found := false
	doc.Find(env.Vocab.Token).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		_, found = orderOf(s, env)
		return !found
	})
	return found
}

// Matching clicks each left item followed by its right partner
func Matching(ctx context.Context, env *Env) (types.SolveResult, error) {
	v := env.Vocab
	if v.PairLeft == "" || v.PairRight == "" || v.PairAttr == "" {
		return types.SolveResult{Method: MethodNoHint}, nil
	}

	for attempt := 0; attempt < env.maxAttempts(); attempt++ {
		doc, err := env.reload(ctx)
		if err != nil {
			return interactionError(err)
		}

		left, right, pending := nextPair(doc, env)
		if !pending {
			if attempt == 0 && doc.Find(v.PairLeft).Length() == 0 {
				return types.SolveResult{Method: MethodNoHint}, nil
			}
			return types.SolveResult{Solved: true, Method: MethodPairs}, nil
		}
		if right < 0 {
			return types.SolveResult{Method: MethodNoHint}, nil
		}

		env.logf("pair attempt %d: left %d right %d", attempt, left, right)
		if err := env.Page.Click(ctx, browser.At(v.PairLeft, left)); err != nil {
			return interactionError(err)
		}
		if err := env.Page.Click(ctx, browser.At(v.PairRight, right)); err != nil {
			return interactionError(err)
		}
	}

	doc, err := env.reload(ctx)
	if err != nil {
		return interactionError(err)
	}
	if _, _, pending := nextPair(doc, env); !pending {
		return types.SolveResult{Solved: true, Method: MethodPairs}, nil
	}
	return types.SolveResult{Method: MethodNotConverged}, nil
}

// nextPair finds the first unconsumed left item and its unconsumed partner.
// right is -1 when the partner is missing.
func nextPair(doc *goquery.Document, env *Env) (left, right int, pending bool) {
	v := env.Vocab
	left, right = -1, -1
	var pairID string
	doc.Find(v.PairLeft).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if v.IsConsumed(s) {
			return true
		}
		id, ok := s.Attr(v.PairAttr)
		if !ok {
			return true
		}
		left, pairID = i, id
		return false
	})
	if left < 0 {
		return -1, -1, false
	}
	doc.Find(v.PairRight).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if v.IsConsumed(s) {
			return true
		}
		if id, _ := s.Attr(v.PairAttr); id == pairID {
			right = i
			return false
		}
		return true
	})
	return left, right, true
}

func orderOf(s *goquery.Selection, env *Env) (int, bool) {
	return env.Vocab.Order(s)
}
