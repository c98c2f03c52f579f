// internal/navigator/lessons.go
package navigator

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/LessonFlow/internal/utils"
	"github.com/valpere/LessonFlow/pkg/types"
)

// GoToLevel opens the timeline of a level
func (n *Navigator) GoToLevel(ctx context.Context, level string) (LoginState, error) {
	return n.goTo(ctx, n.platform.LevelURL(level))
}

// ListLessons opens the level timeline and returns its lessons in page order
func (n *Navigator) ListLessons(ctx context.Context, level string) ([]types.LessonMeta, error) {
	levelURL := n.platform.LevelURL(level)
	state, err := n.goTo(ctx, levelURL)
	if err != nil {
		return nil, err
	}
	if state == LoggedOut {
		return nil, utils.NewError(utils.ErrCodeAuthFailed, "not logged in").
			WithContext("url", levelURL).
			Build()
	}
	if err := n.ScrollPage(ctx); err != nil {
		n.logger.Debugf("timeline scroll failed: %v", err)
	}

	snap, err := n.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read timeline: %w", err)
	}

	var lessons []types.LessonMeta
	seen := make(map[string]bool)
	snap.Doc.Find(n.platform.LessonLinkSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		abs, err := utils.ResolveURL(levelURL, href)
		if err == nil {
			// one spelling per lesson, so keys and resume state line up
			abs, err = utils.NormalizeURL(abs)
		}
		if err != nil {
			n.logger.Debugf("skipping lesson link %q: %v", href, err)
			return
		}
		key := utils.LessonKeyFromURL(abs)
		if seen[key] {
			return
		}
		seen[key] = true
		title := utils.CleanText(s.AttrOr("title", ""))
		if title == "" {
			title = utils.CleanText(s.Text())
		}
		lessons = append(lessons, types.LessonMeta{
			Key:      key,
			Title:    title,
			URL:      abs,
			Platform: n.platform.Name,
			Level:    level,
		})
	})
	n.logger.Infof("found %d lessons for level %s", len(lessons), level)
	return lessons, nil
}
