// internal/detect/snapshot.go
package detect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/LessonFlow/internal/utils"
)

// Snapshot is an immutable view of the page used for one classification pass
type Snapshot struct {
	URL     string
	Doc     *goquery.Document
	Text    string
	TakenAt time.Time
}

// Source produces snapshots of the current page
type Source interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// NewSnapshot parses html. Script and style contents are excluded from Text.
func NewSnapshot(url, html string) (*Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return &Snapshot{
		URL:     url,
		Doc:     doc,
		Text:    visibleText(doc),
		TakenAt: time.Now(),
	}, nil
}

func visibleText(doc *goquery.Document) string {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	return utils.CollapseSpace(body.Text())
}

// Fingerprint identifies the page state by URL and visible text
func (s *Snapshot) Fingerprint() string {
	return utils.HashString(s.URL + "\n" + s.Text)
}
