// internal/platform/platform.go

// Package platform holds the adapters that parameterize the generic engine
// for one lesson platform: DOM vocabulary, screen table, navigation routes
// and continue-button heuristics.
package platform

import (
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/valpere/LessonFlow/internal/detect"
	"github.com/valpere/LessonFlow/internal/extract"
	"github.com/valpere/LessonFlow/internal/solve"
)

// Platform is a lesson platform adapter
type Platform struct {
	Name    string
	BaseURL string

	DashboardPath string
	// LevelPath is a format string taking the level id
	LevelPath    string
	LoginPattern string

	Vocabulary  extract.Vocabulary
	Detector    detect.Config
	ScreenTypes []detect.ScreenType
	Extractors  extract.Registry
	Solvers     solve.Registry

	// ContinueSelectors are explicit test-id selectors of advance buttons
	ContinueSelectors []string
	// ContinueClasses are CSS class heuristics tried after ContinueSelectors
	ContinueClasses []string
	// LessonLinkSelector matches lesson links on a level timeline
	LessonLinkSelector string

	loginRE *regexp.Regexp
}

var builtins = map[string]func() *Platform{
	"dataqa":   DataQA,
	"datatest": DataTest,
}

// Names lists the built-in platforms
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Get returns a fresh copy of a built-in platform. A non-empty baseURL
// replaces the platform default.
func Get(name, baseURL string) (*Platform, error) {
	ctor, ok := builtins[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown platform %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	p := ctor()
	if baseURL != "" {
		p.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if p.LoginPattern != "" {
		re, err := regexp.Compile(p.LoginPattern)
		if err != nil {
			return nil, fmt.Errorf("platform %s: invalid login pattern: %w", p.Name, err)
		}
		p.loginRE = re
	}
	return p, nil
}

// Registry builds the detector registry, applying screen type overrides
func (p *Platform) Registry(overrides []detect.ScreenType) (*detect.Registry, error) {
	reg, err := detect.NewRegistry(p.Detector, p.ScreenTypes)
	if err != nil {
		return nil, fmt.Errorf("platform %s: %w", p.Name, err)
	}
	return reg.WithOverrides(overrides)
}

// DashboardURL returns the absolute dashboard URL
func (p *Platform) DashboardURL() string {
	return p.BaseURL + p.DashboardPath
}

// LevelURL returns the absolute timeline URL of a level
func (p *Platform) LevelURL(level string) string {
	return p.BaseURL + fmt.Sprintf(p.LevelPath, url.PathEscape(level))
}

// IsLoginURL reports whether u is a login route
func (p *Platform) IsLoginURL(u string) bool {
	return p.loginRE != nil && p.loginRE.MatchString(u)
}

// extractable builds a recorded screen type matched by its root selector
func extractable(id, name, root string) detect.ScreenType {
	return detect.ScreenType{ID: id, Name: name, Rule: detect.Rule{Any: []string{root}}, Extract: true}
}

// rootsFor fills the vocabulary root map from the screen table
func rootsFor(types []detect.ScreenType) map[string]string {
	roots := make(map[string]string)
	for _, t := range types {
		if t.Extract && len(t.Rule.Any) == 1 {
			roots[t.ID] = t.Rule.Any[0]
		}
	}
	return roots
}
