// internal/utils/text.go

package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText applies NFKC, case folding and whitespace collapsing so that
// button labels and phrases compare equal regardless of rendering quirks.
func NormalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return CollapseSpace(s)
}

// CleanText applies NFC and collapses whitespace but keeps case.
// Used for extracted content that ends up in output files.
func CleanText(s string) string {
	return CollapseSpace(norm.NFC.String(s))
}

// CollapseSpace trims s and replaces every whitespace run with one space.
func CollapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// ContainsAnyPhrase reports whether the normalized text contains any of the
// phrases. Phrases are normalized before comparison.
func ContainsAnyPhrase(text string, phrases []string) bool {
	if text == "" {
		return false
	}
	normalized := NormalizeText(text)
	for _, p := range phrases {
		if p = NormalizeText(p); p != "" && strings.Contains(normalized, p) {
			return true
		}
	}
	return false
}

// EqualFold reports whether a and b are equal after normalization.
func EqualFold(a, b string) bool {
	return NormalizeText(a) == NormalizeText(b)
}

// Prefix returns at most n runes of s.
func Prefix(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
