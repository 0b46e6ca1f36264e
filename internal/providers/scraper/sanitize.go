package scraper

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer cleans untrusted markup before the host renders it
type Sanitizer struct {
	ugc    *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewSanitizer creates a sanitizer; policies are safe for concurrent use
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		ugc:    bluemonday.UGCPolicy(),
		strict: bluemonday.StrictPolicy(),
	}
}

// Sanitize keeps formatting markup and drops scripts, handlers and styles
func (s *Sanitizer) Sanitize(src string) string {
	return s.ugc.Sanitize(src)
}

// Strip removes all markup and returns plain text
func (s *Sanitizer) Strip(src string) string {
	return NormalizeWhitespace(html.UnescapeString(s.strict.Sanitize(src)))
}

// NormalizeWhitespace collapses runs of whitespace into single spaces
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
