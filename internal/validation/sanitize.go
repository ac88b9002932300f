package validation

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxSanitizePasses bounds the decode and strip loop for deeply entity-encoded input.
const maxSanitizePasses = 8

// Sanitizer strips markup from free text while keeping its textual content.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// NewSanitizer returns a Sanitizer that allows no elements at all.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize removes tags and trims surrounding whitespace.
// bluemonday escapes the text it keeps, so entities are decoded back to plain
// text and stripped again until nothing changes. Encoded markup such as
// "&lt;b&gt;" therefore never comes out as a live tag, and
// Sanitize(Sanitize(x)) == Sanitize(x).
func (s *Sanitizer) Sanitize(text string) string {
	for range maxSanitizePasses {
		next := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
		if next == text {
			return next
		}
		text = next
	}
	// Still changing: keep the escaped form rather than risk decoded markup.
	return strings.TrimSpace(s.policy.Sanitize(text))
}
