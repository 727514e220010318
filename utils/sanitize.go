package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// posts are plain text; every tag is stripped
var textPolicy = bluemonday.StrictPolicy()

// SanitizeText strips markup and surrounding whitespace from user supplied text.
// Entities escaped by the policy are turned back into characters since the output is not HTML.
func SanitizeText(input string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(input)))
}
