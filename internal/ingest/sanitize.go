// Package ingest provides text sanitization, chunking, and deduplication.
package ingest

import (
	"regexp"
	"strings"
)

var (
	scriptRe     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Sanitize strips script and style blocks, removes all markup tags,
// collapses whitespace runs to single spaces, and trims.
func Sanitize(text string) string {
	t := scriptRe.ReplaceAllString(text, " ")
	t = styleRe.ReplaceAllString(t, " ")
	t = tagRe.ReplaceAllString(t, " ")
	t = whitespaceRe.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}
