// Package index builds and serves the TF-IDF snapshot over the chunk corpus.
package index

import (
	"regexp"
	"strings"
)

// tokenRe matches runs of two or more alphanumeric characters,
// the same token shape the corpus was originally vectorized with.
var tokenRe = regexp.MustCompile(`[a-z0-9]{2,}`)

// Tokenize lower-cases text, splits it on non-alphanumeric boundaries,
// drops stop words, and emits unigrams followed by bigrams (two consecutive
// surviving tokens joined by a single space).
func Tokenize(text string) []string {
	words := tokenRe.FindAllString(strings.ToLower(text), -1)
	kept := words[:0]
	for _, w := range words {
		if _, stop := stopwords[w]; stop {
			continue
		}
		kept = append(kept, w)
	}
	if len(kept) == 0 {
		return nil
	}
	terms := make([]string, 0, 2*len(kept))
	terms = append(terms, kept...)
	for i := 0; i+1 < len(kept); i++ {
		terms = append(terms, kept[i]+" "+kept[i+1])
	}
	return terms
}

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for",
		"to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was",
		"were", "be", "been", "being", "it", "this", "that", "these", "those",
		"from", "up", "down", "over", "under", "again", "further", "than",
		"so", "such", "into", "about", "between", "through", "during",
		"before", "after", "above", "below", "out", "off", "own", "same",
		"too", "very", "can", "will", "just", "don", "should", "now", "not",
		"no", "nor", "only", "other", "some", "any", "all", "both", "each",
		"few", "more", "most", "what", "which", "who", "whom", "when",
		"where", "why", "how", "here", "there", "they", "them", "their",
		"theirs", "he", "him", "his", "she", "her", "hers", "its", "we",
		"us", "our", "ours", "you", "your", "yours", "i", "me", "my", "mine",
		"do", "does", "did", "doing", "have", "has", "had", "having", "am",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
