package ingest

import (
	"strings"

	"github.com/hyperjump/kioku/internal/models"
)

const keyTextPrefix = 220

// Key returns the dedup fingerprint for a chunk:
// normalized title, url, and the first 220 characters of text,
// joined with "::". The prefix is taken in runes so the key is stable for
// multibyte text. Identical content always maps to the same key.
func Key(title, text, url string) string {
	if r := []rune(text); len(r) > keyTextPrefix {
		text = string(r[:keyTextPrefix])
	}
	return strings.ToLower(strings.TrimSpace(title)) + "::" +
		strings.ToLower(strings.TrimSpace(url)) + "::" +
		strings.ToLower(strings.TrimSpace(text))
}

// KeySet tracks dedup keys for one ingestion batch. It is seeded from the
// existing store and grows as candidates are accepted, so re-ingesting
// identical content is rejected both against history and within the batch.
type KeySet struct {
	keys map[string]struct{}
}

// NewKeySet builds a key set from all existing chunks.
func NewKeySet(existing []*models.Chunk) *KeySet {
	ks := &KeySet{keys: make(map[string]struct{}, len(existing))}
	for _, c := range existing {
		ks.keys[Key(c.Title, c.Text, c.URL)] = struct{}{}
	}
	return ks
}

// Seen reports whether the key is already present.
func (ks *KeySet) Seen(key string) bool {
	_, ok := ks.keys[key]
	return ok
}

// Add records the key as present.
func (ks *KeySet) Add(key string) {
	ks.keys[key] = struct{}{}
}
