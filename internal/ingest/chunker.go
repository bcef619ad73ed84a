package ingest

import "strings"

// Chunker floors. Requests below these are raised, not rejected.
const (
	MinChunkChars   = 300
	MinOverlapChars = 40
)

// Chunker splits sanitized text into overlapping character windows.
type Chunker struct {
	maxChars     int
	overlapChars int
}

// NewChunker creates a chunker with the given window size and overlap in
// characters. maxChars is floored at MinChunkChars and overlapChars at
// MinOverlapChars; overlap is capped below the window size.
func NewChunker(maxChars, overlapChars int) *Chunker {
	if maxChars < MinChunkChars {
		maxChars = MinChunkChars
	}
	if overlapChars < MinOverlapChars {
		overlapChars = MinOverlapChars
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars - 1
	}
	return &Chunker{maxChars: maxChars, overlapChars: overlapChars}
}

// Chunk sanitizes text and slides a window of maxChars over it; each
// subsequent window starts overlapChars before the previous end. Trimmed
// non-empty windows are returned in order. The final chunk may be shorter;
// every other adjacent pair overlaps by exactly overlapChars characters.
// Windows are measured in runes, so a boundary never splits a UTF-8 sequence.
func (c *Chunker) Chunk(text string) []string {
	cleaned := Sanitize(text)
	if cleaned == "" {
		return nil
	}
	runes := []rune(cleaned)
	var chunks []string
	n := len(runes)
	i := 0
	for i < n {
		end := i + c.maxChars
		if end > n {
			end = n
		}
		chunk := strings.TrimSpace(string(runes[i:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= n {
			break
		}
		i = end - c.overlapChars
		if i < 0 {
			i = 0
		}
	}
	return chunks
}
