// Package models defines core data structures for chunks, queries, and results.
package models

// Chunk is the immutable unit of indexing and retrieval: a bounded slice of
// sanitized document text plus its source metadata. Chunks are created during
// ingestion and never mutated or deleted; corrections are modeled as new chunks.
type Chunk struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Text       string   `json:"text"`
	URL        string   `json:"url"`
	Domain     string   `json:"domain"`
	Tags       []string `json:"tags"`
	Source     string   `json:"source"`
	ChunkIndex int      `json:"chunk_index"`
	CreatedAt  int64    `json:"created_at"` // unix milliseconds
}

// IngestDoc is one inline document submitted for ingestion.
type IngestDoc struct {
	Title  string   `json:"title,omitempty"`
	Text   string   `json:"text,omitempty"`
	URL    string   `json:"url,omitempty"`
	Domain string   `json:"domain,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Source string   `json:"source,omitempty"`
}

// IngestRequest carries documents and/or URLs to ingest, plus chunking options.
type IngestRequest struct {
	Docs         []IngestDoc `json:"docs,omitempty"`
	URLs         []string    `json:"urls,omitempty"`
	Domain       string      `json:"domain,omitempty"`
	Tags         []string    `json:"tags,omitempty"`
	Source       string      `json:"source,omitempty"`
	ChunkChars   int         `json:"chunk_chars,omitempty"`
	OverlapChars int         `json:"overlap_chars,omitempty"`
	RebuildIndex *bool       `json:"rebuild_index,omitempty"`
}

// Rebuild reports whether the index should be rebuilt after ingestion.
// Defaults to true when unset.
func (r *IngestRequest) Rebuild() bool {
	if r.RebuildIndex != nil {
		return *r.RebuildIndex
	}
	return true
}

// FetchError records a single failed URL fetch within an ingest batch.
type FetchError struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// RebuildResult describes the outcome of an index rebuild.
type RebuildResult struct {
	TotalDocs int   `json:"total_docs"`
	Version   int64 `json:"index_version"`
	Skipped   bool  `json:"skipped,omitempty"`
}

// IngestResult is the outcome of an ingest batch.
type IngestResult struct {
	CreatedChunks int            `json:"created_chunks"`
	Skipped       int            `json:"skipped"`
	URLsFetched   int            `json:"urls_fetched"`
	Errors        []FetchError   `json:"errors"`
	Index         *RebuildResult `json:"index,omitempty"`
}
