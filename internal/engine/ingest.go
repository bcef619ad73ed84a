package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kioku/internal/ingest"
	"github.com/hyperjump/kioku/internal/models"
	"go.uber.org/zap"
)

// Ingest sanitizes, chunks, deduplicates, and appends the request's documents
// to the store, then rebuilds the index unless the request opts out. URL
// fetches run before the write lock is taken; each failed fetch is recorded
// per URL and never aborts the rest of the batch.
func (e *Engine) Ingest(ctx context.Context, req *models.IngestRequest) (*models.IngestResult, error) {
	if len(req.Docs) == 0 && len(req.URLs) == 0 {
		return nil, fmt.Errorf("%w: missing docs or urls", ErrInvalidRequest)
	}
	domain := normalizeDomain(req.Domain)
	tags := normalizeTags(req.Tags, nil)

	result := &models.IngestResult{Errors: []models.FetchError{}}
	docs := append([]models.IngestDoc{}, req.Docs...)
	for _, u := range req.URLs {
		raw := strings.TrimSpace(u)
		if raw == "" {
			continue
		}
		text, err := e.fetchText(ctx, raw)
		if err != nil {
			result.Errors = append(result.Errors, models.FetchError{URL: raw, Error: err.Error()})
			continue
		}
		result.URLsFetched++
		docs = append(docs, models.IngestDoc{
			Title:  raw,
			Text:   text,
			URL:    raw,
			Domain: domain,
			Tags:   tags,
			Source: "url_crawl",
		})
	}

	chunkChars := req.ChunkChars
	if chunkChars == 0 {
		chunkChars = e.chunkChars
	}
	overlapChars := req.OverlapChars
	if overlapChars == 0 {
		overlapChars = e.overlapChars
	}
	chunker := ingest.NewChunker(chunkChars, overlapChars)

	e.mu.Lock()
	defer e.mu.Unlock()

	existing, err := e.store.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan store: %w", err)
	}
	seen := ingest.NewKeySet(existing)

	for _, d := range docs {
		dDomain := d.Domain
		if dDomain == "" {
			dDomain = domain
		}
		dDomain = normalizeDomain(dDomain)
		dTags := normalizeTags(d.Tags, tags)
		source := d.Source
		if source == "" {
			source = req.Source
		}
		if source == "" {
			source = "manual"
		}
		chunks := chunker.Chunk(d.Text)
		if len(chunks) == 0 {
			result.Skipped++
			continue
		}
		for idx, text := range chunks {
			key := ingest.Key(d.Title, text, d.URL)
			if seen.Seen(key) {
				result.Skipped++
				continue
			}
			seen.Add(key)
			title := d.Title
			if title == "" {
				title = d.URL
			}
			if title == "" {
				title = fmt.Sprintf("doc_%d", result.CreatedChunks)
			}
			chunk := &models.Chunk{
				ID:         newChunkID(),
				Title:      title,
				Text:       text,
				URL:        d.URL,
				Domain:     dDomain,
				Tags:       dTags,
				Source:     source,
				ChunkIndex: idx,
				CreatedAt:  time.Now().UnixMilli(),
			}
			if err := e.store.AppendChunk(ctx, chunk); err != nil {
				return nil, fmt.Errorf("append chunk: %w", err)
			}
			result.CreatedChunks++
		}
	}

	if req.Rebuild() {
		idx, err := e.rebuildLocked(ctx)
		if err != nil {
			return nil, err
		}
		result.Index = idx
	} else {
		result.Index = &models.RebuildResult{Skipped: true}
		// The next rebuild or snapshot load will pick up the new chunks;
		// an existing handle keeps serving the prior snapshot until then.
	}
	if e.logger != nil {
		e.logger.Info("ingest complete",
			zap.Int("created_chunks", result.CreatedChunks),
			zap.Int("skipped", result.Skipped),
			zap.Int("urls_fetched", result.URLsFetched),
			zap.Int("fetch_errors", len(result.Errors)))
	}
	return result, nil
}

func (e *Engine) fetchText(ctx context.Context, rawURL string) (string, error) {
	if e.fetcher == nil {
		return "", fmt.Errorf("no fetcher configured")
	}
	return e.fetcher.FetchText(ctx, rawURL)
}

// newChunkID returns a unique, time-prefixed chunk ID so IDs sort roughly
// by creation order.
func newChunkID() string {
	return fmt.Sprintf("chunk-%d-%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}

func normalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	if d == "" {
		return "general"
	}
	return d
}

// normalizeTags lower-cases and trims tags, merges in extra, and returns a
// sorted, de-duplicated list.
func normalizeTags(tags, extra []string) []string {
	set := make(map[string]struct{}, len(tags)+len(extra))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			set[t] = struct{}{}
		}
	}
	for _, t := range extra {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			set[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
