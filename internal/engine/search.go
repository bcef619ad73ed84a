package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hyperjump/kioku/internal/index"
	"github.com/hyperjump/kioku/internal/ingest"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/pkg/utils"
)

const snippetMaxChars = 1500

// Search ranks chunks by cosine similarity between the query and each matrix
// row, using the snapshot's frozen vocabulary and IDF weights. The similarity
// computation runs lock-free against an immutable snapshot handle, so
// concurrent searches neither block each other nor a rebuild in progress.
func (e *Engine) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	query := ingest.Sanitize(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: missing query", ErrInvalidRequest)
	}
	req.Normalize(e.defaultTopK, e.defaultMinScore)

	handle, err := e.currentHandle(ctx)
	if err != nil {
		return nil, err
	}
	snap := handle.snap
	response := &models.SearchResponse{
		Query:        req.Query,
		Results:      []models.SearchHit{},
		IndexVersion: snap.Version,
	}
	if snap.TotalDocs == 0 {
		return response, nil
	}

	queryVec := index.Vectorize(query, snap.Vocabulary, snap.IDFWeights)
	matrix := snap.Matrix()
	scores := make([]float64, matrix.Rows)
	for row := 0; row < matrix.Rows; row++ {
		scores[row] = matrix.RowDot(row, queryVec)
	}

	// Descending score; equal scores resolve to the lowest row index.
	order := make([]int, matrix.Rows)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		if scores[order[i]] != scores[order[j]] {
			return scores[order[i]] > scores[order[j]]
		}
		return order[i] < order[j]
	})

	domainFilter := strings.ToLower(strings.TrimSpace(req.Domain))
	for _, row := range order {
		if scores[row] < *req.MinScore {
			continue
		}
		chunk, ok := handle.byID[snap.DocIDs[row]]
		if !ok {
			continue
		}
		// Filtering happens after scoring so the score reflects the full
		// corpus, not a domain-restricted fit.
		if domainFilter != "" && normalizeDomain(chunk.Domain) != domainFilter {
			continue
		}
		response.Results = append(response.Results, newHit(scores[row], chunk))
		if len(response.Results) >= req.TopK {
			break
		}
	}
	response.Count = len(response.Results)
	return response, nil
}

func newHit(score float64, chunk *models.Chunk) models.SearchHit {
	tags := chunk.Tags
	if tags == nil {
		tags = []string{}
	}
	text := utils.Cap(chunk.Text, snippetMaxChars)
	return models.SearchHit{
		Score:  roundScore(score),
		ID:     chunk.ID,
		Title:  chunk.Title,
		URL:    chunk.URL,
		Domain: chunk.Domain,
		Tags:   tags,
		Text:   text,
		Source: chunk.Source,
	}
}
