package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/pkg/utils"
)

const noEvidenceAnswer = "I could not find matching indexed evidence yet. Ingest trusted sources first."

const (
	conciseHits     = 3
	conciseSnippet  = 220
	balancedHits    = 5
	balancedSnippet = 360
)

// Answer searches for evidence and stitches the top hits into a short
// templated answer with a confidence score and optional citations.
func (e *Engine) Answer(ctx context.Context, req *models.AnswerRequest) (*models.AnswerResponse, error) {
	// The answer path searches with a lower score floor than plain search so
	// weak but usable evidence still contributes.
	minScore := e.answerMinScore
	searchRes, err := e.Search(ctx, &models.SearchRequest{
		Query:    req.Question,
		Domain:   req.Domain,
		TopK:     req.TopK,
		MinScore: &minScore,
	})
	if err != nil {
		return nil, err
	}
	hits := searchRes.Results

	citations := []models.Citation{}
	if req.WantCitations() {
		for _, h := range hits {
			title := h.Title
			if title == "" {
				title = h.ID
			}
			domain := h.Domain
			if domain == "" {
				domain = "general"
			}
			citations = append(citations, models.Citation{
				Title:  title,
				URL:    h.URL,
				Domain: domain,
				Score:  h.Score,
			})
		}
	}

	var confidence float64
	if len(hits) > 0 {
		bonus := 0.0
		if len(hits) >= 3 {
			bonus = 0.1
		}
		confidence = utils.Round(utils.Clamp(hits[0].Score+bonus, 0.2, 0.95), 3)
	}

	return &models.AnswerResponse{
		Question:      req.Question,
		Domain:        normalizeDomain(req.Domain),
		Answer:        synthesizeAnswer(req.Question, hits, req.Mode),
		Confidence:    confidence,
		Citations:     citations,
		EvidenceCount: len(hits),
	}, nil
}

// synthesizeAnswer stitches hit snippets into a templated answer.
// Concise mode uses at most 3 hits with short snippets; the default
// balanced mode uses at most 5 numbered, longer snippets.
func synthesizeAnswer(question string, hits []models.SearchHit, mode string) string {
	if len(hits) == 0 {
		return noEvidenceAnswer
	}
	if mode == models.ModeConcise {
		lines := []string{fmt.Sprintf("Answer focus: %s", question), "", "Key evidence:"}
		for _, h := range hits {
			if len(lines) >= 3+conciseHits {
				break
			}
			snippet := strings.TrimSpace(h.Text)
			lines = append(lines, fmt.Sprintf("- %s...", utils.Cap(snippet, conciseSnippet)))
		}
		return strings.Join(lines, "\n")
	}
	lines := []string{fmt.Sprintf("Question: %s", question), "", "Synthesized answer from indexed sources:"}
	for i, h := range hits {
		if i >= balancedHits {
			break
		}
		snippet := strings.TrimSpace(h.Text)
		lines = append(lines, fmt.Sprintf("%d. %s...", i+1, utils.Cap(snippet, balancedSnippet)))
	}
	return strings.Join(lines, "\n")
}

func roundScore(score float64) float64 {
	return utils.Round(score, 6)
}
