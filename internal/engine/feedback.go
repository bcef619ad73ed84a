package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/pkg/utils"
	"go.uber.org/zap"
)

// Feedback appends the submission to the feedback log unconditionally,
// normalizing an invalid rating to neutral. An up-rated pair with non-empty
// query and answer is distilled into a new retrievable chunk and routed back
// through ingestion with a mandatory rebuild; deduplication keeps repeated
// identical feedback from growing the corpus.
func (e *Engine) Feedback(ctx context.Context, req *models.FeedbackRequest) (*models.FeedbackRecord, error) {
	rating := strings.ToLower(strings.TrimSpace(req.Rating))
	switch rating {
	case models.RatingUp, models.RatingDown, models.RatingNeutral:
	default:
		rating = models.RatingNeutral
	}
	citations := req.Citations
	if citations == nil {
		citations = []models.Citation{}
	}
	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}
	record := &models.FeedbackRecord{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UnixMilli(),
		Query:     req.Query,
		Answer:    req.Answer,
		Rating:    rating,
		Citations: citations,
		Domain:    normalizeDomain(req.Domain),
		Tags:      tags,
	}

	e.mu.Lock()
	err := e.store.AppendFeedback(ctx, record)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("append feedback: %w", err)
	}

	if rating == models.RatingUp && strings.TrimSpace(req.Query) != "" && strings.TrimSpace(req.Answer) != "" {
		// Distillation failure never fails the submission; the record is
		// already appended and the memory can be re-derived later.
		if err := e.distill(ctx, record); err != nil {
			if e.logger != nil {
				e.logger.Warn("feedback distillation failed", zap.Error(err))
			}
		}
	}
	return record, nil
}

// distill converts an approved (query, answer) pair into additional
// retrievable memory.
func (e *Engine) distill(ctx context.Context, record *models.FeedbackRecord) error {
	_, err := e.Ingest(ctx, &models.IngestRequest{
		Docs: []models.IngestDoc{{
			Title:  fmt.Sprintf("feedback:%s", utils.Cap(record.Query, 80)),
			Text:   fmt.Sprintf("Q: %s\nA: %s", record.Query, record.Answer),
			Domain: record.Domain,
			Tags:   append(append([]string{}, record.Tags...), "feedback", "approved"),
			Source: "feedback",
		}},
		Domain: record.Domain,
	})
	return err
}
