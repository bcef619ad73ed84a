// Package storage defines the persistence interface for chunks and feedback.
package storage

import (
	"context"

	"github.com/hyperjump/kioku/internal/models"
)

// Store defines append-only persistence for chunks and feedback records.
// There are no update or delete operations; corrections are new chunks.
type Store interface {
	// Chunk operations
	AppendChunk(ctx context.Context, chunk *models.Chunk) error
	ListChunks(ctx context.Context) ([]*models.Chunk, error)
	GetChunk(ctx context.Context, id string) (*models.Chunk, error)
	CountChunks(ctx context.Context) (int64, error)
	DomainCounts(ctx context.Context) (map[string]int, error)

	// Feedback operations
	AppendFeedback(ctx context.Context, rec *models.FeedbackRecord) error
	CountFeedback(ctx context.Context) (int64, error)

	Close() error
}
