// Package engine coordinates ingestion, indexing, search, answers, and
// feedback over the chunk store and the TF-IDF snapshot.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/hyperjump/kioku/internal/fetch"
	"github.com/hyperjump/kioku/internal/index"
	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/storage"
	"go.uber.org/zap"
)

// ErrInvalidRequest marks client-side validation failures (empty query,
// ingest request with neither docs nor urls). These never reach the store.
var ErrInvalidRequest = errors.New("invalid request")

// snapshotHandle pairs an immutable snapshot with the chunk lookup for its
// doc IDs. Handles are replaced wholesale on rebuild and never mutated, so
// searches can read them without holding the engine lock.
type snapshotHandle struct {
	snap *index.Snapshot
	byID map[string]*models.Chunk
}

// Engine is the retrieval engine. A single mutex serializes all mutating
// operations (ingest, rebuild, feedback distillation); searches take the
// lock only long enough to obtain the current snapshot handle.
type Engine struct {
	store        storage.Store
	fetcher      fetch.Fetcher
	snapshotPath string
	logger       *zap.Logger

	chunkChars      int
	overlapChars    int
	defaultTopK     int
	defaultMinScore float64
	answerMinScore  float64

	mu     sync.Mutex
	handle *snapshotHandle
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets a logger for operational events.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithFetcher sets the URL fetcher used for URL ingestion.
// Without one, URL entries fail with a per-URL error.
func WithFetcher(f fetch.Fetcher) Option {
	return func(e *Engine) { e.fetcher = f }
}

// WithChunking sets the default chunk window and overlap in characters.
func WithChunking(chunkChars, overlapChars int) Option {
	return func(e *Engine) {
		e.chunkChars = chunkChars
		e.overlapChars = overlapChars
	}
}

// WithSearchDefaults sets the default top-k, minimum score, and the lower
// minimum score used by the answer path.
func WithSearchDefaults(topK int, minScore, answerMinScore float64) Option {
	return func(e *Engine) {
		e.defaultTopK = topK
		e.defaultMinScore = minScore
		e.answerMinScore = answerMinScore
	}
}

// NewEngine creates an engine over the given store, persisting the index
// snapshot at snapshotPath.
func NewEngine(store storage.Store, snapshotPath string, opts ...Option) *Engine {
	e := &Engine{
		store:           store,
		snapshotPath:    snapshotPath,
		chunkChars:      1200,
		overlapChars:    160,
		defaultTopK:     6,
		defaultMinScore: 0.08,
		answerMinScore:  0.06,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rebuild recomputes the snapshot from a full store scan, persists it
// atomically, and swaps it in as the current handle.
func (e *Engine) Rebuild(ctx context.Context) (*models.RebuildResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rebuildLocked(ctx)
}

func (e *Engine) rebuildLocked(ctx context.Context) (*models.RebuildResult, error) {
	chunks, err := e.store.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan store: %w", err)
	}
	snap := index.Build(chunks)
	if err := snap.Save(e.snapshotPath); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}
	e.handle = &snapshotHandle{snap: snap, byID: chunksByID(chunks)}
	if e.logger != nil {
		e.logger.Info("index rebuilt",
			zap.Int("total_docs", snap.TotalDocs),
			zap.Int64("version", snap.Version))
	}
	return &models.RebuildResult{TotalDocs: snap.TotalDocs, Version: snap.Version}, nil
}

// currentHandle returns the current snapshot handle, loading it from disk or
// rebuilding from the store when absent. A missing snapshot is the normal
// first-run state; a corrupt one is discarded and rebuilt.
func (e *Engine) currentHandle(ctx context.Context) (*snapshotHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handle != nil {
		return e.handle, nil
	}
	snap, err := index.Load(e.snapshotPath)
	switch {
	case err == nil:
		chunks, listErr := e.store.ListChunks(ctx)
		if listErr != nil {
			return nil, fmt.Errorf("scan store: %w", listErr)
		}
		e.handle = &snapshotHandle{snap: snap, byID: chunksByID(chunks)}
		return e.handle, nil
	case errors.Is(err, index.ErrSnapshotMissing):
		if e.logger != nil {
			e.logger.Info("no snapshot yet, building from store")
		}
	case errors.Is(err, index.ErrSnapshotCorrupt):
		if e.logger != nil {
			e.logger.Warn("snapshot corrupt, discarding and rebuilding", zap.Error(err))
		}
	default:
		return nil, err
	}
	if _, err := e.rebuildLocked(ctx); err != nil {
		return nil, err
	}
	return e.handle, nil
}

// Stats summarizes the corpus and feedback log.
func (e *Engine) Stats(ctx context.Context) (*models.StatsResponse, error) {
	total, err := e.store.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	domains, err := e.store.DomainCounts(ctx)
	if err != nil {
		return nil, err
	}
	feedback, err := e.store.CountFeedback(ctx)
	if err != nil {
		return nil, err
	}
	_, statErr := os.Stat(e.snapshotPath)
	return &models.StatsResponse{
		TotalDocuments: total,
		Domains:        domains,
		FeedbackCount:  feedback,
		IndexExists:    statErr == nil,
	}, nil
}

func chunksByID(chunks []*models.Chunk) map[string]*models.Chunk {
	m := make(map[string]*models.Chunk, len(chunks))
	for _, c := range chunks {
		m[c.ID] = c
	}
	return m
}
