// Package storage provides the JSONL implementation of the Store interface.
package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hyperjump/kioku/internal/models"
)

const (
	chunksFile   = "chunks.jsonl"
	feedbackFile = "feedback.jsonl"
)

// JSONLStore persists chunks and feedback as newline-delimited JSON files,
// one record per line, append-only. Reads always scan the file from disk so
// a listing reflects every append that completed before it.
type JSONLStore struct {
	dir          string
	chunksPath   string
	feedbackPath string
	mu           sync.Mutex // serializes appends within the process
}

// NewJSONLStore opens or creates the store under dir.
// Parent directories and empty record files are created if missing.
func NewJSONLStore(dir string) (*JSONLStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	s := &JSONLStore{
		dir:          dir,
		chunksPath:   filepath.Join(dir, chunksFile),
		feedbackPath: filepath.Join(dir, feedbackFile),
	}
	for _, p := range []string{s.chunksPath, s.feedbackPath} {
		if err := touch(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

// AppendChunk appends one chunk record.
func (s *JSONLStore) AppendChunk(ctx context.Context, chunk *models.Chunk) error {
	return s.appendJSON(s.chunksPath, chunk)
}

// ListChunks returns all chunks in insertion order.
// Blank and malformed lines are skipped.
func (s *JSONLStore) ListChunks(ctx context.Context) ([]*models.Chunk, error) {
	var chunks []*models.Chunk
	err := s.scanLines(s.chunksPath, func(line []byte) {
		var c models.Chunk
		if err := json.Unmarshal(line, &c); err == nil {
			chunks = append(chunks, &c)
		}
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// GetChunk returns the chunk with the given id, or an error if not found.
func (s *JSONLStore) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	chunks, err := s.ListChunks(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("chunk not found: %s", id)
}

// CountChunks returns the number of stored chunks.
func (s *JSONLStore) CountChunks(ctx context.Context) (int64, error) {
	chunks, err := s.ListChunks(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(chunks)), nil
}

// DomainCounts returns the number of chunks per lower-cased domain.
// Chunks without a domain count under "general".
func (s *JSONLStore) DomainCounts(ctx context.Context) (map[string]int, error) {
	chunks, err := s.ListChunks(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, c := range chunks {
		d := strings.ToLower(strings.TrimSpace(c.Domain))
		if d == "" {
			d = "general"
		}
		counts[d]++
	}
	return counts, nil
}

// AppendFeedback appends one feedback record.
func (s *JSONLStore) AppendFeedback(ctx context.Context, rec *models.FeedbackRecord) error {
	return s.appendJSON(s.feedbackPath, rec)
}

// CountFeedback returns the number of feedback records.
func (s *JSONLStore) CountFeedback(ctx context.Context) (int64, error) {
	var n int64
	err := s.scanLines(s.feedbackPath, func(line []byte) {
		var rec models.FeedbackRecord
		if json.Unmarshal(line, &rec) == nil {
			n++
		}
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Close is a no-op; files are opened per operation.
func (s *JSONLStore) Close() error {
	return nil
}

func (s *JSONLStore) appendJSON(path string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append to %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *JSONLStore) scanLines(path string, fn func(line []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		fn(line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", filepath.Base(path), err)
	}
	return nil
}
