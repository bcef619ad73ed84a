package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Sentinel errors for snapshot loading. Both recover via a full rebuild,
// but callers log them differently: missing is the normal first-run state,
// corrupt means a previously written snapshot could not be trusted.
var (
	ErrSnapshotMissing = errors.New("snapshot missing")
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")
)

// Snapshot is the persisted, versioned index artifact: the frozen vocabulary
// and IDF weights plus the L2-normalized TF-IDF matrix over the corpus.
// It is rebuilt wholesale from a full store scan and never patched.
type Snapshot struct {
	Version       int64          `json:"index_version"`
	DocIDs        []string       `json:"doc_ids"`
	Vocabulary    map[string]int `json:"vocabulary"`
	IDFWeights    []float64      `json:"idf_weights"`
	MatrixData    []float64      `json:"matrix_data"`
	MatrixIndices []int          `json:"matrix_indices"`
	MatrixIndptr  []int          `json:"matrix_indptr"`
	MatrixRows    int            `json:"matrix_rows"`
	MatrixCols    int            `json:"matrix_cols"`
	TotalDocs     int            `json:"total_docs"`
}

// Matrix returns the snapshot's sparse matrix view.
func (s *Snapshot) Matrix() *CSRMatrix {
	return &CSRMatrix{
		Data:    s.MatrixData,
		Indices: s.MatrixIndices,
		Indptr:  s.MatrixIndptr,
		Rows:    s.MatrixRows,
		Cols:    s.MatrixCols,
	}
}

// Validate checks the snapshot invariants: row count matches doc IDs,
// column count matches vocabulary and IDF weights, and the matrix is
// structurally sound. An empty snapshot (TotalDocs 0) is valid.
func (s *Snapshot) Validate() error {
	if s.TotalDocs == 0 {
		if len(s.DocIDs) != 0 || s.MatrixRows != 0 {
			return fmt.Errorf("empty snapshot carries %d doc ids and %d rows", len(s.DocIDs), s.MatrixRows)
		}
		return nil
	}
	if len(s.DocIDs) != s.MatrixRows {
		return fmt.Errorf("doc_ids length %d does not match %d matrix rows", len(s.DocIDs), s.MatrixRows)
	}
	if len(s.IDFWeights) != len(s.Vocabulary) || len(s.IDFWeights) != s.MatrixCols {
		return fmt.Errorf("idf weights %d, vocabulary %d, matrix cols %d must all match",
			len(s.IDFWeights), len(s.Vocabulary), s.MatrixCols)
	}
	if s.TotalDocs != s.MatrixRows {
		return fmt.Errorf("total_docs %d does not match %d matrix rows", s.TotalDocs, s.MatrixRows)
	}
	return s.Matrix().Validate()
}

// Save writes the snapshot atomically: marshal to a temp file in the same
// directory, then rename into place. A concurrent reader sees either the
// previous snapshot or this one in full, never a partial write.
func (s *Snapshot) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load reads and validates the snapshot at path.
// Returns ErrSnapshotMissing when no file exists, or an error wrapping
// ErrSnapshotCorrupt when the file cannot be parsed or fails validation.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotMissing
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	return &s, nil
}
