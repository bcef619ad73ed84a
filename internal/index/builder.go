package index

import (
	"math"
	"sort"
	"time"

	"github.com/hyperjump/kioku/internal/models"
)

// Build computes a TF-IDF snapshot over the full ordered chunk list.
// Vocabulary columns are assigned in sorted term order, so two builds over
// the same corpus produce identical snapshots (modulo the version stamp).
// An empty corpus yields an empty snapshot with TotalDocs 0 and no matrix.
func Build(chunks []*models.Chunk) *Snapshot {
	version := time.Now().UnixMilli()
	if len(chunks) == 0 {
		return &Snapshot{Version: version, Vocabulary: map[string]int{}}
	}

	n := len(chunks)
	docTerms := make([][]string, n)
	df := make(map[string]int)
	for i, c := range chunks {
		terms := Tokenize(c.Text)
		docTerms[i] = terms
		seen := make(map[string]struct{}, len(terms))
		for _, t := range terms {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	vocabulary := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	for col, t := range terms {
		vocabulary[t] = col
		idf[col] = math.Log(float64(1+n)/float64(1+df[t])) + 1.0
	}

	snap := &Snapshot{
		Version:      version,
		DocIDs:       make([]string, n),
		Vocabulary:   vocabulary,
		IDFWeights:   idf,
		MatrixIndptr: make([]int, 1, n+1),
		MatrixRows:   n,
		MatrixCols:   len(terms),
		TotalDocs:    n,
	}
	for i, c := range chunks {
		snap.DocIDs[i] = c.ID
		row := Vectorize(c.Text, vocabulary, idf)
		for col, v := range row {
			if v != 0 {
				snap.MatrixData = append(snap.MatrixData, v)
				snap.MatrixIndices = append(snap.MatrixIndices, col)
			}
		}
		snap.MatrixIndptr = append(snap.MatrixIndptr, len(snap.MatrixData))
	}
	return snap
}
