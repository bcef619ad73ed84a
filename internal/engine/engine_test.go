package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/kioku/internal/models"
	"github.com/hyperjump/kioku/internal/storage"
)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewJSONLStore(dir)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	eng := NewEngine(store, filepath.Join(dir, "index.json"), opts...)
	return eng, dir
}

func reopenEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	store, err := storage.NewJSONLStore(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewEngine(store, filepath.Join(dir, "index.json"))
}

func floor(v float64) *float64 {
	return &v
}

func mustIngest(t *testing.T, eng *Engine, req *models.IngestRequest) *models.IngestResult {
	t.Helper()
	res, err := eng.Ingest(context.Background(), req)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	return res
}

func TestIngestSearchRoundtrip(t *testing.T) {
	eng, _ := newTestEngine(t)
	res := mustIngest(t, eng, &models.IngestRequest{
		Docs: []models.IngestDoc{{
			Title:  "A",
			Text:   "Cats are mammals. Cats purr softly.",
			Domain: "bio",
		}},
	})
	if res.CreatedChunks != 1 {
		t.Fatalf("created_chunks = %d, want 1", res.CreatedChunks)
	}
	if res.Index == nil || res.Index.TotalDocs != 1 {
		t.Fatalf("index result: %+v", res.Index)
	}

	sr, err := eng.Search(context.Background(), &models.SearchRequest{
		Query:    "mammals",
		Domain:   "bio",
		TopK:     3,
		MinScore: floor(0.01),
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if sr.Count != 1 || len(sr.Results) != 1 {
		t.Fatalf("got %d results, want 1", sr.Count)
	}
	hit := sr.Results[0]
	if hit.Title != "A" || hit.Domain != "bio" {
		t.Errorf("unexpected hit: %+v", hit)
	}
	if hit.Score <= 0 {
		t.Errorf("score = %v, want > 0", hit.Score)
	}
	if sr.IndexVersion != res.Index.Version {
		t.Errorf("index version %d, want %d", sr.IndexVersion, res.Index.Version)
	}
}

func TestIngestValidation(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.Ingest(context.Background(), &models.IngestRequest{})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestIngestIdempotent(t *testing.T) {
	eng, _ := newTestEngine(t)
	doc := models.IngestDoc{Title: "A", Text: "Cats are mammals. Cats purr softly.", Domain: "bio"}

	first := mustIngest(t, eng, &models.IngestRequest{Docs: []models.IngestDoc{doc}})
	if first.CreatedChunks != 1 || first.Skipped != 0 {
		t.Fatalf("first ingest: %+v", first)
	}
	second := mustIngest(t, eng, &models.IngestRequest{Docs: []models.IngestDoc{doc}})
	if second.CreatedChunks != 0 || second.Skipped != 1 {
		t.Errorf("re-ingest should be skipped: %+v", second)
	}

	stats, err := eng.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalDocuments != 1 {
		t.Errorf("total documents = %d, want 1", stats.TotalDocuments)
	}
}

func TestIngestIdempotentMultibyte(t *testing.T) {
	// A window boundary falling inside a multi-byte sequence must not corrupt
	// the stored text, or the dedup key seeded from the store would never
	// match the key computed on re-ingestion.
	eng, _ := newTestEngine(t)
	doc := models.IngestDoc{Title: "accents", Text: "a" + strings.Repeat("é", 400)}
	req := &models.IngestRequest{
		Docs:       []models.IngestDoc{doc},
		ChunkChars: 300, OverlapChars: 40,
	}
	first := mustIngest(t, eng, req)
	if first.CreatedChunks != 2 || first.Skipped != 0 {
		t.Fatalf("first ingest: %+v", first)
	}
	second := mustIngest(t, eng, &models.IngestRequest{
		Docs:       []models.IngestDoc{doc},
		ChunkChars: 300, OverlapChars: 40,
	})
	if second.CreatedChunks != 0 || second.Skipped != 2 {
		t.Errorf("multibyte re-ingest should be skipped: %+v", second)
	}
}

func TestIngestDuplicateWithinBatch(t *testing.T) {
	eng, _ := newTestEngine(t)
	doc := models.IngestDoc{Title: "A", Text: "identical batch document text here"}
	res := mustIngest(t, eng, &models.IngestRequest{Docs: []models.IngestDoc{doc, doc}})
	if res.CreatedChunks != 1 || res.Skipped != 1 {
		t.Errorf("within-batch dedup: %+v", res)
	}
}

func TestIngestEmptyDocSkipped(t *testing.T) {
	eng, _ := newTestEngine(t)
	res := mustIngest(t, eng, &models.IngestRequest{
		Docs: []models.IngestDoc{
			{Title: "empty", Text: "<p>   </p>"},
			{Title: "real", Text: "actual document content"},
		},
	})
	if res.CreatedChunks != 1 || res.Skipped != 1 {
		t.Errorf("empty doc handling: %+v", res)
	}
}

func TestIngestSkipRebuild(t *testing.T) {
	eng, _ := newTestEngine(t)
	noRebuild := false
	res := mustIngest(t, eng, &models.IngestRequest{
		Docs:         []models.IngestDoc{{Title: "A", Text: "some document text"}},
		RebuildIndex: &noRebuild,
	})
	if res.Index == nil || !res.Index.Skipped {
		t.Errorf("expected skipped rebuild marker: %+v", res.Index)
	}
}

func TestIngestDefaultsAndNormalization(t *testing.T) {
	eng, dir := newTestEngine(t)
	mustIngest(t, eng, &models.IngestRequest{
		Docs:   []models.IngestDoc{{Title: "A", Text: "tagged document text", Tags: []string{" Beta ", "alpha", "beta"}}},
		Domain: "  BIO  ",
	})
	store, err := storage.NewJSONLStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := store.ListChunks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	c := chunks[0]
	if c.Domain != "bio" {
		t.Errorf("domain = %q, want bio", c.Domain)
	}
	if len(c.Tags) != 2 || c.Tags[0] != "alpha" || c.Tags[1] != "beta" {
		t.Errorf("tags = %v, want sorted deduped [alpha beta]", c.Tags)
	}
	if c.Source != "manual" {
		t.Errorf("source = %q, want manual", c.Source)
	}
	if !strings.HasPrefix(c.ID, "chunk-") {
		t.Errorf("chunk id = %q", c.ID)
	}
}

func TestIngestURLWithoutFetcher(t *testing.T) {
	eng, _ := newTestEngine(t)
	res := mustIngest(t, eng, &models.IngestRequest{URLs: []string{"https://example.org/doc"}})
	if len(res.Errors) != 1 || res.URLsFetched != 0 {
		t.Errorf("expected per-URL error: %+v", res)
	}
	if res.Errors[0].URL != "https://example.org/doc" {
		t.Errorf("error url = %q", res.Errors[0].URL)
	}
}

type staticFetcher struct {
	text string
	err  error
}

func (f *staticFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	return f.text, f.err
}

func TestIngestURLFetched(t *testing.T) {
	eng, _ := newTestEngine(t, WithFetcher(&staticFetcher{text: "fetched page content about orchids"}))
	res := mustIngest(t, eng, &models.IngestRequest{URLs: []string{"https://flowers.example/orchids"}})
	if res.URLsFetched != 1 || res.CreatedChunks != 1 {
		t.Fatalf("url ingest: %+v", res)
	}
	sr, err := eng.Search(context.Background(), &models.SearchRequest{Query: "orchids", MinScore: floor(0.01)})
	if err != nil {
		t.Fatal(err)
	}
	if sr.Count != 1 {
		t.Fatalf("got %d results", sr.Count)
	}
	hit := sr.Results[0]
	if hit.Source != "url_crawl" || hit.URL != "https://flowers.example/orchids" {
		t.Errorf("unexpected hit: %+v", hit)
	}
}

func TestIngestURLFailureIsolated(t *testing.T) {
	eng, _ := newTestEngine(t, WithFetcher(&staticFetcher{err: fmt.Errorf("boom")}))
	res := mustIngest(t, eng, &models.IngestRequest{
		Docs: []models.IngestDoc{{Title: "inline", Text: "inline document survives the failed fetch"}},
		URLs: []string{"https://down.example/x"},
	})
	if res.CreatedChunks != 1 {
		t.Errorf("inline doc should still be ingested: %+v", res)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0].Error, "boom") {
		t.Errorf("fetch error not recorded: %+v", res.Errors)
	}
}

func TestSearchValidation(t *testing.T) {
	eng, _ := newTestEngine(t)
	for _, q := range []string{"", "   ", "<p>  </p>"} {
		_, err := eng.Search(context.Background(), &models.SearchRequest{Query: q})
		if !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("query %q: expected ErrInvalidRequest, got %v", q, err)
		}
	}
}

func TestSearchEmptyCorpus(t *testing.T) {
	eng, _ := newTestEngine(t)
	sr, err := eng.Search(context.Background(), &models.SearchRequest{Query: "anything"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if sr.Count != 0 || sr.Results == nil || len(sr.Results) != 0 {
		t.Errorf("empty corpus should return an empty non-nil result list: %+v", sr)
	}
}

func TestSearchScoreFloor(t *testing.T) {
	eng, _ := newTestEngine(t)
	mustIngest(t, eng, &models.IngestRequest{
		Docs: []models.IngestDoc{{Title: "A", Text: "Cats purr softly near windows"}},
	})
	sr, err := eng.Search(context.Background(), &models.SearchRequest{Query: "submarine engines", MinScore: floor(0.01)})
	if err != nil {
		t.Fatal(err)
	}
	if sr.Count != 0 {
		t.Errorf("unrelated query matched: %+v", sr.Results)
	}
}

func TestSearchExplicitZeroFloor(t *testing.T) {
	// An explicit zero floor is honored, not replaced by the default: even
	// zero-score rows stay in the ranking.
	eng, _ := newTestEngine(t)
	mustIngest(t, eng, &models.IngestRequest{
		Docs: []models.IngestDoc{
			{Title: "match", Text: "Cats purr softly near windows"},
			{Title: "unrelated", Text: "submarine engines run on diesel"},
		},
	})
	sr, err := eng.Search(context.Background(), &models.SearchRequest{Query: "cats purr", MinScore: floor(0)})
	if err != nil {
		t.Fatal(err)
	}
	if sr.Count != 2 {
		t.Fatalf("zero floor should keep all rows, got %d", sr.Count)
	}
	if sr.Results[0].Title != "match" {
		t.Errorf("ranking: %+v", sr.Results)
	}

	// Unset still means the engine default (0.08), which drops the zero row.
	defaulted, err := eng.Search(context.Background(), &models.SearchRequest{Query: "cats purr"})
	if err != nil {
		t.Fatal(err)
	}
	if defaulted.Count != 1 {
		t.Errorf("default floor should drop the unrelated row, got %d", defaulted.Count)
	}
}

func TestSearchDomainFilter(t *testing.T) {
	eng, _ := newTestEngine(t)
	mustIngest(t, eng, &models.IngestRequest{
		Docs: []models.IngestDoc{
			{Title: "bio-doc", Text: "Cats are mammals and purr", Domain: "bio"},
			{Title: "infra-doc", Text: "Cats in the server room purr too", Domain: "infra"},
		},
	})
	sr, err := eng.Search(context.Background(), &models.SearchRequest{Query: "cats purr", Domain: "BIO", MinScore: floor(0.01)})
	if err != nil {
		t.Fatal(err)
	}
	if sr.Count != 1 {
		t.Fatalf("got %d results, want 1", sr.Count)
	}
	if sr.Results[0].Title != "bio-doc" {
		t.Errorf("wrong document: %+v", sr.Results[0])
	}

	all, err := eng.Search(context.Background(), &models.SearchRequest{Query: "cats purr", MinScore: floor(0.01)})
	if err != nil {
		t.Fatal(err)
	}
	if all.Count != 2 {
		t.Errorf("unfiltered search got %d results, want 2", all.Count)
	}
}

func TestSearchTopKClamped(t *testing.T) {
	eng, _ := newTestEngine(t)
	docs := make([]models.IngestDoc, 5)
	for i := range docs {
		docs[i] = models.IngestDoc{
			Title: fmt.Sprintf("doc-%d", i),
			Text:  fmt.Sprintf("shared keyword retrieval plus unique token%d", i),
		}
	}
	mustIngest(t, eng, &models.IngestRequest{Docs: docs})
	sr, err := eng.Search(context.Background(), &models.SearchRequest{Query: "shared keyword retrieval", TopK: 2, MinScore: floor(0.01)})
	if err != nil {
		t.Fatal(err)
	}
	if sr.Count != 2 {
		t.Errorf("top_k not honored: got %d", sr.Count)
	}
	negative, err := eng.Search(context.Background(), &models.SearchRequest{Query: "shared keyword retrieval", TopK: -5, MinScore: floor(0.01)})
	if err != nil {
		t.Fatal(err)
	}
	if negative.Count != 1 {
		t.Errorf("negative top_k should clamp to 1, got %d", negative.Count)
	}
}

func TestSearchReloadScoringParity(t *testing.T) {
	eng, dir := newTestEngine(t)
	mustIngest(t, eng, &models.IngestRequest{
		Docs: []models.IngestDoc{
			{Title: "A", Text: "Cats are mammals. Cats purr softly.", Domain: "bio"},
			{Title: "B", Text: "Dogs bark loudly at night.", Domain: "bio"},
			{Title: "C", Text: "Mammals regulate their body temperature.", Domain: "bio"},
		},
	})
	query := &models.SearchRequest{Query: "mammals purr", TopK: 5, MinScore: floor(0.001)}
	before, err := eng.Search(context.Background(), query)
	if err != nil {
		t.Fatal(err)
	}

	// A fresh engine over the same data dir loads the persisted snapshot
	// instead of rebuilding, and must score identically.
	reloaded := reopenEngine(t, dir)
	after, err := reloaded.Search(context.Background(), &models.SearchRequest{Query: "mammals purr", TopK: 5, MinScore: floor(0.001)})
	if err != nil {
		t.Fatal(err)
	}
	if before.IndexVersion != after.IndexVersion {
		t.Errorf("reload changed index version: %d vs %d", before.IndexVersion, after.IndexVersion)
	}
	if len(before.Results) != len(after.Results) {
		t.Fatalf("result counts differ: %d vs %d", len(before.Results), len(after.Results))
	}
	for i := range before.Results {
		if before.Results[i].ID != after.Results[i].ID {
			t.Errorf("rank %d: id %q vs %q", i, before.Results[i].ID, after.Results[i].ID)
		}
		if math.Abs(before.Results[i].Score-after.Results[i].Score) > 1e-9 {
			t.Errorf("rank %d: score %v vs %v", i, before.Results[i].Score, after.Results[i].Score)
		}
	}
}

func TestRecoverFromCorruptSnapshot(t *testing.T) {
	eng, dir := newTestEngine(t)
	mustIngest(t, eng, &models.IngestRequest{
		Docs: []models.IngestDoc{{Title: "A", Text: "Cats are mammals. Cats purr softly."}},
	})
	if err := corruptFile(filepath.Join(dir, "index.json")); err != nil {
		t.Fatal(err)
	}

	reloaded := reopenEngine(t, dir)
	sr, err := reloaded.Search(context.Background(), &models.SearchRequest{Query: "mammals", MinScore: floor(0.01)})
	if err != nil {
		t.Fatalf("search after corrupt snapshot: %v", err)
	}
	if sr.Count != 1 {
		t.Errorf("rebuild recovery failed: got %d results", sr.Count)
	}
}

func TestRebuildEmptyStore(t *testing.T) {
	eng, _ := newTestEngine(t)
	res, err := eng.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if res.TotalDocs != 0 || res.Version == 0 {
		t.Errorf("empty rebuild: %+v", res)
	}
}

func TestStats(t *testing.T) {
	eng, _ := newTestEngine(t)
	stats, err := eng.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalDocuments != 0 || stats.FeedbackCount != 0 || stats.IndexExists {
		t.Errorf("fresh stats: %+v", stats)
	}

	mustIngest(t, eng, &models.IngestRequest{
		Docs: []models.IngestDoc{{Title: "A", Text: "stats document text", Domain: "bio"}},
	})
	stats, err = eng.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalDocuments != 1 || !stats.IndexExists {
		t.Errorf("stats after ingest: %+v", stats)
	}
	if stats.Domains["bio"] != 1 {
		t.Errorf("domain counts: %v", stats.Domains)
	}
}

func corruptFile(path string) error {
	return os.WriteFile(path, []byte("{definitely not a snapshot"), 0644)
}
