package ingest

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/bugaboo-team/nudge/internal/document"
	"github.com/bugaboo-team/nudge/internal/retrieval"
	"github.com/bugaboo-team/nudge/internal/storage"
)

// topicVector maps text to a vector whose dimensions count topic keywords,
// so similarity between a query and a chunk reflects shared content.
func topicVector(text string) []float32 {
	return []float32{
		float32(strings.Count(text, "merge")),
		float32(strings.Count(text, "pivot")),
	}
}

type topicEmbedder struct{}

func (topicEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = topicVector(t)
	}
	return vecs, nil
}

// Ingests a two-topic page through the real splitter and SQLite store, then
// searches for the second topic and expects the chunk that covers it to rank
// first.
func TestIngestThenSearch(t *testing.T) {
	st, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	defer st.Close()

	vs := retrieval.NewSQLiteStore(st.DB())
	p := NewPipeline(NewSplitter(800, 80), topicEmbedder{}, vs, st, slog.New(slog.DiscardHandler))

	text := strings.Repeat("merge joins two frames on a key column. ", 20) +
		strings.Repeat("pivot tables reshape long data into wide summaries. ", 5)
	docs := []document.Document{
		{Text: strings.TrimSpace(text), Source: "week4.pdf", Locator: "page-2"},
	}

	n, err := p.Ingest(context.Background(), docs)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n < 2 {
		t.Fatalf("got %d chunks, want at least 2", n)
	}

	scored, err := vs.Search(topicVector("pivot"), 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(scored) == 0 {
		t.Fatal("search returned no results")
	}
	top := scored[0]
	if !strings.Contains(top.Text, "pivot") {
		t.Errorf("top result does not cover the queried topic: %q", top.Text)
	}
	if top.Source != "week4.pdf" || top.Locator != "page-2" {
		t.Errorf("top result provenance = %s/%s, want week4.pdf/page-2", top.Source, top.Locator)
	}
	if top.ChunkIndex == 0 {
		t.Error("top result is the first chunk, which covers the other topic")
	}

	// Re-ingesting the same page overwrites by ID instead of duplicating.
	if _, err := p.Ingest(context.Background(), docs); err != nil {
		t.Fatalf("re-Ingest: %v", err)
	}
	count, err := vs.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != n {
		t.Errorf("count after re-ingest = %d, want %d", count, n)
	}
}
