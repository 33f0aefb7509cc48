package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/bugaboo-team/nudge/internal/document"
	"github.com/bugaboo-team/nudge/internal/retrieval"
	"github.com/bugaboo-team/nudge/internal/storage"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = []float32{float32(i), 1}
	}
	return vecs, nil
}

type fakeUpserter struct {
	records []retrieval.Record
	err     error
}

func (f *fakeUpserter) Upsert(records []retrieval.Record) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, records...)
	return nil
}

type fakeSources struct {
	sources []storage.Source
}

func (f *fakeSources) UpsertSource(src storage.Source) error {
	f.sources = append(f.sources, src)
	return nil
}

func newTestPipeline(embedder *fakeEmbedder, upserter *fakeUpserter, sources *fakeSources) *Pipeline {
	return NewPipeline(NewSplitter(800, 80), embedder, upserter, sources, slog.New(slog.DiscardHandler))
}

func TestIngest(t *testing.T) {
	embedder := &fakeEmbedder{}
	upserter := &fakeUpserter{}
	sources := &fakeSources{}
	p := newTestPipeline(embedder, upserter, sources)

	docs := []document.Document{
		{Text: strings.Repeat("pandas ", 200), Source: "week1.pdf", Locator: "page-1"},
		{Text: "short page", Source: "week1.pdf", Locator: "page-2"},
	}

	n, err := p.Ingest(context.Background(), docs)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != len(upserter.records) {
		t.Errorf("returned %d but stored %d records", n, len(upserter.records))
	}
	if n < 2 {
		t.Fatalf("got %d chunks, want at least 2", n)
	}

	seen := map[string]bool{}
	for _, r := range upserter.records {
		if seen[r.ID] {
			t.Errorf("duplicate chunk ID %q", r.ID)
		}
		seen[r.ID] = true
		if len(r.Embedding) == 0 {
			t.Errorf("record %s has no embedding", r.ID)
		}
	}

	if len(sources.sources) != 1 {
		t.Fatalf("recorded %d sources, want 1", len(sources.sources))
	}
	src := sources.sources[0]
	if src.Name != "week1.pdf" || src.Kind != "pdf" {
		t.Errorf("source = %s/%s, want week1.pdf/pdf", src.Name, src.Kind)
	}
	if src.Pages != 2 {
		t.Errorf("pages = %d, want 2", src.Pages)
	}
	if src.Chunks != n {
		t.Errorf("chunks = %d, want %d", src.Chunks, n)
	}
}

func TestIngest_NoDocuments(t *testing.T) {
	embedder := &fakeEmbedder{}
	p := newTestPipeline(embedder, &fakeUpserter{}, &fakeSources{})

	n, err := p.Ingest(context.Background(), nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if n != 0 {
		t.Errorf("n = %d, want 0", n)
	}
	if embedder.calls != 0 {
		t.Errorf("embedder called %d times for empty input, want 0", embedder.calls)
	}
}

func TestIngest_EmbedFailureWritesNothing(t *testing.T) {
	upserter := &fakeUpserter{}
	p := newTestPipeline(&fakeEmbedder{err: errors.New("rate limited")}, upserter, &fakeSources{})

	_, err := p.Ingest(context.Background(), []document.Document{
		{Text: "some text", Source: "a.txt", Locator: "page-1"},
	})
	if err == nil {
		t.Fatal("expected embedding failure to propagate")
	}
	if len(upserter.records) != 0 {
		t.Errorf("stored %d records after embed failure, want 0", len(upserter.records))
	}
}

func TestIngest_StoreFailure(t *testing.T) {
	p := newTestPipeline(&fakeEmbedder{}, &fakeUpserter{err: errors.New("disk full")}, &fakeSources{})

	_, err := p.Ingest(context.Background(), []document.Document{
		{Text: "some text", Source: "a.txt", Locator: "page-1"},
	})
	if err == nil {
		t.Fatal("expected store failure to propagate")
	}
}
