package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
)

// fakeEmbedClient maps texts to fixed vectors.
type fakeEmbedClient struct {
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbedClient) Embed(_ context.Context, _ string, text string) ([]float32, error) {
	f.calls++
	v, ok := f.vectors[text]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", text)
	}
	return v, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestRetrieve(t *testing.T) {
	s := newTestStore(t)
	err := s.Upsert([]Record{
		rec("guide::page-3::chunk-0", "guide", "page-3", 0, "KeyError means the key is missing", []float32{1, 0}),
		rec("guide::page-7::chunk-0", "guide", "page-7", 0, "merge joins dataframes", []float32{0, 1}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	client := &fakeEmbedClient{vectors: map[string][]float32{
		"what is a KeyError": {1, 0.1},
	}}
	r := NewRetriever(NewEmbedder(client, "test-model"), s, discardLogger())

	chunks, err := r.Retrieve(context.Background(), "what is a KeyError", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Source != "guide" || chunks[0].Locator != "page-3" {
		t.Errorf("top chunk = %s/%s, want guide/page-3", chunks[0].Source, chunks[0].Locator)
	}
	if chunks[0].Score <= 0 {
		t.Errorf("score = %f, want positive", chunks[0].Score)
	}
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	client := &fakeEmbedClient{vectors: map[string][]float32{}}
	r := NewRetriever(NewEmbedder(client, "m"), newTestStore(t), discardLogger())

	chunks, err := r.Retrieve(context.Background(), "   \n", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if chunks != nil {
		t.Errorf("got %d chunks, want none", len(chunks))
	}
	if client.calls != 0 {
		t.Errorf("embedding API called %d times for empty query, want 0", client.calls)
	}
}

func TestRetrieve_EmbedError(t *testing.T) {
	client := &fakeEmbedClient{vectors: map[string][]float32{}}
	r := NewRetriever(NewEmbedder(client, "m"), newTestStore(t), discardLogger())

	if _, err := r.Retrieve(context.Background(), "unknown", 5); err == nil {
		t.Error("expected embed failure to propagate")
	}
}

func TestEmbedBatch_Order(t *testing.T) {
	client := &fakeEmbedClient{vectors: map[string][]float32{
		"one":   {1},
		"two":   {2},
		"three": {3},
	}}
	e := NewEmbedder(client, "m")

	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vecs))
	}
	for i, want := range []float32{1, 2, 3} {
		if vecs[i][0] != want {
			t.Errorf("vecs[%d] = %f, want %f", i, vecs[i][0], want)
		}
	}
}

func TestEmbedBatch_Error(t *testing.T) {
	client := &fakeEmbedClient{vectors: map[string][]float32{"ok": {1}}}
	e := NewEmbedder(client, "m")

	if _, err := e.EmbedBatch(context.Background(), []string{"ok", "missing"}); err == nil {
		t.Error("expected batch to fail when one embedding fails")
	}
}
