package retrieval

import (
	"testing"

	"github.com/bugaboo-team/nudge/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewSQLiteStore(st.DB())
}

func rec(id, source, locator string, idx int, text string, emb []float32) Record {
	return Record{ID: id, Source: source, Locator: locator, ChunkIndex: idx, Text: text, Embedding: emb}
}

func TestUpsertAndSearch(t *testing.T) {
	s := newTestStore(t)

	err := s.Upsert([]Record{
		rec("a::page-1::chunk-0", "a", "page-1", 0, "joins combine tables", []float32{1, 0, 0}),
		rec("a::page-1::chunk-1", "a", "page-1", 1, "groupby aggregates rows", []float32{0, 1, 0}),
		rec("b::page-1::chunk-0", "b", "page-1", 0, "indexes speed lookups", []float32{0, 0, 1}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := s.Search([]float32{1, 0.1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "a::page-1::chunk-0" {
		t.Errorf("top result = %s, want a::page-1::chunk-0", results[0].ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("results not ordered by descending score: %f <= %f", results[0].Score, results[1].Score)
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	s := newTestStore(t)

	first := []Record{rec("a::page-1::chunk-0", "a", "page-1", 0, "old text", []float32{1, 0})}
	if err := s.Upsert(first); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	second := []Record{rec("a::page-1::chunk-0", "a", "page-1", 0, "new text", []float32{0, 1})}
	if err := s.Upsert(second); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	count, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1 after re-upsert", count)
	}

	results, err := s.Search([]float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results[0].Text != "new text" {
		t.Errorf("text = %q, want replacement to win", results[0].Text)
	}
}

func TestSearch_Empty(t *testing.T) {
	s := newTestStore(t)

	results, err := s.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from empty store, want 0", len(results))
	}
}

func TestSearch_TopKLargerThanStore(t *testing.T) {
	s := newTestStore(t)
	if err := s.Upsert([]Record{rec("x::page-1::chunk-0", "x", "page-1", 0, "only one", []float32{1})}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	results, err := s.Search([]float32{1}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestDeleteSource(t *testing.T) {
	s := newTestStore(t)
	err := s.Upsert([]Record{
		rec("a::page-1::chunk-0", "a", "page-1", 0, "keep me not", []float32{1, 0}),
		rec("a::page-2::chunk-0", "a", "page-2", 0, "me neither", []float32{0, 1}),
		rec("b::page-1::chunk-0", "b", "page-1", 0, "survivor", []float32{1, 1}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	n, err := s.DeleteSource("a")
	if err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}

	count, _ := s.Count()
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestExportAll(t *testing.T) {
	s := newTestStore(t)
	err := s.Upsert([]Record{
		rec("a::page-1::chunk-1", "a", "page-1", 1, "second", []float32{0, 1}),
		rec("a::page-1::chunk-0", "a", "page-1", 0, "first", []float32{1, 0}),
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	records, err := s.ExportAll()
	if err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ChunkIndex != 0 || records[1].ChunkIndex != 1 {
		t.Errorf("records not ordered by chunk index: %d, %d", records[0].ChunkIndex, records[1].ChunkIndex)
	}
	if len(records[0].Embedding) != 2 {
		t.Errorf("embedding dims = %d, want 2", len(records[0].Embedding))
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := []float32{0.1, -2.5, 3.14159, 0}
	decoded, err := decodeFloat32s(encodeFloat32s(original))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(original) {
		t.Fatalf("got %d values, want %d", len(decoded), len(original))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("value %d = %f, want %f", i, decoded[i], original[i])
		}
	}
}

func TestDecodeFloat32s_BadLength(t *testing.T) {
	if _, err := decodeFloat32s([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for byte length not multiple of 4")
	}
}
