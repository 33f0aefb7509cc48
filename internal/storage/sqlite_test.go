package storage

import (
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestUpsertSource(t *testing.T) {
	s := openTestStore(t)

	src := Source{Name: "guide.pdf", Kind: "pdf", Pages: 12, Chunks: 40}
	if err := s.UpsertSource(src); err != nil {
		t.Fatalf("UpsertSource: %v", err)
	}

	// Re-ingesting overwrites the row instead of duplicating it.
	src.Chunks = 45
	if err := s.UpsertSource(src); err != nil {
		t.Fatalf("second UpsertSource: %v", err)
	}

	sources, err := s.ListSources()
	if err != nil {
		t.Fatalf("ListSources: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("got %d sources, want 1", len(sources))
	}
	if sources[0].Chunks != 45 {
		t.Errorf("chunks = %d, want updated value 45", sources[0].Chunks)
	}
	if sources[0].IngestedAt.IsZero() {
		t.Error("ingested_at not populated")
	}
}

func TestDeleteSource(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertSource(Source{Name: "notes.md", Kind: "text", Pages: 1, Chunks: 3}); err != nil {
		t.Fatalf("UpsertSource: %v", err)
	}

	if err := s.DeleteSource("notes.md"); err != nil {
		t.Fatalf("DeleteSource: %v", err)
	}

	if err := s.DeleteSource("notes.md"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestSaveAndGetInteraction(t *testing.T) {
	s := openTestStore(t)

	it := Interaction{
		ID:         "abc-123",
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		Query:      "KeyError: 'age'",
		Code:       "df['age'].mean()",
		Tier:       2,
		Labels:     `["KeyError"]`,
		Citations:  `[{"source":"guide.pdf","anchor":"page-3"}]`,
		Response:   `{"tier":2,"message":"hint"}`,
		DurationMs: 850,
	}
	if err := s.SaveInteraction(it); err != nil {
		t.Fatalf("SaveInteraction: %v", err)
	}

	got, err := s.GetInteraction("abc-123")
	if err != nil {
		t.Fatalf("GetInteraction: %v", err)
	}
	if got.Query != it.Query || got.Tier != it.Tier || got.Labels != it.Labels {
		t.Errorf("got %+v, want %+v", got, it)
	}
	if !got.CreatedAt.Equal(it.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, it.CreatedAt)
	}
}

func TestGetInteraction_NotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetInteraction("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListInteractions_Pagination(t *testing.T) {
	s := openTestStore(t)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		it := Interaction{
			ID:        string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Query:     "q",
			Tier:      1,
		}
		if err := s.SaveInteraction(it); err != nil {
			t.Fatalf("SaveInteraction %d: %v", i, err)
		}
	}

	page, err := s.ListInteractions(2, 0)
	if err != nil {
		t.Fatalf("ListInteractions: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("got %d interactions, want 2", len(page))
	}
	// Newest first.
	if page[0].ID != "e" {
		t.Errorf("first = %q, want most recent (e)", page[0].ID)
	}

	rest, err := s.ListInteractions(10, 2)
	if err != nil {
		t.Fatalf("ListInteractions offset: %v", err)
	}
	if len(rest) != 3 {
		t.Errorf("got %d interactions at offset 2, want 3", len(rest))
	}
}

func TestSaveInteraction_EmptyJSONDefaults(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveInteraction(Interaction{ID: "x", CreatedAt: time.Now(), Query: "q", Tier: 1}); err != nil {
		t.Fatalf("SaveInteraction: %v", err)
	}

	got, err := s.GetInteraction("x")
	if err != nil {
		t.Fatalf("GetInteraction: %v", err)
	}
	if got.Labels != "[]" || got.Citations != "[]" {
		t.Errorf("labels = %q, citations = %q; want [] defaults", got.Labels, got.Citations)
	}
}
