package retrieval

import "time"

// VectorStore is the interface for vector storage and similarity search
// backends. The default implementation is SQLite with brute-force cosine
// similarity; the record types stay the same regardless of backend.
type VectorStore interface {
	// Upsert writes records keyed by ID. Re-writing an existing ID replaces
	// the stored record, which makes re-ingestion idempotent.
	Upsert(records []Record) error

	// Search performs vector similarity search, returning the top-K most
	// similar records ordered by descending score.
	Search(vector []float32, topK int) ([]ScoredRecord, error)

	// DeleteSource removes every record belonging to the given source.
	DeleteSource(source string) (int, error)

	// ExportAll returns all records. Used for data migration between backends.
	ExportAll() ([]Record, error)

	// Count returns the number of stored records.
	Count() (int, error)
}

// Record represents one stored chunk with its embedding.
type Record struct {
	ID         string
	Source     string
	Locator    string
	ChunkIndex int
	Text       string
	Embedding  []float32
	CreatedAt  time.Time
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
