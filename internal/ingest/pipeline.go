// Package ingest turns course documents into embedded chunks in the vector
// store. The pipeline is split → embed → upsert, with deterministic chunk IDs
// making the whole thing idempotent.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bugaboo-team/nudge/internal/document"
	"github.com/bugaboo-team/nudge/internal/retrieval"
	"github.com/bugaboo-team/nudge/internal/storage"
)

// ChunkEmbedder embeds a batch of texts, returning vectors in input order.
type ChunkEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorUpserter writes embedded records to the vector store.
type VectorUpserter interface {
	Upsert(records []retrieval.Record) error
}

// SourceRecorder tracks ingested source metadata.
type SourceRecorder interface {
	UpsertSource(src storage.Source) error
}

// Pipeline runs the full ingestion flow for a batch of documents.
type Pipeline struct {
	splitter *Splitter
	embedder ChunkEmbedder
	store    VectorUpserter
	sources  SourceRecorder
	logger   *slog.Logger
}

// NewPipeline wires the ingestion stages together.
func NewPipeline(splitter *Splitter, embedder ChunkEmbedder, store VectorUpserter, sources SourceRecorder, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		splitter: splitter,
		embedder: embedder,
		store:    store,
		sources:  sources,
		logger:   logger,
	}
}

// Ingest splits, embeds, and stores the given documents, returning the number
// of chunks written. Zero documents is not an error; it logs a warning and
// returns 0. Embedding failures abort the batch before anything is written.
func (p *Pipeline) Ingest(ctx context.Context, docs []document.Document) (int, error) {
	if len(docs) == 0 {
		p.logger.Warn("ingest called with no documents")
		return 0, nil
	}

	chunks := p.splitter.Split(docs)
	if len(chunks) == 0 {
		p.logger.Warn("documents produced no chunks", "documents", len(docs))
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	p.logger.Info("embedding chunks", "count", len(chunks))
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	records := make([]retrieval.Record, len(chunks))
	now := time.Now().UTC()
	for i, c := range chunks {
		records[i] = retrieval.Record{
			ID:         c.ID,
			Source:     c.Source,
			Locator:    c.Locator,
			ChunkIndex: c.ChunkIndex,
			Text:       c.Text,
			Embedding:  vectors[i],
			CreatedAt:  now,
		}
	}

	if err := p.store.Upsert(records); err != nil {
		return 0, fmt.Errorf("storing %d records: %w", len(records), err)
	}

	if err := p.recordSources(docs, chunks, now); err != nil {
		return 0, err
	}

	p.logger.Info("ingestion complete", "documents", len(docs), "chunks", len(records))
	return len(records), nil
}

// IngestDir loads every supported file under dir and ingests the result.
func (p *Pipeline) IngestDir(ctx context.Context, dir string) (int, error) {
	docs, err := document.LoadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("loading %s: %w", dir, err)
	}
	return p.Ingest(ctx, docs)
}

// recordSources upserts per-source metadata: page count (distinct locators)
// and chunk count.
func (p *Pipeline) recordSources(docs []document.Document, chunks []Chunk, now time.Time) error {
	type stats struct {
		pages  map[string]bool
		chunks int
	}
	bySource := make(map[string]*stats)
	kinds := make(map[string]string)

	for _, d := range docs {
		if _, ok := bySource[d.Source]; !ok {
			bySource[d.Source] = &stats{pages: make(map[string]bool)}
			kinds[d.Source] = kindOf(d.Source)
		}
		bySource[d.Source].pages[d.Locator] = true
	}
	for _, c := range chunks {
		bySource[c.Source].chunks++
	}

	for name, st := range bySource {
		src := storage.Source{
			Name:       name,
			Kind:       kinds[name],
			Pages:      len(st.pages),
			Chunks:     st.chunks,
			IngestedAt: now,
		}
		if err := p.sources.UpsertSource(src); err != nil {
			return fmt.Errorf("recording source %s: %w", name, err)
		}
	}
	return nil
}

func kindOf(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return "text"
}
