package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Chunk is a retrieved piece of course material with its provenance and
// similarity score. Source and Locator together let callers cite where the
// text came from.
type Chunk struct {
	ID         string  `json:"id"`
	Source     string  `json:"source"`
	Locator    string  `json:"locator"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
}

// Retriever embeds a query and finds the most similar stored chunks.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
	logger   *slog.Logger
}

// NewRetriever wires an embedder and a vector store into a Retriever.
func NewRetriever(embedder *Embedder, store VectorStore, logger *slog.Logger) *Retriever {
	return &Retriever{embedder: embedder, store: store, logger: logger}
}

// Retrieve returns the topK chunks most similar to the query, ordered by
// descending score. An empty or whitespace query returns no chunks without
// calling the embedding API.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Chunk, error) {
	if strings.TrimSpace(query) == "" {
		r.logger.Warn("retrieve called with empty query")
		return nil, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	scored, err := r.store.Search(vec, topK)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}

	chunks := make([]Chunk, len(scored))
	for i, sr := range scored {
		chunks[i] = Chunk{
			ID:         sr.ID,
			Source:     sr.Source,
			Locator:    sr.Locator,
			ChunkIndex: sr.ChunkIndex,
			Text:       sr.Text,
			Score:      sr.Score,
		}
	}

	r.logger.Debug("retrieved chunks", "query_len", len(query), "top_k", topK, "returned", len(chunks))
	return chunks, nil
}
