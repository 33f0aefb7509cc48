package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// embedConcurrency caps concurrent embedding requests against the API.
const embedConcurrency = 4

// EmbeddingClient is the slice of the LLM client the embedder needs.
type EmbeddingClient interface {
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// Embedder turns text into vectors using a configured embedding model.
type Embedder struct {
	client EmbeddingClient
	model  string
}

// NewEmbedder creates an Embedder using the given client and model.
func NewEmbedder(client EmbeddingClient, model string) *Embedder {
	return &Embedder{client: client, model: model}
}

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}

// EmbedBatch embeds all texts concurrently and returns vectors in input
// order. One failed embedding fails the whole batch: a partially embedded
// corpus is worse than a clean retry.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.client.Embed(ctx, e.model, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			vectors[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}
