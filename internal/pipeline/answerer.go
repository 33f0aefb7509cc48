// Package pipeline orchestrates one question-answering round: classify the
// error, retrieve course material, compose a tier-constrained prompt, call
// the chat model, and record the interaction.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bugaboo-team/nudge/internal/classifier"
	"github.com/bugaboo-team/nudge/internal/composer"
	"github.com/bugaboo-team/nudge/internal/llm"
	"github.com/bugaboo-team/nudge/internal/retrieval"
	"github.com/bugaboo-team/nudge/internal/storage"
)

// ContextRetriever finds course material relevant to a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Chunk, error)
}

// ChatClient sends a composed prompt to the chat model.
type ChatClient interface {
	Chat(ctx context.Context, model string, messages []llm.Message) (string, error)
}

// PromptComposer builds the tiered prompt from query, chunks, and tier.
type PromptComposer interface {
	Compose(query string, chunks []retrieval.Chunk, tier int) (system string, user string)
}

// InteractionRecorder persists answered interactions.
type InteractionRecorder interface {
	SaveInteraction(it storage.Interaction) error
}

// Citation names a piece of course material backing an answer.
type Citation struct {
	Source string `json:"source"`
	Anchor string `json:"anchor"`
}

// Metadata describes how an answer was produced.
type Metadata struct {
	InteractionID string            `json:"interaction_id"`
	Tier          int               `json:"tier"`
	Labels        []string          `json:"labels"`
	Entities      []string          `json:"entities"`
	Citations     []Citation        `json:"citations"`
	Chunks        []retrieval.Chunk `json:"-"`
	DurationMs    int64             `json:"duration_ms"`
}

// Answerer runs the full answer pipeline.
type Answerer struct {
	retriever    ContextRetriever
	llm          ChatClient
	composer     PromptComposer
	interactions InteractionRecorder
	logger       *slog.Logger
	model        string
	topK         int
}

// NewAnswerer wires the pipeline stages together.
func NewAnswerer(retriever ContextRetriever, chat ChatClient, comp PromptComposer, interactions InteractionRecorder, logger *slog.Logger, model string, topK int) *Answerer {
	return &Answerer{
		retriever:    retriever,
		llm:          chat,
		composer:     comp,
		interactions: interactions,
		logger:       logger,
		model:        model,
		topK:         topK,
	}
}

// Answer runs classification and retrieval concurrently, composes the tiered
// prompt, and calls the chat model. The model's text is returned as-is; the
// caller decides how to render it. Citations come from the same retrieval
// that built the prompt context, so an answer can never cite material the
// model did not see.
func (a *Answerer) Answer(ctx context.Context, query, code string, tier int) (string, Metadata, error) {
	start := time.Now()

	// Clamp once up front so the prompt, the returned metadata, and the
	// stored interaction all agree on the effective tier.
	tier = composer.ClampTier(tier)

	combined := query
	if code != "" {
		combined = query + "\n\nCode:\n" + code
	}

	var signal classifier.Signal
	var chunks []retrieval.Chunk

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		signal = classifier.Classify(combined)
		return nil
	})
	g.Go(func() error {
		var err error
		chunks, err = a.retriever.Retrieve(gctx, combined, a.topK)
		if err != nil {
			return fmt.Errorf("retrieving context: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		a.logger.Error("answer pipeline failed", "stage", "retrieve", "error", err)
		return "", Metadata{}, err
	}

	system, user := a.composer.Compose(combined, chunks, tier)

	response, err := a.llm.Chat(ctx, a.model, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
	if err != nil {
		a.logger.Error("answer pipeline failed", "stage", "chat", "error", err)
		return "", Metadata{}, fmt.Errorf("chat completion: %w", err)
	}

	meta := Metadata{
		InteractionID: uuid.NewString(),
		Tier:          tier,
		Labels:        signal.Labels,
		Entities:      signal.Entities,
		Citations:     citationsFrom(chunks),
		Chunks:        chunks,
		DurationMs:    time.Since(start).Milliseconds(),
	}

	a.record(query, code, response, meta)

	a.logger.Info("answered",
		"interaction_id", meta.InteractionID,
		"tier", tier,
		"labels", signal.Labels,
		"chunks", len(chunks),
		"duration_ms", meta.DurationMs,
	)

	return response, meta, nil
}

// record persists the interaction. Storage failure does not fail the answer;
// the student already has their response.
func (a *Answerer) record(query, code, response string, meta Metadata) {
	labels, _ := json.Marshal(meta.Labels)
	citations, _ := json.Marshal(meta.Citations)

	it := storage.Interaction{
		ID:         meta.InteractionID,
		CreatedAt:  time.Now().UTC(),
		Query:      query,
		Code:       code,
		Tier:       meta.Tier,
		Labels:     string(labels),
		Citations:  string(citations),
		Response:   response,
		DurationMs: meta.DurationMs,
	}
	if err := a.interactions.SaveInteraction(it); err != nil {
		a.logger.Warn("failed to save interaction", "interaction_id", meta.InteractionID, "error", err)
	}
}

// citationsFrom maps retrieved chunks to citations, deduplicating by
// (source, locator) while preserving retrieval order.
func citationsFrom(chunks []retrieval.Chunk) []Citation {
	seen := make(map[string]bool)
	var citations []Citation
	for _, c := range chunks {
		key := c.Source + "::" + c.Locator
		if seen[key] {
			continue
		}
		seen[key] = true
		citations = append(citations, Citation{Source: c.Source, Anchor: c.Locator})
	}
	return citations
}
