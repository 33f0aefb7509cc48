// Package api exposes the answer pipeline over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bugaboo-team/nudge/internal/classifier"
	"github.com/bugaboo-team/nudge/internal/pipeline"
	"github.com/bugaboo-team/nudge/internal/retrieval"
	"github.com/bugaboo-team/nudge/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Answerer runs the full question-answering pipeline.
type Answerer interface {
	Answer(ctx context.Context, query, code string, tier int) (string, pipeline.Metadata, error)
}

// Searcher finds relevant course material without answering.
type Searcher interface {
	Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Chunk, error)
}

// Ingestor loads and indexes course material from a directory.
type Ingestor interface {
	IngestDir(ctx context.Context, dir string) (int, error)
}

// SourceStore manages ingested source metadata.
type SourceStore interface {
	ListSources() ([]storage.Source, error)
	DeleteSource(name string) error
}

// InteractionStore reads recorded interactions.
type InteractionStore interface {
	GetInteraction(id string) (storage.Interaction, error)
	ListInteractions(limit, offset int) ([]storage.Interaction, error)
}

// ChunkDeleter removes stored vectors for a source.
type ChunkDeleter interface {
	DeleteSource(source string) (int, error)
}

// AppDeps holds everything the HTTP handlers need.
type AppDeps struct {
	Answerer     Answerer
	Searcher     Searcher
	Ingestor     Ingestor
	Sources      SourceStore
	Interactions InteractionStore
	Chunks       ChunkDeleter
	Token        string
	DefaultTopK  int
}

// NewAppHandler returns the HTTP handler for the full API. Every route
// except /health requires bearer auth.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/answer", handleAnswer(deps))
		r.Get("/search", handleSearch(deps))
		r.Post("/classify", handleClassify())
		r.Post("/ingest", handleIngest(deps))
		r.Get("/sources", handleListSources(deps))
		r.Delete("/sources/{name}", handleDeleteSource(deps))
		r.Get("/interactions", handleListInteractions(deps))
		r.Get("/interactions/{id}", handleGetInteraction(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// AnswerRequest is the body for POST /answer.
type AnswerRequest struct {
	Query string `json:"query"`
	Code  string `json:"code"`
	Tier  int    `json:"tier"`
}

// AnswerResponse carries the model's raw text plus pipeline metadata.
type AnswerResponse struct {
	Response string            `json:"response"`
	Metadata pipeline.Metadata `json:"metadata"`
}

func handleAnswer(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AnswerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}
		if req.Tier == 0 {
			req.Tier = 1
		}

		response, meta, err := deps.Answerer.Answer(r.Context(), req.Query, req.Code, req.Tier)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "answer pipeline failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(AnswerResponse{Response: response, Metadata: meta})
	}
}

func handleSearch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		if query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
			return
		}
		topK := parseIntParam(r, "k", deps.DefaultTopK, 50)

		chunks, err := deps.Searcher.Retrieve(r.Context(), query, topK)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "search failed: %v", err)
			return
		}
		if chunks == nil {
			chunks = []retrieval.Chunk{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chunks)
	}
}

// ClassifyRequest is the body for POST /classify.
type ClassifyRequest struct {
	Text string `json:"text"`
}

func handleClassify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ClassifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(classifier.Classify(req.Text))
	}
}

// IngestRequest is the body for POST /ingest.
type IngestRequest struct {
	Dir string `json:"dir"`
}

func handleIngest(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req IngestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Dir == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "dir is required")
			return
		}

		chunks, err := deps.Ingestor.IngestDir(r.Context(), req.Dir)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "ingestion failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"chunks": chunks})
	}
}

func handleListSources(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := deps.Sources.ListSources()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list sources: %v", err)
			return
		}
		if sources == nil {
			sources = []storage.Source{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sources)
	}
}

func handleDeleteSource(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		deleted, err := deps.Chunks.DeleteSource(name)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete chunks: %v", err)
			return
		}

		err = deps.Sources.DeleteSource(name)
		if errors.Is(err, storage.ErrNotFound) && deleted == 0 {
			httpError(w, http.StatusNotFound, "not_found", "source not found")
			return
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete source: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"status": "deleted", "chunks": deleted})
	}
}

func handleListInteractions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		interactions, err := deps.Interactions.ListInteractions(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list interactions: %v", err)
			return
		}
		if interactions == nil {
			interactions = []storage.Interaction{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(interactions)
	}
}

func handleGetInteraction(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		interaction, err := deps.Interactions.GetInteraction(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "interaction not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get interaction: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(interaction)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"type":    errType,
			"message": msg,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
