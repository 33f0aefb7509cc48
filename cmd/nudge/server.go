package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/bugaboo-team/nudge/internal/api"
	"github.com/bugaboo-team/nudge/internal/composer"
	"github.com/bugaboo-team/nudge/internal/config"
	"github.com/bugaboo-team/nudge/internal/ingest"
	"github.com/bugaboo-team/nudge/internal/llm"
	"github.com/bugaboo-team/nudge/internal/pipeline"
	"github.com/bugaboo-team/nudge/internal/retrieval"
	"github.com/bugaboo-team/nudge/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the nudge server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show nudge system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

// components bundles everything built on top of config and storage. The same
// wiring serves HTTP, MCP, and the local batch commands.
type components struct {
	store     *storage.Store
	retriever *retrieval.Retriever
	vectors   *retrieval.SQLiteStore
	answerer  *pipeline.Answerer
	ingestor  *ingest.Pipeline
}

func setupLogging(cfg config.Config) *slog.Logger {
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}

func buildComponents(cfg config.Config, logger *slog.Logger) (*components, error) {
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	client := llm.NewWithBaseURL(cfg.LLM.APIKey, cfg.LLM.BaseURL)
	embedder := retrieval.NewEmbedder(client, cfg.LLM.EmbedModel)
	vectors := retrieval.NewSQLiteStore(store.DB())
	retriever := retrieval.NewRetriever(embedder, vectors, logger)

	answerer := pipeline.NewAnswerer(
		retriever,
		client,
		composer.New(),
		store,
		logger,
		cfg.LLM.ChatModel,
		cfg.Retrieval.TopK,
	)

	splitter := ingest.NewSplitter(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	ingestor := ingest.NewPipeline(splitter, embedder, vectors, store, logger)

	return &components{
		store:     store,
		retriever: retriever,
		vectors:   vectors,
		answerer:  answerer,
		ingestor:  ingestor,
	}, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "nudge version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg)

	// Without a configured token, each run gets an ephemeral one so the
	// API is never open.
	apiToken := cfg.API.Token
	if apiToken == "" {
		apiToken = uuid.NewString()
		logger.Warn("no API token configured; generated ephemeral token", "token", apiToken)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := comps.store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	handler := api.NewAppHandler(api.AppDeps{
		Answerer:     comps.answerer,
		Searcher:     comps.retriever,
		Ingestor:     comps.ingestor,
		Sources:      comps.store,
		Interactions: comps.store,
		Chunks:       comps.vectors,
		Token:        apiToken,
		DefaultTopK:  cfg.Retrieval.TopK,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// MCP server over stdio, alongside HTTP.
	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Answerer:     comps.answerer,
		Searcher:     comps.retriever,
		Sources:      comps.store,
		Interactions: comps.store,
		DefaultTopK:  cfg.Retrieval.TopK,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("MCP stdio server error", "error", err)
		}
	}()
	logger.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "nudge listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Chat model", "%s", cfg.LLM.ChatModel)
	printStatus("Embed model", "%s", cfg.LLM.EmbedModel)
	printStatus("Top K", "%d", cfg.Retrieval.TopK)

	// Show source/interaction counts if server is running and we have a token.
	if cfg.API.Token != "" && resp != nil && resp.StatusCode == 200 {
		if srcResp, err := apiGet(client, serverURL+"/sources", cfg.API.Token); err == nil {
			var sources []json.RawMessage
			if json.NewDecoder(srcResp.Body).Decode(&sources) == nil {
				printStatus("Sources", "%d", len(sources))
			}
			srcResp.Body.Close()
		}
		if ixResp, err := apiGet(client, serverURL+"/interactions?limit=100", cfg.API.Token); err == nil {
			var interactions []json.RawMessage
			if json.NewDecoder(ixResp.Body).Decode(&interactions) == nil {
				printStatus("Interactions", "%s", countLabel(len(interactions), 100))
			}
			ixResp.Body.Close()
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}

func apiGet(client *http.Client, url, token string) (*http.Response, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return client.Do(req)
}
