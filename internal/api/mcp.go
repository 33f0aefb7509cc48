package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Answerer     Answerer
	Searcher     Searcher
	Sources      SourceStore
	Interactions InteractionStore
	DefaultTopK  int
}

// NewMCPServer creates an MCP server exposing the debugging assistant to
// editor and agent clients over stdio.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"nudge",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("nudge — tiered debugging help grounded in course material. Start at tier 1 and escalate only when the student stays stuck."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("debug_hint",
			mcp.WithDescription("Get a tier-constrained debugging hint for a student error. Tier 1 points at material, tier 4 gives a corrected snippet."),
			mcp.WithString("query", mcp.Description("The error message or question"), mcp.Required()),
			mcp.WithString("code", mcp.Description("The code that produced the error")),
			mcp.WithNumber("tier", mcp.Description("Disclosure tier 1-4 (default 1)")),
		),
		mcpDebugHint(deps),
	)

	s.AddTool(
		mcp.NewTool("search_notes",
			mcp.WithDescription("Semantically search the ingested course material and return relevant chunks with sources."),
			mcp.WithString("query", mcp.Description("Search query"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5)")),
		),
		mcpSearchNotes(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"nudge://sources",
			"Ingested Sources",
			mcp.WithResourceDescription("Course material currently available for retrieval, as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSources(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"nudge://recent",
			"Recent Interactions",
			mcp.WithResourceDescription("Last 10 answered questions (summaries only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpDebugHint(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		code := req.GetString("code", "")
		tier := req.GetInt("tier", 1)

		response, meta, err := deps.Answerer.Answer(ctx, query, code, tier)
		if err != nil {
			return mcpError(fmt.Sprintf("answer failed: %v", err)), nil
		}

		result := map[string]any{
			"response":  response,
			"tier":      meta.Tier,
			"labels":    meta.Labels,
			"citations": meta.Citations,
		}
		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpSearchNotes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}
		if limit > 50 {
			limit = 50
		}

		chunks, err := deps.Searcher.Retrieve(ctx, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}

		if len(chunks) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(chunks)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal chunks: %v", err)), nil
		}

		return mcpText(string(b)), nil
	}
}

func mcpResourceSources(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		sources, err := deps.Sources.ListSources()
		if err != nil {
			return nil, fmt.Errorf("failed to list sources: %w", err)
		}

		b, err := json.Marshal(sources)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal sources: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		interactions, err := deps.Interactions.ListInteractions(10, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to list interactions: %w", err)
		}

		type interactionSummary struct {
			ID        string `json:"id"`
			CreatedAt string `json:"created_at"`
			Query     string `json:"query"`
			Tier      int    `json:"tier"`
		}

		summaries := make([]interactionSummary, len(interactions))
		for i, ix := range interactions {
			query := ix.Query
			if utf8.RuneCountInString(query) > 200 {
				runes := []rune(query)
				query = string(runes[:200]) + "..."
			}
			summaries[i] = interactionSummary{
				ID:        ix.ID,
				CreatedAt: ix.CreatedAt.Format(time.RFC3339),
				Query:     query,
				Tier:      ix.Tier,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal interactions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
