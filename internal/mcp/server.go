// Package mcp exposes document generation and the saved-document store as
// Model Context Protocol tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prdforge/internal/pipeline"
	"github.com/ternarybob/prdforge/internal/prd"
	"github.com/ternarybob/prdforge/internal/store"
)

// Generator runs the generation pipeline.
type Generator interface {
	RunWithAnswers(ctx context.Context, input string, answers []string) (*prd.Document, error)
}

// Documents is the subset of the store the tools use.
type Documents interface {
	Create(ctx context.Context, in store.CreateInput) (*prd.StoredDocument, error)
	Get(ctx context.Context, id string) (*prd.StoredDocument, error)
	List(ctx context.Context, status string) ([]*prd.StoredDocument, error)
}

// MCPServer wraps the pipeline and store to provide MCP tool access.
type MCPServer struct {
	generator Generator
	docs      Documents
	logger    arbor.ILogger
	server    *server.MCPServer
}

// NewMCPServer creates a new MCP server.
func NewMCPServer(generator Generator, docs Documents, version string, logger arbor.ILogger) *MCPServer {
	s := &MCPServer{
		generator: generator,
		docs:      docs,
		logger:    logger,
	}

	mcpServer := server.NewMCPServer(
		"prdforge",
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)

	s.server = mcpServer
	return s
}

// registerTools registers all MCP tools with the server.
func (s *MCPServer) registerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(
		mcp.NewTool("generate_prd",
			mcp.WithDescription("Generate a product requirements document from a free-text product idea."),
			mcp.WithString("idea",
				mcp.Required(),
				mcp.Description("The product or business idea, in the customer's own words"),
			),
			mcp.WithArray("answers",
				mcp.Description("Optional answers to follow-up questions"),
				mcp.Items(map[string]any{"type": "string"}),
			),
			mcp.WithBoolean("save",
				mcp.Description("Save the generated document as a draft (default: false)"),
			),
			mcp.WithString("title",
				mcp.Description("Title for the saved draft"),
			),
		),
		s.handleGenerate,
	)

	mcpServer.AddTool(
		mcp.NewTool("list_prds",
			mcp.WithDescription("List saved documents, newest first."),
			mcp.WithString("status",
				mcp.Description("Filter by status: draft, modified, finalized, version"),
			),
		),
		s.handleList,
	)

	mcpServer.AddTool(
		mcp.NewTool("get_prd",
			mcp.WithDescription("Get a saved document by id."),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Document id"),
			),
		),
		s.handleGet,
	)

	mcpServer.AddTool(
		mcp.NewTool("save_prd",
			mcp.WithDescription("Save a document. Content is the document JSON."),
			mcp.WithString("title",
				mcp.Required(),
				mcp.Description("Document title"),
			),
			mcp.WithString("content",
				mcp.Required(),
				mcp.Description("Document JSON"),
			),
			mcp.WithString("status",
				mcp.Description("Status: draft (default), modified, finalized"),
			),
		),
		s.handleSave,
	)

	mcpServer.AddTool(
		mcp.NewTool("export_prd",
			mcp.WithDescription("Render a saved document as markdown."),
			mcp.WithString("id",
				mcp.Required(),
				mcp.Description("Document id"),
			),
		),
		s.handleExport,
	)
}

// generateResult is the generate_prd payload.
type generateResult struct {
	PRD     *prd.Document `json:"prd"`
	SavedID string        `json:"savedId,omitempty"`
}

// documentSummary is one list_prds entry.
type documentSummary struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Status    prd.Status  `json:"status"`
	Version   prd.Version `json:"version"`
	UpdatedAt string      `json:"updatedAt"`
}

func (s *MCPServer) handleGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idea := request.GetString("idea", "")
	if strings.TrimSpace(idea) == "" {
		return mcp.NewToolResultError("idea parameter is required"), nil
	}

	doc, err := s.generator.RunWithAnswers(ctx, idea, request.GetStringSlice("answers", nil))
	if err != nil {
		s.logger.Error().Err(err).Msg("generate_prd failed")
		var pe *pipeline.PipelineError
		if errors.As(err, &pe) {
			return mcp.NewToolResultError(fmt.Sprintf("generation failed at %s: %s", pe.Stage, pe.Details())), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("generation failed: %v", err)), nil
	}

	result := generateResult{PRD: doc}
	if request.GetBool("save", false) {
		content, err := json.Marshal(doc)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("marshal document failed: %v", err)), nil
		}
		saved, err := s.docs.Create(ctx, store.CreateInput{
			Title:   request.GetString("title", ""),
			Content: content,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("save failed: %v", err)), nil
		}
		result.SavedID = saved.ID
	}

	return jsonResult(result)
}

func (s *MCPServer) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.docs.List(ctx, request.GetString("status", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}

	out := make([]documentSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentSummary{
			ID:        d.ID,
			Title:     d.Title,
			Status:    d.Status,
			Version:   d.Version,
			UpdatedAt: d.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return jsonResult(out)
}

func (s *MCPServer) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get failed: %v", err)), nil
	}
	return jsonResult(doc)
}

func (s *MCPServer) handleSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content := request.GetString("content", "")
	if !json.Valid([]byte(content)) {
		return mcp.NewToolResultError("content must be valid JSON"), nil
	}

	doc, err := s.docs.Create(ctx, store.CreateInput{
		Title:   request.GetString("title", ""),
		Content: json.RawMessage(content),
		Status:  request.GetString("status", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save failed: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Saved %q as %s (version %s)", doc.Title, doc.ID, doc.Version)), nil
}

func (s *MCPServer) handleExport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := request.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get failed: %v", err)), nil
	}
	content, err := prd.ParseDocument(doc.Content)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("content is not a PRD document: %v", err)), nil
	}
	return mcp.NewToolResultText("# " + doc.Title + "\n\n" + prd.Markdown(content)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ServeStdio starts the MCP server on stdio.
func (s *MCPServer) ServeStdio() error {
	return server.ServeStdio(s.server)
}
