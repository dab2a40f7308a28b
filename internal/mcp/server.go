// Package mcp exposes document search, script generation and script
// configuration as MCP tools over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mfenderov/scriptforge/internal/scriptconfig"
	"github.com/mfenderov/scriptforge/pkg/models"
)

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// Generator runs generation requests and chunk searches.
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.Generation, error)
	Search(ctx context.Context, query string, limit int, documentIDs []string) ([]models.Chunk, error)
	Generation(ctx context.Context, id string) (*models.Generation, error)
}

// Documents reads document records.
type Documents interface {
	Get(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context) ([]models.Document, error)
}

// Server wraps the MCP server.
type Server struct {
	mcpServer *server.MCPServer
	generator Generator
	documents Documents
}

// NewServer creates a new MCP server with search, generation and configuration tools.
func NewServer(config Config, generator Generator, documents Documents) *Server {
	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		generator: generator,
		documents: documents,
	}

	mcpServer.AddTool(mcp.NewTool("search_chunks",
		mcp.WithDescription("Keyword search over indexed procedure document chunks."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of chunks to return (default: 10)"),
		),
		mcp.WithArray("document_ids",
			mcp.Description("Restrict the search to these documents"),
			mcp.WithStringItems(),
		),
	), s.searchHandler)

	mcpServer.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List uploaded procedure documents with their status."),
	), s.listDocumentsHandler)

	mcpServer.AddTool(mcp.NewTool("get_document",
		mcp.WithDescription("Get an uploaded procedure document record by ID"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Document ID to retrieve"),
		),
	), s.getDocumentHandler)

	mcpServer.AddTool(mcp.NewTool("generate_scripts",
		mcp.WithDescription("Generate a Selenium and a Playwright Python script for a business workflow."),
		mcp.WithString("instruction",
			mcp.Required(),
			mcp.Description("What the automation should do"),
		),
		mcp.WithArray("document_ids",
			mcp.Description("Indexed procedure documents to use as context"),
			mcp.WithStringItems(),
		),
		mcp.WithString("document_text",
			mcp.Description("Procedure text supplied directly instead of an uploaded document"),
		),
		mcp.WithString("target_url",
			mcp.Description("Page the script will automate; its markup is inspected for real selectors"),
		),
		mcp.WithBoolean("require_document",
			mcp.Description("Reject the request when no document context is available"),
		),
	), s.generateHandler)

	mcpServer.AddTool(mcp.NewTool("get_generation",
		mcp.WithDescription("Get a previous generation with its scripts"),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Generation ID"),
		),
	), s.getGenerationHandler)

	mcpServer.AddTool(mcp.NewTool("detect_config_fields",
		mcp.WithDescription("List the user-configurable constants in a script header."),
		mcp.WithString("script",
			mcp.Required(),
			mcp.Description("Script text"),
		),
	), s.detectFieldsHandler)

	mcpServer.AddTool(mcp.NewTool("apply_config",
		mcp.WithDescription("Set configuration constants in a script and return the updated script."),
		mcp.WithString("script",
			mcp.Required(),
			mcp.Description("Script text"),
		),
		mcp.WithObject("values",
			mcp.Required(),
			mcp.Description("Field name to new value; empty values keep the original"),
		),
	), s.applyConfigHandler)

	return s
}

func (s *Server) searchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	limit := req.GetInt("limit", 10)
	ids := req.GetStringSlice("document_ids", nil)

	chunks, err := s.generator.Search(ctx, query, limit, ids)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	return jsonResult(chunks)
}

func (s *Server) listDocumentsHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.documents.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list documents failed: %v", err)), nil
	}
	return jsonResult(docs)
}

func (s *Server) getDocumentHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	doc, err := s.documents.Get(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("document not found: %s", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get document failed: %v", err)), nil
	}
	return jsonResult(doc)
}

func (s *Server) generateHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instruction, err := req.RequireString("instruction")
	if err != nil {
		return mcp.NewToolResultError("instruction parameter is required"), nil
	}

	gen, err := s.generator.Generate(ctx, models.GenerationRequest{
		Instruction:     instruction,
		DocumentIDs:     req.GetStringSlice("document_ids", nil),
		DocumentText:    req.GetString("document_text", ""),
		TargetURL:       req.GetString("target_url", ""),
		RequireDocument: req.GetBool("require_document", false),
	})
	if err != nil {
		return mcp.NewToolResultError(describeGenerationError(err)), nil
	}
	return jsonResult(gen)
}

func (s *Server) getGenerationHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	gen, err := s.generator.Generation(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("generation not found: %s", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get generation failed: %v", err)), nil
	}
	return jsonResult(gen)
}

func (s *Server) detectFieldsHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	script, err := req.RequireString("script")
	if err != nil {
		return mcp.NewToolResultError("script parameter is required"), nil
	}

	fields := scriptconfig.Detect(script)
	if fields == nil {
		fields = []models.ConfigField{}
	}
	return jsonResult(fields)
}

func (s *Server) applyConfigHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	script, err := req.RequireString("script")
	if err != nil {
		return mcp.NewToolResultError("script parameter is required"), nil
	}

	raw, ok := req.GetArguments()["values"].(map[string]any)
	if !ok {
		return mcp.NewToolResultError("values parameter must be an object"), nil
	}

	// Detection order keeps the output deterministic; unknown names follow sorted.
	values := make([]scriptconfig.FieldValue, 0, len(raw))
	for _, name := range scriptconfig.FieldOrder(script, keys(raw)) {
		v, ok := raw[name].(string)
		if !ok {
			v = fmt.Sprint(raw[name])
		}
		values = append(values, scriptconfig.FieldValue{Name: name, Value: v})
	}

	return mcp.NewToolResultText(scriptconfig.Apply(script, values)), nil
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func describeGenerationError(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return fmt.Sprintf("invalid request: %v", err)
	case errors.Is(err, models.ErrRateLimited):
		return fmt.Sprintf("generation service is rate limited, try again later: %v", err)
	case errors.Is(err, models.ErrInvalidRequest):
		return fmt.Sprintf("generation service rejected the request, check provider configuration: %v", err)
	default:
		return fmt.Sprintf("generation failed: %v", err)
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
