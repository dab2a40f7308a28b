package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfenderov/scriptforge/pkg/models"
)

type fakeGenerator struct {
	lastReq    models.GenerationRequest
	lastSearch []string
	err        error
}

func (f *fakeGenerator) Generate(ctx context.Context, req models.GenerationRequest) (*models.Generation, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Generation{
		ID:          "gen-1",
		Instruction: req.Instruction,
		Scripts:     models.ScriptPair{Primary: "print('s')", Alternate: "print('p')"},
		Strategy:    "markers",
	}, nil
}

func (f *fakeGenerator) Search(ctx context.Context, query string, limit int, documentIDs []string) ([]models.Chunk, error) {
	f.lastSearch = documentIDs
	return []models.Chunk{{ID: "doc-1-00000", DocumentID: "doc-1", Content: "Click " + query}}, nil
}

func (f *fakeGenerator) Generation(ctx context.Context, id string) (*models.Generation, error) {
	if id != "gen-1" {
		return nil, models.ErrNotFound
	}
	return &models.Generation{ID: id}, nil
}

type fakeDocuments map[string]models.Document

func (f fakeDocuments) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	return &doc, nil
}

func (f fakeDocuments) List(ctx context.Context) ([]models.Document, error) {
	var out []models.Document
	for _, d := range f {
		out = append(out, d)
	}
	return out, nil
}

func newTestServer() (*Server, *fakeGenerator) {
	gen := &fakeGenerator{}
	docs := fakeDocuments{"doc-1": {ID: "doc-1", Title: "Guide", Status: models.DocumentIndexed}}
	return NewServer(Config{Name: "scriptforge", Version: "test"}, gen, docs), gen
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestServer_Creation(t *testing.T) {
	s, _ := newTestServer()

	if s.mcpServer == nil {
		t.Error("mcpServer should not be nil")
	}
}

func TestServer_SearchTool(t *testing.T) {
	s, gen := newTestServer()

	res, err := s.searchHandler(context.Background(), call(map[string]any{
		"query":        "export",
		"document_ids": []any{"doc-1"},
	}))

	require.NoError(t, err)
	assert.False(t, res.IsError)
	var chunks []models.Chunk
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &chunks))
	require.Len(t, chunks, 1)
	assert.Equal(t, "Click export", chunks[0].Content)
	assert.Equal(t, []string{"doc-1"}, gen.lastSearch)

	res, err = s.searchHandler(context.Background(), call(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_DocumentTools(t *testing.T) {
	s, _ := newTestServer()

	res, err := s.getDocumentHandler(context.Background(), call(map[string]any{"id": "doc-1"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"title":"Guide"`)

	res, err = s.getDocumentHandler(context.Background(), call(map[string]any{"id": "ghost"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "document not found: ghost")

	res, err = s.listDocumentsHandler(context.Background(), call(nil))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), `"id":"doc-1"`)
}

func TestServer_GenerateTool(t *testing.T) {
	s, gen := newTestServer()

	res, err := s.generateHandler(context.Background(), call(map[string]any{
		"instruction":      "Export the report",
		"document_ids":     []any{"doc-1"},
		"target_url":       "https://reports.example.com",
		"require_document": true,
	}))

	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "Export the report", gen.lastReq.Instruction)
	assert.Equal(t, []string{"doc-1"}, gen.lastReq.DocumentIDs)
	assert.Equal(t, "https://reports.example.com", gen.lastReq.TargetURL)
	assert.True(t, gen.lastReq.RequireDocument)

	var out models.Generation
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, "print('s')", out.Scripts.Primary)
}

func TestServer_GenerateToolErrors(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{models.ErrInvalidInput, "invalid request"},
		{models.ErrRateLimited, "try again later"},
		{models.ErrInvalidRequest, "check provider configuration"},
		{models.ErrUpstream, "generation failed"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			s, gen := newTestServer()
			gen.err = tt.err

			res, err := s.generateHandler(context.Background(), call(map[string]any{"instruction": "go"}))

			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Contains(t, resultText(t, res), tt.want)
		})
	}
}

func TestServer_GetGenerationTool(t *testing.T) {
	s, _ := newTestServer()

	res, err := s.getGenerationHandler(context.Background(), call(map[string]any{"id": "gen-1"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	res, err = s.getGenerationHandler(context.Background(), call(map[string]any{"id": "gen-2"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

const script = `USERNAME = "your_username"
PASSWORD = "your_password"
LOGIN_URL = "https://example.com/login"

def main():
    pass
`

func TestServer_ConfigTools(t *testing.T) {
	s, _ := newTestServer()

	res, err := s.detectFieldsHandler(context.Background(), call(map[string]any{"script": script}))
	require.NoError(t, err)
	var fields []models.ConfigField
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &fields))
	require.Len(t, fields, 3)
	assert.Equal(t, "USERNAME", fields[0].Name)
	assert.True(t, fields[1].Secret())

	res, err = s.applyConfigHandler(context.Background(), call(map[string]any{
		"script": script,
		"values": map[string]any{"PASSWORD": `p"w`, "USERNAME": "bob", "LOGIN_URL": ""},
	}))
	require.NoError(t, err)
	out := resultText(t, res)
	assert.Contains(t, out, `USERNAME = "bob"`)
	assert.Contains(t, out, `PASSWORD = "p\"w"`)
	assert.Contains(t, out, `LOGIN_URL = "https://example.com/login"`)

	res, err = s.applyConfigHandler(context.Background(), call(map[string]any{"script": script, "values": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_DetectFieldsEmpty(t *testing.T) {
	s, _ := newTestServer()

	res, err := s.detectFieldsHandler(context.Background(), call(map[string]any{"script": "print('hi')\n"}))

	require.NoError(t, err)
	assert.Equal(t, "[]", resultText(t, res))
}
