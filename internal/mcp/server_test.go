package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prdforge/internal/pipeline"
	"github.com/ternarybob/prdforge/internal/prd"
	"github.com/ternarybob/prdforge/internal/store"
)

type fakeGenerator struct {
	answers []string
	err     error
}

func (g *fakeGenerator) RunWithAnswers(ctx context.Context, input string, answers []string) (*prd.Document, error) {
	g.answers = answers
	if g.err != nil {
		return nil, g.err
	}
	return &prd.Document{
		Overview: "Drafted from: " + input,
		Features: []prd.Feature{{Title: "Draft", Priority: prd.MustHave, Description: "d"}},
	}, nil
}

func newTestServer(t *testing.T, gen Generator) (*MCPServer, *store.Repository) {
	t.Helper()
	backend, err := store.NewFileBackend(t.TempDir(), arbor.NewLogger())
	require.NoError(t, err)
	repo := store.NewRepository(backend)
	return NewMCPServer(gen, repo, "test", arbor.NewLogger()), repo
}

func call(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Request: mcp.Request{Method: "tools/call"},
		Params:  mcp.CallToolParams{Name: name, Arguments: args},
	}
}

func text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestGeneratePRD(t *testing.T) {
	gen := &fakeGenerator{}
	s, repo := newTestServer(t, gen)
	ctx := context.Background()

	result, err := s.handleGenerate(ctx, call("generate_prd", map[string]any{
		"idea":    "clinic booking",
		"answers": []any{"small clinics"},
		"save":    true,
		"title":   "Clinic",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, text(t, result))

	var out generateResult
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &out))
	assert.Equal(t, "Drafted from: clinic booking", out.PRD.Overview)
	assert.Equal(t, []string{"small clinics"}, gen.answers)
	require.NotEmpty(t, out.SavedID)

	saved, err := repo.Get(ctx, out.SavedID)
	require.NoError(t, err)
	assert.Equal(t, "Clinic", saved.Title)
	assert.Equal(t, prd.StatusDraft, saved.Status)
}

func TestGeneratePRD_Errors(t *testing.T) {
	s, _ := newTestServer(t, &fakeGenerator{err: &pipeline.PipelineError{Stage: pipeline.StageAnalysis, Err: errors.New("quota")}})

	result, err := s.handleGenerate(context.Background(), call("generate_prd", map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleGenerate(context.Background(), call("generate_prd", map[string]any{"idea": "x"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "generation failed at analysis: quota", text(t, result))
}

func TestSaveListGetExport(t *testing.T) {
	s, _ := newTestServer(t, &fakeGenerator{})
	ctx := context.Background()

	result, err := s.handleSave(ctx, call("save_prd", map[string]any{"title": "Forge", "content": "not json"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = s.handleSave(ctx, call("save_prd", map[string]any{
		"title":   "Forge",
		"content": `{"overview":"A forge","features":[{"title":"Draft","priority":"Could-have"}]}`,
		"status":  "finalized",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, text(t, result))
	assert.Contains(t, text(t, result), `Saved "Forge"`)

	result, err = s.handleList(ctx, call("list_prds", map[string]any{"status": "finalized"}))
	require.NoError(t, err)
	var list []documentSummary
	require.NoError(t, json.Unmarshal([]byte(text(t, result)), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Forge", list[0].Title)
	id := list[0].ID

	result, err = s.handleGet(ctx, call("get_prd", map[string]any{"id": id}))
	require.NoError(t, err)
	assert.Contains(t, text(t, result), `"title": "Forge"`)

	result, err = s.handleExport(ctx, call("export_prd", map[string]any{"id": id}))
	require.NoError(t, err)
	assert.Contains(t, text(t, result), "# Forge\n\n## Overview\nA forge")
	assert.Contains(t, text(t, result), "### 1. Draft (Could-have)")

	result, err = s.handleGet(ctx, call("get_prd", map[string]any{"id": "6f1c2b7e-0000-4000-8000-000000000000"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}
