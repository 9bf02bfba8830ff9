package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kantoku/internal/diff"
	"github.com/ashita-ai/kantoku/internal/model"
	"github.com/ashita-ai/kantoku/internal/service/scripts"
	"github.com/ashita-ai/kantoku/internal/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	svc := scripts.New(testutil.NewSQLiteStore(t), testutil.TestLogger(), scripts.Options{RetryDelay: time.Millisecond})
	return New(svc, testutil.TestLogger(), "test")
}

func callTool(t *testing.T, s *Server, handler func(context.Context, mcplib.CallToolRequest) (*mcplib.CallToolResult, error), args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	res, err := handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Arguments: args},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func resultText(t *testing.T, res *mcplib.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcplib.TextContent)
	require.True(t, ok, "expected TextContent, got %T", res.Content[0])
	return tc.Text
}

func decodeResult[T any](t *testing.T, res *mcplib.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, "tool returned error: %s", resultText(t, res))
	var out T
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	return out
}

func TestPublishActivateRender(t *testing.T) {
	s := newTestServer(t)

	v1 := decodeResult[model.Script](t, callTool(t, s, s.handlePublish, map[string]any{
		"owner_id": "chan-1", "script_type": "title_guide", "content": "Title about {{topic}}",
	}))
	assert.Equal(t, 1, v1.Version)
	assert.False(t, v1.IsActive)

	v2 := decodeResult[model.Script](t, callTool(t, s, s.handlePublish, map[string]any{
		"owner_id": "chan-1", "script_type": "title_guide", "content": "Short title about {{topic}}",
		"trained_by": "editor", "activate": true,
	}))
	assert.Equal(t, 2, v2.Version)
	assert.True(t, v2.IsActive)
	require.NotNil(t, v2.TrainedBy)
	assert.Equal(t, "editor", *v2.TrainedBy)

	active := decodeResult[model.Script](t, callTool(t, s, s.handleActivate, map[string]any{
		"owner_id": "chan-1", "script_type": "title_guide", "version": float64(1),
	}))
	assert.Equal(t, 1, active.Version)
	assert.True(t, active.IsActive)

	rendered := decodeResult[scripts.Rendered](t, callTool(t, s, s.handleRender, map[string]any{
		"owner_id": "chan-1", "script_type": "title_guide",
		"values": map[string]any{"topic": "bread"},
	}))
	assert.Equal(t, "Title about bread", rendered.Text)
	assert.Empty(t, rendered.Unresolved)

	hist := decodeResult[scripts.History](t, callTool(t, s, s.handleVersions, map[string]any{
		"owner_id": "chan-1", "script_type": "title_guide",
	}))
	require.Len(t, hist.Versions, 2)
	assert.Equal(t, 2, hist.Versions[0].Version)
	assert.NotEmpty(t, hist.HistoryRoot)
}

func TestToolErrors(t *testing.T) {
	s := newTestServer(t)

	res := callTool(t, s, s.handlePublish, map[string]any{
		"owner_id": "chan-1", "script_type": "Bad Type", "content": "x",
	})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "script_type")

	res = callTool(t, s, s.handleActivate, map[string]any{
		"owner_id": "chan-1", "script_type": "title_guide", "version": float64(9),
	})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not found")

	res = callTool(t, s, s.handleRender, map[string]any{
		"owner_id": "chan-1", "script_type": "title_guide",
	})
	assert.True(t, res.IsError)

	res = callTool(t, s, s.handleRender, map[string]any{
		"owner_id": "chan-1", "script_type": "title_guide", "values": "topic=bread",
	})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "values must be an object")
}

func TestPreviewTool(t *testing.T) {
	s := newTestServer(t)
	callTool(t, s, s.handlePublish, map[string]any{
		"owner_id": "o", "script_type": "script_guide", "content": "a\nb\nc",
	})

	p := decodeResult[scripts.Preview](t, callTool(t, s, s.handlePreview, map[string]any{
		"owner_id": "o", "script_type": "script_guide", "content": "a\nx\nc",
	}))
	assert.Equal(t, 1, p.BaseVersion)
	assert.Equal(t, diff.Summary{Same: 2, Added: 1, Removed: 1}, p.Diff.Summary)

	res := callTool(t, s, s.handlePreview, map[string]any{
		"owner_id": "o", "script_type": "script_guide", "content": "a", "algorithm": "myers",
	})
	assert.True(t, res.IsError)
}

func TestSubstituteTool(t *testing.T) {
	s := newTestServer(t)
	out := decodeResult[model.SubstituteResponse](t, callTool(t, s, s.handleSubstitute, map[string]any{
		"template": "{{a}}-{{b}}-{{c}}",
		"values":   map[string]any{"a": "x", "b": nil, "n": 3},
	}))
	assert.Equal(t, "x--{{c}}", out.Text)
	assert.Equal(t, []string{"c"}, out.Unresolved)
}

func TestValuesArgFormatsScalars(t *testing.T) {
	values, err := valuesArg(mcplib.CallToolRequest{Params: mcplib.CallToolParams{
		Arguments: map[string]any{"values": map[string]any{"n": float64(3), "ok": true}},
	}})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"n": "3", "ok": "true"}, values)

	_, err = valuesArg(mcplib.CallToolRequest{Params: mcplib.CallToolParams{
		Arguments: map[string]any{"values": map[string]any{"nested": map[string]any{}}},
	}})
	assert.Error(t, err)
}

func TestDiffTool(t *testing.T) {
	s := newTestServer(t)
	res := callTool(t, s, s.handleDiff, map[string]any{
		"original": "a\nb", "candidate": "a\nc", "algorithm": diff.AlgorithmMatcher,
	})
	require.False(t, res.IsError)
	var out struct {
		Algorithm string `json:"algorithm"`
		Unified   string `json:"unified"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, diff.AlgorithmMatcher, out.Algorithm)
	assert.Equal(t, " a\n-b\n+c\n", out.Unified)

	res = callTool(t, s, s.handleDiff, map[string]any{"original": "a", "candidate": "b", "algorithm": "x"})
	assert.True(t, res.IsError)
}

func TestCurrentScriptResource(t *testing.T) {
	s := newTestServer(t)
	callTool(t, s, s.handlePublish, map[string]any{
		"owner_id": "team/chan", "script_type": "title_guide", "content": "hello",
	})

	uri := "kantoku://owners/team/chan/scripts/title_guide"
	contents, err := s.handleCurrentScript(context.Background(), mcplib.ReadResourceRequest{
		Params: mcplib.ReadResourceParams{URI: uri},
	})
	require.NoError(t, err)
	require.Len(t, contents, 1)
	trc, ok := contents[0].(mcplib.TextResourceContents)
	require.True(t, ok)
	assert.Equal(t, uri, trc.URI)

	var payload struct {
		OwnerID string        `json:"owner_id"`
		Script  *model.Script `json:"script"`
	}
	require.NoError(t, json.Unmarshal([]byte(trc.Text), &payload))
	assert.Equal(t, "team/chan", payload.OwnerID)
	require.NotNil(t, payload.Script)
	assert.Equal(t, "hello", payload.Script.Content)
}

func TestScriptTypesResource(t *testing.T) {
	s := newTestServer(t)
	contents, err := s.handleScriptTypes(context.Background(), mcplib.ReadResourceRequest{})
	require.NoError(t, err)
	trc := contents[0].(mcplib.TextResourceContents)
	var types []string
	require.NoError(t, json.Unmarshal([]byte(trc.Text), &types))
	assert.Equal(t, model.KnownScriptTypes, types)
}

func TestParseScriptURI(t *testing.T) {
	owner, typ, err := parseScriptURI("kantoku://owners/abc/scripts/title_guide")
	require.NoError(t, err)
	assert.Equal(t, "abc", owner)
	assert.Equal(t, "title_guide", typ)

	for _, bad := range []string{
		"kantoku://owners//scripts/x",
		"kantoku://owners/abc/scripts/",
		"kantoku://owners/abc/scripts/a/b",
		"kantoku://other/abc/scripts/x",
		"kantoku://owners/abc",
	} {
		_, _, err := parseScriptURI(bad)
		assert.Error(t, err, bad)
	}
}

func TestRevisePrompt(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleReviseScriptPrompt(ctx, mcplib.GetPromptRequest{
		Params: mcplib.GetPromptParams{
			Name:      "revise-script",
			Arguments: map[string]string{"owner_id": "o", "script_type": "title_guide"},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text := res.Messages[0].Content.(mcplib.TextContent).Text
	assert.Contains(t, text, "writing version 1")
	assert.Contains(t, text, `script_type="title_guide"`)

	callTool(t, s, s.handlePublish, map[string]any{"owner_id": "o", "script_type": "title_guide", "content": "v1 body"})
	res, err = s.handleReviseScriptPrompt(ctx, mcplib.GetPromptRequest{
		Params: mcplib.GetPromptParams{
			Arguments: map[string]string{"owner_id": "o", "script_type": "title_guide", "goal": "shorter"},
		},
	})
	require.NoError(t, err)
	text = res.Messages[0].Content.(mcplib.TextContent).Text
	assert.Contains(t, text, "version 1:\n\nv1 body")
	assert.Contains(t, text, "Goal: shorter.")

	_, err = s.handleReviseScriptPrompt(ctx, mcplib.GetPromptRequest{
		Params: mcplib.GetPromptParams{Arguments: map[string]string{"owner_id": "o"}},
	})
	assert.Error(t, err)
}

func TestAuthoringGuidePrompt(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleAuthoringGuidePrompt(context.Background(), mcplib.GetPromptRequest{})
	require.NoError(t, err)
	text := res.Messages[0].Content.(mcplib.TextContent).Text
	assert.Contains(t, text, "kantoku_publish")
}
