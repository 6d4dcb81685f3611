package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ksred/linkdesk/internal/models"
	"github.com/ksred/linkdesk/internal/rpc"
	"github.com/ksred/linkdesk/internal/search"
	"github.com/ksred/linkdesk/internal/services"
	"github.com/ksred/linkdesk/internal/utils"
)

type fakeSearcher struct {
	results []search.Result
	err     error
	lastReq search.LinkRequest
}

func (f *fakeSearcher) SearchLink(ctx context.Context, req search.LinkRequest) ([]search.Result, error) {
	f.lastReq = req
	return f.results, f.err
}

func (f *fakeSearcher) SearchWidget(ctx context.Context, req search.WidgetRequest) ([][]string, error) {
	f.lastReq = search.LinkRequest(req)
	if f.err != nil {
		return nil, f.err
	}
	rows := make([][]string, len(f.results))
	for i, r := range f.results {
		rows[i] = []string{r.Value}
	}
	return rows, nil
}

type fakePatchLogs struct {
	rerunID uint
	err     error
}

func (f *fakePatchLogs) List(ctx context.Context, req services.ListPatchLogsRequest) (*services.PatchLogList, error) {
	return &services.PatchLogList{
		Items: []models.PatchLog{{ID: 1, Patch: "linkdesk.patches.v1.seed_territories"}},
		Total: 7,
	}, nil
}

func (f *fakePatchLogs) RerunPatch(ctx context.Context, id uint) (*services.Notice, error) {
	f.rerunID = id
	if f.err != nil {
		return nil, f.err
	}
	return &services.Notice{Message: "Successfully re-ran patch: x", Indicator: "green", Alert: true}, nil
}

type fakeDocTypes struct{}

func (fakeDocTypes) List(ctx context.Context, module string) ([]models.DocType, error) {
	return []models.DocType{{Name: "Territory", IsTree: true}}, nil
}

func newTestHandler(t *testing.T, searcher *fakeSearcher, patchLogs *fakePatchLogs) *Handler {
	t.Helper()
	registry := rpc.NewRegistry(zerolog.Nop())
	require.NoError(t, rpc.RegisterDefaults(registry, searcher, patchLogs))
	return NewHandler(registry, fakeDocTypes{}, zerolog.Nop())
}

func TestTools(t *testing.T) {
	tools := Tools()

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		assert.NotEmpty(t, tool.Description)
		assert.Equal(t, "object", tool.InputSchema.Type)
	}
	assert.ElementsMatch(t, ToolNames(), names)

	assert.Equal(t, []string{"doctype"}, tools[0].InputSchema.Required)
	assert.Equal(t, []string{"id"}, tools[3].InputSchema.Required)
}

func TestHandler_CallTool(t *testing.T) {
	ctx := context.Background()

	t.Run("search link", func(t *testing.T) {
		searcher := &fakeSearcher{results: []search.Result{{Value: "India"}, {Value: "Indonesia"}}}
		h := newTestHandler(t, searcher, &fakePatchLogs{})

		resp := h.CallTool(ctx, ToolSearchLink, map[string]interface{}{"doctype": "Territory", "txt": "ind", "_lang": "fr"})
		require.True(t, resp.Success)
		assert.Equal(t, "Found 2 results", resp.Message)
		assert.Equal(t, 2, resp.Meta.Count)
		assert.Equal(t, "fr", searcher.lastReq.Lang)
		assert.Equal(t, "ind", searcher.lastReq.Args.String("txt"))
	})

	t.Run("empty search result is a list", func(t *testing.T) {
		h := newTestHandler(t, &fakeSearcher{}, &fakePatchLogs{})

		resp := h.CallTool(ctx, ToolSearchLink, map[string]interface{}{"doctype": "Nope"})
		require.True(t, resp.Success)
		body, err := resp.ToJSON()
		require.NoError(t, err)
		assert.Contains(t, string(body), `"data":[]`)
	})

	t.Run("search widget", func(t *testing.T) {
		h := newTestHandler(t, &fakeSearcher{results: []search.Result{{Value: "Asia"}}}, &fakePatchLogs{})

		resp := h.CallTool(ctx, ToolSearchWidget, map[string]interface{}{"doctype": "Territory"})
		require.True(t, resp.Success)
		assert.Equal(t, [][]string{{"Asia"}}, resp.Data)
	})

	t.Run("invalid search field", func(t *testing.T) {
		searcher := &fakeSearcher{err: utils.WrapDataError("1=1", "Invalid Search Field 1=1")}
		h := newTestHandler(t, searcher, &fakePatchLogs{})

		resp := h.CallTool(ctx, ToolSearchLink, map[string]interface{}{"doctype": "Territory", "searchfield": "1=1"})
		assert.False(t, resp.Success)
		assert.Equal(t, "DataError", resp.ExcType)
		assert.Equal(t, "Invalid Search Field 1=1", resp.Error)
	})

	t.Run("list patch logs", func(t *testing.T) {
		h := newTestHandler(t, &fakeSearcher{}, &fakePatchLogs{})

		resp := h.CallTool(ctx, ToolListPatchLogs, map[string]interface{}{})
		require.True(t, resp.Success)
		assert.Equal(t, 1, resp.Meta.Count)
		assert.Equal(t, int64(7), resp.Meta.Total)
	})

	t.Run("rerun patch takes a JSON number id", func(t *testing.T) {
		patchLogs := &fakePatchLogs{}
		h := newTestHandler(t, &fakeSearcher{}, patchLogs)

		resp := h.CallTool(ctx, ToolRerunPatch, map[string]interface{}{"id": float64(3)})
		require.True(t, resp.Success)
		assert.Equal(t, uint(3), patchLogs.rerunID)
		assert.Equal(t, "Successfully re-ran patch: x", resp.Message)
	})

	t.Run("rerun refused", func(t *testing.T) {
		patchLogs := &fakePatchLogs{err: utils.WrapPermissionError("rerun patch", "Re-running patch is only allowed in developer mode.")}
		h := newTestHandler(t, &fakeSearcher{}, patchLogs)

		resp := h.CallTool(ctx, ToolRerunPatch, map[string]interface{}{"id": float64(1)})
		assert.False(t, resp.Success)
		assert.Equal(t, "PermissionError", resp.ExcType)
		assert.Equal(t, "Re-running patch is only allowed in developer mode.", resp.Error)
	})

	t.Run("unknown tool", func(t *testing.T) {
		h := newTestHandler(t, &fakeSearcher{}, &fakePatchLogs{})

		resp := h.CallTool(ctx, "drop_table", nil)
		assert.False(t, resp.Success)
		assert.Equal(t, "unknown tool: drop_table", resp.Error)
	})
}

func TestToolResult(t *testing.T) {
	ok := toolResult(NewSuccessResponse("done", map[string]interface{}{"id": 1}))
	assert.False(t, ok.IsError)
	require.Len(t, ok.Content, 1)

	text, isText := ok.Content[0].(mcp.TextContent)
	require.True(t, isText)

	var decoded ToolResponse
	require.NoError(t, json.Unmarshal([]byte(text.Text), &decoded))
	assert.True(t, decoded.Success)
	assert.Equal(t, "done", decoded.Message)

	failed := toolResult(NewErrorResponse("boom"))
	assert.True(t, failed.IsError)
}

func TestFindLinkPrompt(t *testing.T) {
	assert.Equal(t,
		`Use the search_link tool to find the Territory that best matches "ind" and answer with its value.`,
		FindLinkPrompt(map[string]string{"doctype": "Territory", "txt": "ind"}))
	assert.Equal(t,
		"Use the search_link tool to list DocType records and ask which one to use.",
		FindLinkPrompt(nil))
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(nil, zerolog.Nop())
	assert.Error(t, err)

	h := newTestHandler(t, &fakeSearcher{}, &fakePatchLogs{})
	s, err := NewServer(h, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, s.mcpServer)

	doctypes, err := h.DocTypes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Territory", doctypes[0].Name)
}
