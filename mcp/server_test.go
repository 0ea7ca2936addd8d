package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukman83/serpstat-mcp/internal/catalog"
	"github.com/lukman83/serpstat-mcp/internal/dispatch"
	"github.com/lukman83/serpstat-mcp/internal/rpc"
	"github.com/lukman83/serpstat-mcp/internal/schema"
)

type stubInvoker struct {
	result rpc.Result
	method string
	params map[string]any
}

func (s *stubInvoker) Invoke(_ context.Context, method string, params map[string]any, _ ...rpc.CallOption) rpc.Result {
	if method == "Panic.now" {
		panic("kaboom")
	}
	s.method, s.params = method, params
	return s.result
}

func testDispatcher(t *testing.T, inv dispatch.Invoker) *dispatch.Dispatcher {
	t.Helper()
	lowest := 1.0
	reg, err := catalog.NewRegistry(catalog.Meta{Server: "audit", Description: "Site audit tools"}, []catalog.Tool{
		{
			Name:        "start",
			Method:      "AuditSite.start",
			Description: "Start an audit",
			Params: []schema.Param{
				{Name: "projectId", Kind: schema.KindInteger, Required: true, Min: &lowest, Description: "Project ID"},
			},
		},
		{Name: "explode", Method: "Panic.now", Description: "Always panics"},
	})
	require.NoError(t, err)
	return dispatch.New(reg, inv)
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func TestToolDefinition(t *testing.T) {
	d := testDispatcher(t, &stubInvoker{})
	tool, err := d.Registry().Lookup("start")
	require.NoError(t, err)

	def := toolDefinition(tool)
	assert.Equal(t, "start", def.Name)
	assert.Equal(t, "Start an audit", def.Description)
	assert.Equal(t, "object", def.InputSchema.Type)
	assert.Equal(t, []string{"projectId"}, def.InputSchema.Required)
	assert.Equal(t, map[string]any{
		"type": "integer", "description": "Project ID", "minimum": 1.0,
	}, def.InputSchema.Properties["projectId"])
}

func TestToolHandlerSuccess(t *testing.T) {
	inv := &stubInvoker{result: rpc.Result{Success: true, Data: json.RawMessage(`{"result":true}`)}}
	h := toolHandler(testDispatcher(t, inv), zerolog.Nop())

	res, err := h(context.Background(), callRequest("start", map[string]any{"projectId": 12.0}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "{\n  \"result\": true\n}", resultText(t, res))
	assert.Equal(t, "AuditSite.start", inv.method)
	assert.Equal(t, map[string]any{"projectId": int64(12)}, inv.params)
}

func TestToolHandlerErrorsStayInBand(t *testing.T) {
	h := toolHandler(testDispatcher(t, &stubInvoker{}), zerolog.Nop())

	res, err := h(context.Background(), callRequest("start", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), `"code": "INVALID_ARGUMENTS"`)
}

func TestToolHandlerPanicBecomesEnvelope(t *testing.T) {
	h := toolHandler(testDispatcher(t, &stubInvoker{}), zerolog.Nop())

	res, err := h(context.Background(), callRequest("explode", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), `"code": "INTERNAL_ERROR"`)
}

func TestServerListsAndCallsTools(t *testing.T) {
	inv := &stubInvoker{result: rpc.Result{Success: true, Data: json.RawMessage(`{"ok":1}`)}}
	s := NewServer(testDispatcher(t, inv), zerolog.Nop())

	list := s.HandleMessage(context.Background(), json.RawMessage(
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(list)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"name":"start"`)
	assert.Contains(t, string(raw), `"name":"explode"`)

	call := s.HandleMessage(context.Background(), json.RawMessage(
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"start","arguments":{"projectId":3}}}`))
	raw, err = json.Marshal(call)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `\"ok\": 1`)
	assert.Equal(t, map[string]any{"projectId": int64(3)}, inv.params)
}

func TestServerAnswersUnknownToolWithEnvelope(t *testing.T) {
	inv := &stubInvoker{}
	s := NewServer(testDispatcher(t, inv), zerolog.Nop())

	for _, name := range []string{"nope", unknownToolRoute} {
		t.Run(name, func(t *testing.T) {
			resp := s.HandleMessage(context.Background(), json.RawMessage(
				`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"`+name+`","arguments":{"x":1}}}`))

			rpcResp, ok := resp.(mcp.JSONRPCResponse)
			require.True(t, ok, "expected a result, got %#v", resp)
			res, ok := rpcResp.Result.(*mcp.CallToolResult)
			require.True(t, ok)
			assert.True(t, res.IsError)
			assert.Contains(t, resultText(t, res), `"code": "UNKNOWN_TOOL"`)
			assert.Contains(t, resultText(t, res), "unknown tool: "+name)
		})
	}
	assert.Empty(t, inv.method)
}

func TestServerHidesUnknownToolRoute(t *testing.T) {
	s := NewServer(testDispatcher(t, &stubInvoker{}), zerolog.Nop())

	list := s.HandleMessage(context.Background(), json.RawMessage(
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(list)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), unknownToolRoute)
}

func TestHTTPHandlerHealthAndAuth(t *testing.T) {
	d := testDispatcher(t, &stubInvoker{})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("serpstat_tool_calls_total 0\n"))
	})
	h := NewHTTPHandler([]*dispatch.Dispatcher{d}, HTTPOptions{APIKey: "s3cret", Metrics: metrics})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","servers":["audit"]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "serpstat_tool_calls_total")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp/audit", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Bearer realm="mcp"`, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodPost, "/mcp/audit", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp/backlinks", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeHTTPStopsOnCancel(t *testing.T) {
	d := testDispatcher(t, &stubInvoker{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServeHTTP(ctx, []*dispatch.Dispatcher{d}, HTTPOptions{
			Addr:   "127.0.0.1:0",
			Logger: zerolog.Nop(),
		})
	}()
	cancel()
	assert.NoError(t, <-done)
}
