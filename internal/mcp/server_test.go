package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/xiy/rmm-mcp/internal/config"
	"github.com/xiy/rmm-mcp/internal/modulation"
	"github.com/xiy/rmm-mcp/internal/reprocess"
	"github.com/xiy/rmm-mcp/internal/values"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	logger := log.NewWithOptions(io.Discard, log.Options{})
	scorer := values.NewScorer(values.DefaultTable(), rand.New(rand.NewSource(21)))
	source := modulation.NewSource(cfg.BaselineModulation, cfg.StrengthFloor, rand.New(rand.NewSource(22)))
	svc := reprocess.NewService(cfg, scorer, source, nil, logger, rand.New(rand.NewSource(23)))
	return NewServer(cfg.ServerName, svc, nil, logger)
}

func TestHandle_ToolsList(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, ok := srv.handle(context.Background(), request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  "tools/list",
	})
	if !ok {
		t.Fatal("expected response")
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error response: %+v", resp.Error)
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result type %T", resp.Result)
	}
	tools, ok := result["tools"].([]ToolDefinition)
	if !ok || len(tools) != 5 {
		t.Fatalf("expected 5 tool definitions, got %v", result["tools"])
	}
}

func TestHandle_AddThenReprocess(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	ctx := context.Background()

	addArgs := `{"name":"memory_add","arguments":{"identifier":"m1","content":"Fell off bike.","inference":"Bikes are dangerous.","valence":-0.8}}`
	resp, ok := srv.handle(ctx, request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "tools/call", Params: json.RawMessage(addArgs)})
	if !ok || resp.Error != nil {
		t.Fatalf("memory_add failed: %+v", resp)
	}
	if isError(t, resp) {
		t.Fatalf("expected memory_add success, got %+v", resp.Result)
	}

	cycleArgs := `{"name":"memory_reprocess","arguments":{"identifier":"m1"}}`
	resp, ok = srv.handle(ctx, request{JSONRPC: "2.0", ID: json.RawMessage(`2`), Method: "tools/call", Params: json.RawMessage(cycleArgs)})
	if !ok || resp.Error != nil {
		t.Fatalf("memory_reprocess failed: %+v", resp)
	}
	if isError(t, resp) {
		t.Fatalf("expected memory_reprocess success, got %+v", resp.Result)
	}
}

func TestHandle_ReprocessUnknownMemoryIsToolError(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	args := `{"name":"memory_reprocess","arguments":{"identifier":"missing_id"}}`
	resp, ok := srv.handle(context.Background(), request{JSONRPC: "2.0", ID: json.RawMessage(`1`), Method: "tools/call", Params: json.RawMessage(args)})
	if !ok {
		t.Fatal("expected response")
	}
	if resp.Error != nil {
		t.Fatalf("not-found must be a tool error, not a protocol error: %+v", resp.Error)
	}
	if !isError(t, resp) {
		t.Fatal("expected isError=true for unknown identifier")
	}
}

func TestServe_JSONLineInitialize(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	in := bytes.NewBufferString("{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"initialize\",\"params\":{\"protocolVersion\":\"2024-11-05\"}}\n")
	var out bytes.Buffer
	if err := srv.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	line := bytes.TrimSpace(out.Bytes())
	if len(line) == 0 {
		t.Fatal("expected JSON-line response, got empty output")
	}
	if bytes.Contains(line, []byte("Content-Length:")) {
		t.Fatalf("expected JSON-line response, got framed output: %q", string(line))
	}

	var resp map[string]any
	if err := json.Unmarshal(line, &resp); err != nil {
		t.Fatalf("json.Unmarshal(response) error = %v", err)
	}
	if resp["jsonrpc"] != "2.0" {
		t.Fatalf("expected jsonrpc 2.0, got %v", resp["jsonrpc"])
	}
}

func TestFramedMessageRoundTrip(t *testing.T) {
	t.Parallel()
	resp := response{JSONRPC: "2.0", ID: 1, Result: map[string]any{"ok": true}}
	var buf bytes.Buffer
	bw := bufio.NewWriter(&buf)
	if err := writeMessage(bw, resp, wireFramed); err != nil {
		t.Fatalf("writeMessage() error = %v", err)
	}

	br := bufio.NewReader(bytes.NewReader(buf.Bytes()))
	payload, mode, err := readMessage(br)
	if err != nil {
		t.Fatalf("readMessage() error = %v", err)
	}
	if mode != wireFramed {
		t.Fatalf("expected framed mode, got %v", mode)
	}
	var got map[string]any
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if got["jsonrpc"] != "2.0" {
		t.Fatalf("expected jsonrpc 2.0, got %v", got["jsonrpc"])
	}
}

func isError(t *testing.T, resp response) bool {
	t.Helper()
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result type %T", resp.Result)
	}
	isErr, _ := result["isError"].(bool)
	return isErr
}
