package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// mockTransport is a test double for the Transport interface.
type mockTransport struct {
	mu        sync.Mutex
	responses map[string]*Response // method -> canned response
	sent      []Request            // captured requests
	notifs    []Notification       // captured notifications
	sendErr   error                // forced transport failure
	closed    bool
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		responses: make(map[string]*Response),
	}
}

func (m *mockTransport) addResponse(method string, result any) {
	data, _ := json.Marshal(result)
	m.responses[method] = &Response{
		JSONRPC: jsonrpcVersion,
		Result:  json.RawMessage(data),
	}
}

func (m *mockTransport) addError(method string, code int, msg string) {
	m.responses[method] = &Response{
		JSONRPC: jsonrpcVersion,
		Error:   &RPCError{Code: code, Message: msg},
	}
}

func (m *mockTransport) Send(_ context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, *req)
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	resp, ok := m.responses[req.Method]
	if !ok {
		return nil, fmt.Errorf("unexpected method: %s", req.Method)
	}
	// Copy response and set matching ID.
	out := *resp
	out.ID = req.ID
	return &out, nil
}

func (m *mockTransport) Notify(_ context.Context, notif *Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifs = append(m.notifs, *notif)
	return nil
}

func (m *mockTransport) Close() error {
	m.closed = true
	return nil
}

func (m *mockTransport) addInitialize() {
	m.addResponse("initialize", initializeResult{
		ProtocolVersion: protocolVersion,
		ServerInfo:      serverInfo{Name: "test-server", Version: "1.0.0"},
	})
}

func TestClient_Initialize(t *testing.T) {
	mt := newMockTransport()
	mt.addInitialize()

	client := NewClient("filesystem", mt, nil)
	if client.State() != StateSpawned {
		t.Fatalf("initial state = %v, want spawned", client.State())
	}
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if client.State() != StateReady {
		t.Errorf("state = %v, want ready", client.State())
	}

	if len(mt.sent) != 1 || mt.sent[0].Method != "initialize" {
		t.Fatalf("sent = %+v, want one initialize request", mt.sent)
	}
	if len(mt.notifs) != 1 || mt.notifs[0].Method != "notifications/initialized" {
		t.Fatalf("notifs = %+v, want one initialized notification", mt.notifs)
	}

	name, ver := client.ServerInfo()
	if name != "test-server" || ver != "1.0.0" {
		t.Errorf("ServerInfo() = %q %q", name, ver)
	}
}

func TestClient_InitializeFailure(t *testing.T) {
	mt := newMockTransport()
	mt.addError("initialize", -32600, "unsupported protocol")

	client := NewClient("weather", mt, nil)
	err := client.Initialize(context.Background())

	var hsErr *HandshakeError
	if !errors.As(err, &hsErr) {
		t.Fatalf("Initialize = %v, want *HandshakeError", err)
	}
	if hsErr.Server != "weather" {
		t.Errorf("Server = %q, want weather", hsErr.Server)
	}
	if client.State() != StateFailed {
		t.Errorf("state = %v, want failed", client.State())
	}
	if len(mt.notifs) != 0 {
		t.Error("initialized notification must not be sent after a failed handshake")
	}
}

func TestClient_CallToolBeforeReady(t *testing.T) {
	client := NewClient("git", newMockTransport(), nil)

	_, err := client.CallTool(context.Background(), "git_status", nil)
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("CallTool = %v, want ErrNotReady", err)
	}
}

func TestClient_CallTool(t *testing.T) {
	mt := newMockTransport()
	mt.addInitialize()
	mt.addResponse("tools/call", map[string]any{
		"content": []map[string]any{{"type": "text", "text": "clean working tree"}},
	})

	client := NewClient("git", mt, nil)
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	raw, err := client.CallTool(context.Background(), "git_status", map[string]any{"repo_path": "."})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}

	text, ok := ExtractText(raw)
	if !ok || text != "clean working tree" {
		t.Errorf("ExtractText = %q %v", text, ok)
	}

	// The tools/call envelope must carry name and arguments.
	last := mt.sent[len(mt.sent)-1]
	params, ok := last.Params.(map[string]any)
	if !ok {
		t.Fatalf("params type %T", last.Params)
	}
	if params["name"] != "git_status" {
		t.Errorf("params name = %v", params["name"])
	}
}

func TestClient_CallToolRemoteError(t *testing.T) {
	mt := newMockTransport()
	mt.addInitialize()
	mt.addError("tools/call", -32000, "repository not found")

	client := NewClient("git", mt, nil)
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	_, err := client.CallTool(context.Background(), "git_status", nil)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("CallTool = %v, want *CallError", err)
	}
	if callErr.Reason != ReasonRemoteError {
		t.Errorf("Reason = %v, want remote_error", callErr.Reason)
	}
	if callErr.Code != -32000 || callErr.Message != "repository not found" {
		t.Errorf("payload = %d %q", callErr.Code, callErr.Message)
	}
}

func TestClient_CallToolTransportError(t *testing.T) {
	mt := newMockTransport()
	mt.addInitialize()

	client := NewClient("git", mt, nil)
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	mt.sendErr = &TransportError{Kind: KindEOF, Err: errors.New("broken pipe")}

	_, err := client.CallTool(context.Background(), "git_status", nil)
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("CallTool = %v, want *CallError", err)
	}
	if callErr.Reason != ReasonTransport {
		t.Errorf("Reason = %v, want transport", callErr.Reason)
	}
}

func TestClient_CallToolTimeout(t *testing.T) {
	mt := newMockTransport()
	mt.addInitialize()

	client := NewClient("filesystem", mt, nil)
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	mt.sendErr = context.DeadlineExceeded

	_, err := client.CallTool(context.Background(), "read_file", map[string]any{"path": "x"})
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("CallTool = %v, want *CallError", err)
	}
	if callErr.Reason != ReasonTimeout {
		t.Errorf("Reason = %v, want timeout", callErr.Reason)
	}
}

func TestClient_ListToolsCaches(t *testing.T) {
	mt := newMockTransport()
	mt.addInitialize()
	mt.addResponse("tools/list", toolsListResult{
		Tools: []ToolDefinition{
			{Name: "read_file", Description: "Read a file"},
			{Name: "write_file", Description: "Write a file"},
		},
	})

	client := NewClient("filesystem", mt, nil)
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	for i := 0; i < 2; i++ {
		tools, err := client.ListTools(context.Background())
		if err != nil {
			t.Fatalf("ListTools #%d: %v", i, err)
		}
		if len(tools) != 2 {
			t.Fatalf("ListTools #%d returned %d tools", i, len(tools))
		}
	}

	// initialize + exactly one tools/list despite two calls.
	if len(mt.sent) != 2 {
		t.Errorf("sent %d requests, want 2", len(mt.sent))
	}
}

func TestClient_UniqueRequestIDs(t *testing.T) {
	mt := newMockTransport()
	mt.addInitialize()
	mt.addResponse("tools/call", map[string]any{"content": []map[string]any{}})

	client := NewClient("filesystem", mt, nil)
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := client.CallTool(context.Background(), "read_file", nil); err != nil {
			t.Fatalf("CallTool #%d: %v", i, err)
		}
	}

	seen := make(map[int64]bool)
	for _, req := range mt.sent {
		if req.ID == 0 {
			t.Error("request id 0 must never be used")
		}
		if seen[req.ID] {
			t.Errorf("duplicate request id %d", req.ID)
		}
		seen[req.ID] = true
	}
}

func TestClient_Close(t *testing.T) {
	mt := newMockTransport()
	client := NewClient("filesystem", mt, nil)
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !mt.closed {
		t.Error("transport not closed")
	}
}

func TestExtractText_NotAnEnvelope(t *testing.T) {
	if _, ok := ExtractText(json.RawMessage(`{"temperature": 21.5}`)); ok {
		t.Error("bare JSON payload must not extract as content blocks")
	}
}
