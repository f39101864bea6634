package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jvaldez/mcpchat/internal/buildinfo"
)

// protocolVersion is the MCP protocol version advertised during initialization.
const protocolVersion = "2024-11-05"

// clientName identifies this bridge in the initialize handshake.
const clientName = "mcpchat"

// DefaultCallTimeout is applied to any call whose context carries no
// deadline. Every call has a bound; an unresponsive backend yields a
// timeout, never an indefinite block.
const DefaultCallTimeout = 30 * time.Second

// State tracks a handle through its handshake.
//
// Spawned → Initializing → Ready is the only success path; Failed is
// terminal. Process death after Ready is detected lazily on the next
// call as a transport error.
type State int32

const (
	StateSpawned State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSpawned:
		return "spawned"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ToolDefinition is an MCP tool as returned by tools/list.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ContentBlock is a single content item in a tools/call response from
// backends that speak the full MCP content envelope.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// toolsListResult is the result payload of a tools/list response.
type toolsListResult struct {
	Tools []ToolDefinition `json:"tools"`
}

// serverInfo is returned in the initialize response.
type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// initializeResult is the initialize response result.
type initializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      serverInfo `json:"serverInfo"`
}

// Client drives one backend: the initialize handshake, then tools/call
// requests with fresh correlation ids. Calls on different clients
// proceed independently; calls on the same client serialize on the
// underlying transport.
type Client struct {
	name      string
	transport Transport
	logger    *slog.Logger
	nextID    atomic.Int64
	state     atomic.Int32

	mu         sync.RWMutex
	serverName string
	serverVer  string
	tools      []ToolDefinition
}

// NewClient creates a client for the given backend. The transport
// determines delivery (stdio subprocess or HTTP).
func NewClient(name string, transport Transport, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		name:      name,
		transport: transport,
		logger:    logger.With("mcp_server", name),
	}
	c.state.Store(int32(StateSpawned))
	return c
}

// Name returns the backend name this client is connected to.
func (c *Client) Name() string {
	return c.name
}

// State returns the handle's lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// ServerInfo returns the backend's self-reported name and version,
// valid once Ready.
func (c *Client) ServerInfo() (name, version string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverName, c.serverVer
}

// Initialize performs the handshake: an initialize request carrying
// protocol version and client identity, then the fire-and-forget
// notifications/initialized. On any failure the handle is Failed and
// must be discarded; its process is still terminated at shutdown.
func (c *Client) Initialize(ctx context.Context) error {
	c.state.Store(int32(StateInitializing))

	params := map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    clientName,
			"version": buildinfo.Version,
		},
	}

	resp, err := c.send(ctx, "initialize", params)
	if err != nil {
		c.state.Store(int32(StateFailed))
		return &HandshakeError{Server: c.name, Err: err}
	}

	var result initializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		c.state.Store(int32(StateFailed))
		return &HandshakeError{Server: c.name, Err: fmt.Errorf("unmarshal initialize result: %w", err)}
	}

	if err := c.transport.Notify(ctx, newNotification("notifications/initialized", nil)); err != nil {
		c.state.Store(int32(StateFailed))
		return &HandshakeError{Server: c.name, Err: fmt.Errorf("send initialized notification: %w", err)}
	}

	c.mu.Lock()
	c.serverName = result.ServerInfo.Name
	c.serverVer = result.ServerInfo.Version
	c.mu.Unlock()
	c.state.Store(int32(StateReady))

	c.logger.Info("MCP server initialized",
		"server_name", result.ServerInfo.Name,
		"server_version", result.ServerInfo.Version,
		"protocol_version", result.ProtocolVersion,
	)
	return nil
}

// ListTools calls tools/list and returns the available tool
// definitions. Results are cached after the first call.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	if c.State() != StateReady {
		return nil, ErrNotReady
	}

	c.mu.RLock()
	if c.tools != nil {
		defer c.mu.RUnlock()
		return c.tools, nil
	}
	c.mu.RUnlock()

	resp, err := c.send(ctx, "tools/list", nil)
	if err != nil {
		return nil, asCallError(err)
	}

	var result toolsListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("unmarshal tools/list result: %w", err)
	}

	c.mu.Lock()
	c.tools = result.Tools
	c.mu.Unlock()

	c.logger.Info("discovered MCP tools", "count", len(result.Tools))
	return result.Tools, nil
}

// CallTool invokes a named tool through the generic tools/call
// envelope and returns the raw result payload. A handle that never
// reached Ready fails fast with ErrNotReady; every other failure is a
// *CallError.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	if c.State() != StateReady {
		return nil, ErrNotReady
	}

	params := map[string]any{
		"name":      name,
		"arguments": args,
	}

	resp, err := c.send(ctx, "tools/call", params)
	if err != nil {
		return nil, asCallError(err)
	}
	return resp.Result, nil
}

// Ping checks whether the backend is responsive.
func (c *Client) Ping(ctx context.Context) error {
	if c.State() != StateReady {
		return ErrNotReady
	}
	_, err := c.send(ctx, "ping", nil)
	if err != nil {
		return asCallError(err)
	}
	return nil
}

// Close shuts down the client and its transport, terminating the
// subprocess for stdio backends. Idempotent.
func (c *Client) Close() error {
	c.logger.Debug("closing MCP client")
	return c.transport.Close()
}

// send issues a JSON-RPC request with a fresh correlation id and a
// bounded deadline, and surfaces protocol-level errors.
func (c *Client) send(ctx context.Context, method string, params any) (*Response, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultCallTimeout)
		defer cancel()
	}

	req := newRequest(c.nextID.Add(1), method, params)

	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.Error != nil {
		return nil, resp.Error
	}

	return resp, nil
}

// newRequest builds a wire request. Ids come from the owning client's
// counter; the zero id is reserved so an id-less notification echoed
// back never matches a pending request.
func newRequest(id int64, method string, params any) *Request {
	return &Request{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// newNotification builds a wire notification.
func newNotification(method string, params any) *Notification {
	return &Notification{
		JSONRPC: jsonrpcVersion,
		Method:  method,
		Params:  params,
	}
}

// asCallError maps the transport and protocol error surface onto the
// CallError taxonomy so registry callers see exactly one failure type.
func asCallError(err error) error {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return &CallError{Reason: ReasonRemoteError, Code: rpcErr.Code, Message: rpcErr.Message}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &CallError{Reason: ReasonTimeout, Message: err.Error()}
	}
	var trErr *TransportError
	if errors.As(err, &trErr) {
		return &CallError{Reason: ReasonTransport, Message: trErr.Error()}
	}
	return &CallError{Reason: ReasonTransport, Message: err.Error()}
}

// ExtractText joins the text blocks of an MCP content envelope into a
// single string. Non-text blocks become inline markers. Backends that
// return bare JSON payloads are not affected; this is a convenience
// for the ones that wrap results in content blocks.
func ExtractText(raw json.RawMessage) (string, bool) {
	var envelope struct {
		Content []ContentBlock `json:"content"`
		IsError bool           `json:"isError,omitempty"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Content) == 0 {
		return "", false
	}

	var parts []string
	for _, b := range envelope.Content {
		switch b.Type {
		case "text":
			parts = append(parts, b.Text)
		case "image":
			parts = append(parts, "[image]")
		case "resource":
			parts = append(parts, "[resource]")
		default:
			parts = append(parts, fmt.Sprintf("[%s]", b.Type))
		}
	}
	return strings.Join(parts, "\n"), true
}
