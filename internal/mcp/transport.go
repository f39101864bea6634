package mcp

import "context"

// Transport is the interface for MCP backend communication.
// Implementations handle framing, encoding, and correlation over a
// specific channel (stdio subprocess or HTTP).
type Transport interface {
	// Send sends a JSON-RPC request and blocks until the response
	// with the matching ID arrives, the context expires, or the
	// channel fails.
	Send(ctx context.Context, req *Request) (*Response, error)

	// Notify sends a JSON-RPC notification (no response expected).
	Notify(ctx context.Context, notif *Notification) error

	// Close shuts down the transport and releases resources.
	// For stdio transports this terminates the subprocess.
	Close() error
}

// Recorder is the diagnostics sink every sent and received frame is
// mirrored to. It is a pure observer: implementations must never block
// the call path or surface errors into it. A nil Recorder is valid and
// disables mirroring.
type Recorder interface {
	Record(action string, payload any)
}
