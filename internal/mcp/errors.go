package mcp

import (
	"errors"
	"fmt"
)

// RPCError is the error object a backend puts in a Response. It is
// protocol data, not a bridge fault: the call was delivered and the
// backend answered with failure.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// ErrNotReady is returned when a tool call is attempted on a handle
// that never completed its handshake. This is a lifecycle error, not a
// transient fault: the caller holds a handle it should have discarded.
var ErrNotReady = errors.New("mcp: server handle is not ready")

// SpawnError indicates the backend executable could not be launched
// (missing binary, permission denied). Fatal for that backend only.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// HandshakeError indicates the backend rejected the initialize
// exchange or failed before completing it. The handle is unusable and
// must be discarded; its process is still terminated at shutdown.
type HandshakeError struct {
	Server string
	Err    error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake with %s: %v", e.Server, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// TransportKind identifies the transport-level failure mode.
type TransportKind string

const (
	// KindWrite: the request could not be written (broken pipe,
	// process already exited).
	KindWrite TransportKind = "write"
	// KindEOF: the backend's output stream closed while a response
	// was expected.
	KindEOF TransportKind = "eof"
	// KindParse: the backend emitted a line that is not valid JSON.
	KindParse TransportKind = "parse"
)

// TransportError wraps a transport-level failure. After one of these
// the handle is dead: the framing can no longer be trusted and no
// restart is attempted.
type TransportError struct {
	Kind TransportKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// CallReason classifies a failed tool call for uniform downstream
// branching.
type CallReason string

const (
	// ReasonRemoteError: the backend executed the call and reported
	// failure. Recoverable; surfaced as data, not a fault.
	ReasonRemoteError CallReason = "remote_error"
	// ReasonTimeout: no matching response arrived within the call
	// budget. Recoverable; the caller may retry.
	ReasonTimeout CallReason = "timeout"
	// ReasonTransport: the underlying channel failed. The handle is
	// dead and excluded from further calls.
	ReasonTransport CallReason = "transport"
)

// CallError is the single failure type returned by Client.CallTool.
// Code and Message carry the backend's error payload when Reason is
// ReasonRemoteError.
type CallError struct {
	Reason  CallReason
	Code    int
	Message string
}

func (e *CallError) Error() string {
	if e.Reason == ReasonRemoteError {
		return fmt.Sprintf("call failed (%s): %d %s", e.Reason, e.Code, e.Message)
	}
	return fmt.Sprintf("call failed (%s): %s", e.Reason, e.Message)
}

// DuplicateServerError indicates a Register call with a name that is
// already taken. A configuration error, fatal to the offending call only.
type DuplicateServerError struct {
	Name string
}

func (e *DuplicateServerError) Error() string {
	return fmt.Sprintf("mcp server %q is already registered", e.Name)
}

// UnknownServerError indicates an invoke against a name that was never
// registered (or failed to start).
type UnknownServerError struct {
	Name string
}

func (e *UnknownServerError) Error() string {
	return fmt.Sprintf("unknown mcp server %q", e.Name)
}
