// Package mcp implements the MCP (Model Context Protocol) client
// bridge: it launches external tool backends as child processes,
// speaks newline-delimited JSON-RPC 2.0 with each over stdio (or HTTP
// POST for remote backends), correlates requests with responses, and
// exposes a uniform named-server call interface.
//
// The pieces compose bottom-up: a Transport owns one backend and its
// framing, a Client drives the initialize handshake and tools/call on
// top of it, a Registry holds ready clients by name and normalizes
// every outcome into a Result, and a Manager starts and tears down the
// whole set while tolerating per-backend failure.
package mcp
