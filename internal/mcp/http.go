package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jvaldez/mcpchat/internal/httpkit"
)

// HTTPConfig configures an HTTP transport for a remote backend that
// accepts JSON-RPC over POST (the hosted weather server, for example).
type HTTPConfig struct {
	// URL is the backend's JSON-RPC endpoint.
	URL string

	// Headers are additional HTTP headers sent with every request
	// (e.g., Authorization).
	Headers map[string]string

	// Logger is the structured logger for transport diagnostics.
	Logger *slog.Logger

	// Recorder receives a copy of every frame for the audit trail.
	Recorder Recorder
}

// HTTPTransport communicates with a remote MCP backend over HTTP.
// Each JSON-RPC request is one POST; the response comes back in the
// response body. Correlation is implicit in the request/response pair.
type HTTPTransport struct {
	url        string
	headers    map[string]string
	httpClient *http.Client
	logger     *slog.Logger
	rec        Recorder
}

// NewHTTPTransport creates an HTTP transport for the given config.
func NewHTTPTransport(cfg HTTPConfig) *HTTPTransport {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPTransport{
		url:        cfg.URL,
		headers:    cfg.Headers,
		httpClient: httpkit.NewClient(),
		logger:     logger,
		rec:        cfg.Recorder,
	}
}

// Send sends a JSON-RPC request via HTTP POST and returns the response.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, err := t.post(ctx, body)
	if err != nil {
		return nil, &TransportError{Kind: KindWrite, Err: err}
	}
	t.record("rpc_send", json.RawMessage(body))

	var resp Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &TransportError{Kind: KindParse, Err: err}
	}
	// Correlation is implicit over HTTP (one response per POST), but a
	// backend answering with a different id has broken the pairing.
	if resp.ID != req.ID {
		return nil, &TransportError{
			Kind: KindParse,
			Err:  fmt.Errorf("response id %d does not match request id %d", resp.ID, req.ID),
		}
	}
	t.record("rpc_recv", json.RawMessage(respBody))

	return &resp, nil
}

// Notify sends a JSON-RPC notification via HTTP POST. No response
// content is expected, but the HTTP status is checked.
func (t *HTTPTransport) Notify(ctx context.Context, notif *Notification) error {
	body, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if _, err := t.post(ctx, body); err != nil {
		return &TransportError{Kind: KindWrite, Err: err}
	}
	t.record("rpc_notify", json.RawMessage(body))
	return nil
}

// post performs one JSON-RPC POST and returns the raw response body.
func (t *HTTPTransport) post(ctx context.Context, body []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to %s: %w", t.url, err)
	}
	defer httpkit.DrainAndClose(httpResp.Body, 1<<20)

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusAccepted {
		errBody := httpkit.ReadErrorBody(httpResp.Body, 1<<20)
		return nil, fmt.Errorf("backend returned %d: %s", httpResp.StatusCode, errBody)
	}

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20)) // 10 MiB limit
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return respBody, nil
}

// Close is a no-op for HTTP transports; the shared client manages its
// own connection pool.
func (t *HTTPTransport) Close() error {
	return nil
}

func (t *HTTPTransport) record(action string, payload any) {
	if t.rec != nil {
		t.rec.Record(action, payload)
	}
}
