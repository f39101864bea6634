package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// jsonrpcHandler answers each POST with respond(request id).
func jsonrpcHandler(respond func(id int64) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			ID int64 `json:"id"`
		}
		_ = json.Unmarshal(body, &req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(respond(req.ID))
	}
}

func TestHTTPTransport_RoundTrip(t *testing.T) {
	srv := httptest.NewServer(jsonrpcHandler(func(id int64) any {
		return map[string]any{
			"jsonrpc": "2.0",
			"id":      id,
			"result":  map[string]any{"ok": true},
		}
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL})
	defer tr.Close()

	resp, err := tr.Send(context.Background(), newRequest(5, "tools/call", nil))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.ID != 5 {
		t.Errorf("response id = %d, want 5", resp.ID)
	}
	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil || !result.OK {
		t.Errorf("result = %s (%v)", resp.Result, err)
	}
}

func TestHTTPTransport_MismatchedIDRejected(t *testing.T) {
	srv := httptest.NewServer(jsonrpcHandler(func(id int64) any {
		return map[string]any{
			"jsonrpc": "2.0",
			"id":      id + 1,
			"result":  map[string]any{},
		}
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL})
	defer tr.Close()

	_, err := tr.Send(context.Background(), newRequest(9, "tools/call", nil))
	var trErr *TransportError
	if !errors.As(err, &trErr) {
		t.Fatalf("Send = %v, want *TransportError", err)
	}
	if trErr.Kind != KindParse {
		t.Errorf("Kind = %v, want parse", trErr.Kind)
	}
}

func TestHTTPTransport_ServerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{URL: srv.URL})
	defer tr.Close()

	_, err := tr.Send(context.Background(), newRequest(1, "initialize", nil))
	var trErr *TransportError
	if !errors.As(err, &trErr) {
		t.Fatalf("Send = %v, want *TransportError", err)
	}
	if trErr.Kind != KindWrite {
		t.Errorf("Kind = %v, want write", trErr.Kind)
	}
}

func TestHTTPTransport_SendsHeaders(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		jsonrpcHandler(func(id int64) any {
			return map[string]any{"jsonrpc": "2.0", "id": id, "result": map[string]any{}}
		})(w, r)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(HTTPConfig{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer token123"},
	})
	defer tr.Close()

	if _, err := tr.Send(context.Background(), newRequest(1, "ping", nil)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAuth != "Bearer token123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}
