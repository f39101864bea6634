package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// handshakeTimeout bounds the initialize exchange per backend.
const handshakeTimeout = 30 * time.Second

// TransportKind values a ServerSpec may name.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// ServerSpec describes one configured backend.
type ServerSpec struct {
	Name string

	// Transport selects "stdio" or "http".
	Transport string

	// Stdio fields.
	Command string
	Args    []string
	Env     []string
	Dir     string

	// HTTP fields.
	URL     string
	Headers map[string]string
}

// ServerState is the startup outcome for one backend.
type ServerState string

const (
	ServerReady           ServerState = "ready"
	ServerSpawnFailed     ServerState = "spawn_failed"
	ServerHandshakeFailed ServerState = "handshake_failed"
	ServerConfigInvalid   ServerState = "config_invalid"
)

// ServerStatus reports one backend's startup result. Callers decide
// whether a partial set is acceptable.
type ServerStatus struct {
	Name  string
	State ServerState
	Err   error
}

// Manager owns startup ordering and guaranteed teardown. It keeps a
// handle on every process it ever spawned, including ones whose
// handshake failed, so ShutdownAll can terminate all of them.
type Manager struct {
	registry *Registry
	logger   *slog.Logger
	rec      Recorder

	mu       sync.Mutex
	handles  []*Client
	shutdown bool
}

// NewManager creates a manager that registers ready backends on reg.
func NewManager(reg *Registry, logger *slog.Logger, rec Recorder) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry: reg,
		logger:   logger,
		rec:      rec,
	}
}

// StartAll starts every configured backend in sequence. A backend that
// fails to spawn or handshake degrades only itself: the manager moves
// on to the rest and reports per-backend status rather than aborting.
func (m *Manager) StartAll(ctx context.Context, specs []ServerSpec) []ServerStatus {
	statuses := make([]ServerStatus, 0, len(specs))
	for _, spec := range specs {
		status := m.startOne(ctx, spec)
		statuses = append(statuses, status)

		if status.Err != nil {
			m.logger.Error("MCP server failed to start",
				"server", spec.Name,
				"state", status.State,
				"error", status.Err,
			)
		} else {
			m.logger.Info("MCP server ready", "server", spec.Name)
		}
	}
	return statuses
}

// startOne spawns, handshakes, and registers a single backend.
func (m *Manager) startOne(ctx context.Context, spec ServerSpec) ServerStatus {
	var transport Transport
	switch spec.Transport {
	case TransportStdio, "":
		st := NewStdioTransport(StdioConfig{
			Command:  spec.Command,
			Args:     spec.Args,
			Env:      spec.Env,
			Dir:      spec.Dir,
			Logger:   m.logger,
			Recorder: m.rec,
		})
		if err := st.Start(ctx); err != nil {
			return ServerStatus{Name: spec.Name, State: ServerSpawnFailed, Err: err}
		}
		transport = st
	case TransportHTTP:
		transport = NewHTTPTransport(HTTPConfig{
			URL:      spec.URL,
			Headers:  spec.Headers,
			Logger:   m.logger,
			Recorder: m.rec,
		})
	default:
		return ServerStatus{
			Name:  spec.Name,
			State: ServerConfigInvalid,
			Err:   fmt.Errorf("unknown transport %q", spec.Transport),
		}
	}

	client := NewClient(spec.Name, transport, m.logger)
	m.track(client)

	initCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	err := client.Initialize(initCtx)
	cancel()
	if err != nil {
		// The handle stays tracked: its process is terminated at
		// shutdown even though it never becomes callable.
		return ServerStatus{Name: spec.Name, State: ServerHandshakeFailed, Err: err}
	}

	if err := m.registry.Register(spec.Name, client); err != nil {
		client.Close()
		return ServerStatus{Name: spec.Name, State: ServerConfigInvalid, Err: err}
	}

	return ServerStatus{Name: spec.Name, State: ServerReady}
}

// track remembers a spawned handle for teardown.
func (m *Manager) track(c *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles = append(m.handles, c)
}

// ShutdownAll terminates every spawned backend regardless of state.
// Idempotent: a second call, or a call with zero or partially-started
// handles, does nothing and never fails.
func (m *Manager) ShutdownAll() {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.shutdown = true
	handles := m.handles
	m.handles = nil
	m.mu.Unlock()

	for _, c := range handles {
		if err := c.Close(); err != nil {
			m.logger.Warn("error closing MCP client", "server", c.Name(), "error", err)
		}
	}
	m.logger.Info("all MCP servers shut down", "count", len(handles))
}
