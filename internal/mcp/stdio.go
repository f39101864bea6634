package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// defaultGraceTimeout is how long Close waits for the subprocess to
// exit after stdin closes before force-killing it.
const defaultGraceTimeout = 5 * time.Second

// StdioConfig configures a stdio transport that communicates with a
// subprocess over stdin/stdout using newline-delimited JSON-RPC.
type StdioConfig struct {
	// Command is the executable to run.
	Command string

	// Args are command-line arguments passed to the executable.
	Args []string

	// Env are additional environment variables for the subprocess
	// (format: "KEY=VALUE"). These are appended to the current
	// process environment.
	Env []string

	// Dir is the working directory for the subprocess. Empty means
	// inherit the current directory.
	Dir string

	// GraceTimeout bounds the wait for graceful exit during Close.
	// Zero means defaultGraceTimeout.
	GraceTimeout time.Duration

	// Logger is the structured logger for transport diagnostics.
	Logger *slog.Logger

	// Recorder receives a copy of every frame for the audit trail.
	Recorder Recorder
}

// readResult is the outcome of a single line read from stdout.
type readResult struct {
	line []byte
	err  error
}

// StdioTransport owns one backend subprocess and its pipes. The
// protocol is half-duplex with a single outstanding request per
// handle: a 1-slot semaphore serializes callers, and a dedicated
// reader goroutine is the only consumer of the process's stdout.
//
// Correlation ids abandoned by a timed-out call are remembered so
// that a late response is drained and discarded by a subsequent call
// instead of being misattributed to it.
type StdioTransport struct {
	config StdioConfig
	logger *slog.Logger
	rec    Recorder
	grace  time.Duration

	// sem enforces one outstanding request per handle. A second
	// caller blocks in acquire until the first completes or the
	// second caller's context expires.
	sem chan struct{}

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	lines     chan readResult
	abandoned map[int64]struct{}
	dead      bool
	deadErr   error
	closed    bool
}

// NewStdioTransport creates a stdio transport for the given config.
// The subprocess is launched by Start, or lazily on the first Send.
func NewStdioTransport(cfg StdioConfig) *StdioTransport {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	grace := cfg.GraceTimeout
	if grace <= 0 {
		grace = defaultGraceTimeout
	}
	return &StdioTransport{
		config:    cfg,
		logger:    logger,
		rec:       cfg.Recorder,
		grace:     grace,
		sem:       make(chan struct{}, 1),
		abandoned: make(map[int64]struct{}),
	}
}

// Start launches the subprocess and its reader goroutines. It is safe
// to call once before any Send; a handle that died is never restarted.
func (t *StdioTransport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ensureStartedLocked(ctx)
}

// ensureStartedLocked launches the subprocess if needed. Caller must
// hold t.mu.
func (t *StdioTransport) ensureStartedLocked(_ context.Context) error {
	if t.dead {
		return t.deadErr
	}
	if t.closed {
		return &TransportError{Kind: KindWrite, Err: fmt.Errorf("transport closed")}
	}
	if t.cmd != nil {
		return nil
	}

	t.logger.Info("starting MCP subprocess",
		"command", t.config.Command,
		"args", t.config.Args,
	)

	cmd := exec.Command(t.config.Command, t.config.Args...)
	cmd.Env = append(os.Environ(), t.config.Env...)
	cmd.Dir = t.config.Dir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &SpawnError{Command: t.config.Command, Err: err}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return &SpawnError{Command: t.config.Command, Err: err}
	}

	// Capture stderr for diagnostics. Never parsed for protocol data.
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return &SpawnError{Command: t.config.Command, Err: err}
	}

	if err := cmd.Start(); err != nil {
		stderrPipe.Close()
		stdout.Close()
		stdin.Close()
		return &SpawnError{Command: t.config.Command, Err: err}
	}

	t.cmd = cmd
	t.stdin = stdin
	t.lines = make(chan readResult, 1)

	go t.readLoop(bufio.NewReaderSize(stdout, 1<<20)) // 1 MiB for large responses
	go t.drainStderr(stderrPipe)

	t.logger.Info("MCP subprocess started", "pid", cmd.Process.Pid)
	return nil
}

// readLoop is the sole consumer of the subprocess's stdout. It pumps
// lines into t.lines until the stream closes, then delivers the error
// and exits.
func (t *StdioTransport) readLoop(r *bufio.Reader) {
	for {
		line, err := r.ReadBytes('\n')
		t.lines <- readResult{line: line, err: err}
		if err != nil {
			return
		}
	}
}

// drainStderr reads stderr lines and logs them at debug level.
func (t *StdioTransport) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		t.logger.Debug("MCP subprocess stderr", "line", scanner.Text())
	}
}

// acquire takes the single outstanding-request slot, honoring the
// caller's context while waiting.
func (t *StdioTransport) acquire(ctx context.Context) error {
	select {
	case t.sem <- struct{}{}:
		// The slot and a cancelled context can both be ready;
		// re-check so a dead caller never proceeds holding the slot.
		if err := ctx.Err(); err != nil {
			t.release()
			return err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *StdioTransport) release() {
	<-t.sem
}

// Send writes one request line and reads response lines until the
// matching correlation id arrives. Non-matching lines (notifications,
// late responses for abandoned ids) are logged and discarded. On
// context expiry the request's id is marked abandoned and the
// subprocess is left running: timeout is recoverable.
func (t *StdioTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	if err := t.acquire(ctx); err != nil {
		return nil, err
	}
	defer t.release()

	t.mu.Lock()
	err := t.ensureStartedLocked(ctx)
	stdin := t.stdin
	lines := t.lines
	t.mu.Unlock()
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if err := t.writeLine(stdin, data); err != nil {
		werr := &TransportError{Kind: KindWrite, Err: err}
		t.markDead(werr)
		return nil, werr
	}
	t.record("rpc_send", json.RawMessage(data))

	for {
		select {
		case <-ctx.Done():
			t.mu.Lock()
			t.abandoned[req.ID] = struct{}{}
			t.mu.Unlock()
			t.logger.Debug("abandoning MCP request", "id", req.ID, "reason", ctx.Err())
			return nil, ctx.Err()

		case res := <-lines:
			if res.err != nil {
				rerr := &TransportError{Kind: KindEOF, Err: res.err}
				t.markDead(rerr)
				return nil, rerr
			}

			var resp Response
			if err := json.Unmarshal(res.line, &resp); err != nil {
				perr := &TransportError{Kind: KindParse, Err: err}
				t.markDead(perr)
				return nil, perr
			}
			t.record("rpc_recv", json.RawMessage(res.line))

			if t.discardAbandoned(resp.ID) {
				continue
			}
			if resp.ID == req.ID {
				return &resp, nil
			}

			// Notifications carry no id and unmarshal as 0; anything
			// else unmatched is out-of-order noise in this
			// single-outstanding protocol.
			t.logger.Debug("skipping unmatched MCP message", "id", resp.ID, "want", req.ID)
		}
	}
}

// discardAbandoned reports whether id belongs to a timed-out call and
// forgets it if so.
func (t *StdioTransport) discardAbandoned(id int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.abandoned[id]; !ok {
		return false
	}
	delete(t.abandoned, id)
	t.logger.Debug("discarding late response for abandoned request", "id", id)
	return true
}

// Notify sends a JSON-RPC notification. No response is expected or read.
func (t *StdioTransport) Notify(ctx context.Context, notif *Notification) error {
	if err := t.acquire(ctx); err != nil {
		return err
	}
	defer t.release()

	t.mu.Lock()
	err := t.ensureStartedLocked(ctx)
	stdin := t.stdin
	t.mu.Unlock()
	if err != nil {
		return err
	}

	data, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := t.writeLine(stdin, data); err != nil {
		werr := &TransportError{Kind: KindWrite, Err: err}
		t.markDead(werr)
		return werr
	}
	t.record("rpc_notify", json.RawMessage(data))
	return nil
}

// writeLine writes one JSON document plus the newline delimiter in a
// single write.
func (t *StdioTransport) writeLine(w io.Writer, data []byte) error {
	if w == nil {
		return fmt.Errorf("subprocess stdin not open")
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write to subprocess stdin: %w", err)
	}
	return nil
}

// markDead records a fatal transport error and kills the subprocess.
// The handle is never restarted; further sends fail fast with the
// recorded error.
func (t *StdioTransport) markDead(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dead {
		return
	}
	t.dead = true
	t.deadErr = err
	t.logger.Warn("MCP transport marked dead", "command", t.config.Command, "error", err)
	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
		go func(c *exec.Cmd) { _ = c.Wait() }(t.cmd)
	}
}

// Close terminates the subprocess: stdin closes to signal exit, then a
// bounded wait, then a kill. Close is idempotent and never fails on an
// already-dead process.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}

	t.logger.Info("stopping MCP subprocess", "pid", t.cmd.Process.Pid)

	if t.stdin != nil {
		_ = t.stdin.Close()
	}

	done := make(chan error, 1)
	go func(c *exec.Cmd) { done <- c.Wait() }(t.cmd)

	select {
	case <-done:
	case <-time.After(t.grace):
		t.logger.Warn("MCP subprocess did not exit gracefully, killing",
			"pid", t.cmd.Process.Pid,
		)
		_ = t.cmd.Process.Kill()
		<-done
	}

	t.cmd = nil
	t.stdin = nil
	return nil
}

// record mirrors a frame to the diagnostics sink, if one is attached.
func (t *StdioTransport) record(action string, payload any) {
	if t.rec != nil {
		t.rec.Record(action, payload)
	}
}
