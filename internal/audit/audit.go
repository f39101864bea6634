// Package audit provides the append-only interaction log: every
// request and response crossing the bridge is recorded as one JSON
// line with a timestamp and action label, for post-hoc inspection.
//
// The log is a pure observer. Record never blocks the call path and
// never surfaces an error to the caller; write failures are logged
// and dropped. A nil *Log is a valid no-op sink.
package audit

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Entry is one logged interaction.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Payload   any       `json:"payload,omitempty"`
}

// Log is a JSONL interaction log.
type Log struct {
	logger *slog.Logger

	mu sync.Mutex
	f  *os.File
}

// Open opens (or creates) the interaction log at path in append mode.
func Open(path string, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open interaction log: %w", err)
	}
	return &Log{logger: logger, f: f}, nil
}

// Record appends one entry. Failures are swallowed: diagnostics must
// never fail the operation they observe.
func (l *Log) Record(action string, payload any) {
	if l == nil {
		return
	}

	entry := Entry{
		Timestamp: time.Now().UTC(),
		Action:    action,
		Payload:   payload,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Debug("audit entry not serializable", "action", action, "error", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return
	}
	if _, err := l.f.Write(append(data, '\n')); err != nil {
		l.logger.Debug("audit write failed", "action", action, "error", err)
	}
}

// Close closes the underlying file. Idempotent.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
