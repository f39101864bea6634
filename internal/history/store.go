// Package history provides the bounded conversation buffer: the last
// N user/assistant exchanges, persisted in SQLite so context survives
// restarts.
package history

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Exchange is one user message and the reply it received.
type Exchange struct {
	ID        string
	UserMsg   string
	Assistant string
	CreatedAt time.Time
}

// Store is a SQLite-backed conversation buffer.
type Store struct {
	db           *sql.DB
	maxExchanges int
}

// Open creates or opens the store at dbPath. maxExchanges bounds how
// many recent exchanges Recent returns; values <= 0 mean 10.
func Open(dbPath string, maxExchanges int) (*Store, error) {
	if maxExchanges <= 0 {
		maxExchanges = 10
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{
		db:           db,
		maxExchanges: maxExchanges,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exchanges (
		id TEXT PRIMARY KEY,
		user_msg TEXT NOT NULL,
		assistant_msg TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_created ON exchanges(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add records one exchange.
func (s *Store) Add(userMsg, assistant string) error {
	id, _ := uuid.NewV7()
	_, err := s.db.Exec(`
		INSERT INTO exchanges (id, user_msg, assistant_msg, created_at)
		VALUES (?, ?, ?, ?)
	`, id.String(), userMsg, assistant, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

// Recent returns the newest exchanges up to the configured bound,
// oldest first, ready to replay as conversation context.
func (s *Store) Recent() ([]Exchange, error) {
	rows, err := s.db.Query(`
		SELECT id, user_msg, assistant_msg, created_at FROM (
			SELECT id, user_msg, assistant_msg, created_at
			FROM exchanges
			ORDER BY created_at DESC
			LIMIT ?
		) ORDER BY created_at ASC
	`, s.maxExchanges)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var e Exchange
		if err := rows.Scan(&e.ID, &e.UserMsg, &e.Assistant, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Clear removes all stored exchanges.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM exchanges`)
	return err
}

// Count returns the total number of stored exchanges.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM exchanges`).Scan(&n)
	return n, err
}

// Summary renders a short recap of the recent conversation.
func (s *Store) Summary() string {
	recent, err := s.Recent()
	if err != nil || len(recent) == 0 {
		return "No previous conversation context."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Previous conversation (%d exchanges):\n", len(recent))
	for _, e := range recent {
		msg := e.UserMsg
		if len(msg) > 50 {
			msg = msg[:50] + "..."
		}
		fmt.Fprintf(&b, "- User: %s\n", msg)
	}
	return b.String()
}
