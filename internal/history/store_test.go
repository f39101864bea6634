package history

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

func openTestStore(t *testing.T, maxExchanges int) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), maxExchanges)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_AddAndRecent(t *testing.T) {
	s := openTestStore(t, 10)

	if err := s.Add("hello", "hi there"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add("git status", "clean working tree"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	recent, err := s.Recent()
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent = %d exchanges, want 2", len(recent))
	}
	// Oldest first.
	if recent[0].UserMsg != "hello" || recent[1].UserMsg != "git status" {
		t.Errorf("order = %q, %q", recent[0].UserMsg, recent[1].UserMsg)
	}
	if recent[1].Assistant != "clean working tree" {
		t.Errorf("assistant = %q", recent[1].Assistant)
	}
	if recent[0].ID == "" || recent[0].ID == recent[1].ID {
		t.Error("exchanges must carry distinct ids")
	}
}

func TestStore_RecentHonorsBound(t *testing.T) {
	s := openTestStore(t, 3)

	for i := 0; i < 7; i++ {
		if err := s.Add(fmt.Sprintf("message %d", i), "ok"); err != nil {
			t.Fatalf("Add #%d: %v", i, err)
		}
	}

	recent, err := s.Recent()
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Recent = %d exchanges, want 3", len(recent))
	}
	// The newest three, oldest first.
	if recent[0].UserMsg != "message 4" || recent[2].UserMsg != "message 6" {
		t.Errorf("window = %q .. %q", recent[0].UserMsg, recent[2].UserMsg)
	}
}

func TestStore_Clear(t *testing.T) {
	s := openTestStore(t, 10)
	if err := s.Add("hello", "hi"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 0 {
		t.Errorf("Count = %d after Clear", n)
	}
}

func TestStore_Summary(t *testing.T) {
	s := openTestStore(t, 10)

	if got := s.Summary(); got != "No previous conversation context." {
		t.Errorf("empty Summary = %q", got)
	}

	long := strings.Repeat("x", 80)
	if err := s.Add(long, "ok"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got := s.Summary()
	if !strings.Contains(got, "1 exchanges") {
		t.Errorf("Summary = %q", got)
	}
	if !strings.Contains(got, strings.Repeat("x", 50)+"...") {
		t.Errorf("long message not truncated: %q", got)
	}
	if strings.Contains(got, long) {
		t.Error("full long message leaked into summary")
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path, 10)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Add("persisted?", "yes"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	s.Close()

	s2, err := Open(path, 10)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	recent, err := s2.Recent()
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 1 || recent[0].UserMsg != "persisted?" {
		t.Errorf("recent after reopen = %+v", recent)
	}
}
