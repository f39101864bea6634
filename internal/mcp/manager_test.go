package mcp

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"
)

func helperSpec(name, mode string) ServerSpec {
	return ServerSpec{
		Name:    name,
		Command: os.Args[0],
		Env:     []string{"MCPCHAT_HELPER_MODE=" + mode},
	}
}

func TestManager_StartAllPartialFailure(t *testing.T) {
	reg := NewRegistry(nil)
	mgr := NewManager(reg, nil, nil)
	defer mgr.ShutdownAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	specs := []ServerSpec{
		helperSpec("filesystem", "server"),
		{Name: "broken", Command: "/nonexistent/no-such-binary"},
		helperSpec("grumpy", "reject"),
		helperSpec("git", "server"),
	}

	statuses := mgr.StartAll(ctx, specs)
	if len(statuses) != 4 {
		t.Fatalf("got %d statuses, want 4", len(statuses))
	}

	byName := make(map[string]ServerStatus)
	for _, st := range statuses {
		byName[st.Name] = st
	}

	if st := byName["filesystem"]; st.State != ServerReady {
		t.Errorf("filesystem = %v (%v), want ready", st.State, st.Err)
	}
	if st := byName["broken"]; st.State != ServerSpawnFailed {
		t.Errorf("broken = %v, want spawn_failed", st.State)
	}
	if st := byName["grumpy"]; st.State != ServerHandshakeFailed {
		t.Errorf("grumpy = %v, want handshake_failed", st.State)
	}
	if st := byName["git"]; st.State != ServerReady {
		t.Errorf("git = %v (%v), want ready", st.State, st.Err)
	}

	// Only the healthy backends are callable.
	if !reg.Has("filesystem") || !reg.Has("git") {
		t.Error("healthy backends missing from registry")
	}
	if reg.Has("broken") || reg.Has("grumpy") {
		t.Error("failed backends must not be registered")
	}

	// A call through a healthy backend still works after the mixed
	// start, and the tools/call envelope round-trips intact.
	res := reg.Invoke(ctx, "git", "git_status", map[string]any{"repo_path": "."})
	if !res.Success {
		t.Fatalf("invoke through healthy backend failed: %s", res.Error)
	}
	text, ok := ExtractText(res.Data)
	if !ok {
		t.Fatal("round-trip result carries no content")
	}
	var echo struct {
		EchoTool string         `json:"echo_tool"`
		EchoArgs map[string]any `json:"echo_args"`
	}
	if err := json.Unmarshal([]byte(text), &echo); err != nil {
		t.Fatalf("unmarshal echo: %v", err)
	}
	if echo.EchoTool != "git_status" || echo.EchoArgs["repo_path"] != "." {
		t.Errorf("echo = %+v", echo)
	}

	// And a call to a failed one degrades to a Result, not a panic.
	res = reg.Invoke(ctx, "grumpy", "anything", nil)
	if res.Success {
		t.Error("invoke on failed backend must not succeed")
	}
}

func TestManager_UnknownTransport(t *testing.T) {
	reg := NewRegistry(nil)
	mgr := NewManager(reg, nil, nil)
	defer mgr.ShutdownAll()

	statuses := mgr.StartAll(context.Background(), []ServerSpec{
		{Name: "odd", Transport: "carrier-pigeon"},
	})
	if statuses[0].State != ServerConfigInvalid {
		t.Errorf("state = %v, want config_invalid", statuses[0].State)
	}
}

func TestManager_DuplicateName(t *testing.T) {
	reg := NewRegistry(nil)
	mgr := NewManager(reg, nil, nil)
	defer mgr.ShutdownAll()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	statuses := mgr.StartAll(ctx, []ServerSpec{
		helperSpec("git", "server"),
		helperSpec("git", "server"),
	})

	if statuses[0].State != ServerReady {
		t.Fatalf("first git = %v (%v)", statuses[0].State, statuses[0].Err)
	}
	if statuses[1].State != ServerConfigInvalid {
		t.Errorf("second git = %v, want config_invalid", statuses[1].State)
	}
}

func TestManager_ShutdownAllIdempotent(t *testing.T) {
	reg := NewRegistry(nil)
	mgr := NewManager(reg, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mgr.StartAll(ctx, []ServerSpec{
		helperSpec("filesystem", "server"),
		{Name: "broken", Command: "/nonexistent/no-such-binary"},
	})

	mgr.ShutdownAll()
	mgr.ShutdownAll() // second call is a no-op, not a fault
}

func TestManager_ShutdownWithNothingStarted(t *testing.T) {
	mgr := NewManager(NewRegistry(nil), nil, nil)
	mgr.ShutdownAll()
}
