package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/jvaldez/mcpchat/internal/llm"
)

// scriptedLLM returns a canned reply for every completion.
type scriptedLLM struct {
	reply string
	err   error
	calls int
}

func (s *scriptedLLM) Complete(_ context.Context, _ string, _ []llm.Message, _ int) (string, error) {
	s.calls++
	return s.reply, s.err
}

func TestDetect_FixedCommands(t *testing.T) {
	// No LLM: only the fixed patterns can match, so any hit proves the
	// fast path.
	d := NewDetector(nil, nil)
	ctx := context.Background()

	tests := []struct {
		in         string
		wantDomain Domain
		wantAction string
	}{
		{"ls", DomainFilesystem, "list"},
		{"list files", DomainFilesystem, "list"},
		{"List Files", DomainFilesystem, "list"},
		{"read file README.md", DomainFilesystem, "read"},
		{"write file notes.txt remember this", DomainFilesystem, "write"},
		{"git status", DomainGit, "status"},
		{"git add main.go util.go", DomainGit, "add"},
		{"git commit first commit", DomainGit, "commit"},
		{"git log", DomainGit, "log"},
		{"git init", DomainGit, "init"},
		{"git branch", DomainGit, "branch"},
		{"analyze repository", DomainAnalyzer, "analyze"},
		{"generate report", DomainAnalyzer, "report"},
		{"weather in Madrid", DomainWeather, "weather"},
		{"forecast for Barcelona", DomainWeather, "forecast"},
	}

	for _, tt := range tests {
		it := d.Detect(ctx, tt.in)
		if it == nil {
			t.Errorf("Detect(%q) = nil", tt.in)
			continue
		}
		if it.Domain != tt.wantDomain || it.Action != tt.wantAction {
			t.Errorf("Detect(%q) = %s/%s, want %s/%s", tt.in, it.Domain, it.Action, tt.wantDomain, tt.wantAction)
		}
	}
}

func TestDetect_FixedCommandArguments(t *testing.T) {
	d := NewDetector(nil, nil)
	ctx := context.Background()

	it := d.Detect(ctx, "read file docs/guide.md")
	if it == nil || it.Args["path"] != "docs/guide.md" {
		t.Errorf("read args = %+v", it)
	}

	it = d.Detect(ctx, "write file notes.txt remember the milk")
	if it == nil || it.Args["path"] != "notes.txt" || it.Args["content"] != "remember the milk" {
		t.Errorf("write args = %+v", it)
	}

	it = d.Detect(ctx, "git add a.go b.go")
	files, _ := it.Args["files"].([]string)
	if len(files) != 2 || files[0] != "a.go" {
		t.Errorf("add files = %v", files)
	}

	it = d.Detect(ctx, "git commit fix the thing")
	if it.Args["message"] != "fix the thing" {
		t.Errorf("commit message = %v", it.Args["message"])
	}

	it = d.Detect(ctx, "weather in Buenos Aires")
	if it.Args["city"] != "Buenos Aires" {
		t.Errorf("city = %v", it.Args["city"])
	}

	it = d.Detect(ctx, "generate report abc123")
	if it == nil || it.Domain != DomainAnalyzer || it.Action != "report" {
		t.Fatalf("report intent = %+v", it)
	}
	if it.Args["analysis_id"] != "abc123" {
		t.Errorf("analysis_id = %v", it.Args["analysis_id"])
	}

	// The bare command still works, with no id (backend picks latest).
	it = d.Detect(ctx, "generate report")
	if it == nil || it.Action != "report" {
		t.Fatalf("bare report intent = %+v", it)
	}
	if _, has := it.Args["analysis_id"]; has {
		t.Errorf("bare command must not carry an analysis_id: %+v", it.Args)
	}
}

func TestDetect_PlainChatWithoutLLM(t *testing.T) {
	d := NewDetector(nil, nil)
	if it := d.Detect(context.Background(), "how are you today?"); it != nil {
		t.Errorf("Detect = %+v, want nil for small talk", it)
	}
}

func TestDetect_ClassifierJSON(t *testing.T) {
	model := &scriptedLLM{reply: `{"action": "read", "path": "main.go"}`}
	d := NewDetector(model, nil)

	it := d.Detect(context.Background(), "could you show me what is inside that main file?")
	if it == nil {
		t.Fatal("Detect = nil, want classified intent")
	}
	if it.Domain != DomainFilesystem || it.Action != "read" || it.Args["path"] != "main.go" {
		t.Errorf("intent = %+v", it)
	}
	if model.calls == 0 {
		t.Error("classifier was never consulted")
	}
}

func TestDetect_ClassifierFencedJSON(t *testing.T) {
	model := &scriptedLLM{reply: "```json\n{\"action\": \"status\", \"repo_path\": \".\"}\n```"}
	d := NewDetector(model, nil)

	it := d.Detect(context.Background(), "what changed in my repository?")
	if it == nil {
		t.Fatal("Detect = nil")
	}
	if it.Domain != DomainGit || it.Action != "status" {
		t.Errorf("intent = %+v", it)
	}
}

func TestDetect_ClassifierNull(t *testing.T) {
	model := &scriptedLLM{reply: "null"}
	d := NewDetector(model, nil)

	if it := d.Detect(context.Background(), "tell me about git history in general"); it != nil {
		t.Errorf("Detect = %+v, want nil for null reply", it)
	}
}

func TestDetect_ClassifierGarbage(t *testing.T) {
	model := &scriptedLLM{reply: "Sure! Here is what I think you want to do..."}
	d := NewDetector(model, nil)

	if it := d.Detect(context.Background(), "something about files maybe"); it != nil {
		t.Errorf("Detect = %+v, want nil for unparseable reply", it)
	}
}

func TestDetect_ClassifierError(t *testing.T) {
	model := &scriptedLLM{err: errors.New("api down")}
	d := NewDetector(model, nil)

	// A classifier failure degrades to no intent, never to a crash.
	if it := d.Detect(context.Background(), "list everything in the folder please"); it != nil {
		t.Errorf("Detect = %+v, want nil on classifier error", it)
	}
}

func TestDetect_NoModelCallForSmallTalk(t *testing.T) {
	model := &scriptedLLM{reply: "null"}
	d := NewDetector(model, nil)

	d.Detect(context.Background(), "good morning!")
	if model.calls != 0 {
		t.Errorf("classifier consulted %d times for keyword-free small talk", model.calls)
	}
}

func TestDetect_WeatherDefaults(t *testing.T) {
	model := &scriptedLLM{reply: `{"action": "weather"}`}
	d := NewDetector(model, nil)

	it := d.Detect(context.Background(), "how is the weather looking")
	if it == nil {
		t.Fatal("Detect = nil")
	}
	if it.Args["city"] != "Madrid" {
		t.Errorf("default city = %v", it.Args["city"])
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct{ in, want string }{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\nnull\n```", "null"},
	}
	for _, tt := range tests {
		if got := stripFences(tt.in); got != tt.want {
			t.Errorf("stripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
