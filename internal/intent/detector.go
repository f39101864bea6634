package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/jvaldez/mcpchat/internal/llm"
)

// Detector classifies user messages into backend intents.
type Detector struct {
	llm    llm.Client
	logger *slog.Logger
}

// NewDetector creates a detector. The LLM client may be nil, in which
// case only the fixed command patterns match.
func NewDetector(client llm.Client, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{llm: client, logger: logger.With("component", "intent")}
}

// Detect returns the intent behind msg, or nil when the message is
// ordinary conversation. Fixed command patterns are checked first so
// common commands never pay a model round trip.
func (d *Detector) Detect(ctx context.Context, msg string) *Intent {
	if it := d.matchFixed(msg); it != nil {
		return it
	}
	if d.llm == nil {
		return nil
	}

	lower := strings.ToLower(msg)
	if containsAny(lower, "file", "files", "directory", "folder") {
		if it := d.classify(ctx, msg, filesystemPrompt, DomainFilesystem); it != nil {
			return it
		}
	}
	if containsAny(lower, "git", "commit", "repository", "repo", "branch", "staging") {
		if it := d.classify(ctx, msg, gitPrompt, DomainGit); it != nil {
			return it
		}
	}
	if containsAny(lower, "weather", "forecast", "temperature", "alerts", "climate") {
		if it := d.classify(ctx, msg, weatherPrompt, DomainWeather); it != nil {
			return it
		}
	}
	return nil
}

// matchFixed handles exact command patterns without the model.
func (d *Detector) matchFixed(msg string) *Intent {
	trimmed := strings.TrimSpace(msg)
	lower := strings.ToLower(trimmed)

	switch lower {
	case "list files", "ls":
		return &Intent{Domain: DomainFilesystem, Action: "list", Args: map[string]any{"path": "."}}
	case "git status":
		return &Intent{Domain: DomainGit, Action: "status", Args: map[string]any{"repo_path": "."}}
	case "git log":
		return &Intent{Domain: DomainGit, Action: "log", Args: map[string]any{"repo_path": ".", "max_count": 10}}
	case "git init":
		return &Intent{Domain: DomainGit, Action: "init", Args: map[string]any{"repo_path": "."}}
	case "git branch":
		return &Intent{Domain: DomainGit, Action: "branch", Args: map[string]any{"repo_path": "."}}
	case "analyze repository", "repo info":
		return &Intent{Domain: DomainAnalyzer, Action: "analyze", Args: map[string]any{"repo_path": "."}}
	case "generate report":
		return &Intent{Domain: DomainAnalyzer, Action: "report", Args: map[string]any{"repo_path": "."}}
	}

	switch {
	case strings.HasPrefix(lower, "read file "):
		return &Intent{Domain: DomainFilesystem, Action: "read", Args: map[string]any{"path": strings.TrimSpace(trimmed[10:])}}
	case strings.HasPrefix(lower, "write file "):
		rest := strings.TrimSpace(trimmed[11:])
		path, content, found := strings.Cut(rest, " ")
		if !found {
			content = "Hello from MCP!"
		}
		return &Intent{Domain: DomainFilesystem, Action: "write", Args: map[string]any{"path": path, "content": content}}
	case strings.HasPrefix(lower, "generate report "):
		return &Intent{Domain: DomainAnalyzer, Action: "report", Args: map[string]any{
			"repo_path":   ".",
			"analysis_id": strings.TrimSpace(trimmed[16:]),
		}}
	case strings.HasPrefix(lower, "git add "):
		files := strings.Fields(trimmed[8:])
		return &Intent{Domain: DomainGit, Action: "add", Args: map[string]any{"repo_path": ".", "files": files}}
	case strings.HasPrefix(lower, "git commit "):
		return &Intent{Domain: DomainGit, Action: "commit", Args: map[string]any{"repo_path": ".", "message": strings.TrimSpace(trimmed[11:])}}
	case strings.HasPrefix(lower, "weather in "):
		return &Intent{Domain: DomainWeather, Action: "weather", Args: map[string]any{"city": strings.TrimSpace(trimmed[11:])}}
	case strings.HasPrefix(lower, "forecast for "):
		return &Intent{Domain: DomainWeather, Action: "forecast", Args: map[string]any{"city": strings.TrimSpace(trimmed[13:]), "days": 3}}
	}

	return nil
}

// classify asks the model whether msg is an intent in one domain. The
// prompt demands JSON or the literal "null"; anything else is treated
// as no intent.
func (d *Detector) classify(ctx context.Context, msg, prompt string, domain Domain) *Intent {
	reply, err := d.llm.Complete(ctx, prompt, []llm.Message{{Role: "user", Content: msg}}, 256)
	if err != nil {
		d.logger.Warn("intent classification failed", "domain", string(domain), "error", err)
		return nil
	}

	cleaned := stripFences(strings.TrimSpace(reply))
	if cleaned == "" || cleaned == "null" {
		return nil
	}

	var res classifierResult
	if err := json.Unmarshal([]byte(cleaned), &res); err != nil || res.Action == "" {
		d.logger.Debug("classifier reply not parseable", "domain", string(domain), "reply", cleaned)
		return nil
	}
	return buildIntent(domain, res)
}

// buildIntent converts a classifier result into tool arguments,
// filling the defaults the backends expect.
func buildIntent(domain Domain, res classifierResult) *Intent {
	args := map[string]any{}
	switch domain {
	case DomainFilesystem:
		path := res.Path
		if path == "" {
			path = "."
		}
		args["path"] = path
		if res.Content != "" {
			args["content"] = res.Content
		}
	case DomainGit, DomainAnalyzer:
		repo := res.RepoPath
		if repo == "" {
			repo = "."
		}
		args["repo_path"] = repo
		if len(res.Files) > 0 {
			args["files"] = res.Files
		}
		if res.Message != "" {
			args["message"] = res.Message
		}
		if res.MaxCount > 0 {
			args["max_count"] = res.MaxCount
		}
	case DomainWeather:
		city := res.City
		if city == "" {
			city = "Madrid"
		}
		args["city"] = city
		if res.Days > 0 {
			args["days"] = res.Days
		}
	}
	return &Intent{Domain: domain, Action: res.Action, Args: args}
}

// stripFences removes a markdown code fence wrapper, which models emit
// despite instructions not to.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
