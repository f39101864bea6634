// Package intent maps natural-language chat input onto backend tool
// invocations. Detection runs in two stages: exact command patterns
// that never need a model, then an LLM classifier with a strict
// JSON-or-null contract.
package intent

// Domain identifies which backend family an intent targets.
type Domain string

const (
	DomainFilesystem Domain = "filesystem"
	DomainGit        Domain = "git"
	DomainAnalyzer   Domain = "analyzer"
	DomainWeather    Domain = "weather"
)

// Intent is one detected operation: the backend domain, the action
// within it, and the action's arguments.
type Intent struct {
	Domain Domain
	Action string
	Args   map[string]any
}

// classifierResult is the JSON shape the LLM classifier must emit.
type classifierResult struct {
	Action   string   `json:"action"`
	Path     string   `json:"path,omitempty"`
	Content  string   `json:"content,omitempty"`
	RepoPath string   `json:"repo_path,omitempty"`
	Files    []string `json:"files,omitempty"`
	Message  string   `json:"message,omitempty"`
	MaxCount int      `json:"max_count,omitempty"`
	City     string   `json:"city,omitempty"`
	Days     int      `json:"days,omitempty"`
}
