package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
)

// Well-known backend names. Backend-specific tool names are data, not
// separate code paths; the typed wrappers below only shape arguments.
const (
	ServerFilesystem = "filesystem"
	ServerGit        = "git"
	ServerAnalyzer   = "git_analyzer"
	ServerWeather    = "weather"
)

// Result is the normalized outcome of every invoke. Callers branch on
// Success and Reason; no raw error ever crosses the registry boundary.
type Result struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    int             `json:"code,omitempty"`
	Reason  CallReason      `json:"reason,omitempty"`
}

// Ok builds a successful Result carrying the given payload.
func Ok(data json.RawMessage) Result {
	return Result{Success: true, Data: data}
}

// Fail builds a failed Result from any bridge error, classifying it
// into the CallError taxonomy where possible.
func Fail(err error) Result {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return Result{
			Success: false,
			Error:   callErr.Message,
			Code:    callErr.Code,
			Reason:  callErr.Reason,
		}
	}
	return Result{Success: false, Error: err.Error()}
}

// Unmarshal decodes the result payload into v.
func (r Result) Unmarshal(v any) error {
	return json.Unmarshal(r.Data, v)
}

// Registry holds ready clients by backend name and exposes the
// uniform invoke surface plus typed convenience wrappers. The map is
// mutated only during startup and shutdown; a lock guards against
// concurrent registration.
type Registry struct {
	logger *slog.Logger

	mu      sync.RWMutex
	servers map[string]*Client
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:  logger,
		servers: make(map[string]*Client),
	}
}

// Register associates a name with a ready client. Registering a taken
// name fails with DuplicateServerError.
func (r *Registry) Register(name string, c *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.servers[name]; exists {
		return &DuplicateServerError{Name: name}
	}
	r.servers[name] = c
	r.logger.Info("MCP server registered", "server", name)
	return nil
}

// Get returns the client for name, or nil if absent.
func (r *Registry) Get(name string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.servers[name]
}

// Has reports whether a backend with the given name is registered.
func (r *Registry) Has(name string) bool {
	return r.Get(name) != nil
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke calls a named tool on a named backend through the generic
// tools/call envelope. This is the single entry point every typed
// wrapper funnels through; the outcome is always a normalized Result.
func (r *Registry) Invoke(ctx context.Context, server, tool string, args map[string]any) Result {
	client := r.Get(server)
	if client == nil {
		return Fail(&UnknownServerError{Name: server})
	}

	raw, err := client.CallTool(ctx, tool, args)
	if err != nil {
		r.logger.Warn("MCP invoke failed",
			"server", server,
			"tool", tool,
			"error", err,
		)
		return Fail(err)
	}
	return Ok(raw)
}

// Filesystem wrappers. Argument shaping over Invoke, nothing more.

// ReadFile reads a file through the filesystem backend.
func (r *Registry) ReadFile(ctx context.Context, path string) Result {
	return r.Invoke(ctx, ServerFilesystem, "read_file", map[string]any{"path": path})
}

// WriteFile creates or overwrites a file through the filesystem backend.
func (r *Registry) WriteFile(ctx context.Context, path, content string) Result {
	return r.Invoke(ctx, ServerFilesystem, "write_file", map[string]any{
		"path":    path,
		"content": content,
	})
}

// ListDirectory lists a directory through the filesystem backend.
func (r *Registry) ListDirectory(ctx context.Context, path string) Result {
	return r.Invoke(ctx, ServerFilesystem, "list_directory", map[string]any{"path": path})
}

// CreateDirectory creates a directory through the filesystem backend.
func (r *Registry) CreateDirectory(ctx context.Context, path string) Result {
	return r.Invoke(ctx, ServerFilesystem, "create_directory", map[string]any{"path": path})
}

// DeleteFile removes a file through the filesystem backend.
func (r *Registry) DeleteFile(ctx context.Context, path string) Result {
	return r.Invoke(ctx, ServerFilesystem, "delete_file", map[string]any{"path": path})
}

// Git wrappers.

// GitInit initializes a repository.
func (r *Registry) GitInit(ctx context.Context, repoPath string) Result {
	return r.Invoke(ctx, ServerGit, "git_init", map[string]any{"repo_path": repoPath})
}

// GitStatus reports working tree status.
func (r *Registry) GitStatus(ctx context.Context, repoPath string) Result {
	return r.Invoke(ctx, ServerGit, "git_status", map[string]any{"repo_path": repoPath})
}

// GitAdd stages files.
func (r *Registry) GitAdd(ctx context.Context, repoPath string, files []string) Result {
	return r.Invoke(ctx, ServerGit, "git_add", map[string]any{
		"repo_path": repoPath,
		"files":     files,
	})
}

// GitCommit creates a commit.
func (r *Registry) GitCommit(ctx context.Context, repoPath, message string) Result {
	return r.Invoke(ctx, ServerGit, "git_commit", map[string]any{
		"repo_path": repoPath,
		"message":   message,
	})
}

// GitLog returns recent commits.
func (r *Registry) GitLog(ctx context.Context, repoPath string, maxCount int) Result {
	return r.Invoke(ctx, ServerGit, "git_log", map[string]any{
		"repo_path": repoPath,
		"max_count": maxCount,
	})
}

// GitBranch lists branches.
func (r *Registry) GitBranch(ctx context.Context, repoPath string) Result {
	return r.Invoke(ctx, ServerGit, "git_branch", map[string]any{"repo_path": repoPath})
}

// Analyzer wrappers.

// AnalyzeRepository runs a full repository analysis.
func (r *Registry) AnalyzeRepository(ctx context.Context, repoPath, branch string, depth int) Result {
	return r.Invoke(ctx, ServerAnalyzer, "analyze_repository", map[string]any{
		"repo_path": repoPath,
		"branch":    branch,
		"depth":     depth,
	})
}

// GenerateReport renders a prior analysis in the requested format.
func (r *Registry) GenerateReport(ctx context.Context, analysisID, format string, sections []string) Result {
	return r.Invoke(ctx, ServerAnalyzer, "generate_report", map[string]any{
		"analysis_id": analysisID,
		"format":      format,
		"sections":    sections,
	})
}

// Weather wrappers.

// GetWeather returns current conditions for a city.
func (r *Registry) GetWeather(ctx context.Context, city string) Result {
	return r.Invoke(ctx, ServerWeather, "get_weather", map[string]any{"city": city})
}

// GetForecast returns a multi-day forecast for a city.
func (r *Registry) GetForecast(ctx context.Context, city string, days int) Result {
	return r.Invoke(ctx, ServerWeather, "get_forecast", map[string]any{
		"city": city,
		"days": days,
	})
}

// GetWeatherAlerts returns active alerts for a city.
func (r *Registry) GetWeatherAlerts(ctx context.Context, city string) Result {
	return r.Invoke(ctx, ServerWeather, "get_weather_alerts", map[string]any{"city": city})
}
