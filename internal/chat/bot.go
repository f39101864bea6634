// Package chat implements the conversational loop: built-in commands,
// intent dispatch to MCP backends, and the LLM fallback for everything
// else.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jvaldez/mcpchat/internal/format"
	"github.com/jvaldez/mcpchat/internal/history"
	"github.com/jvaldez/mcpchat/internal/intent"
	"github.com/jvaldez/mcpchat/internal/llm"
	"github.com/jvaldez/mcpchat/internal/mcp"
)

const chatSystemPrompt = `You are a helpful assistant with access to filesystem, git, repository analysis and weather tools. Answer conversationally. Keep replies short.`

// Bot processes user messages. Tool-shaped messages go to MCP
// backends, everything else to the model.
type Bot struct {
	registry *mcp.Registry
	detector *intent.Detector
	llm      llm.Client
	history  *history.Store
	logger   *slog.Logger

	// ReportDir is where rendered analysis reports are written.
	// Empty means the current directory.
	ReportDir string
}

// New creates a bot. llm and history may be nil; the corresponding
// features degrade to polite refusals.
func New(registry *mcp.Registry, detector *intent.Detector, client llm.Client, store *history.Store, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		registry: registry,
		detector: detector,
		llm:      client,
		history:  store,
		logger:   logger.With("component", "chat"),
	}
}

// Process handles one user message and returns the reply. It never
// returns an error: backend and model failures become reply text so
// the session keeps going.
func (b *Bot) Process(ctx context.Context, input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}

	if reply, ok := b.builtin(input); ok {
		return reply
	}

	var reply string
	if it := b.detector.Detect(ctx, input); it != nil {
		reply = b.dispatch(ctx, it)
	} else {
		reply = b.converse(ctx, input)
	}

	if b.history != nil {
		if err := b.history.Add(input, reply); err != nil {
			b.logger.Warn("failed to record exchange", "error", err)
		}
	}
	return reply
}

// builtin handles slash commands locally.
func (b *Bot) builtin(input string) (string, bool) {
	switch strings.ToLower(input) {
	case "/help", "help":
		return helpText, true
	case "/servers":
		names := b.registry.Names()
		if len(names) == 0 {
			return "No MCP servers are connected.", true
		}
		return "Connected servers: " + strings.Join(names, ", "), true
	case "/history":
		if b.history == nil {
			return "Conversation history is not enabled.", true
		}
		return b.history.Summary(), true
	case "/clear":
		if b.history == nil {
			return "Conversation history is not enabled.", true
		}
		if err := b.history.Clear(); err != nil {
			return fmt.Sprintf("Could not clear history: %v", err), true
		}
		return "Conversation history cleared.", true
	}
	return "", false
}

// dispatch routes a detected intent to its backend and formats the
// outcome. A missing backend or failed call produces a readable reply,
// never a crash.
func (b *Bot) dispatch(ctx context.Context, it *intent.Intent) string {
	server := serverFor(it.Domain)
	if !b.registry.Has(server) {
		return fmt.Sprintf("The %s server is not available right now.", server)
	}

	switch it.Domain {
	case intent.DomainFilesystem:
		return b.dispatchFilesystem(ctx, it)
	case intent.DomainGit:
		return b.dispatchGit(ctx, it)
	case intent.DomainAnalyzer:
		return b.dispatchAnalyzer(ctx, it)
	case intent.DomainWeather:
		return b.dispatchWeather(ctx, it)
	}
	return fmt.Sprintf("I don't know how to handle a %s request.", it.Domain)
}

func serverFor(d intent.Domain) string {
	switch d {
	case intent.DomainFilesystem:
		return mcp.ServerFilesystem
	case intent.DomainGit:
		return mcp.ServerGit
	case intent.DomainAnalyzer:
		return mcp.ServerAnalyzer
	case intent.DomainWeather:
		return mcp.ServerWeather
	}
	return string(d)
}

func (b *Bot) dispatchFilesystem(ctx context.Context, it *intent.Intent) string {
	path := stringArg(it.Args, "path", ".")
	switch it.Action {
	case "list":
		res := b.registry.ListDirectory(ctx, path)
		if !res.Success {
			return "Error listing directory: " + res.Error
		}
		var entries []format.DirEntry
		if text, ok := resultPayload(res); ok {
			if err := json.Unmarshal([]byte(text), &entries); err != nil {
				return "Directory contents:\n" + text
			}
		}
		return format.DirectoryListing(entries)
	case "read":
		res := b.registry.ReadFile(ctx, path)
		if !res.Success {
			return "Error reading file: " + res.Error
		}
		text, _ := resultPayload(res)
		return format.FileContent(text)
	case "write":
		content := stringArg(it.Args, "content", "")
		res := b.registry.WriteFile(ctx, path, content)
		if !res.Success {
			return "Error writing file: " + res.Error
		}
		return fmt.Sprintf("File %s written (%d bytes).", path, len(content))
	case "delete":
		res := b.registry.DeleteFile(ctx, path)
		if !res.Success {
			return "Error deleting file: " + res.Error
		}
		return fmt.Sprintf("File %s deleted.", path)
	}
	return fmt.Sprintf("Unknown file operation %q.", it.Action)
}

func (b *Bot) dispatchGit(ctx context.Context, it *intent.Intent) string {
	repo := stringArg(it.Args, "repo_path", ".")
	switch it.Action {
	case "status":
		return gitReply(b.registry.GitStatus(ctx, repo), "Git status:\n", "getting git status")
	case "add":
		files := stringSliceArg(it.Args, "files")
		if len(files) == 0 {
			return "Please name the files to stage."
		}
		res := b.registry.GitAdd(ctx, repo, files)
		if !res.Success {
			return "Error adding files: " + res.Error
		}
		return "Staged: " + strings.Join(files, ", ")
	case "commit":
		msg := stringArg(it.Args, "message", "")
		if msg == "" {
			return "Please provide a commit message."
		}
		return gitReply(b.registry.GitCommit(ctx, repo, msg), "", "creating commit")
	case "log":
		max := intArg(it.Args, "max_count", 10)
		return gitReply(b.registry.GitLog(ctx, repo, max), "Git log:\n", "getting git log")
	case "init":
		return gitReply(b.registry.GitInit(ctx, repo), "", "initializing repository")
	case "branch":
		return gitReply(b.registry.GitBranch(ctx, repo), "Branches:\n", "listing branches")
	}
	return fmt.Sprintf("Unknown git operation %q.", it.Action)
}

// gitReply renders a git backend result: the text of the first content
// block on success, a readable error otherwise.
func gitReply(res mcp.Result, prefix, doing string) string {
	if !res.Success {
		return fmt.Sprintf("Error %s: %s", doing, res.Error)
	}
	text, ok := resultPayload(res)
	if !ok || text == "" {
		return "Done."
	}
	return prefix + text
}

func (b *Bot) dispatchAnalyzer(ctx context.Context, it *intent.Intent) string {
	repo := stringArg(it.Args, "repo_path", ".")
	switch it.Action {
	case "analyze":
		res := b.registry.AnalyzeRepository(ctx, repo, "", 0)
		if !res.Success {
			return "Error analyzing repository: " + res.Error
		}
		text, _ := resultPayload(res)
		var analysis format.Analysis
		if err := json.Unmarshal([]byte(text), &analysis); err != nil {
			return "Analysis result:\n" + text
		}
		return format.AnalysisSummary(analysis)
	case "report":
		res := b.registry.GenerateReport(ctx, stringArg(it.Args, "analysis_id", ""), "markdown", nil)
		if !res.Success {
			return "Error generating report: " + res.Error
		}
		markdown, _ := resultPayload(res)
		return markdown + "\n\n" + b.writeReport(markdown)
	}
	return fmt.Sprintf("Unknown analyzer operation %q.", it.Action)
}

// writeReport renders the markdown report as HTML next to the data
// files and reports where it landed. A render or write failure leaves
// the chat reply intact; the markdown already answered the user.
func (b *Bot) writeReport(markdown string) string {
	html, err := format.RenderReportHTML(markdown)
	if err != nil {
		b.logger.Warn("failed to render report", "error", err)
		return "Could not render the HTML report."
	}

	dir := b.ReportDir
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, "repository_report.html")
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		b.logger.Warn("failed to write report", "path", path, "error", err)
		return "Could not write the HTML report."
	}
	return "HTML report written to " + path
}

func (b *Bot) dispatchWeather(ctx context.Context, it *intent.Intent) string {
	city := stringArg(it.Args, "city", "Madrid")
	switch it.Action {
	case "weather":
		res := b.registry.GetWeather(ctx, city)
		if !res.Success {
			return "Error getting weather: " + res.Error
		}
		var w format.Weather
		if !decodePayload(res, &w) {
			text, _ := resultPayload(res)
			return text
		}
		return format.CurrentWeather(w)
	case "forecast":
		res := b.registry.GetForecast(ctx, city, intArg(it.Args, "days", 3))
		if !res.Success {
			return "Error getting forecast: " + res.Error
		}
		var f format.Forecast
		if !decodePayload(res, &f) {
			text, _ := resultPayload(res)
			return text
		}
		return format.ForecastText(f)
	case "alerts":
		res := b.registry.GetWeatherAlerts(ctx, city)
		if !res.Success {
			return "Error getting alerts: " + res.Error
		}
		var a format.Alerts
		if !decodePayload(res, &a) {
			text, _ := resultPayload(res)
			return text
		}
		return format.AlertsText(a)
	}
	return fmt.Sprintf("Unknown weather operation %q.", it.Action)
}

// converse sends the message to the model with recent history as
// context.
func (b *Bot) converse(ctx context.Context, input string) string {
	if b.llm == nil {
		return "I can only run tool commands right now (try 'help'). No language model is configured."
	}

	var msgs []llm.Message
	if b.history != nil {
		recent, err := b.history.Recent()
		if err != nil {
			b.logger.Warn("failed to load history", "error", err)
		}
		for _, e := range recent {
			msgs = append(msgs,
				llm.Message{Role: "user", Content: e.UserMsg},
				llm.Message{Role: "assistant", Content: e.Assistant},
			)
		}
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: input})

	reply, err := b.llm.Complete(ctx, chatSystemPrompt, msgs, 1024)
	if err != nil {
		b.logger.Error("completion failed", "error", err)
		return fmt.Sprintf("Sorry, I encountered an error: %v", err)
	}
	return reply
}

// resultPayload extracts the text of a tool result. Backends wrap
// their payload in MCP content blocks; plain JSON payloads pass
// through as-is.
func resultPayload(res mcp.Result) (string, bool) {
	if text, ok := mcp.ExtractText(res.Data); ok {
		return text, true
	}
	if len(res.Data) > 0 {
		return string(res.Data), true
	}
	return "", false
}

// decodePayload unmarshals a structured payload, looking inside a
// content-block envelope first.
func decodePayload(res mcp.Result, v any) bool {
	if text, ok := mcp.ExtractText(res.Data); ok {
		return json.Unmarshal([]byte(text), v) == nil
	}
	return json.Unmarshal(res.Data, v) == nil
}

func stringArg(args map[string]any, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

func intArg(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

func stringSliceArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

const helpText = `Commands:
  list files / ls              list the current directory
  read file <path>             show a file
  write file <path> <content>  create or overwrite a file
  git status|log|init|branch   git operations
  git add <files...>           stage files
  git commit <message>         create a commit
  analyze repository           run the repository analyzer
  generate report [id]         render a report for an analysis
  weather in <city>            current conditions
  forecast for <city>          multi-day forecast
  /servers                     list connected MCP servers
  /history                     show recent conversation
  /clear                       clear conversation history
  exit / quit                  leave

Anything else is answered by the language model.`
