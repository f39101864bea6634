package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/jvaldez/mcpchat/internal/audit"
	"github.com/jvaldez/mcpchat/internal/buildinfo"
	"github.com/jvaldez/mcpchat/internal/chat"
	"github.com/jvaldez/mcpchat/internal/config"
	"github.com/jvaldez/mcpchat/internal/history"
	"github.com/jvaldez/mcpchat/internal/intent"
	"github.com/jvaldez/mcpchat/internal/llm"
	"github.com/jvaldez/mcpchat/internal/mcp"
)

// runChat wires the full stack and runs the interactive loop until
// EOF, "exit", or a signal.
func runChat(ctx context.Context) error {
	cfgPath, err := config.FindConfig(flagConfig)
	if err != nil {
		return err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	levelStr := cfg.LogLevel
	if flagLogLevel != "" {
		levelStr = flagLogLevel
	}
	level, err := config.ParseLogLevel(levelStr)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
	slog.SetDefault(logger)
	logger.Info("mcpchat starting", "version", buildinfo.Version, "config", cfgPath)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditLog, err := audit.Open(cfg.AuditPath(), logger)
	if err != nil {
		logger.Warn("interaction log disabled", "error", err)
		auditLog = nil
	}
	defer auditLog.Close()

	store, err := history.Open(cfg.HistoryPath(), cfg.History.MaxExchanges)
	if err != nil {
		logger.Warn("conversation history disabled", "error", err)
		store = nil
	}
	if store != nil {
		defer store.Close()
	}

	var model llm.Client
	if cfg.Anthropic.APIKey != "" {
		model = llm.NewAnthropicClient(cfg.Anthropic.APIKey, cfg.Anthropic.Model, logger)
	} else {
		logger.Warn("no Anthropic API key configured; LLM features disabled")
	}

	registry := mcp.NewRegistry(logger)
	manager := mcp.NewManager(registry, logger, auditLog)
	defer manager.ShutdownAll()

	statuses := manager.StartAll(ctx, cfg.ServerSpecs())
	ready := 0
	for _, st := range statuses {
		if st.State == mcp.ServerReady {
			ready++
			fmt.Printf("  [ok]   %s\n", st.Name)
		} else {
			fmt.Printf("  [fail] %s: %s (%v)\n", st.Name, st.State, st.Err)
		}
	}
	fmt.Printf("%d/%d MCP servers ready.\n\n", ready, len(statuses))

	bot := chat.New(registry, intent.NewDetector(model, logger), model, store, logger)
	bot.ReportDir = cfg.DataDir
	return repl(ctx, bot)
}

// repl reads lines and prints replies until the session ends.
func repl(ctx context.Context, bot *chat.Bot) error {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Println("Type 'help' for commands, 'exit' to quit.")
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if interactive {
			fmt.Print("you> ")
		}
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" || line == "/quit" {
			break
		}

		reply := bot.Process(ctx, line)
		if reply != "" {
			fmt.Println(reply)
		}
		if interactive {
			fmt.Println()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if interactive {
		fmt.Println("Goodbye.")
	}
	return nil
}
