// ABOUTME: Entry point for the coven-github MCP server.
// ABOUTME: Serves GitHub repository tools over stdio and optionally HTTP.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-github/internal/config"
	"github.com/2389/coven-github/internal/github"
	"github.com/2389/coven-github/internal/mcp"
	"github.com/2389/coven-github/internal/store"
	"github.com/2389/coven-github/internal/tools"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the config file.
// Priority: COVEN_GITHUB_CONFIG env var > XDG_CONFIG_HOME/coven-github/config.yaml > ~/.config/coven-github/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("COVEN_GITHUB_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "coven-github", "config.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: coven-github <command>")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  serve          Start the MCP server on stdio (and HTTP if configured)")
		fmt.Fprintln(os.Stderr, "  tools          List the registered tools")
		fmt.Fprintln(os.Stderr, "  audit [tool]   Show recent tool invocations, optionally for one tool")
		fmt.Fprintln(os.Stderr, "  version        Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "tools":
		err = runTools()
	case "audit":
		err = runAudit(ctx, os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Load configuration. This is where a missing GITHUB_TOKEN stops the
	// process before it reads a single request.
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	// Startup info goes to stderr; stdout belongs to the protocol
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	gray.Fprintf(os.Stderr, "coven-github %s\n", version)
	green.Fprint(os.Stderr, "  ▶ ")
	fmt.Fprintln(os.Stderr, "transport: stdio")
	if cfg.Server.HTTPAddr != "" {
		green.Fprint(os.Stderr, "  ▶ ")
		fmt.Fprintf(os.Stderr, "transport: http (%s)\n", cfg.Server.HTTPAddr)
	}

	client, err := github.NewClient(github.Config{
		Token:   cfg.GitHub.Token,
		BaseURL: cfg.GitHub.BaseURL,
		Timeout: cfg.GitHub.RequestTimeout,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("creating github client: %w", err)
	}

	registry := tools.NewRegistry(logger)
	if err := registry.RegisterAll(tools.GitHubPack(client)); err != nil {
		return fmt.Errorf("registering tools: %w", err)
	}

	var audit store.InvocationRecorder
	if cfg.Database.Path != "" {
		s, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer s.Close()
		audit = s
	}

	dispatcher, err := mcp.NewDispatcher(mcp.DispatcherConfig{
		Registry: registry,
		Logger:   logger,
		Audit:    audit,
		Name:     "coven-github",
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	// Optional HTTP transport alongside stdio
	var httpSrv *http.Server
	if cfg.Server.HTTPAddr != "" {
		mcpServer, err := mcp.NewServer(mcp.ServerConfig{
			Dispatcher:  dispatcher,
			Logger:      logger,
			AccessToken: cfg.Server.AccessToken,
			RequireAuth: cfg.Server.AccessToken != "",
		})
		if err != nil {
			return fmt.Errorf("creating http server: %w", err)
		}

		mux := http.NewServeMux()
		mcpServer.RegisterRoutes(mux)
		httpSrv = &http.Server{Addr: cfg.Server.HTTPAddr, Handler: mux}

		go func() {
			logger.Info("http transport listening", "addr", cfg.Server.HTTPAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http transport failed", "error", err)
			}
		}()
	}

	stdio, err := mcp.NewStdioServer(mcp.StdioConfig{
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("creating stdio server: %w", err)
	}

	logger.Info("starting coven-github", "version", version, "config", configPath)
	runErr := stdio.Run(ctx)

	if httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}

	return runErr
}

func runTools() error {
	// A dummy client is enough to build the registry; nothing is called
	client, err := github.NewClient(github.Config{Token: "list-only"})
	if err != nil {
		return err
	}

	registry := tools.NewRegistry(slog.New(slog.DiscardHandler))
	if err := registry.RegisterAll(tools.GitHubPack(client)); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	for _, info := range registry.List() {
		cyan.Printf("%s\n", info.Name)
		fmt.Printf("  %s\n", info.Description)
	}
	return nil
}

func runAudit(ctx context.Context, args []string) error {
	// Reading the audit log needs no GitHub credential
	cfg, err := config.LoadUnvalidated(getConfigPath())
	if err != nil {
		return err
	}
	if cfg.Database.Path == "" {
		return errors.New("no database configured; set database.path to enable the audit log")
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer s.Close()

	filter := store.InvocationFilter{Limit: 20}
	if len(args) > 0 {
		filter.Tool = &args[0]
	}

	invocations, err := s.ListToolInvocations(ctx, filter)
	if err != nil {
		return err
	}
	if len(invocations) == 0 {
		fmt.Println("No invocations recorded.")
		return nil
	}

	gray := color.New(color.FgHiBlack)
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	for _, inv := range invocations {
		gray.Printf("%s ", inv.Timestamp.Local().Format("2006-01-02 15:04:05"))
		cyan.Printf("%-28s", inv.Tool)
		if inv.Outcome == store.OutcomeOK {
			green.Printf(" %-5s", inv.Outcome)
		} else {
			red.Printf(" %-5s", inv.Outcome)
		}
		fmt.Printf(" %6dms", inv.Duration.Milliseconds())
		if inv.Error != "" {
			gray.Printf("  %s", inv.Error)
		}
		fmt.Println()
	}
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Logs must never touch stdout: that's the protocol stream
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Fprint(os.Stderr, buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
