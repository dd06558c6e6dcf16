package main

import (
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/localrivet/bijimcp/internal/biji"
	"github.com/localrivet/bijimcp/internal/config"
	"github.com/localrivet/bijimcp/internal/errortypes"
	"github.com/localrivet/bijimcp/internal/server"
)

func main() {
	// Logging goes to stderr: stdout belongs to the MCP stdio transport.
	logger := setupLogging()

	logger.Info("biji-mcp MCP Server - Starting...")

	// Load configuration. A load failure is not fatal: the server still
	// starts and tool calls report the problem, so a first run tells the
	// user to edit the generated template instead of crashing.
	cfg, loadErr := loadConfig(logger)

	srv := server.NewBijiToolServer(cfg, loadErr)
	if err := srv.Initialize(); err != nil {
		errortypes.LogError(logger, err)
		logger.Error("Failed to initialize MCP server")
		os.Exit(1)
	}
	logger.Info("MCP server initialized")

	setupSignalHandler(logger)

	// Start the MCP server (this will block until stdin is closed)
	logger.Info("Starting MCP server...")
	if err := srv.Start(); err != nil {
		errortypes.LogError(logger, err)
		logger.Error("MCP server failed")
		os.Exit(1)
	}
}

// setupLogging configures and returns the application logger.
// LOG_LEVEL picks the level; BIJI_MCP_DEBUG=1 forces debug.
func setupLogging() *slog.Logger {
	level := slog.LevelInfo

	if levelStr := os.Getenv("LOG_LEVEL"); levelStr != "" {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(levelStr)); err == nil {
			level = parsed
		}
	}
	if os.Getenv(biji.DebugEnvVar) == "1" {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return logger
}

// loadConfig loads the user config, distinguishing the first run from real
// load failures in what gets logged.
func loadConfig(logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		if errors.Is(err, config.ErrFirstRun) {
			logger.Warn("First-run setup required; edit the generated config and restart", "error", err)
		} else {
			errortypes.LogError(logger, err)
		}
		return nil, err
	}

	logger.Info("Configuration loaded",
		"path", cfg.GetConfigPath(),
		"knowledge_bases", len(cfg.KnowledgeBases),
		"default", cfg.Default)
	return cfg, nil
}

// setupSignalHandler sets up a signal handler for graceful shutdown.
func setupSignalHandler(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		logger.Info("Received shutdown signal, terminating gracefully...")
		os.Exit(0)
	}()
}
