// Package bijimcp exposes the Get笔记 knowledge base search API as MCP tools.
//
// The usual entry point is cmd/bijimcp, which serves the tools over stdio.
// Hosts that want to embed the tools in their own process can use NewServer
// directly, or call Search/Recall/ListKnowledgeBases without MCP at all.
package bijimcp

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/localrivet/bijimcp/internal/biji"
	"github.com/localrivet/bijimcp/internal/config"
	"github.com/localrivet/bijimcp/internal/errortypes"
	"github.com/localrivet/bijimcp/internal/server"
	"github.com/localrivet/bijimcp/internal/tools"
)

// Config represents the configuration for the biji-mcp service.
type Config = config.Config

// ErrFirstRun signals that a config template was just created and needs to be
// filled in by the user.
var ErrFirstRun = config.ErrFirstRun

// Server represents the biji-mcp service.
type Server struct {
	config     *config.Config
	loadErr    error
	toolServer server.ToolServer
	logger     *slog.Logger
}

// ServerOptions defines the options for creating a new Server.
type ServerOptions struct {
	Config     *Config      // Pre-filled config. If nil, ConfigPath is used.
	ConfigPath string       // Path to config file. Used if Config is nil. If both are empty, the default user path is used.
	Logger     *slog.Logger // External logger. If nil, slog.Default() is used.
}

// NewServer creates a new biji-mcp Server with the given options.
//
// A config that fails to load does not fail server creation: the server comes
// up anyway and every tool call reports the load problem, so a first run
// surfaces the template-created guidance to the host instead of crashing.
func NewServer(opts ServerOptions) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var cfg *Config
	var loadErr error

	switch {
	case opts.Config != nil:
		cfg = opts.Config
		logger.Info("Using provided Config object for server initialization")
	case opts.ConfigPath != "":
		logger.Info("Loading configuration for server initialization", "path", opts.ConfigPath)
		cfg, loadErr = config.LoadConfigWithPath(opts.ConfigPath)
	default:
		cfg, loadErr = config.LoadConfig()
	}

	if loadErr != nil {
		if errors.Is(loadErr, config.ErrFirstRun) {
			logger.Warn("First-run setup required", "error", loadErr)
		} else {
			errortypes.LogError(logger, loadErr)
		}
	}

	toolServer := server.NewBijiToolServer(cfg, loadErr)
	if err := toolServer.Initialize(); err != nil {
		logger.Error("Failed to initialize MCP tool server", "error", err)
		return nil, err
	}

	logger.Info("biji-mcp server successfully initialized")
	return &Server{
		config:     cfg,
		loadErr:    loadErr,
		toolServer: toolServer,
		logger:     logger,
	}, nil
}

// Start starts the MCP server on the stdio transport. Blocks until the host
// closes stdin.
func (s *Server) Start() error {
	return s.toolServer.Start()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	return s.toolServer.Stop()
}

// Config returns the loaded configuration, nil when loading failed.
func (s *Server) Config() *Config {
	return s.config
}

// resolve picks a knowledge base for the direct-call helpers.
func (s *Server) resolve(kbName string) (string, config.KnowledgeBase, error) {
	if s.config == nil {
		if s.loadErr != nil {
			return "", config.KnowledgeBase{}, s.loadErr
		}
		return "", config.KnowledgeBase{}, errortypes.ConfigError(
			errors.New("config not loaded"), "configuration unavailable")
	}
	return s.config.Resolve(kbName)
}

// Search runs an AI-answered search without going through MCP. kbName may be
// empty to use the configured default.
func (s *Server) Search(ctx context.Context, question, kbName string, deepSeek, withRefs bool) (*biji.SearchResult, error) {
	name, kb, err := s.resolve(kbName)
	if err != nil {
		return nil, err
	}

	client := biji.NewClient(kb.Token, time.Duration(s.config.Settings.Timeout)*time.Second)
	result, err := client.Search(ctx, biji.SearchParams{
		Question: question,
		TopicID:  kb.TopicID,
		DeepSeek: deepSeek,
		WithRefs: withRefs,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("direct search completed", "kb", name, "answer_length", len(result.Answer))
	return result, nil
}

// Recall fetches raw content fragments without going through MCP. topK <= 0
// means the configured default.
func (s *Server) Recall(ctx context.Context, question, kbName string, topK int, intentRewrite bool) ([]biji.RecallResult, error) {
	name, kb, err := s.resolve(kbName)
	if err != nil {
		return nil, err
	}

	if topK <= 0 {
		topK = s.config.Settings.DefaultTopK
	}

	client := biji.NewClient(kb.Token, time.Duration(s.config.Settings.Timeout)*time.Second)
	results, err := client.Recall(ctx, biji.RecallParams{
		Question:      question,
		TopicID:       kb.TopicID,
		TopK:          topK,
		IntentRewrite: intentRewrite,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("direct recall completed", "kb", name, "fragments", len(results))
	return results, nil
}

// ListKnowledgeBases returns the configured knowledge bases in name order.
func (s *Server) ListKnowledgeBases() ([]tools.KnowledgeBaseInfo, error) {
	if s.config == nil {
		if s.loadErr != nil {
			return nil, s.loadErr
		}
		return nil, errortypes.ConfigError(errors.New("config not loaded"), "configuration unavailable")
	}

	list := make([]tools.KnowledgeBaseInfo, 0, len(s.config.KnowledgeBases))
	for _, name := range s.config.Names() {
		kb := s.config.KnowledgeBases[name]
		list = append(list, tools.KnowledgeBaseInfo{
			Name:        name,
			Description: kb.Description,
			IsDefault:   name == s.config.Default,
		})
	}
	return list, nil
}
