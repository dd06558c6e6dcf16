package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/localrivet/gomcp/server"

	"github.com/localrivet/bijimcp/internal/biji"
	"github.com/localrivet/bijimcp/internal/config"
	"github.com/localrivet/bijimcp/internal/errortypes"
	"github.com/localrivet/bijimcp/internal/telemetry"
	"github.com/localrivet/bijimcp/internal/tools"
)

// clientFactory builds an API client for a resolved knowledge base token.
// Swapped out in tests.
type clientFactory func(token string, timeout time.Duration) biji.API

// BijiToolServer implements the ToolServer interface for handling MCP tool
// calls against the Get笔记 knowledge base API.
//
// The config is loaded once and read-only afterwards; every tool call builds
// its own API client, so concurrent calls from the host share no mutable state.
type BijiToolServer struct {
	cfg       *config.Config
	loadErr   error
	newClient clientFactory
	metrics   *telemetry.MetricsCollector
	mcpServer server.Server
}

// NewBijiToolServer creates a new BijiToolServer instance.
//
// cfg may be nil when loading failed (most commonly the first run, when only
// a template config exists); loadErr then carries the reason and every tool
// call reports it instead of crashing.
func NewBijiToolServer(cfg *config.Config, loadErr error) *BijiToolServer {
	return &BijiToolServer{
		cfg:     cfg,
		loadErr: loadErr,
		newClient: func(token string, timeout time.Duration) biji.API {
			return biji.NewClient(token, timeout)
		},
		metrics: telemetry.Default(),
	}
}

// Initialize registers the tools on a fresh MCP server.
func (s *BijiToolServer) Initialize() error {
	slog.Info("Initializing Biji MCP tool server")

	if s.cfg == nil && s.loadErr == nil {
		return errortypes.ConfigError(errors.New("no config and no load error given"),
			"server initialization failed")
	}

	srv := server.NewServer("biji-mcp")

	srv = srv.Tool(tools.ToolBijiSearch, tools.DescBijiSearch, s.handleSearch)
	srv = srv.Tool(tools.ToolBijiRecall, tools.DescBijiRecall, s.handleRecall)
	srv = srv.Tool(tools.ToolBijiListKB, tools.DescBijiListKB, s.handleListKB)

	s.mcpServer = srv
	slog.Info("Biji MCP tool server initialized successfully", "tool_count", 3)
	return nil
}

// Start starts the MCP server on the stdio transport.
func (s *BijiToolServer) Start() error {
	if s.mcpServer == nil {
		return errortypes.ConfigError(errors.New("server not initialized"), "cannot start server")
	}

	slog.Info("Starting Biji MCP tool server")

	stdioServer := s.mcpServer.AsStdio()
	return stdioServer.Run()
}

// Stop gracefully shuts down the MCP server.
func (s *BijiToolServer) Stop() error {
	slog.Info("Stopping Biji MCP tool server")
	// The server exits when stdin is closed
	return nil
}

// resolve picks the knowledge base for a tool call, failing with the config
// load error when no usable config exists.
func (s *BijiToolServer) resolve(name string) (string, config.KnowledgeBase, error) {
	if s.cfg == nil {
		err := s.loadErr
		if err == nil {
			err = errortypes.ConfigError(errors.New("config not loaded"), "configuration unavailable")
		}
		return "", config.KnowledgeBase{}, err
	}
	return s.cfg.Resolve(name)
}

// timeout returns the configured remote call deadline.
func (s *BijiToolServer) timeout() time.Duration {
	return time.Duration(s.cfg.Settings.Timeout) * time.Second
}

// handleSearch handles the biji_search MCP tool call.
func (s *BijiToolServer) handleSearch(ctx *server.Context, req tools.SearchRequest) (tools.SearchResponse, error) {
	slog.Info("Processing biji_search request", "kb", req.KB, "deep_seek", req.DeepSeek, "with_refs", req.WithRefs)
	s.metrics.IncrementCounter(telemetry.MetricToolCallsSearch, 1)

	response := tools.SearchResponse{
		Status: "success",
	}

	if strings.TrimSpace(req.Question) == "" {
		err := errortypes.ValidationError(errors.New("question is required"), "invalid biji_search request")
		errortypes.LogError(nil, err)

		response.Status = "error"
		response.Code = errorCode(err)
		response.Error = err.Error()
		return response, nil
	}

	kbName, kb, err := s.resolve(req.KB)
	if err != nil {
		errortypes.LogError(nil, err)

		response.Status = "error"
		response.Code = errorCode(err)
		response.Error = err.Error()
		return response, nil
	}

	client := s.newClient(kb.Token, s.timeout())
	result, err := client.Search(context.Background(), biji.SearchParams{
		Question: req.Question,
		TopicID:  kb.TopicID,
		DeepSeek: req.DeepSeek,
		WithRefs: req.WithRefs,
	})
	if err != nil {
		if appErr := asAppError(err); appErr != nil {
			appErr.WithField("kb", kbName)
		}
		errortypes.LogError(nil, err)

		response.Status = "error"
		response.Code = errorCode(err)
		response.Error = err.Error()
		return response, nil
	}

	response.KB = kbName
	response.Answer = result.Answer
	response.Thinking = result.Thinking
	if req.WithRefs {
		for _, ref := range result.References {
			response.References = append(response.References, tools.ReferenceInfo{
				Title:   ref.Title,
				Content: ref.Content,
			})
		}
	}

	slog.Info("Successfully processed biji_search", "kb", kbName, "answer_length", len(result.Answer), "references", len(response.References))
	return response, nil
}

// handleRecall handles the biji_recall MCP tool call.
func (s *BijiToolServer) handleRecall(ctx *server.Context, req tools.RecallRequest) (tools.RecallResponse, error) {
	slog.Info("Processing biji_recall request", "kb", req.KB, "intent_rewrite", req.IntentRewrite)
	s.metrics.IncrementCounter(telemetry.MetricToolCallsRecall, 1)

	response := tools.RecallResponse{
		Status: "success",
	}

	if strings.TrimSpace(req.Question) == "" {
		err := errortypes.ValidationError(errors.New("question is required"), "invalid biji_recall request")
		errortypes.LogError(nil, err)

		response.Status = "error"
		response.Code = errorCode(err)
		response.Error = err.Error()
		return response, nil
	}

	if req.TopK != nil && *req.TopK <= 0 {
		err := errortypes.ValidationError(
			errors.New("top_k must be positive"), "invalid biji_recall request").
			WithField("top_k", *req.TopK)
		errortypes.LogError(nil, err)

		response.Status = "error"
		response.Code = errorCode(err)
		response.Error = err.Error()
		return response, nil
	}

	kbName, kb, err := s.resolve(req.KB)
	if err != nil {
		errortypes.LogError(nil, err)

		response.Status = "error"
		response.Code = errorCode(err)
		response.Error = err.Error()
		return response, nil
	}

	// An omitted top_k falls back to the configured default; an explicit
	// non-positive value is rejected by the client.
	topK := s.cfg.Settings.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}

	client := s.newClient(kb.Token, s.timeout())
	results, err := client.Recall(context.Background(), biji.RecallParams{
		Question:      req.Question,
		TopicID:       kb.TopicID,
		TopK:          topK,
		IntentRewrite: req.IntentRewrite,
		SelectMatrix:  req.SelectMatrix,
	})
	if err != nil {
		if appErr := asAppError(err); appErr != nil {
			appErr.WithField("kb", kbName)
		}
		errortypes.LogError(nil, err)

		response.Status = "error"
		response.Code = errorCode(err)
		response.Error = err.Error()
		return response, nil
	}

	response.KB = kbName
	response.Fragments = make([]tools.FragmentInfo, 0, len(results))
	for _, r := range results {
		response.Fragments = append(response.Fragments, tools.FragmentInfo{
			ID:           r.ID,
			Title:        r.Title,
			Content:      r.Content,
			Score:        r.Score,
			Type:         r.Type,
			RecallSource: r.RecallSource,
		})
	}

	slog.Info("Successfully processed biji_recall", "kb", kbName, "fragments", len(response.Fragments))
	return response, nil
}

// handleListKB handles the biji_list_kb MCP tool call. It never touches the
// network: the answer comes straight from the loaded config.
func (s *BijiToolServer) handleListKB(ctx *server.Context, req tools.ListKBRequest) (tools.ListKBResponse, error) {
	slog.Info("Processing biji_list_kb request")
	s.metrics.IncrementCounter(telemetry.MetricToolCallsListKB, 1)

	response := tools.ListKBResponse{
		Status: "success",
	}

	if s.cfg == nil {
		err := s.loadErr
		if err == nil {
			err = errortypes.ConfigError(errors.New("config not loaded"), "configuration unavailable")
		}
		errortypes.LogError(nil, err)

		response.Status = "error"
		response.Code = errorCode(err)
		response.Error = err.Error()
		return response, nil
	}

	response.KnowledgeBases = make([]tools.KnowledgeBaseInfo, 0, len(s.cfg.KnowledgeBases))
	for _, name := range s.cfg.Names() {
		kb := s.cfg.KnowledgeBases[name]
		response.KnowledgeBases = append(response.KnowledgeBases, tools.KnowledgeBaseInfo{
			Name:        name,
			Description: kb.Description,
			IsDefault:   name == s.cfg.Default,
		})
	}

	slog.Info("Successfully processed biji_list_kb", "count", len(response.KnowledgeBases))
	return response, nil
}
