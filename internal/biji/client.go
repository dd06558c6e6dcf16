// Package biji implements the HTTP client for the Get笔记 open API.
package biji

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/localrivet/bijimcp/internal/errortypes"
	"github.com/localrivet/bijimcp/internal/telemetry"
)

// DefaultBaseURL is the Get笔记 open API endpoint.
const DefaultBaseURL = "https://open-api.biji.com/getnote/openapi"

// DebugEnvVar enables verbose request/response logging when set to "1".
const DebugEnvVar = "BIJI_MCP_DEBUG"

// Remote endpoints
const (
	recallEndpoint = "/knowledge/search/recall"
	searchEndpoint = "/knowledge/search/stream"
)

// API is the client surface the tool server depends on. Implemented by
// *Client; tests substitute their own.
type API interface {
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)
	Recall(ctx context.Context, params RecallParams) ([]RecallResult, error)
}

// Client issues authenticated calls against the Get笔记 open API. Each tool
// call constructs its own Client from the resolved knowledge base token, so a
// Client carries no shared mutable state.
type Client struct {
	// BaseURL is the API root. Overridable for tests.
	BaseURL string

	token      string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *telemetry.MetricsCollector
	debug      bool
}

// NewClient creates a Client for the given API token. Calls fail with a
// timeout error once the given deadline elapses.
func NewClient(token string, timeout time.Duration) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
		metrics:    telemetry.Default(),
		debug:      os.Getenv(DebugEnvVar) == "1",
	}
}

// RecallParams are the inputs to a raw-content recall call.
type RecallParams struct {
	Question      string
	TopicID       string
	TopK          int
	IntentRewrite bool
	SelectMatrix  bool
}

// RecallResult is one raw content fragment returned by recall, ordered by
// relevance on the remote side.
type RecallResult struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`

	// Type is the fragment source kind: NOTE, FILE or BLOGGER.
	Type string `json:"type"`

	// RecallSource says which retrieval path matched: embedding or keyword.
	RecallSource string `json:"recall_source"`
}

// SearchParams are the inputs to an AI-answered search call.
type SearchParams struct {
	Question string
	TopicID  string
	DeepSeek bool
	WithRefs bool
}

// Reference is one source the remote AI cited in its answer.
type Reference struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// SearchResult is the assembled outcome of a streamed search call.
type SearchResult struct {
	Answer     string
	References []Reference

	// Thinking is the deep-think transcript, empty unless DeepSeek was set
	// and the remote emitted one.
	Thinking string
}

type recallRequest struct {
	Question      string   `json:"question"`
	TopicIDs      []string `json:"topic_ids"`
	TopK          int      `json:"top_k"`
	IntentRewrite bool     `json:"intent_rewrite"`
	SelectMatrix  bool     `json:"select_matrix"`
}

type recallResponse struct {
	Data struct {
		Results []RecallResult `json:"results"`
	} `json:"data"`
}

type searchRequest struct {
	Question string   `json:"question"`
	TopicIDs []string `json:"topic_ids"`
	DeepSeek bool     `json:"deep_seek"`
	Refs     bool     `json:"refs"`
}

// Recall fetches up to params.TopK raw content fragments, no AI post-processing.
func (c *Client) Recall(ctx context.Context, params RecallParams) ([]RecallResult, error) {
	if params.TopK <= 0 {
		return nil, errortypes.ValidationError(
			fmt.Errorf("top_k must be positive, got %d", params.TopK),
			"invalid top_k")
	}

	c.metrics.IncrementCounter(telemetry.MetricAPICallsRecall, 1)
	start := time.Now()

	resp, err := c.post(ctx, recallEndpoint, recallRequest{
		Question:      params.Question,
		TopicIDs:      []string{params.TopicID},
		TopK:          params.TopK,
		IntentRewrite: params.IntentRewrite,
		SelectMatrix:  params.SelectMatrix,
	})
	if err != nil {
		c.recordFailure(err)
		return nil, err
	}
	defer resp.Body.Close()

	var decoded recallResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		err = errortypes.RemoteError(err, "failed to decode recall response")
		c.recordFailure(err)
		return nil, err
	}

	c.metrics.IncrementCounter(telemetry.MetricAPICallsSuccess, 1)
	c.metrics.RecordTimer(telemetry.MetricResponseTimeRecall, time.Since(start))

	if c.debug {
		c.logger.Debug("recall completed",
			"results", len(decoded.Data.Results),
			"duration", time.Since(start))
	}
	return decoded.Data.Results, nil
}

// Search asks the remote AI for an answer. The remote responds with an event
// stream; the answer, thinking and reference frames are assembled into a
// single SearchResult.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	c.metrics.IncrementCounter(telemetry.MetricAPICallsSearch, 1)
	start := time.Now()

	resp, err := c.post(ctx, searchEndpoint, searchRequest{
		Question: params.Question,
		TopicIDs: []string{params.TopicID},
		DeepSeek: params.DeepSeek,
		Refs:     params.WithRefs,
	})
	if err != nil {
		c.recordFailure(err)
		return nil, err
	}
	defer resp.Body.Close()

	result, err := c.readSearchStream(resp.Body)
	if err != nil {
		c.recordFailure(err)
		return nil, err
	}

	c.metrics.IncrementCounter(telemetry.MetricAPICallsSuccess, 1)
	c.metrics.RecordTimer(telemetry.MetricResponseTimeSearch, time.Since(start))

	if c.debug {
		c.logger.Debug("search completed",
			"answer_length", len(result.Answer),
			"references", len(result.References),
			"duration", time.Since(start))
	}
	return result, nil
}

// post sends an authenticated JSON POST and maps non-success statuses onto
// the error taxonomy. The caller owns the response body on success.
func (c *Client) post(ctx context.Context, endpoint string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errortypes.InternalError(err, "failed to encode request payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errortypes.InternalError(err, "failed to build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	if c.debug {
		c.logger.Debug("API request", "endpoint", endpoint, "body", string(body))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// classifyTransportError separates deadline expiry from other transport failures.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return errortypes.TimeoutError(err, "Get笔记 request timed out")
	}
	return errortypes.NetworkError(err, "Get笔记 request failed")
}

// checkStatus maps a non-success HTTP status onto the error taxonomy.
// 401 and 429 carry actionable messages; everything else is a generic
// remote failure with the body attached.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errortypes.RemoteError(
			errors.New("token rejected, check the token in your config"),
			"Get笔记 authentication failed").
			WithField("status_code", resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return errortypes.RateLimitError(
			errors.New("rate limit exceeded (2 requests/second, 5000/day)"),
			"Get笔记 throttled the request").
			WithField("status_code", resp.StatusCode)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errortypes.RemoteError(
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(body)),
			"Get笔记 returned an error").
			WithField("status_code", resp.StatusCode)
	}
	return nil
}

// recordFailure bumps the failure counters for a finished call.
func (c *Client) recordFailure(err error) {
	c.metrics.IncrementCounter(telemetry.MetricAPICallsFailure, 1)
	if errortypes.IsRateLimitError(err) {
		c.metrics.IncrementCounter(telemetry.MetricAPIRateLimited, 1)
	}
}
