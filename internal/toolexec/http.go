package toolexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// HTTPExecutor calls a tool-executor service over HTTP: POST /execute
// with {tool, query}, expecting {result} back.
type HTTPExecutor struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPExecutor creates an executor client for the given base endpoint.
func NewHTTPExecutor(endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPExecutor {
	if timeout == 0 {
		timeout = 8 * time.Second
	}
	return &HTTPExecutor{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type executeRequest struct {
	Tool  string `json:"tool"`
	Query string `json:"query"`
}

type executeResponse struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Execute invokes the named tool and returns its text result.
func (e *HTTPExecutor) Execute(ctx context.Context, tool, query string) (string, error) {
	body, err := json.Marshal(executeRequest{Tool: tool, Query: query})
	if err != nil {
		return "", fmt.Errorf("marshal execute request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.endpoint+"/execute", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create execute request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrToolFailed, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, tool)
	case resp.StatusCode != http.StatusOK:
		respBody, _ := io.ReadAll(resp.Body)
		e.logger.Warn("tool executor error",
			zap.String("tool", tool),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody))
		return "", fmt.Errorf("%w: executor status %d", ErrToolFailed, resp.StatusCode)
	}

	var execResp executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&execResp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrToolFailed, err)
	}
	if execResp.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrToolFailed, execResp.Error)
	}
	return execResp.Result, nil
}
