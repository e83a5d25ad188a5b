package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voidspan/concierge/internal/session"
	"go.uber.org/zap"
)

// OllamaGenerator implements Generator against a local Ollama daemon's
// /api/generate endpoint.
type OllamaGenerator struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// NewOllamaGenerator creates a generator for a local Ollama instance.
func NewOllamaGenerator(cfg Config, logger *zap.Logger) *OllamaGenerator {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:11434"
	}
	return &OllamaGenerator{
		config: cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (g *OllamaGenerator) ID() string   { return g.config.ID }
func (g *OllamaGenerator) Name() string { return g.config.Name }

// Generate flattens the history into a prompt prefix and calls
// /api/generate non-streaming.
func (g *OllamaGenerator) Generate(ctx context.Context, query string, history []session.Turn) (string, error) {
	var prompt strings.Builder
	for _, t := range history {
		prefix := "Human: "
		if t.Role == "assistant" {
			prefix = "Assistant: "
		}
		prompt.WriteString(prefix)
		prompt.WriteString(t.Content)
		prompt.WriteString("\n")
	}
	prompt.WriteString("Human: ")
	prompt.WriteString(query)
	prompt.WriteString("\nAssistant:")

	reqBody := map[string]interface{}{
		"model":  g.config.Model,
		"prompt": prompt.String(),
		"stream": false,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.config.Endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: send request: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		g.logger.Warn("ollama API error",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody))
		return "", fmt.Errorf("%w: API status %d", ErrProvider, resp.StatusCode)
	}

	var ollamaResp struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}
	return strings.TrimSpace(ollamaResp.Response), nil
}
