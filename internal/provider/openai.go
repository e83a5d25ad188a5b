package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voidspan/concierge/internal/session"
	"go.uber.org/zap"
)

// OpenAIGenerator implements Generator for OpenAI-compatible
// chat-completions APIs (OpenAI, OpenRouter, and most local gateways).
type OpenAIGenerator struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

// NewOpenAIGenerator creates an OpenAI-compatible generator.
func NewOpenAIGenerator(cfg Config, logger *zap.Logger) *OpenAIGenerator {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.openai.com/v1"
	}
	return &OpenAIGenerator{
		config: cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

func (g *OpenAIGenerator) ID() string   { return g.config.ID }
func (g *OpenAIGenerator) Name() string { return g.config.Name }

// Generate sends the history plus query as a chat-completions request and
// returns the assistant's reply text.
func (g *OpenAIGenerator) Generate(ctx context.Context, query string, history []session.Turn) (string, error) {
	messages := historyMessages(history)
	messages = append(messages, chatMessage{Role: "user", Content: query})

	reqBody := map[string]interface{}{
		"model":    g.config.Model,
		"messages": messages,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.config.Endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.config.APIKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: send request: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		g.logger.Warn("provider API error",
			zap.String("provider", g.config.ID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody))
		return "", fmt.Errorf("%w: API status %d", ErrProvider, resp.StatusCode)
	}

	var oaiResp struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&oaiResp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrProvider, err)
	}
	if len(oaiResp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrProvider)
	}
	return oaiResp.Choices[0].Message.Content, nil
}
