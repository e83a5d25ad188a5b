package provider

import (
	"context"
	"errors"
	"time"

	"github.com/voidspan/concierge/internal/session"
)

// ErrProvider indicates the generation backend returned a failure.
// Raw provider details never reach end users; the orchestrator converts
// this into an apology-style response.
var ErrProvider = errors.New("generation provider error")

// Generator is the conversational-generation capability: given a query
// and recent history, produce a reply. Implementations are selected once
// at process start and injected; call sites never branch on type.
type Generator interface {
	ID() string
	Name() string
	Generate(ctx context.Context, query string, history []session.Turn) (string, error)
}

// Config holds configuration for a generator instance.
type Config struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"` // "openai" | "ollama"
	Name     string        `json:"name"`
	Endpoint string        `json:"endpoint"`
	APIKey   string        `json:"api_key"`
	Model    string        `json:"model"`
	Timeout  time.Duration `json:"timeout,omitempty"`
}

// historyMessages converts session turns into chat messages, oldest first.
func historyMessages(history []session.Turn) []chatMessage {
	msgs := make([]chatMessage, 0, len(history))
	for _, t := range history {
		msgs = append(msgs, chatMessage{Role: t.Role, Content: t.Content})
	}
	return msgs
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
