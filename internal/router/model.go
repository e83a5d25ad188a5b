package router

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/voidspan/concierge/internal/provider"
	"github.com/voidspan/concierge/internal/registry"
	"github.com/voidspan/concierge/internal/session"
	"go.uber.org/zap"
)

// jsonObjectRe extracts the first JSON object from a model reply that may
// wrap it in prose or markdown fences.
var jsonObjectRe = regexp.MustCompile(`(?s)\{.*?\}`)

// ModelStrategy delegates classification to a generation backend. The
// returned tool name is validated against the registry and the confidence
// clamped to [0,1]; any failure degrades to general_chat rather than
// erroring.
type ModelStrategy struct {
	reg    *registry.Registry
	gen    provider.Generator
	logger *zap.Logger
}

// NewModelStrategy creates a model-backed routing strategy.
func NewModelStrategy(reg *registry.Registry, gen provider.Generator, logger *zap.Logger) *ModelStrategy {
	return &ModelStrategy{reg: reg, gen: gen, logger: logger}
}

// Route asks the model to pick a tool for the query.
func (s *ModelStrategy) Route(ctx context.Context, query string, history []session.Turn) *Decision {
	if strings.TrimSpace(query) == "" {
		return noMatch(s.zeroCandidates())
	}

	reply, err := s.gen.Generate(ctx, s.buildPrompt(query, history), nil)
	if err != nil {
		s.logger.Warn("model routing unavailable", zap.Error(err))
		return noMatch(s.zeroCandidates())
	}

	decision, err := s.parseReply(reply)
	if err != nil {
		s.logger.Warn("model routing reply unparseable", zap.Error(err))
		return noMatch(s.zeroCandidates())
	}
	return decision
}

// buildPrompt renders the classification instruction with the tool
// catalog and recent history.
func (s *ModelStrategy) buildPrompt(query string, history []session.Turn) string {
	var b strings.Builder
	b.WriteString("You are a query router. Users want natural conversation by default; ")
	b.WriteString("pick a tool only when the query explicitly requests its action.\n\n")
	b.WriteString("Available tools:\n")
	for _, tool := range s.reg.List() {
		fmt.Fprintf(&b, "- %s: %s\n", tool.Name, tool.Description)
	}
	b.WriteString("- " + GeneralChat + ": all other conversation, questions, and discussion\n")

	if len(history) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, t := range history {
			prefix := "Human: "
			if t.Role == "assistant" {
				prefix = "Assistant: "
			}
			b.WriteString(prefix + t.Content + "\n")
		}
	}

	fmt.Fprintf(&b, "\nUser query: %s\n\n", query)
	b.WriteString(`Respond with JSON only: {"tool": "<name>", "confidence": 0.0-1.0, "reasoning": "brief explanation"}`)
	return b.String()
}

// parseReply extracts and validates the model's JSON decision.
func (s *ModelStrategy) parseReply(reply string) (*Decision, error) {
	match := jsonObjectRe.FindString(reply)
	if match == "" {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var parsed struct {
		Tool       string  `json:"tool"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(match), &parsed); err != nil {
		return nil, fmt.Errorf("parse routing reply: %w", err)
	}

	tool := parsed.Tool
	reasoning := parsed.Reasoning
	if reasoning == "" {
		reasoning = "model routing decision"
	}
	if tool != GeneralChat && !s.reg.Has(tool) {
		s.logger.Warn("model picked unregistered tool", zap.String("tool", tool))
		tool = GeneralChat
		reasoning = fmt.Sprintf("model picked unregistered tool %q, falling back to conversation", parsed.Tool)
	}

	confidence := clamp01(parsed.Confidence)

	// Runner-up list covers every registry tool: the selected one at its
	// confidence, the rest at zero.
	candidates := make([]Candidate, 0, len(s.reg.List()))
	if tool != GeneralChat {
		candidates = append(candidates, Candidate{Tool: tool, Score: confidence})
	}
	for _, t := range s.reg.List() {
		if t.Name != tool {
			candidates = append(candidates, Candidate{Tool: t.Name, Score: 0})
		}
	}

	return &Decision{
		Tool:       tool,
		Confidence: confidence,
		Reasoning:  reasoning,
		Candidates: candidates,
	}, nil
}

func (s *ModelStrategy) zeroCandidates() []Candidate {
	tools := s.reg.List()
	out := make([]Candidate, len(tools))
	for i, t := range tools {
		out[i] = Candidate{Tool: t.Name, Score: 0}
	}
	return out
}
