// Package router classifies free-text queries against the tool registry
// and produces a routing decision. Strategies are stateless per call and
// never fail: anything unroutable lands on the general_chat sentinel.
package router

import (
	"context"

	"github.com/voidspan/concierge/internal/session"
)

// GeneralChat is the sentinel tool name for the conversational fallback.
const GeneralChat = "general_chat"

// NoMatchReasoning is the fixed reasoning for queries matching no tool.
const NoMatchReasoning = "no tool matched"

// Candidate is a scored tool, kept for observability and testing.
type Candidate struct {
	Tool  string  `json:"tool"`
	Score float64 `json:"score"`
}

// Decision is the router's output. The highest-scoring eligible candidate
// is always selected; ties break toward the earliest-registered tool.
type Decision struct {
	Tool       string      `json:"tool_name"`
	Confidence float64     `json:"confidence"`
	Reasoning  string      `json:"reasoning"`
	Candidates []Candidate `json:"candidates,omitempty"`
}

// Strategy scores a query against the registry and selects a tool.
// Implementations must not return errors; malformed input degrades to
// general_chat.
type Strategy interface {
	Route(ctx context.Context, query string, history []session.Turn) *Decision
}

// noMatch builds the general_chat decision for unroutable queries.
func noMatch(candidates []Candidate) *Decision {
	return &Decision{
		Tool:       GeneralChat,
		Confidence: 0.0,
		Reasoning:  NoMatchReasoning,
		Candidates: candidates,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
