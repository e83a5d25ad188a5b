// Package orchestrator runs the per-request pipeline: read history,
// route, dispatch to a tool or the chat fallback, persist the exchange.
// Every failure below this boundary becomes a degraded-but-successful
// result; the caller always gets a natural-language response.
package orchestrator

import (
	"context"
	"time"

	"github.com/voidspan/concierge/internal/provider"
	"github.com/voidspan/concierge/internal/router"
	"github.com/voidspan/concierge/internal/session"
	"github.com/voidspan/concierge/internal/toolexec"
	"go.uber.org/zap"
)

// apologyResponse is what users see when generation itself fails.
// Raw provider errors never reach the caller.
const apologyResponse = "I'm sorry, I'm having trouble answering right now. Please try again in a moment."

// Config holds orchestration tunables.
type Config struct {
	// HistoryLimit is how many recent turns feed the router and generator.
	HistoryLimit int
	// CallTimeout bounds each external generation/tool call.
	CallTimeout time.Duration
	// StoreTimeout bounds each Memory Store operation.
	StoreTimeout time.Duration
}

// DefaultConfig returns the default orchestration tunables.
func DefaultConfig() Config {
	return Config{
		HistoryLimit: 10,
		CallTimeout:  8 * time.Second,
		StoreTimeout: 3 * time.Second,
	}
}

// Result is the structured outcome of one handled query.
type Result struct {
	Response  string           `json:"response"`
	ToolUsed  string           `json:"tool_used"`
	Routing   *router.Decision `json:"routing_info"`
	TurnCount int              `json:"turn_count"`
	Degraded  bool             `json:"degraded"`
	Fallback  bool             `json:"fallback,omitempty"`
}

// Orchestrator wires the store, router strategy, generator, and tool
// executor into the request pipeline. It keeps no state of its own.
type Orchestrator struct {
	store    session.Store
	strategy router.Strategy
	gen      provider.Generator
	exec     toolexec.Executor
	cfg      Config
	logger   *zap.Logger
}

// New creates an Orchestrator. All dependencies are constructed by the
// caller and share process-wide lifetime.
func New(store session.Store, strategy router.Strategy, gen provider.Generator,
	exec toolexec.Executor, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.HistoryLimit == 0 {
		cfg = DefaultConfig()
	}
	return &Orchestrator{
		store:    store,
		strategy: strategy,
		gen:      gen,
		exec:     exec,
		cfg:      cfg,
		logger:   logger,
	}
}

// Handle processes one query for a session. It never returns an error:
// failures degrade the result instead of failing the request.
func (o *Orchestrator) Handle(ctx context.Context, query, sessionID string) *Result {
	result := &Result{}

	// 1. Recent history, degrading to empty on storage failure.
	history := o.loadHistory(ctx, sessionID, result)

	// 2. Routing decision.
	decision := o.strategy.Route(ctx, query, history)
	result.Routing = decision
	o.logger.Info("routed query",
		zap.String("session", sessionID),
		zap.String("tool", decision.Tool),
		zap.Float64("confidence", decision.Confidence))

	// 3. Dispatch.
	result.Response, result.ToolUsed = o.dispatch(ctx, query, history, decision, result)

	// 4. Persist the exchange, best effort. Appends run detached from
	// request cancellation so an in-flight write completes whole.
	o.appendExchange(ctx, sessionID, query, result)

	return result
}

func (o *Orchestrator) loadHistory(ctx context.Context, sessionID string, result *Result) []session.Turn {
	storeCtx, cancel := context.WithTimeout(ctx, o.cfg.StoreTimeout)
	defer cancel()

	history, err := o.store.History(storeCtx, sessionID, o.cfg.HistoryLimit)
	if err != nil {
		o.logger.Warn("history unavailable, continuing without context",
			zap.String("session", sessionID), zap.Error(err))
		result.Degraded = true
		return nil
	}
	return history
}

// dispatch invokes the selected tool or the chat fallback and returns the
// response text and the tool actually used.
func (o *Orchestrator) dispatch(ctx context.Context, query string, history []session.Turn,
	decision *router.Decision, result *Result) (string, string) {

	if decision.Tool != router.GeneralChat {
		callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
		text, err := o.exec.Execute(callCtx, decision.Tool, query)
		cancel()
		if err == nil {
			return text, decision.Tool
		}
		o.logger.Warn("tool execution failed, falling back to chat",
			zap.String("tool", decision.Tool), zap.Error(err))
		result.Fallback = true
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()
	text, err := o.gen.Generate(callCtx, query, history)
	if err != nil {
		o.logger.Warn("generation failed, returning apology", zap.Error(err))
		return apologyResponse, router.GeneralChat
	}
	return text, router.GeneralChat
}

// appendExchange writes the user and assistant turns. Failures only log
// and mark the result degraded; the request still succeeds.
func (o *Orchestrator) appendExchange(ctx context.Context, sessionID, query string, result *Result) {
	// Detach from the request context: once a write is issued it should
	// complete rather than be left half-applied on client disconnect.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.StoreTimeout)
	defer cancel()

	now := time.Now()
	if _, err := o.store.AppendTurn(storeCtx, sessionID, session.Turn{
		Role:      "user",
		Content:   query,
		Timestamp: now,
	}); err != nil {
		o.logger.Warn("failed to persist user turn",
			zap.String("session", sessionID), zap.Error(err))
		result.Degraded = true
		return
	}

	count, err := o.store.AppendTurn(storeCtx, sessionID, session.Turn{
		Role:      "assistant",
		Content:   result.Response,
		Timestamp: now,
		ToolUsed:  result.ToolUsed,
	})
	if err != nil {
		o.logger.Warn("failed to persist assistant turn",
			zap.String("session", sessionID), zap.Error(err))
		result.Degraded = true
		return
	}
	result.TurnCount = count
}
