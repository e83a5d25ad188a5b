package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/voidspan/concierge/internal/registry"
	"github.com/voidspan/concierge/internal/router"
	"github.com/voidspan/concierge/internal/session"
	"github.com/voidspan/concierge/internal/toolexec"
	"go.uber.org/zap"
)

// fakeStore wraps MemStore with injectable failures.
type fakeStore struct {
	*session.MemStore
	historyErr error
	appendErr  error
}

func (f *fakeStore) History(ctx context.Context, id string, limit int) ([]session.Turn, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.MemStore.History(ctx, id, limit)
}

func (f *fakeStore) AppendTurn(ctx context.Context, id string, turn session.Turn) (int, error) {
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	return f.MemStore.AppendTurn(ctx, id, turn)
}

// fakeExec returns canned tool output or a canned failure.
type fakeExec struct {
	err   error
	calls []string
}

func (f *fakeExec) Execute(ctx context.Context, tool, query string) (string, error) {
	f.calls = append(f.calls, tool)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("[%s] done", tool), nil
}

// fakeGen returns a canned chat reply or a canned failure.
type fakeGen struct {
	err   error
	calls int
}

func (f *fakeGen) ID() string   { return "fake" }
func (f *fakeGen) Name() string { return "fake" }
func (f *fakeGen) Generate(ctx context.Context, query string, history []session.Turn) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "chat reply", nil
}

func newTestOrchestrator(store session.Store, exec *fakeExec, gen *fakeGen) *Orchestrator {
	logger := zap.NewNop()
	strategy := router.NewRuleStrategy(registry.Builtin(), router.DefaultRuleConfig(), logger)
	return New(store, strategy, gen, exec, DefaultConfig(), logger)
}

func TestHandleToolDispatch(t *testing.T) {
	store := &fakeStore{MemStore: session.NewMemStore(24 * time.Hour)}
	exec := &fakeExec{}
	gen := &fakeGen{}
	orch := newTestOrchestrator(store, exec, gen)

	result := orch.Handle(context.Background(), "Add a note about dentist at 4pm", "s1")

	if result.ToolUsed != "add_note" {
		t.Fatalf("got tool_used %q, want add_note", result.ToolUsed)
	}
	if result.Response != "[add_note] done" {
		t.Errorf("got response %q, want tool output", result.Response)
	}
	if result.Degraded || result.Fallback {
		t.Errorf("unexpected degraded=%v fallback=%v", result.Degraded, result.Fallback)
	}
	if result.TurnCount != 2 {
		t.Errorf("got turn_count %d, want 2", result.TurnCount)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times on tool path, want 0", gen.calls)
	}

	// Both turns persisted, assistant tagged with the tool.
	turns, _ := store.MemStore.History(context.Background(), "s1", 0)
	if len(turns) != 2 {
		t.Fatalf("got %d persisted turns, want 2", len(turns))
	}
	if turns[0].Role != "user" || turns[1].Role != "assistant" {
		t.Errorf("turn roles = [%s, %s], want [user, assistant]", turns[0].Role, turns[1].Role)
	}
	if turns[1].ToolUsed != "add_note" {
		t.Errorf("assistant turn tool_used = %q, want add_note", turns[1].ToolUsed)
	}
}

func TestHandleGeneralChat(t *testing.T) {
	store := &fakeStore{MemStore: session.NewMemStore(24 * time.Hour)}
	exec := &fakeExec{}
	gen := &fakeGen{}
	orch := newTestOrchestrator(store, exec, gen)

	result := orch.Handle(context.Background(), "Tell me a fun fact", "s1")

	if result.ToolUsed != router.GeneralChat {
		t.Fatalf("got tool_used %q, want %s", result.ToolUsed, router.GeneralChat)
	}
	if result.Response != "chat reply" {
		t.Errorf("got response %q, want chat reply", result.Response)
	}
	if len(exec.calls) != 0 {
		t.Errorf("executor called %v on chat path, want none", exec.calls)
	}
	if result.Routing == nil || result.Routing.Confidence != 0.0 {
		t.Errorf("routing info missing or wrong: %+v", result.Routing)
	}
}

func TestHandleDegradedHistory(t *testing.T) {
	store := &fakeStore{
		MemStore:   session.NewMemStore(24 * time.Hour),
		historyErr: session.ErrStorageUnavailable,
	}
	exec := &fakeExec{}
	gen := &fakeGen{}
	orch := newTestOrchestrator(store, exec, gen)

	result := orch.Handle(context.Background(), "Tell me a fun fact", "s1")

	if !result.Degraded {
		t.Fatal("expected degraded=true when history is unavailable")
	}
	if result.Response != "chat reply" {
		t.Errorf("got response %q, request should still succeed", result.Response)
	}
}

func TestHandleToolFailureFallsBack(t *testing.T) {
	store := &fakeStore{MemStore: session.NewMemStore(24 * time.Hour)}
	exec := &fakeExec{err: toolexec.ErrToolFailed}
	gen := &fakeGen{}
	orch := newTestOrchestrator(store, exec, gen)

	result := orch.Handle(context.Background(), "Add a note about lunch", "s1")

	if !result.Fallback {
		t.Fatal("expected fallback=true when the tool fails")
	}
	if result.ToolUsed != router.GeneralChat {
		t.Errorf("got tool_used %q, want %s after fallback", result.ToolUsed, router.GeneralChat)
	}
	if result.Response != "chat reply" {
		t.Errorf("got response %q, want fallback chat reply", result.Response)
	}
	// Routing decision still reports what the router chose.
	if result.Routing.Tool != "add_note" {
		t.Errorf("routing info tool = %q, want add_note", result.Routing.Tool)
	}
}

func TestHandleGenerationFailureApologizes(t *testing.T) {
	store := &fakeStore{MemStore: session.NewMemStore(24 * time.Hour)}
	exec := &fakeExec{}
	gen := &fakeGen{err: errors.New("upstream exploded: token=secret123")}
	orch := newTestOrchestrator(store, exec, gen)

	result := orch.Handle(context.Background(), "Tell me a fun fact", "s1")

	if result.Response != apologyResponse {
		t.Fatalf("got response %q, want the fixed apology", result.Response)
	}
	// Provider internals must never leak to the caller.
	if result.Response == "" || result.Response == gen.err.Error() {
		t.Error("raw provider error leaked into the response")
	}
}

func TestHandleAppendFailureStillSucceeds(t *testing.T) {
	store := &fakeStore{
		MemStore:  session.NewMemStore(24 * time.Hour),
		appendErr: session.ErrStorageUnavailable,
	}
	exec := &fakeExec{}
	gen := &fakeGen{}
	orch := newTestOrchestrator(store, exec, gen)

	result := orch.Handle(context.Background(), "Tell me a fun fact", "s1")

	if result.Response != "chat reply" {
		t.Fatalf("got response %q, append failure must not fail the request", result.Response)
	}
	if !result.Degraded {
		t.Error("expected degraded=true when persistence fails")
	}
	if result.TurnCount != 0 {
		t.Errorf("got turn_count %d, want 0 when unknown", result.TurnCount)
	}
}

func TestHandleUsesHistoryWindow(t *testing.T) {
	store := &fakeStore{MemStore: session.NewMemStore(24 * time.Hour)}
	ctx := context.Background()
	for i := 0; i < 30; i++ {
		store.MemStore.AppendTurn(ctx, "s1", session.Turn{Role: "user", Content: fmt.Sprintf("old %d", i)})
	}

	var seen int
	gen := &genSpy{onGenerate: func(history []session.Turn) { seen = len(history) }}
	logger := zap.NewNop()
	strategy := router.NewRuleStrategy(registry.Builtin(), router.DefaultRuleConfig(), logger)
	orch := New(store, strategy, gen, &fakeExec{}, DefaultConfig(), logger)

	orch.Handle(ctx, "Tell me a fun fact", "s1")
	if seen != DefaultConfig().HistoryLimit {
		t.Errorf("generator saw %d history turns, want %d", seen, DefaultConfig().HistoryLimit)
	}
}

// genSpy records the history passed to Generate.
type genSpy struct {
	onGenerate func(history []session.Turn)
}

func (g *genSpy) ID() string   { return "spy" }
func (g *genSpy) Name() string { return "spy" }
func (g *genSpy) Generate(ctx context.Context, query string, history []session.Turn) (string, error) {
	if g.onGenerate != nil {
		g.onGenerate(history)
	}
	return "ok", nil
}
