package session

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemStoreAppendAndHistory(t *testing.T) {
	store := NewMemStore(24 * time.Hour)
	ctx := context.Background()

	const n = 5
	for i := 0; i < n; i++ {
		count, err := store.AppendTurn(ctx, "s1", Turn{Role: "user", Content: fmt.Sprintf("msg %d", i)})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if count != i+1 {
			t.Errorf("append %d: got count %d, want %d", i, count, i+1)
		}
	}

	turns, err := store.History(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != n {
		t.Fatalf("got %d turns, want %d", len(turns), n)
	}
	for i, turn := range turns {
		want := fmt.Sprintf("msg %d", i)
		if turn.Content != want {
			t.Errorf("turn %d: got %q, want %q (append order must hold)", i, turn.Content, want)
		}
	}
}

func TestMemStoreHistoryLimit(t *testing.T) {
	store := NewMemStore(24 * time.Hour)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		store.AppendTurn(ctx, "s1", Turn{Role: "user", Content: fmt.Sprintf("msg %d", i)})
	}

	turns, err := store.History(ctx, "s1", 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("got %d turns, want 3", len(turns))
	}
	// Limit returns the most recent N, still oldest-first.
	if turns[0].Content != "msg 7" || turns[2].Content != "msg 9" {
		t.Errorf("got window [%q..%q], want [msg 7..msg 9]", turns[0].Content, turns[2].Content)
	}
}

func TestMemStoreMissingSessionReadsEmpty(t *testing.T) {
	store := NewMemStore(24 * time.Hour)

	turns, err := store.History(context.Background(), "ghost", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("got %d turns for missing session, want 0", len(turns))
	}
}

func TestMemStoreExpiry(t *testing.T) {
	store := NewMemStore(24 * time.Hour)
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	store.AppendTurn(ctx, "s1", Turn{Role: "user", Content: "before expiry"})
	store.AppendTurn(ctx, "s1", Turn{Role: "assistant", Content: "reply"})

	// Advance past the TTL: the session must read as empty.
	now = now.Add(25 * time.Hour)
	turns, err := store.History(ctx, "s1", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("got %d turns from expired session, want 0", len(turns))
	}

	ids, _ := store.ListSessions(ctx)
	if len(ids) != 0 {
		t.Errorf("expired session still listed: %v", ids)
	}

	// Appending after expiry starts a fresh session without old turns.
	count, err := store.AppendTurn(ctx, "s1", Turn{Role: "user", Content: "after expiry"})
	if err != nil {
		t.Fatalf("append after expiry: %v", err)
	}
	if count != 1 {
		t.Errorf("got count %d after expiry, want 1", count)
	}
	turns, _ = store.History(ctx, "s1", 0)
	if len(turns) != 1 || turns[0].Content != "after expiry" {
		t.Errorf("post-expiry history = %+v, want only the new turn", turns)
	}
}

func TestMemStoreActivityRefreshesExpiry(t *testing.T) {
	store := NewMemStore(24 * time.Hour)
	ctx := context.Background()

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	store.AppendTurn(ctx, "s1", Turn{Role: "user", Content: "first"})

	// Keep appending every 20 hours; the session must stay alive.
	for i := 0; i < 3; i++ {
		now = now.Add(20 * time.Hour)
		store.AppendTurn(ctx, "s1", Turn{Role: "user", Content: "ping"})
	}

	turns, _ := store.History(ctx, "s1", 0)
	if len(turns) != 4 {
		t.Errorf("got %d turns, want 4 (activity should refresh TTL)", len(turns))
	}
}

func TestMemStoreClearIdempotent(t *testing.T) {
	store := NewMemStore(24 * time.Hour)
	ctx := context.Background()

	store.AppendTurn(ctx, "s1", Turn{Role: "user", Content: "hi"})

	if err := store.ClearSession(ctx, "s1"); err != nil {
		t.Fatalf("first clear: %v", err)
	}
	if err := store.ClearSession(ctx, "s1"); err != nil {
		t.Fatalf("second clear should be a no-op, got: %v", err)
	}
	if err := store.ClearSession(ctx, "never-existed"); err != nil {
		t.Fatalf("clearing absent session should be a no-op, got: %v", err)
	}

	turns, _ := store.History(ctx, "s1", 0)
	if len(turns) != 0 {
		t.Errorf("got %d turns after clear, want 0", len(turns))
	}
}

func TestMemStoreListSessions(t *testing.T) {
	store := NewMemStore(24 * time.Hour)
	ctx := context.Background()

	store.AppendTurn(ctx, "a", Turn{Role: "user", Content: "1"})
	store.AppendTurn(ctx, "b", Turn{Role: "user", Content: "2"})

	ids, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d sessions, want 2", len(ids))
	}
}
