package session

import (
	"context"
	"errors"
	"time"
)

// ErrStorageUnavailable indicates the backing store could not be reached.
// Callers should degrade to empty history instead of failing the request.
var ErrStorageUnavailable = errors.New("session storage unavailable")

// Turn is a single message within a session. Immutable once appended.
type Turn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	ToolUsed  string    `json:"tool_used,omitempty"`
}

// Store persists ordered conversation turns keyed by session id.
// Appends must be atomic per session; expired sessions read as empty.
type Store interface {
	// AppendTurn stores a turn at the end of the session's sequence,
	// creating the session if absent, and resets its expiry timer.
	// Returns the new turn count for the session.
	AppendTurn(ctx context.Context, sessionID string, turn Turn) (int, error)

	// History returns the session's turns oldest-first. A limit > 0
	// returns only the most recent N turns. Missing or expired
	// sessions yield an empty slice, not an error.
	History(ctx context.Context, sessionID string, limit int) ([]Turn, error)

	// ListSessions returns the ids of all non-expired sessions.
	ListSessions(ctx context.Context) ([]string, error)

	// ClearSession removes all turns and metadata for the session.
	// Idempotent: clearing an absent session is not an error.
	ClearSession(ctx context.Context, sessionID string) error

	Close() error
}
