package session

import (
	"context"
	"sync"
	"time"
)

type memSession struct {
	turns        []Turn
	lastActivity time.Time
}

// MemStore is an in-process Store used for development mode and tests.
// The clock is injectable so expiry can be exercised without waiting.
type MemStore struct {
	mu       sync.Mutex
	sessions map[string]*memSession
	ttl      time.Duration
	now      func() time.Time
}

// NewMemStore creates an in-memory store with the given inactivity TTL.
func NewMemStore(ttl time.Duration) *MemStore {
	return &MemStore{
		sessions: make(map[string]*memSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetClock replaces the store's time source. Test use only.
func (s *MemStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemStore) expired(sess *memSession) bool {
	return s.now().Sub(sess.lastActivity) >= s.ttl
}

// AppendTurn appends under the store lock; appends to one session can
// never interleave. An append to an expired session starts it fresh.
func (s *MemStore) AppendTurn(ctx context.Context, sessionID string, turn Turn) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}

	sess, ok := s.sessions[sessionID]
	if !ok || s.expired(sess) {
		sess = &memSession{}
		s.sessions[sessionID] = sess
	}
	sess.turns = append(sess.turns, turn)
	sess.lastActivity = s.now()
	return len(sess.turns), nil
}

func (s *MemStore) History(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok || s.expired(sess) {
		return []Turn{}, nil
	}

	turns := sess.turns
	if limit > 0 && limit < len(turns) {
		turns = turns[len(turns)-limit:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *MemStore) ListSessions(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *MemStore) ClearSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemStore) Close() error { return nil }
