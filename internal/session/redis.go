package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis key layout:
//   chat:sessions                     set of session ids
//   chat:session:<id>:turns           list of JSON-encoded turns
//   chat:session:<id>:meta            hash {last_activity, turn_count}
const (
	sessionsKey = "chat:sessions"
	keyPrefix   = "chat:session:"
)

// RedisStore is the Redis-backed Store. Turn appends use RPUSH, which
// Redis executes atomically, so concurrent appends to one session never
// interleave. Expiry is delegated to Redis per-key TTLs.
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
// ttl is the session inactivity window; it is refreshed on every append.
func NewRedisStore(redisURL string, ttl time.Duration, logger *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info("Redis session store connected")
	return &RedisStore{rdb: rdb, ttl: ttl, logger: logger}, nil
}

func turnsKey(sessionID string) string { return keyPrefix + sessionID + ":turns" }
func metaKey(sessionID string) string  { return keyPrefix + sessionID + ":meta" }

// AppendTurn pushes the turn onto the session list and refreshes the TTL.
func (s *RedisStore) AppendTurn(ctx context.Context, sessionID string, turn Turn) (int, error) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	data, err := json.Marshal(turn)
	if err != nil {
		return 0, fmt.Errorf("marshal turn: %w", err)
	}

	// The push and the TTL refresh are one transaction: a turns key left
	// without a TTL would never expire.
	tx := s.rdb.TxPipeline()
	push := tx.RPush(ctx, turnsKey(sessionID), data)
	tx.Expire(ctx, turnsKey(sessionID), s.ttl)
	if _, err := tx.Exec(ctx); err != nil {
		return 0, fmt.Errorf("append turn: %w (%v)", ErrStorageUnavailable, err)
	}
	count := push.Val()

	// Index and metadata are best-effort bookkeeping; the turn list is
	// the source of truth.
	pipe := s.rdb.Pipeline()
	pipe.SAdd(ctx, sessionsKey, sessionID)
	pipe.HSet(ctx, metaKey(sessionID), map[string]interface{}{
		"last_activity": turn.Timestamp.Format(time.RFC3339Nano),
		"turn_count":    count,
	})
	pipe.Expire(ctx, metaKey(sessionID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Warn("session metadata update failed",
			zap.String("session", sessionID), zap.Error(err))
	}

	return int(count), nil
}

// History returns the session's turns oldest-first. Expired sessions have
// no key left in Redis and read as empty.
func (s *RedisStore) History(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := s.rdb.LRange(ctx, turnsKey(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("get history: %w (%v)", ErrStorageUnavailable, err)
	}

	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			s.logger.Warn("skipping corrupted turn", zap.String("session", sessionID))
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// ListSessions returns non-expired session ids. Ids whose turn list has
// expired are lazily removed from the index.
func (s *RedisStore) ListSessions(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, sessionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w (%v)", ErrStorageUnavailable, err)
	}

	live := make([]string, 0, len(ids))
	for _, id := range ids {
		exists, err := s.rdb.Exists(ctx, turnsKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w (%v)", ErrStorageUnavailable, err)
		}
		if exists == 0 {
			s.rdb.SRem(ctx, sessionsKey, id)
			continue
		}
		live = append(live, id)
	}
	return live, nil
}

// ClearSession deletes the session's turns, metadata, and index entry.
func (s *RedisStore) ClearSession(ctx context.Context, sessionID string) error {
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, turnsKey(sessionID))
	pipe.Del(ctx, metaKey(sessionID))
	pipe.SRem(ctx, sessionsKey, sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clear session: %w (%v)", ErrStorageUnavailable, err)
	}
	return nil
}

// Close shuts down the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
