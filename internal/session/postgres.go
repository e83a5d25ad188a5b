package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresStore is a durable Store backed by PostgreSQL. It mirrors the
// Redis layout with a sessions table carrying an expires_at column;
// expiry is enforced lazily on read.
type PostgresStore struct {
	db     *pgxpool.Pool
	ttl    time.Duration
	logger *zap.Logger
}

// NewPostgresStore creates a PostgresStore with a pgx connection pool.
func NewPostgresStore(dsn string, ttl time.Duration, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("PostgreSQL session store connected")
	return &PostgresStore{db: pool, ttl: ttl, logger: logger}, nil
}

// Migrate reads and executes all .up.sql files from the migrations directory.
func (s *PostgresStore) Migrate(ctx context.Context, migrationsDir string) error {
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(migrationsDir, f))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
		s.logger.Info("Migration applied", zap.String("file", f))
	}
	return nil
}

// AppendTurn inserts the turn and refreshes the session's expiry inside a
// single transaction, so a concurrent append never observes a partially
// written session.
func (s *PostgresStore) AppendTurn(ctx context.Context, sessionID string, turn Turn) (int, error) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("append turn: %w (%v)", ErrStorageUnavailable, err)
	}
	defer tx.Rollback(ctx)

	// An append to an expired session starts it fresh: the old turns must
	// not resurface once the expiry is refreshed below. The row lock keeps
	// a concurrent append from reviving the session in between.
	var expired bool
	err = tx.QueryRow(ctx,
		`SELECT expires_at <= $2 FROM sessions WHERE id = $1 FOR UPDATE`,
		sessionID, turn.Timestamp,
	).Scan(&expired)
	if err != nil && err != pgx.ErrNoRows {
		return 0, fmt.Errorf("check session expiry: %w (%v)", ErrStorageUnavailable, err)
	}
	if expired {
		if _, err := tx.Exec(ctx,
			`DELETE FROM turns WHERE session_id = $1`, sessionID); err != nil {
			return 0, fmt.Errorf("purge expired turns: %w (%v)", ErrStorageUnavailable, err)
		}
	}

	expiresAt := turn.Timestamp.Add(s.ttl)
	_, err = tx.Exec(ctx, `
		INSERT INTO sessions (id, created_at, last_activity, expires_at)
		VALUES ($1, $2, $2, $3)
		ON CONFLICT (id)
		DO UPDATE SET
			last_activity = $2,
			expires_at = $3,
			created_at = CASE WHEN $4 THEN $2 ELSE sessions.created_at END`,
		sessionID, turn.Timestamp, expiresAt, expired,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert session: %w (%v)", ErrStorageUnavailable, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO turns (session_id, role, content, tool_used, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		sessionID, turn.Role, turn.Content, turn.ToolUsed, turn.Timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("insert turn: %w (%v)", ErrStorageUnavailable, err)
	}

	var count int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM turns WHERE session_id = $1`, sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count turns: %w (%v)", ErrStorageUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("append turn: %w (%v)", ErrStorageUnavailable, err)
	}
	return count, nil
}

// History returns the session's turns oldest-first, empty if the session
// is absent or past its expiry.
func (s *PostgresStore) History(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	var expired bool
	err := s.db.QueryRow(ctx,
		`SELECT expires_at <= now() FROM sessions WHERE id = $1`, sessionID,
	).Scan(&expired)
	if err == pgx.ErrNoRows {
		return []Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get history: %w (%v)", ErrStorageUnavailable, err)
	}
	if expired {
		return []Turn{}, nil
	}

	// Most recent N in reverse, then flipped back to chronological.
	query := `
		SELECT role, content, tool_used, created_at
		FROM turns WHERE session_id = $1
		ORDER BY id DESC`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get history: %w (%v)", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Role, &t.Content, &t.ToolUsed, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan turn: %w (%v)", ErrStorageUnavailable, err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get history: %w (%v)", ErrStorageUnavailable, err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// ListSessions returns ids of sessions whose expiry has not passed.
func (s *PostgresStore) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id FROM sessions WHERE expires_at > now() ORDER BY last_activity DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w (%v)", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w (%v)", ErrStorageUnavailable, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClearSession removes the session and its turns. Absent sessions are a no-op.
func (s *PostgresStore) ClearSession(ctx context.Context, sessionID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM turns WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("clear turns: %w (%v)", ErrStorageUnavailable, err)
	}
	_, err = s.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("clear session: %w (%v)", ErrStorageUnavailable, err)
	}
	return nil
}

// Close shuts down the connection pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
