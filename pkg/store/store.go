// Package store persists sessions, transcript messages, and emotion
// checks in Postgres. Persistence is best-effort: a nil *Store is a valid
// no-op store, and write failures are surfaced as errors for callers to
// log, never to break the conversational path.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Store wraps a Postgres connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to Postgres and verifies the connection.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Migrate applies the embedded schema migrations. goose drives a
// database/sql connection, so it opens its own through the pgx stdlib
// adapter.
func Migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("store: open for migration: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("store: set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateSession inserts a new active session row.
func (s *Store) CreateSession(ctx context.Context, id string, intensity types.SupportIntensity) error {
	if s == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, intensity, status) VALUES ($1, $2, 'active')
		 ON CONFLICT (id) DO NOTHING`,
		id, string(intensity))
	if err != nil {
		return fmt.Errorf("store: create session: %w", err)
	}
	return nil
}

// EndSession marks a session ended.
func (s *Store) EndSession(ctx context.Context, id string) error {
	if s == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET status = 'ended', ended_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: end session: %w", err)
	}
	return nil
}

// SetCourseSummary records the assignment summary on the session row.
func (s *Store) SetCourseSummary(ctx context.Context, id, summary string) error {
	if s == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET course_summary = $2 WHERE id = $1`, id, summary)
	if err != nil {
		return fmt.Errorf("store: set course summary: %w", err)
	}
	return nil
}

// AppendMessage inserts one transcript message.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, role types.Role, text string, emotion types.Emotion) error {
	if s == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (session_id, role, text, emotion_at_time) VALUES ($1, $2, $3, $4)`,
		sessionID, string(role), text, string(emotion))
	if err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}
	return nil
}

// InsertEmotionCheck records one emotion classification.
func (s *Store) InsertEmotionCheck(ctx context.Context, sessionID string, reading types.EmotionReading, checkType string) error {
	if s == nil {
		return nil
	}
	if checkType == "" {
		checkType = "ambient"
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO emotion_checks (session_id, emotion, reasoning, compliment, check_type)
		 VALUES ($1, $2, $3, $4, $5)`,
		sessionID, string(reading.Emotion), reading.Reasoning, reading.Compliment, checkType)
	if err != nil {
		return fmt.Errorf("store: insert emotion check: %w", err)
	}
	return nil
}

// UpdateSessionEmotion records the latest classified emotion on the
// session row.
func (s *Store) UpdateSessionEmotion(ctx context.Context, sessionID string, emotion types.Emotion) error {
	if s == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET last_emotion = $2 WHERE id = $1`, sessionID, string(emotion))
	if err != nil {
		return fmt.Errorf("store: update session emotion: %w", err)
	}
	return nil
}
