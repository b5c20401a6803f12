package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
)

// Recorder adapts a Store to tutor.TurnRecorder. All writes are
// best-effort: failures are logged and swallowed, and each write gets its
// own timeout so a slow database cannot stall the event loop that called
// it.
type Recorder struct {
	store  *Store
	logger *slog.Logger
}

// NewRecorder creates a recorder. store may be nil, which makes every
// write a no-op.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

const writeTimeout = 5 * time.Second

// RecordTurn persists one transcript turn.
func (r *Recorder) RecordTurn(ctx context.Context, sessionID string, turn types.ConversationTurn, emotion types.Emotion) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := r.store.AppendMessage(ctx, sessionID, turn.Role, turn.Content, emotion); err != nil {
		r.logger.Warn("failed to persist turn", "session_id", sessionID, "error", err)
	}
}

// RecordEmotionCheck persists one emotion classification and refreshes
// the session's last-seen emotion.
func (r *Recorder) RecordEmotionCheck(ctx context.Context, sessionID string, reading types.EmotionReading, checkType string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()
	if err := r.store.InsertEmotionCheck(ctx, sessionID, reading, checkType); err != nil {
		r.logger.Warn("failed to persist emotion check", "session_id", sessionID, "error", err)
	}
	if err := r.store.UpdateSessionEmotion(ctx, sessionID, reading.Emotion); err != nil {
		r.logger.Warn("failed to update session emotion", "session_id", sessionID, "error", err)
	}
}
