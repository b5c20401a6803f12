package tutor

import (
	"sync"
	"time"

	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
)

// SessionState owns the conversation turn log and the auxiliary context
// consumed by every chat request. The turn log is append-only for the
// session's lifetime. Each field has a single writer: the ambient sampler
// writes the emotion and compliment, the highlight tool writes the
// highlighted-problem reference, the assignment flow writes the course
// summary, and the coordinator appends turns.
type SessionState struct {
	sessionID string

	mu             sync.Mutex
	turns          []types.ConversationTurn
	courseSummary  string
	emotion        types.Emotion
	compliment     string
	complimentUsed bool
	highlighted    types.ImageRef
	lastActivity   time.Time
}

// NewSessionState creates session state for the given session id.
func NewSessionState(sessionID string) *SessionState {
	return &SessionState{
		sessionID:    sessionID,
		turns:        make([]types.ConversationTurn, 0, 16),
		emotion:      types.EmotionNeutral,
		lastActivity: time.Now(),
	}
}

// SessionID returns the session identifier.
func (s *SessionState) SessionID() string { return s.sessionID }

// AppendTurn appends one turn to the log and returns its index.
func (s *SessionState) AppendTurn(turn types.ConversationTurn) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	return len(s.turns) - 1
}

// Snapshot returns a copy of the turn log.
func (s *SessionState) Snapshot() []types.ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ConversationTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// TurnCount returns the number of appended turns.
func (s *SessionState) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// SetEmotion records the latest classified emotion.
func (s *SessionState) SetEmotion(e types.Emotion) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emotion = e
}

// Emotion returns the latest classified emotion.
func (s *SessionState) Emotion() types.Emotion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emotion
}

// SetCompliment stores the icebreaker compliment from an ambient reading.
// Once the compliment has been consumed for the opening greeting, later
// readings no longer overwrite it.
func (s *SessionState) SetCompliment(c string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.complimentUsed {
		return
	}
	if c != "" {
		s.compliment = c
	}
}

// TakeCompliment returns the stored compliment and marks it used, so the
// greeting consumes it exactly once. Returns false when none is available.
func (s *SessionState) TakeCompliment() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.complimentUsed || s.compliment == "" {
		return "", false
	}
	s.complimentUsed = true
	return s.compliment, true
}

// HasCompliment reports whether an unused compliment is available.
func (s *SessionState) HasCompliment() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.complimentUsed && s.compliment != ""
}

// SetCourseSummary records the assignment summary used as course context.
func (s *SessionState) SetCourseSummary(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courseSummary = summary
}

// CourseSummary returns the assignment summary, or "" when absent.
func (s *SessionState) CourseSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.courseSummary
}

// SetHighlighted records the highlighted-problem crop.
func (s *SessionState) SetHighlighted(ref types.ImageRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.highlighted = ref
}

// ClearHighlighted removes the highlighted-problem crop.
func (s *SessionState) ClearHighlighted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.highlighted = ""
}

// Highlighted returns the highlighted-problem crop, if any.
func (s *SessionState) Highlighted() (types.ImageRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highlighted, !s.highlighted.IsZero()
}

// MarkActivity records student activity now.
func (s *SessionState) MarkActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// LastActivity returns the time of the most recent recorded activity.
func (s *SessionState) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}
