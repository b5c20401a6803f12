package tutor

import (
	"context"

	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
)

// ChatRequest is the payload the coordinator sends to the chat collaborator.
// Turns is a snapshot of the conversation history at request-issue time.
type ChatRequest struct {
	Turns         []types.ConversationTurn
	Emotion       types.Emotion
	CourseSummary string
}

// ChatClient is the AI chat collaborator. Implementations are expected to
// degrade to a deterministic fallback line on upstream failure; a returned
// error means no reply is available at all and nothing is appended.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// EmotionClassifier classifies one webcam frame.
type EmotionClassifier interface {
	ClassifyEmotion(ctx context.Context, frame types.ImageRef) (types.EmotionReading, error)
}

// WorkAnalyzer analyzes a photographed written-work attempt, optionally in
// the context of the highlighted problem it belongs to.
type WorkAnalyzer interface {
	AnalyzeWork(ctx context.Context, work, problem types.ImageRef) (types.WorkAnalysis, error)
}

// FrameKind selects the capture resolution/purpose of a webcam frame.
type FrameKind string

const (
	FrameAmbient FrameKind = "ambient"
	FrameWork    FrameKind = "work"
)

// FrameSource supplies the most recent webcam frame of a given kind.
// Hosts backed by a browser cache the latest frame pushed by the client.
type FrameSource interface {
	LatestFrame(kind FrameKind) (types.ImageRef, bool)
}

// AudioSink receives synthesized speech for playback. Both methods block
// until playback finishes or ctx is cancelled; cancellation must halt
// playback immediately.
type AudioSink interface {
	// PlayAudio plays synthesized PCM for the given text.
	PlayAudio(ctx context.Context, text string, pcm []byte) error

	// PlayText is the on-device fallback used when synthesis is unavailable.
	PlayText(ctx context.Context, text string) error
}

// TurnRecorder persists turns and emotion checks. Implementations are
// best-effort: failures are logged by the implementation and never
// propagate into the conversational path. A nil recorder is valid.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, sessionID string, turn types.ConversationTurn, emotion types.Emotion)
	RecordEmotionCheck(ctx context.Context, sessionID string, reading types.EmotionReading, checkType string)
}
