package types

import "time"

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one message exchanged between the student and the
// tutor. Turns are append-only for the lifetime of a session.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// AttachedImage optionally carries the highlighted-problem crop that was
	// in effect when the turn was produced.
	AttachedImage ImageRef `json:"attached_image,omitempty"`
}

// WorkAnalysis is the structured feedback produced for one photographed
// written-work attempt. Missing fields are defaulted at the provider
// boundary, so consumers never see empty praise or nil slices.
type WorkAnalysis struct {
	Praise       string   `json:"praise"`
	Observations []string `json:"observations"`
	Questions    []string `json:"questions"`
}

// WorkAnalysisResult pairs an analysis with the frame it was produced from.
// Results are consumed at most once, deduplicated by timestamp monotonicity.
type WorkAnalysisResult struct {
	Timestamp     time.Time    `json:"timestamp"`
	Analysis      WorkAnalysis `json:"analysis"`
	CapturedImage ImageRef     `json:"captured_image,omitempty"`
}
