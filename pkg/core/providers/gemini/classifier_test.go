package gemini

import (
	"context"
	"testing"

	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestParseReading(t *testing.T) {
	reading, ok := parseReading(`{"emotion":"focused","reasoning":"steady gaze","compliment":"nice glasses"}`)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if reading.Emotion != types.EmotionFocused {
		t.Errorf("emotion = %s, want focused", reading.Emotion)
	}
	if reading.Compliment != "nice glasses" {
		t.Errorf("compliment = %q", reading.Compliment)
	}
}

func TestParseReading_StripsFence(t *testing.T) {
	reading, ok := parseReading("```json\n{\"emotion\":\"confused\",\"reasoning\":\"tilted head\",\"compliment\":\"cool shirt\"}\n```")
	if !ok {
		t.Fatal("expected fenced JSON to parse")
	}
	if reading.Emotion != types.EmotionConfused {
		t.Errorf("emotion = %s, want confused", reading.Emotion)
	}
}

func TestParseReading_UnknownLabelMapsToNeutral(t *testing.T) {
	reading, ok := parseReading(`{"emotion":"sleepy","reasoning":"yawning","compliment":"nice setup"}`)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if reading.Emotion != types.EmotionNeutral {
		t.Errorf("emotion = %s, want neutral", reading.Emotion)
	}
}

func TestParseReading_RejectsProse(t *testing.T) {
	if _, ok := parseReading("They look pretty focused to me."); ok {
		t.Fatal("prose must not parse as a reading")
	}
}

func TestParseReading_DefaultsReasoning(t *testing.T) {
	reading, ok := parseReading(`{"emotion":"neutral","compliment":"nice vibe"}`)
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if reading.Reasoning == "" {
		t.Error("reasoning must be defaulted")
	}
}
