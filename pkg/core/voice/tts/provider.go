// Package tts provides text-to-speech synthesis for tutor speech output.
package tts

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the provider has no credentials or the
// upstream rejects the request. Callers fall back to on-device speech.
var ErrUnavailable = errors.New("tts: provider unavailable")

// Provider is the interface for text-to-speech services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to audio.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)
}

// SynthesizeOptions configures synthesis. Zero values select the
// provider's defaults.
type SynthesizeOptions struct {
	Voice      string  // Voice identifier
	Speed      float64 // Speed multiplier (0.5-2.0, default 1.2)
	SampleRate int     // Sample rate, default 24000
}

// Synthesis is the result of synthesis.
type Synthesis struct {
	Audio      []byte // Raw PCM (16-bit little-endian mono)
	SampleRate int    // Sample rate of the audio
}

// DurationSeconds estimates playback length from the PCM payload.
func (s *Synthesis) DurationSeconds() float64 {
	if s == nil || s.SampleRate <= 0 {
		return 0
	}
	samples := len(s.Audio) / 2
	return float64(samples) / float64(s.SampleRate)
}
