package tutor

import (
	"math/rand"
	"testing"
	"time"

	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
)

func TestConfig_IntervalsPerIntensity(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		intensity types.SupportIntensity
		interval  time.Duration
		silence   time.Duration
	}{
		{types.IntensityMinimal, 15 * time.Second, 4 * time.Minute},
		{types.IntensityStandard, 10 * time.Second, 3 * time.Minute},
		{types.IntensityHigh, 6 * time.Second, 2 * time.Minute},
	}
	for _, tc := range cases {
		cfg.Intensity = tc.intensity
		if got := cfg.AmbientInterval(); got != tc.interval {
			t.Errorf("%s: ambient interval = %v, want %v", tc.intensity, got, tc.interval)
		}
		if got := cfg.SilenceThreshold(); got != tc.silence {
			t.Errorf("%s: silence threshold = %v, want %v", tc.intensity, got, tc.silence)
		}
	}
}

func TestConfig_JitterStaysWithinBounds(t *testing.T) {
	cfg := DefaultConfig()
	rng := rand.New(rand.NewSource(42))
	base := 10 * time.Second
	lo := time.Duration(float64(base) * cfg.JitterMin)
	hi := time.Duration(float64(base) * cfg.JitterMax)

	for i := 0; i < 1000; i++ {
		d := cfg.Jittered(base, rng)
		if d < lo || d > hi {
			t.Fatalf("jittered interval %v outside [%v, %v]", d, lo, hi)
		}
	}
}

func TestConfig_JitterDisabledWhenUnset(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JitterMin = 0
	cfg.JitterMax = 0
	rng := rand.New(rand.NewSource(1))
	if got := cfg.Jittered(time.Second, rng); got != time.Second {
		t.Fatalf("expected base interval with jitter unset, got %v", got)
	}
}

func TestCheckInLine_NeverEmpty(t *testing.T) {
	emotions := []types.Emotion{
		types.EmotionFocused,
		types.EmotionFrustrated,
		types.EmotionConfused,
		types.EmotionBreakthrough,
		types.EmotionNeutral,
	}
	for _, e := range emotions {
		if CheckInLine(e) == "" {
			t.Errorf("empty check-in line for %s", e)
		}
	}
	if CheckInLine(types.EmotionFrustrated) == CheckInLine(types.EmotionNeutral) {
		t.Error("frustrated check-in should differ from the default phrasing")
	}
}
