package tutor

import (
	"math/rand"
	"time"

	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
)

// Config holds timing policy for a tutoring session.
type Config struct {
	// Intensity controls ambient sampling frequency and the silence
	// check-in threshold.
	Intensity types.SupportIntensity

	// AmbientIntervalMinimal/Standard/High are the base sampling intervals
	// per intensity. Each actual interval is the base multiplied by a
	// uniform jitter factor in [JitterMin, JitterMax].
	AmbientIntervalMinimal  time.Duration
	AmbientIntervalStandard time.Duration
	AmbientIntervalHigh     time.Duration

	// SilenceThresholdMinimal/Standard/High bound how long the student can
	// be inactive before a proactive check-in fires.
	SilenceThresholdMinimal  time.Duration
	SilenceThresholdStandard time.Duration
	SilenceThresholdHigh     time.Duration

	// JitterMin and JitterMax bound the uniform jitter factor applied to
	// every scheduled interval, to avoid synchronized, predictable firing.
	JitterMin float64
	JitterMax float64

	// CountdownSteps and CountdownTick shape the visible countdown that
	// precedes a work capture.
	CountdownSteps int
	CountdownTick  time.Duration
}

// DefaultConfig returns the timing policy used by the original sessions:
// ambient sampling at 15/10/6 seconds and silence check-ins at 4/3/2
// minutes for minimal/standard/high intensity.
func DefaultConfig() Config {
	return Config{
		Intensity:                types.IntensityStandard,
		AmbientIntervalMinimal:   15 * time.Second,
		AmbientIntervalStandard:  10 * time.Second,
		AmbientIntervalHigh:      6 * time.Second,
		SilenceThresholdMinimal:  4 * time.Minute,
		SilenceThresholdStandard: 3 * time.Minute,
		SilenceThresholdHigh:     2 * time.Minute,
		JitterMin:                0.85,
		JitterMax:                1.15,
		CountdownSteps:           3,
		CountdownTick:            time.Second,
	}
}

// AmbientInterval returns the base sampling interval for the configured
// intensity.
func (c Config) AmbientInterval() time.Duration {
	switch c.Intensity {
	case types.IntensityMinimal:
		return c.AmbientIntervalMinimal
	case types.IntensityHigh:
		return c.AmbientIntervalHigh
	default:
		return c.AmbientIntervalStandard
	}
}

// SilenceThreshold returns the base inactivity threshold for the
// configured intensity.
func (c Config) SilenceThreshold() time.Duration {
	switch c.Intensity {
	case types.IntensityMinimal:
		return c.SilenceThresholdMinimal
	case types.IntensityHigh:
		return c.SilenceThresholdHigh
	default:
		return c.SilenceThresholdStandard
	}
}

// Jittered applies the configured jitter factor to a base duration.
func (c Config) Jittered(base time.Duration, rng *rand.Rand) time.Duration {
	lo, hi := c.JitterMin, c.JitterMax
	if lo <= 0 || hi < lo {
		return base
	}
	factor := lo + rng.Float64()*(hi-lo)
	return time.Duration(float64(base) * factor)
}

// CheckInLine returns the proactive check-in phrasing for the given
// emotion. Frustrated students get a gentler opener.
func CheckInLine(emotion types.Emotion) string {
	switch emotion {
	case types.EmotionFrustrated:
		return "Hey, this can get tough. Want to talk through what you're trying?"
	case types.EmotionConfused:
		return "Anything feeling unclear right now? Happy to walk through it together."
	default:
		return "What are you thinking right now?"
	}
}
