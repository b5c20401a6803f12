package types

// Emotion is a classified student emotional state.
type Emotion string

const (
	EmotionFocused      Emotion = "focused"
	EmotionFrustrated   Emotion = "frustrated"
	EmotionConfused     Emotion = "confused"
	EmotionBreakthrough Emotion = "breakthrough"
	EmotionNeutral      Emotion = "neutral"
)

// ParseEmotion maps a raw label to a known Emotion, defaulting to neutral.
func ParseEmotion(raw string) Emotion {
	switch Emotion(raw) {
	case EmotionFocused, EmotionFrustrated, EmotionConfused, EmotionBreakthrough, EmotionNeutral:
		return Emotion(raw)
	default:
		return EmotionNeutral
	}
}

// Valid reports whether the emotion is one of the known labels.
func (e Emotion) Valid() bool {
	return ParseEmotion(string(e)) == e
}

// EmotionReading is the result of one ambient emotion classification.
type EmotionReading struct {
	Emotion    Emotion `json:"emotion"`
	Reasoning  string  `json:"reasoning"`
	Compliment string  `json:"compliment"`
}

// SupportIntensity controls how proactive the tutor's unsolicited
// check-ins and ambient sampling are.
type SupportIntensity string

const (
	IntensityMinimal  SupportIntensity = "minimal"
	IntensityStandard SupportIntensity = "standard"
	IntensityHigh     SupportIntensity = "high"
)

// ParseIntensity maps a raw label to a known intensity, defaulting to standard.
func ParseIntensity(raw string) SupportIntensity {
	switch SupportIntensity(raw) {
	case IntensityMinimal, IntensityStandard, IntensityHigh:
		return SupportIntensity(raw)
	default:
		return IntensityStandard
	}
}
