package types

import "testing"

func TestParseEmotion(t *testing.T) {
	cases := []struct {
		raw  string
		want Emotion
	}{
		{"focused", EmotionFocused},
		{"frustrated", EmotionFrustrated},
		{"confused", EmotionConfused},
		{"breakthrough", EmotionBreakthrough},
		{"neutral", EmotionNeutral},
		{"", EmotionNeutral},
		{"FOCUSED", EmotionNeutral},
		{"angry", EmotionNeutral},
	}
	for _, tc := range cases {
		if got := ParseEmotion(tc.raw); got != tc.want {
			t.Errorf("ParseEmotion(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestEmotionValid(t *testing.T) {
	if !EmotionFocused.Valid() {
		t.Error("focused should be valid")
	}
	if Emotion("bored").Valid() {
		t.Error("bored should not be valid")
	}
}

func TestParseIntensity(t *testing.T) {
	if got := ParseIntensity("high"); got != IntensityHigh {
		t.Errorf("got %q", got)
	}
	if got := ParseIntensity(""); got != IntensityStandard {
		t.Errorf("empty label should default to standard, got %q", got)
	}
	if got := ParseIntensity("extreme"); got != IntensityStandard {
		t.Errorf("unknown label should default to standard, got %q", got)
	}
}

func TestImageRef_Base64Data(t *testing.T) {
	cases := []struct {
		ref  ImageRef
		want string
	}{
		{"data:image/webp;base64,AAAA", "AAAA"},
		{"data:image/png;base64,QUJD", "QUJD"},
		{"QUJD", "QUJD"},
		{"  QUJD  ", "QUJD"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := tc.ref.Base64Data(); got != tc.want {
			t.Errorf("Base64Data(%q) = %q, want %q", tc.ref, got, tc.want)
		}
	}
}

func TestImageRef_MediaType(t *testing.T) {
	cases := []struct {
		ref  ImageRef
		want string
	}{
		{"data:image/png;base64,AAAA", "image/png"},
		{"data:image/jpeg;base64,AAAA", "image/jpeg"},
		{"data:image/webp,AAAA", "image/webp"},
		{"AAAA", "image/webp"},
		{"", "image/webp"},
	}
	for _, tc := range cases {
		if got := tc.ref.MediaType(); got != tc.want {
			t.Errorf("MediaType(%q) = %q, want %q", tc.ref, got, tc.want)
		}
	}
}

func TestImageRef_IsZero(t *testing.T) {
	if !ImageRef("").IsZero() || !ImageRef("   ").IsZero() {
		t.Error("blank refs should be zero")
	}
	if ImageRef("data:image/webp;base64,AAAA").IsZero() {
		t.Error("populated ref should not be zero")
	}
}
