// Package config loads gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
)

// EmotionBackend selects which vision model classifies ambient frames.
type EmotionBackend string

const (
	EmotionBackendAnthropic EmotionBackend = "anthropic"
	EmotionBackendGemini    EmotionBackend = "gemini"
)

type Config struct {
	Addr string

	// Collaborator credentials. AnthropicAPIKey empty means every AI
	// surface degrades to its deterministic fallback.
	AnthropicAPIKey string
	GeminiAPIKey    string
	DeepgramAPIKey  string

	// EmotionBackend picks the ambient classifier. Gemini requires
	// GeminiAPIKey; anything else falls back to Anthropic.
	EmotionBackend EmotionBackend

	// DatabaseURL empty disables persistence entirely.
	DatabaseURL    string
	MigrateOnStart bool

	// DefaultIntensity applies to sessions that do not choose one.
	DefaultIntensity types.SupportIntensity

	// TTS voice shaping.
	TTSVoice string
	TTSSpeed float64

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Webcam frames and rendered PDF pages arrive base64-encoded, so
	// bodies run large.
	MaxBodyBytes int64

	// Live WebSocket mode (/v1/live).
	LiveMaxMessageBytes  int64
	LiveWSPingInterval   time.Duration
	LiveWSWriteTimeout   time.Duration
	LiveHandshakeTimeout time.Duration
	LiveMaxSessionTime   time.Duration

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	HandlerTimeout      time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                 envOr("STUDYBUDDY_ADDR", ":8080"),
		AnthropicAPIKey:      strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
		GeminiAPIKey:         strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		DeepgramAPIKey:       strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
		EmotionBackend:       EmotionBackend(envOr("STUDYBUDDY_EMOTION_BACKEND", string(EmotionBackendAnthropic))),
		DatabaseURL:          strings.TrimSpace(os.Getenv("STUDYBUDDY_DATABASE_URL")),
		MigrateOnStart:       envBoolOr("STUDYBUDDY_MIGRATE_ON_START", true),
		DefaultIntensity:     types.ParseIntensity(envOr("STUDYBUDDY_INTENSITY", "standard")),
		TTSVoice:             envOr("STUDYBUDDY_TTS_VOICE", "aura-asteria-en"),
		TTSSpeed:             envFloat64Or("STUDYBUDDY_TTS_SPEED", 1.2),
		CORSAllowedOrigins:   make(map[string]struct{}),
		MaxBodyBytes:         envInt64Or("STUDYBUDDY_MAX_BODY_BYTES", 16<<20), // 16 MiB
		LiveMaxMessageBytes:  envInt64Or("STUDYBUDDY_LIVE_MAX_MESSAGE_BYTES", 8<<20),
		LiveWSPingInterval:   envDurationOr("STUDYBUDDY_LIVE_WS_PING_INTERVAL", 20*time.Second),
		LiveWSWriteTimeout:   envDurationOr("STUDYBUDDY_LIVE_WS_WRITE_TIMEOUT", 5*time.Second),
		LiveHandshakeTimeout: envDurationOr("STUDYBUDDY_LIVE_HANDSHAKE_TIMEOUT", 5*time.Second),
		LiveMaxSessionTime:   envDurationOr("STUDYBUDDY_LIVE_MAX_DURATION", 2*time.Hour),
		ReadHeaderTimeout:    envDurationOr("STUDYBUDDY_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:          envDurationOr("STUDYBUDDY_READ_TIMEOUT", 60*time.Second),
		HandlerTimeout:       envDurationOr("STUDYBUDDY_TOTAL_REQUEST_TIMEOUT", 2*time.Minute),
		ShutdownGracePeriod:  envDurationOr("STUDYBUDDY_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.EmotionBackend {
	case EmotionBackendAnthropic, EmotionBackendGemini:
	default:
		return Config{}, fmt.Errorf("STUDYBUDDY_EMOTION_BACKEND must be one of anthropic|gemini")
	}
	if cfg.EmotionBackend == EmotionBackendGemini && cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("GEMINI_API_KEY must be set when STUDYBUDDY_EMOTION_BACKEND=gemini")
	}

	for _, origin := range splitCSV(os.Getenv("STUDYBUDDY_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.TTSSpeed < 0.5 || cfg.TTSSpeed > 2.0 {
		return Config{}, fmt.Errorf("STUDYBUDDY_TTS_SPEED must be in [0.5, 2.0]")
	}
	if cfg.MaxBodyBytes <= 0 {
		return Config{}, fmt.Errorf("STUDYBUDDY_MAX_BODY_BYTES must be > 0")
	}
	if cfg.LiveMaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("STUDYBUDDY_LIVE_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.LiveWSPingInterval <= 0 {
		return Config{}, fmt.Errorf("STUDYBUDDY_LIVE_WS_PING_INTERVAL must be > 0")
	}
	if cfg.LiveWSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("STUDYBUDDY_LIVE_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.LiveHandshakeTimeout <= 0 {
		return Config{}, fmt.Errorf("STUDYBUDDY_LIVE_HANDSHAKE_TIMEOUT must be > 0")
	}
	if cfg.LiveMaxSessionTime <= 0 {
		return Config{}, fmt.Errorf("STUDYBUDDY_LIVE_MAX_DURATION must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("STUDYBUDDY_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("STUDYBUDDY_READ_TIMEOUT must be > 0")
	}
	if cfg.HandlerTimeout <= 0 {
		return Config{}, fmt.Errorf("STUDYBUDDY_TOTAL_REQUEST_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("STUDYBUDDY_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envFloat64Or(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
