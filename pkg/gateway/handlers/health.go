package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/studybuddy-ai/tutor-live/pkg/gateway/config"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config config.Config
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK             bool     `json:"ok"`
		EmotionBackend string   `json:"emotion_backend"`
		TTSEnabled     bool     `json:"tts_enabled"`
		StoreEnabled   bool     `json:"store_enabled"`
		Issues         []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	switch h.Config.EmotionBackend {
	case config.EmotionBackendAnthropic, config.EmotionBackendGemini:
	default:
		issues = append(issues, "invalid emotion_backend")
	}
	if h.Config.EmotionBackend == config.EmotionBackendGemini && h.Config.GeminiAPIKey == "" {
		issues = append(issues, "emotion_backend=gemini but no gemini api key configured")
	}
	if h.Config.AnthropicAPIKey == "" {
		issues = append(issues, "no anthropic api key configured, chat will use fallback lines only")
	}
	if h.Config.MaxBodyBytes <= 0 {
		issues = append(issues, "max_body_bytes must be > 0")
	}
	if h.Config.LiveMaxMessageBytes <= 0 {
		issues = append(issues, "live max message bytes must be > 0")
	}
	if h.Config.LiveWSPingInterval <= 0 || h.Config.LiveWSWriteTimeout <= 0 {
		issues = append(issues, "live websocket intervals must be > 0")
	}
	if h.Config.LiveMaxSessionTime <= 0 {
		issues = append(issues, "live max session time must be > 0")
	}
	if h.Config.ReadHeaderTimeout <= 0 || h.Config.ReadTimeout <= 0 || h.Config.HandlerTimeout <= 0 {
		issues = append(issues, "timeouts must be > 0")
	}
	if h.Config.TTSSpeed < 0.5 || h.Config.TTSSpeed > 2.0 {
		issues = append(issues, "tts speed out of range")
	}

	ok := len(issues) == 0
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{
		OK:             ok,
		EmotionBackend: string(h.Config.EmotionBackend),
		TTSEnabled:     h.Config.DeepgramAPIKey != "",
		StoreEnabled:   h.Config.DatabaseURL != "",
		Issues:         issues,
	})
}
