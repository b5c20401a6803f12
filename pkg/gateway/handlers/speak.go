package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/studybuddy-ai/tutor-live/pkg/core"
	"github.com/studybuddy-ai/tutor-live/pkg/core/voice/tts"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/config"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/metrics"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/mw"
)

type speakRequest struct {
	Text  string  `json:"text"`
	Voice string  `json:"voice,omitempty"`
	Speed float64 `json:"speed,omitempty"`
}

// SpeakHandler synthesizes speech and returns raw 16-bit little-endian
// mono PCM. The sample rate is carried in the X-Sample-Rate header.
type SpeakHandler struct {
	Config  config.Config
	TTS     tts.Provider
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func (h SpeakHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	reqID, _ := mw.RequestIDFrom(r.Context())

	var req speakRequest
	if err := decodeJSONBody(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeErr(w, reqID, err)
		return
	}
	if req.Text == "" {
		writeErr(w, reqID, core.NewInvalidRequestErrorWithParam("text must not be empty", "text"))
		return
	}

	voice := req.Voice
	if voice == "" {
		voice = h.Config.TTSVoice
	}
	speed := req.Speed
	if speed == 0 {
		speed = h.Config.TTSSpeed
	}
	if speed < 0.5 || speed > 2.0 {
		writeErr(w, reqID, core.NewInvalidRequestErrorWithParam("speed must be between 0.5 and 2.0", "speed"))
		return
	}

	ctx := r.Context()
	if h.Config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Config.HandlerTimeout)
		defer cancel()
	}

	syn, err := h.TTS.Synthesize(ctx, req.Text, tts.SynthesizeOptions{
		Voice: voice,
		Speed: speed,
	})
	if err != nil {
		if errors.Is(err, tts.ErrUnavailable) {
			h.Metrics.RecordSpeech("unavailable", 0)
			writeCoreErrorJSON(w, reqID, &core.Error{
				Type:      core.ErrProvider,
				Message:   "speech synthesis unavailable",
				RequestID: reqID,
			}, http.StatusServiceUnavailable)
			return
		}
		h.Metrics.RecordSpeech("error", 0)
		h.Metrics.RecordError("tts", "synthesize")
		writeErr(w, reqID, err)
		return
	}

	h.Metrics.RecordSpeech("ok", syn.DurationSeconds())
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Sample-Rate", strconv.Itoa(syn.SampleRate))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(syn.Audio)
}
