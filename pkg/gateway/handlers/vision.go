package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/studybuddy-ai/tutor-live/pkg/core"
	"github.com/studybuddy-ai/tutor-live/pkg/core/tutor"
	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/config"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/metrics"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/mw"
	"github.com/studybuddy-ai/tutor-live/pkg/store"
)

type ambientRequest struct {
	SessionID string         `json:"session_id,omitempty"`
	Frame     types.ImageRef `json:"frame"`
}

// AmbientHandler classifies a single webcam frame into an emotion reading.
type AmbientHandler struct {
	Config     config.Config
	Classifier tutor.EmotionClassifier
	Recorder   *store.Recorder
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

func (h AmbientHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	reqID, _ := mw.RequestIDFrom(r.Context())

	var req ambientRequest
	if err := decodeJSONBody(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeErr(w, reqID, err)
		return
	}
	if req.Frame.IsZero() {
		writeErr(w, reqID, core.NewInvalidRequestErrorWithParam("frame must not be empty", "frame"))
		return
	}

	ctx := r.Context()
	if h.Config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Config.HandlerTimeout)
		defer cancel()
	}

	reading, err := h.Classifier.ClassifyEmotion(ctx, req.Frame)
	if err != nil {
		h.Metrics.RecordError("ambient", "classifier")
		writeErr(w, reqID, err)
		return
	}

	h.Metrics.RecordAmbientRead(string(reading.Emotion))
	if req.SessionID != "" && h.Recorder != nil {
		h.Recorder.RecordEmotionCheck(ctx, req.SessionID, reading, "ambient")
	}
	writeJSON(w, http.StatusOK, reading)
}

type showWorkRequest struct {
	WorkImage    types.ImageRef `json:"work_image"`
	ProblemImage types.ImageRef `json:"problem_image,omitempty"`
}

// ShowWorkHandler analyzes a photographed written-work attempt, optionally
// in the context of the highlighted problem crop it belongs to.
type ShowWorkHandler struct {
	Config   config.Config
	Analyzer tutor.WorkAnalyzer
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

func (h ShowWorkHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	reqID, _ := mw.RequestIDFrom(r.Context())

	var req showWorkRequest
	if err := decodeJSONBody(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeErr(w, reqID, err)
		return
	}
	if req.WorkImage.IsZero() {
		writeErr(w, reqID, core.NewInvalidRequestErrorWithParam("work_image must not be empty", "work_image"))
		return
	}

	ctx := r.Context()
	if h.Config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Config.HandlerTimeout)
		defer cancel()
	}

	analysis, err := h.Analyzer.AnalyzeWork(ctx, req.WorkImage, req.ProblemImage)
	if err != nil {
		h.Metrics.RecordWorkCapture("error")
		h.Metrics.RecordError("showwork", "analyzer")
		writeErr(w, reqID, err)
		return
	}

	h.Metrics.RecordWorkCapture("ok")
	writeJSON(w, http.StatusOK, analysis)
}
