package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/studybuddy-ai/tutor-live/pkg/core"
	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/config"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/metrics"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/mw"
	"github.com/studybuddy-ai/tutor-live/pkg/store"
)

// AssignmentSummarizer condenses rendered assignment pages into a short
// course summary used to seed the tutoring conversation.
type AssignmentSummarizer interface {
	SummarizeAssignment(ctx context.Context, pages []types.ImageRef) (string, error)
}

type assignmentRequest struct {
	SessionID string           `json:"session_id,omitempty"`
	Filename  string           `json:"filename,omitempty"`
	Pages     []types.ImageRef `json:"pages"`
}

type assignmentResponse struct {
	Summary string `json:"summary"`
}

// AssignmentHandler summarizes an uploaded assignment from its rendered
// page images.
type AssignmentHandler struct {
	Config     config.Config
	Summarizer AssignmentSummarizer
	Store      *store.Store
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

func (h AssignmentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	reqID, _ := mw.RequestIDFrom(r.Context())

	var req assignmentRequest
	if err := decodeJSONBody(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeErr(w, reqID, err)
		return
	}
	if len(req.Pages) == 0 {
		writeErr(w, reqID, core.NewInvalidRequestErrorWithParam("pages must not be empty", "pages"))
		return
	}
	for i := range req.Pages {
		if req.Pages[i].IsZero() {
			writeErr(w, reqID, core.NewInvalidRequestErrorWithParam("pages must not contain empty entries", "pages"))
			return
		}
	}

	ctx := r.Context()
	if h.Config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Config.HandlerTimeout)
		defer cancel()
	}

	summary, err := h.Summarizer.SummarizeAssignment(ctx, req.Pages)
	if err != nil {
		h.Metrics.RecordError("assignment", "summarizer")
		writeErr(w, reqID, err)
		return
	}

	if req.SessionID != "" && h.Store != nil {
		if err := h.Store.SetCourseSummary(ctx, req.SessionID, summary); err != nil {
			h.Logger.Warn("persisting course summary failed",
				"session_id", req.SessionID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, assignmentResponse{Summary: summary})
}
