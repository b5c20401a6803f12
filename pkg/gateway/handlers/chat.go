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
)

type chatRequest struct {
	Turns         []types.ConversationTurn `json:"turns"`
	Emotion       string                   `json:"emotion,omitempty"`
	CourseSummary string                   `json:"course_summary,omitempty"`
}

type chatResponse struct {
	Reply   string        `json:"reply"`
	Emotion types.Emotion `json:"emotion"`
}

// ChatHandler serves one-shot tutor replies over plain HTTP. The live
// websocket surface goes through the coordinator instead; this route exists
// for stateless clients and manual testing.
type ChatHandler struct {
	Config  config.Config
	Chat    tutor.ChatClient
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func (h ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	reqID, _ := mw.RequestIDFrom(r.Context())

	var req chatRequest
	if err := decodeJSONBody(w, r, h.Config.MaxBodyBytes, &req); err != nil {
		writeErr(w, reqID, err)
		return
	}
	if len(req.Turns) == 0 {
		writeErr(w, reqID, core.NewInvalidRequestErrorWithParam("turns must not be empty", "turns"))
		return
	}
	for i := range req.Turns {
		switch req.Turns[i].Role {
		case types.RoleUser, types.RoleAssistant:
		default:
			writeErr(w, reqID, core.NewInvalidRequestErrorWithParam("turn role must be user or assistant", "turns"))
			return
		}
	}

	emotion := types.ParseEmotion(req.Emotion)

	ctx := r.Context()
	if h.Config.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Config.HandlerTimeout)
		defer cancel()
	}

	reply, err := h.Chat.Chat(ctx, tutor.ChatRequest{
		Turns:         req.Turns,
		Emotion:       emotion,
		CourseSummary: req.CourseSummary,
	})
	if err != nil {
		h.Metrics.RecordChatTurn(string(emotion), "error")
		h.Metrics.RecordError("chat", "provider")
		writeErr(w, reqID, err)
		return
	}

	h.Metrics.RecordChatTurn(string(emotion), "ok")
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply, Emotion: emotion})
}
