package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/studybuddy-ai/tutor-live/pkg/core"
	"github.com/studybuddy-ai/tutor-live/pkg/core/tutor"
	"github.com/studybuddy-ai/tutor-live/pkg/core/voice/tts"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/config"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/live/session"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/live/sessions"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/metrics"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/mw"
	"github.com/studybuddy-ai/tutor-live/pkg/store"
)

// LiveHandler upgrades /v1/live requests to a websocket and runs one
// tutoring session per connection.
type LiveHandler struct {
	Config       config.Config
	Chat         tutor.ChatClient
	Classifier   tutor.EmotionClassifier
	Analyzer     tutor.WorkAnalyzer
	Summarizer   AssignmentSummarizer
	TTS          tts.Provider
	Recorder     tutor.TurnRecorder
	Store        *store.Store
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	LiveSessions *sessions.Tracker
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		writeCoreErrorJSON(w, reqID, &core.Error{
			Type:      core.ErrInvalidRequest,
			Message:   "method not allowed",
			Code:      "method_not_allowed",
			RequestID: reqID,
		}, http.StatusMethodNotAllowed)
		return
	}
	if !h.originAllowed(r) {
		writeCoreErrorJSON(w, reqID, &core.Error{
			Type:      core.ErrAuthentication,
			Message:   "origin is not allowed",
			Param:     "Origin",
			RequestID: reqID,
		}, http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var (
		regMu      sync.Mutex
		unregister = func() {}
		handle     sessions.Handle
	)
	reregister := func(sessionID string) {
		if h.LiveSessions == nil {
			return
		}
		regMu.Lock()
		defer regMu.Unlock()
		old := unregister
		unregister = h.LiveSessions.Register(sessionID, handle)
		old()
	}

	var summarizer session.Summarizer
	if h.Summarizer != nil {
		summarizer = h.Summarizer
	}
	sess, err := session.New(session.Deps{
		Config: session.Config{
			TutorConfig:      tutor.DefaultConfig(),
			DefaultIntensity: h.Config.DefaultIntensity,
			TTSVoice:         h.Config.TTSVoice,
			TTSSpeed:         h.Config.TTSSpeed,
			SampleRate:       24000,
			MaxMessageBytes:  h.Config.LiveMaxMessageBytes,
			PingInterval:     h.Config.LiveWSPingInterval,
			WriteTimeout:     h.Config.LiveWSWriteTimeout,
			HandshakeTimeout: h.Config.LiveHandshakeTimeout,
			MaxSessionTime:   h.Config.LiveMaxSessionTime,
		},
		Chat:       h.Chat,
		Classifier: h.Classifier,
		Analyzer:   h.Analyzer,
		Summarizer: summarizer,
		TTS:        h.TTS,
		Recorder:   h.Recorder,
		Store:      h.Store,
		Metrics:    h.Metrics,
		Logger:     h.Logger,
		// The hello assigns the session id; move the registration to it so
		// reconnects with the same id replace the old session.
		OnStart: reregister,
	})
	if err != nil {
		h.Logger.Error("live session setup failed", "request_id", reqID, "error", err)
		return
	}

	handle = sessions.Handle{Cancel: cancel, Warn: sess.Warn}
	if h.LiveSessions != nil {
		// Registered under the request id until the handshake completes.
		regMu.Lock()
		unregister = h.LiveSessions.Register(reqID, handle)
		regMu.Unlock()
	}
	defer func() {
		regMu.Lock()
		u := unregister
		regMu.Unlock()
		u()
	}()

	if err := sess.Run(ctx, conn); err != nil && ctx.Err() == nil {
		h.Logger.Warn("live session ended with error",
			"request_id", reqID, "session_id", sess.ID(), "error", err)
	}
}

func (h LiveHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || len(h.Config.CORSAllowedOrigins) == 0 {
		// Non-browser clients and CORS-disabled deployments are allowed.
		return true
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}
