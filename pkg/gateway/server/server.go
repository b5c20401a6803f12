// Package server wires the gateway's routes and middleware chain.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/studybuddy-ai/tutor-live/pkg/core/tutor"
	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
	"github.com/studybuddy-ai/tutor-live/pkg/core/voice/tts"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/config"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/handlers"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/live/sessions"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/metrics"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/mw"
	"github.com/studybuddy-ai/tutor-live/pkg/store"
)

// Providers bundles the AI collaborators the gateway serves. Chat,
// Classifier and Analyzer are required; Summarizer and TTS are optional.
type Providers struct {
	Chat       tutor.ChatClient
	Classifier tutor.EmotionClassifier
	Analyzer   tutor.WorkAnalyzer
	Summarizer interface {
		SummarizeAssignment(ctx context.Context, pages []types.ImageRef) (string, error)
	}
	TTS tts.Provider
}

type Server struct {
	cfg       config.Config
	logger    *slog.Logger
	mux       *http.ServeMux
	providers Providers

	store        *store.Store
	recorder     *store.Recorder
	metrics      *metrics.Metrics
	liveSessions *sessions.Tracker
}

// New builds a server. st may be nil when persistence is disabled.
func New(cfg config.Config, providers Providers, st *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:          cfg,
		logger:       logger,
		mux:          http.NewServeMux(),
		providers:    providers,
		store:        st,
		recorder:     store.NewRecorder(st, logger),
		metrics:      metrics.New("studybuddy"),
		liveSessions: sessions.NewTracker(),
	}

	s.routes()
	return s
}

// LiveSessions returns the tracker used to drain live sessions on shutdown.
func (s *Server) LiveSessions() *sessions.Tracker {
	return s.liveSessions
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg})
	s.mux.Handle("/metrics", s.metrics.Handler())

	s.mux.Handle("/v1/chat", handlers.ChatHandler{
		Config:  s.cfg,
		Chat:    s.providers.Chat,
		Metrics: s.metrics,
		Logger:  s.logger,
	})
	s.mux.Handle("/v1/vision/ambient", handlers.AmbientHandler{
		Config:     s.cfg,
		Classifier: s.providers.Classifier,
		Recorder:   s.recorder,
		Metrics:    s.metrics,
		Logger:     s.logger,
	})
	s.mux.Handle("/v1/vision/showwork", handlers.ShowWorkHandler{
		Config:   s.cfg,
		Analyzer: s.providers.Analyzer,
		Metrics:  s.metrics,
		Logger:   s.logger,
	})
	if s.providers.Summarizer != nil {
		s.mux.Handle("/v1/assignment/analyze", handlers.AssignmentHandler{
			Config:     s.cfg,
			Summarizer: s.providers.Summarizer,
			Store:      s.store,
			Metrics:    s.metrics,
			Logger:     s.logger,
		})
	}
	if s.providers.TTS != nil {
		s.mux.Handle("/v1/tts/speak", handlers.SpeakHandler{
			Config:  s.cfg,
			TTS:     s.providers.TTS,
			Metrics: s.metrics,
			Logger:  s.logger,
		})
	}
	s.mux.Handle("/v1/live", handlers.LiveHandler{
		Config:       s.cfg,
		Chat:         s.providers.Chat,
		Classifier:   s.providers.Classifier,
		Analyzer:     s.providers.Analyzer,
		Summarizer:   s.providers.Summarizer,
		TTS:          s.providers.TTS,
		Recorder:     s.recorder,
		Store:        s.store,
		Metrics:      s.metrics,
		Logger:       s.logger,
		LiveSessions: s.liveSessions,
	})
	s.mux.Handle("/", handlers.NotFoundHandler{})
}

// Handler returns the full middleware chain around the mux.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, s.metrics, h)
	h = mw.RequestID(h)
	return h
}
