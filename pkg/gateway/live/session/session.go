// Package session hosts one live tutoring conversation over a websocket.
// The browser streams speech transcripts, webcam frames and highlight
// changes in; the session runs the tutor core and streams turns, speech
// and ambient events back out.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studybuddy-ai/tutor-live/pkg/core"
	"github.com/studybuddy-ai/tutor-live/pkg/core/tutor"
	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
	"github.com/studybuddy-ai/tutor-live/pkg/core/voice/tts"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/live/protocol"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/metrics"
	"github.com/studybuddy-ai/tutor-live/pkg/store"
)

// Config holds per-session timing and limit policy.
type Config struct {
	TutorConfig      tutor.Config
	DefaultIntensity types.SupportIntensity
	TTSVoice         string
	TTSSpeed         float64
	SampleRate       int
	MaxMessageBytes  int64
	PingInterval     time.Duration
	WriteTimeout     time.Duration
	HandshakeTimeout time.Duration
	MaxSessionTime   time.Duration
}

// Summarizer condenses rendered assignment pages into a course summary.
type Summarizer interface {
	SummarizeAssignment(ctx context.Context, pages []types.ImageRef) (string, error)
}

// Deps bundles a session's collaborators. Chat, Classifier and Analyzer
// are required; the rest are optional.
type Deps struct {
	Config     Config
	Chat       tutor.ChatClient
	Classifier tutor.EmotionClassifier
	Analyzer   tutor.WorkAnalyzer
	Summarizer Summarizer
	TTS        tts.Provider
	Recorder   tutor.TurnRecorder
	Store      *store.Store
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	// OnStart is called from Run once the handshake has assigned the
	// session id, before any frames are exchanged.
	OnStart func(sessionID string)
}

// Session is one live tutoring connection.
type Session struct {
	deps   Deps
	logger *slog.Logger

	// runtime, built in Run
	id       string
	state    *tutor.SessionState
	frames   *frameCache
	queue    *tutor.SpeechQueue
	coord    *tutor.Coordinator
	ambient  *tutor.AmbientSampler
	silence  *tutor.SilenceWatcher
	capture  *tutor.WorkCapture
	priority chan []byte
	normal   chan []byte
	sctx     context.Context

	mu      sync.Mutex
	greeted bool
}

// New validates deps and creates a session host for one connection.
func New(deps Deps) (*Session, error) {
	if deps.Chat == nil {
		return nil, errors.New("chat client is required")
	}
	if deps.Classifier == nil {
		return nil, errors.New("emotion classifier is required")
	}
	if deps.Analyzer == nil {
		return nil, errors.New("work analyzer is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Config.SampleRate <= 0 {
		deps.Config.SampleRate = 24000
	}
	return &Session{deps: deps, logger: logger}, nil
}

// ID returns the session identifier, once assigned by Run.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Warn queues a warning frame ahead of normal traffic. It is safe to call
// from other goroutines, and reports an error when the session has not
// started or is already shutting down.
func (s *Session) Warn(code, message string) error {
	s.mu.Lock()
	ch := s.priority
	sctx := s.sctx
	s.mu.Unlock()
	if ch == nil || sctx == nil {
		return errors.New("session not started")
	}

	data, err := json.Marshal(protocol.ServerWarning{
		Type:    "warning",
		Code:    code,
		Message: message,
	})
	if err != nil {
		return err
	}
	select {
	case ch <- data:
		return nil
	case <-sctx.Done():
		return sctx.Err()
	}
}

// Run drives the connection until the client ends the session, the
// connection drops, the session time limit passes, or ctx is cancelled.
func (s *Session) Run(ctx context.Context, ws *websocket.Conn) error {
	cfg := s.deps.Config
	if cfg.MaxMessageBytes > 0 {
		ws.SetReadLimit(cfg.MaxMessageBytes)
	}

	hello, err := s.readHello(ws)
	if err != nil {
		s.writeDirect(ws, protocol.ServerError{
			Type:    "error",
			Code:    decodeCode(err),
			Message: err.Error(),
			Param:   decodeParam(err),
			Close:   true,
		})
		return err
	}

	sessionID := hello.SessionID
	if sessionID == "" {
		sessionID = newSessionID()
	}
	// The hello's choice wins; a hello that leaves intensity out gets the
	// deployment default.
	intensity := cfg.DefaultIntensity
	if hello.Intensity != "" {
		intensity = types.ParseIntensity(hello.Intensity)
	}
	if intensity == "" {
		intensity = types.IntensityStandard
	}
	logger := s.logger.With("session_id", sessionID)

	sctx := ctx
	var cancel context.CancelFunc
	if cfg.MaxSessionTime > 0 {
		sctx, cancel = context.WithTimeout(ctx, cfg.MaxSessionTime)
	} else {
		sctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	s.mu.Lock()
	s.id = sessionID
	s.sctx = sctx
	s.priority = make(chan []byte, 64)
	s.normal = make(chan []byte, 256)
	s.mu.Unlock()

	if s.deps.OnStart != nil {
		s.deps.OnStart(sessionID)
	}

	s.buildTutor(hello, intensity, logger)

	started := time.Now()
	s.deps.Metrics.RecordLiveSessionStart()
	status := "closed"
	defer func() {
		s.deps.Metrics.RecordLiveSessionEnd(status, time.Since(started))
	}()

	if s.deps.Store != nil {
		if err := s.deps.Store.CreateSession(sctx, sessionID, intensity); err != nil {
			logger.Warn("creating session row failed", "error", err)
		}
		defer func() {
			endCtx, endCancel := context.WithTimeout(context.WithoutCancel(sctx), 5*time.Second)
			defer endCancel()
			if err := s.deps.Store.EndSession(endCtx, sessionID); err != nil {
				logger.Warn("ending session row failed", "error", err)
			}
		}()
	}

	writerErr := make(chan error, 1)
	writer := &outboundWriter{
		ws:           ws,
		ctx:          sctx,
		priority:     s.priority,
		normal:       s.normal,
		pingInterval: cfg.PingInterval,
		writeTimeout: cfg.WriteTimeout,
	}
	go func() { writerErr <- writer.Run() }()

	go func() { _ = s.coord.Run(sctx) }()
	s.ambient.Start()
	s.silence.Start()
	defer func() {
		s.ambient.Stop()
		s.silence.Stop()
		s.queue.Close()
	}()

	maxSessionSeconds := int(cfg.MaxSessionTime / time.Second)
	s.send(protocol.ServerHelloAck{
		Type:            "hello_ack",
		ProtocolVersion: protocol.ProtocolVersion1,
		SessionID:       sessionID,
		Intensity:       string(intensity),
		Limits: &protocol.HelloAckLimits{
			MaxJSONMessageBytes: cfg.MaxMessageBytes,
			MaxSessionSeconds:   maxSessionSeconds,
		},
	})

	logger.Info("live session started", "intensity", intensity, "want_audio", hello.WantAudio)

	readDeadline := 2 * cfg.PingInterval
	if readDeadline < time.Minute {
		readDeadline = time.Minute
	}
	_ = ws.SetReadDeadline(time.Now().Add(readDeadline))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		select {
		case err := <-writerErr:
			if err != nil {
				status = "error"
			}
			return err
		case <-sctx.Done():
			status = "timeout"
			return nil
		default:
		}

		_, data, err := ws.ReadMessage()
		if err != nil {
			if sctx.Err() != nil || websocket.IsCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			status = "error"
			return err
		}
		_ = ws.SetReadDeadline(time.Now().Add(readDeadline))

		msg, err := protocol.DecodeClientMessage(data)
		if err != nil {
			s.send(protocol.ServerError{
				Type:    "error",
				Code:    decodeCode(err),
				Message: err.Error(),
				Param:   decodeParam(err),
			})
			continue
		}

		if done := s.dispatch(sctx, msg, logger); done {
			return nil
		}
	}
}

func (s *Session) readHello(ws *websocket.Conn) (protocol.ClientHello, error) {
	timeout := s.deps.Config.HandshakeTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	_ = ws.SetReadDeadline(time.Now().Add(timeout))

	_, data, err := ws.ReadMessage()
	if err != nil {
		return protocol.ClientHello{}, err
	}
	msg, err := protocol.DecodeClientMessage(data)
	if err != nil {
		return protocol.ClientHello{}, err
	}
	hello, ok := msg.(protocol.ClientHello)
	if !ok {
		return protocol.ClientHello{}, &protocol.DecodeError{
			Code:    "bad_request",
			Message: "first message must be hello",
			Param:   "type",
		}
	}
	return hello, nil
}

func (s *Session) buildTutor(hello protocol.ClientHello, intensity types.SupportIntensity, logger *slog.Logger) {
	cfg := s.deps.Config
	tcfg := cfg.TutorConfig
	if tcfg == (tutor.Config{}) {
		tcfg = tutor.DefaultConfig()
	}
	tcfg.Intensity = intensity

	s.state = tutor.NewSessionState(s.id)
	s.frames = newFrameCache()

	sink := &wsSink{
		send:         s.send,
		sendPriority: s.sendPriority,
		sampleRate:   cfg.SampleRate,
	}
	var synth tutor.SpeechSynthesizer
	if s.deps.TTS != nil && hello.WantAudio {
		synth = &ttsSynth{
			provider:   s.deps.TTS,
			voice:      cfg.TTSVoice,
			speed:      cfg.TTSSpeed,
			sampleRate: cfg.SampleRate,
		}
	}
	s.queue = tutor.NewSpeechQueue(synth, sink, logger)

	coord, err := tutor.NewCoordinator(tutor.CoordinatorDeps{
		Chat:     s.deps.Chat,
		Queue:    s.queue,
		State:    s.state,
		Recorder: s.deps.Recorder,
		Logger:   logger,
		OnTurn: func(turn types.ConversationTurn) {
			if turn.Role == types.RoleAssistant {
				s.deps.Metrics.RecordChatTurn(string(s.state.Emotion()), "ok")
			}
			s.send(protocol.ServerTurn{
				Type:          "turn",
				Role:          string(turn.Role),
				Content:       turn.Content,
				AttachedImage: string(turn.AttachedImage),
			})
		},
	})
	if err != nil {
		// Deps were validated in New; this cannot happen on a live path.
		panic(err)
	}
	s.coord = coord

	s.ambient = tutor.NewAmbientSampler(tcfg, s.deps.Classifier, s.frames, s.state, logger)
	s.ambient.SetCallbacks(
		func(reading types.EmotionReading) {
			s.deps.Metrics.RecordAmbientRead(string(reading.Emotion))
			if s.deps.Recorder != nil {
				s.deps.Recorder.RecordEmotionCheck(s.sctx, s.id, reading, "ambient")
			}
			s.send(protocol.ServerEmotion{
				Type:      "emotion",
				Emotion:   string(reading.Emotion),
				Reasoning: reading.Reasoning,
			})
			s.maybeGreet()
		},
		func() {
			s.send(protocol.ServerCelebrate{Type: "celebrate"})
		},
	)

	s.silence = tutor.NewSilenceWatcher(tcfg, s.state, func() {
		s.deps.Metrics.RecordCheckIn()
		s.coord.CheckIn()
	}, logger)

	s.capture = tutor.NewWorkCapture(tcfg, s.deps.Analyzer, s.frames, s.state, logger)
	s.capture.SetCallbacks(
		func(n int) {
			s.send(protocol.ServerCountdown{Type: "countdown", Count: n})
		},
		func(result types.WorkAnalysisResult) {
			s.deps.Metrics.RecordWorkCapture("ok")
			s.send(protocol.ServerWorkAnalysis{
				Type:          "work_analysis",
				Praise:        result.Analysis.Praise,
				Observations:  result.Analysis.Observations,
				Questions:     result.Analysis.Questions,
				CapturedImage: string(result.CapturedImage),
			})
			s.coord.OfferWorkAnalysis(result)
		},
	)
}

// dispatch handles one decoded client message. It returns true when the
// session should close normally.
func (s *Session) dispatch(ctx context.Context, msg any, logger *slog.Logger) bool {
	switch m := msg.(type) {
	case protocol.ClientHello:
		s.send(protocol.ServerWarning{
			Type:    "warning",
			Code:    "already_started",
			Message: "hello is only valid as the first message",
		})
	case protocol.ClientSpeechStart:
		s.coord.UserSpeechDetected()
	case protocol.ClientSpeechFinal:
		s.coord.UserSpeechFinalized(m.Text)
	case protocol.ClientFrame:
		s.frames.Put(tutor.FrameKind(m.Kind), types.ImageRef(m.Image))
	case protocol.ClientHighlightSet:
		s.state.SetHighlighted(types.ImageRef(m.Image))
	case protocol.ClientHighlightClear:
		s.state.ClearHighlighted()
	case protocol.ClientVisibility:
		s.ambient.SetVisible(m.Visible)
	case protocol.ClientShowWork:
		if err := s.capture.Trigger(ctx); err != nil {
			s.deps.Metrics.RecordWorkCapture("rejected")
			var coreErr *core.Error
			code := "invalid_state"
			if !errors.As(err, &coreErr) {
				code = "internal"
			}
			s.send(protocol.ServerError{
				Type:    "error",
				Code:    code,
				Message: err.Error(),
			})
		}
	case protocol.ClientAssignment:
		go s.handleAssignment(ctx, m, logger)
	case protocol.ClientControl:
		if m.Op == "end_session" {
			logger.Info("client ended session")
			return true
		}
	}
	return false
}

func (s *Session) handleAssignment(ctx context.Context, msg protocol.ClientAssignment, logger *slog.Logger) {
	if s.deps.Summarizer == nil {
		s.send(protocol.ServerError{
			Type:    "error",
			Code:    "unsupported",
			Message: "assignment analysis is not configured",
		})
		return
	}

	pages := make([]types.ImageRef, 0, len(msg.Pages))
	for _, p := range msg.Pages {
		pages = append(pages, types.ImageRef(p))
	}

	summary, err := s.deps.Summarizer.SummarizeAssignment(ctx, pages)
	if err != nil {
		s.deps.Metrics.RecordError("assignment", "summarizer")
		logger.Warn("assignment summarization failed", "error", err)
		s.send(protocol.ServerError{
			Type:    "error",
			Code:    "provider",
			Message: "assignment analysis failed",
		})
		return
	}

	s.state.SetCourseSummary(summary)
	if s.deps.Store != nil {
		if err := s.deps.Store.SetCourseSummary(ctx, s.id, summary); err != nil {
			logger.Warn("persisting course summary failed", "error", err)
		}
	}

	s.send(protocol.ServerAssignmentReady{Type: "assignment_ready", Summary: summary})
	logger.Info("assignment summarized", "filename", msg.Filename, "pages", len(pages))
	s.maybeGreet()
}

// maybeGreet starts the tutor's opening turn once both prerequisites have
// arrived: a course summary from the assignment upload and a compliment
// from an ambient reading. It fires at most once per session.
func (s *Session) maybeGreet() {
	s.mu.Lock()
	if s.greeted || s.state.CourseSummary() == "" || !s.state.HasCompliment() {
		s.mu.Unlock()
		return
	}
	compliment, ok := s.state.TakeCompliment()
	if !ok {
		s.mu.Unlock()
		return
	}
	s.greeted = true
	s.mu.Unlock()

	s.coord.Greet(s.state.CourseSummary(), compliment)
}

// send enqueues a JSON frame for the writer. It returns false when the
// session is shutting down.
func (s *Session) send(v any) bool {
	return s.enqueue(s.normal, v)
}

func (s *Session) sendPriority(v any) bool {
	return s.enqueue(s.priority, v)
}

func (s *Session) enqueue(ch chan<- []byte, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("marshaling outbound frame failed", "error", err)
		return false
	}
	select {
	case ch <- data:
		return true
	case <-s.sctx.Done():
		return false
	}
}

func (s *Session) writeDirect(ws *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_ = ws.WriteMessage(websocket.TextMessage, data)
}

func decodeCode(err error) string {
	var de *protocol.DecodeError
	if errors.As(err, &de) {
		return de.Code
	}
	return "bad_request"
}

func decodeParam(err error) string {
	var de *protocol.DecodeError
	if errors.As(err, &de) {
		return de.Param
	}
	return ""
}

func newSessionID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "sess_" + hex.EncodeToString([]byte(time.Now().Format("150405.000")))
	}
	return "sess_" + hex.EncodeToString(buf)
}
