package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the tutoring gateway.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Tutor metrics
	ChatTurnsTotal     *prometheus.CounterVec
	AmbientReadsTotal  *prometheus.CounterVec
	WorkCapturesTotal  *prometheus.CounterVec
	CheckInsTotal      prometheus.Counter
	SpeechSynthesized  *prometheus.CounterVec
	SpeechAudioSeconds prometheus.Counter

	// Live session metrics
	LiveSessionsActive  prometheus.Gauge
	LiveSessionsTotal   *prometheus.CounterVec
	LiveSessionDuration prometheus.Histogram

	// Error metrics
	ErrorsTotal *prometheus.CounterVec
}

// New creates a Metrics instance with all Prometheus metrics registered
// on a private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "studybuddy"
	}

	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"endpoint", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"endpoint"},
	)

	chatTurnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Total number of tutor chat turns",
		},
		[]string{"emotion", "outcome"},
	)

	ambientReadsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ambient_reads_total",
			Help:      "Total number of ambient emotion classifications",
		},
		[]string{"emotion"},
	)

	workCapturesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "work_captures_total",
			Help:      "Total number of show-work captures",
		},
		[]string{"outcome"},
	)

	checkInsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "check_ins_total",
			Help:      "Total number of silence check-ins spoken",
		},
	)

	speechSynthesized := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_synthesized_total",
			Help:      "Total number of speech synthesis attempts",
		},
		[]string{"outcome"},
	)

	speechAudioSeconds := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speech_audio_seconds_total",
			Help:      "Total seconds of synthesized speech audio",
		},
	)

	liveSessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions_active",
			Help:      "Number of active live tutoring sessions",
		},
	)

	liveSessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_sessions_total",
			Help:      "Total number of live tutoring sessions",
		},
		[]string{"status"},
	)

	liveSessionDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "live_session_duration_seconds",
			Help:      "Live session duration in seconds",
			Buckets:   []float64{10, 30, 60, 300, 600, 1800, 3600, 7200},
		},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	registry.MustRegister(
		requestsTotal,
		requestDuration,
		chatTurnsTotal,
		ambientReadsTotal,
		workCapturesTotal,
		checkInsTotal,
		speechSynthesized,
		speechAudioSeconds,
		liveSessionsActive,
		liveSessionsTotal,
		liveSessionDuration,
		errorsTotal,
	)

	return &Metrics{
		registry:            registry,
		RequestsTotal:       requestsTotal,
		RequestDuration:     requestDuration,
		ChatTurnsTotal:      chatTurnsTotal,
		AmbientReadsTotal:   ambientReadsTotal,
		WorkCapturesTotal:   workCapturesTotal,
		CheckInsTotal:       checkInsTotal,
		SpeechSynthesized:   speechSynthesized,
		SpeechAudioSeconds:  speechAudioSeconds,
		LiveSessionsActive:  liveSessionsActive,
		LiveSessionsTotal:   liveSessionsTotal,
		LiveSessionDuration: liveSessionDuration,
		ErrorsTotal:         errorsTotal,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records a completed HTTP request.
func (m *Metrics) RecordRequest(endpoint, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordChatTurn records a completed tutor chat turn.
func (m *Metrics) RecordChatTurn(emotion, outcome string) {
	if m == nil {
		return
	}
	m.ChatTurnsTotal.WithLabelValues(emotion, outcome).Inc()
}

// RecordAmbientRead records an ambient emotion classification.
func (m *Metrics) RecordAmbientRead(emotion string) {
	if m == nil {
		return
	}
	m.AmbientReadsTotal.WithLabelValues(emotion).Inc()
}

// RecordWorkCapture records a show-work capture attempt.
func (m *Metrics) RecordWorkCapture(outcome string) {
	if m == nil {
		return
	}
	m.WorkCapturesTotal.WithLabelValues(outcome).Inc()
}

// RecordCheckIn records a silence check-in being spoken.
func (m *Metrics) RecordCheckIn() {
	if m == nil {
		return
	}
	m.CheckInsTotal.Inc()
}

// RecordSpeech records a speech synthesis attempt and, on success,
// the seconds of audio produced.
func (m *Metrics) RecordSpeech(outcome string, audioSeconds float64) {
	if m == nil {
		return
	}
	m.SpeechSynthesized.WithLabelValues(outcome).Inc()
	if audioSeconds > 0 {
		m.SpeechAudioSeconds.Add(audioSeconds)
	}
}

// RecordLiveSessionStart records a new live session starting.
func (m *Metrics) RecordLiveSessionStart() {
	if m == nil {
		return
	}
	m.LiveSessionsActive.Inc()
}

// RecordLiveSessionEnd records a live session ending.
func (m *Metrics) RecordLiveSessionEnd(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.LiveSessionsActive.Dec()
	m.LiveSessionsTotal.WithLabelValues(status).Inc()
	m.LiveSessionDuration.Observe(duration.Seconds())
}

// RecordError records an error by component.
func (m *Metrics) RecordError(component, errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
