package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studybuddy-ai/tutor-live/pkg/core/tutor"
	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/config"
)

type stubChat struct{ reply string }

func (c stubChat) Chat(ctx context.Context, req tutor.ChatRequest) (string, error) {
	return c.reply, nil
}

type stubClassifier struct{}

func (stubClassifier) ClassifyEmotion(ctx context.Context, frame types.ImageRef) (types.EmotionReading, error) {
	return types.EmotionReading{Emotion: types.EmotionFocused, Reasoning: "test", Compliment: "nice"}, nil
}

type stubAnalyzer struct{}

func (stubAnalyzer) AnalyzeWork(ctx context.Context, work, problem types.ImageRef) (types.WorkAnalysis, error) {
	return types.WorkAnalysis{Praise: "good"}, nil
}

type stubSummarizer struct{}

func (stubSummarizer) SummarizeAssignment(ctx context.Context, pages []types.ImageRef) (string, error) {
	return "Algebra homework covering linear equations", nil
}

func testConfig() config.Config {
	return config.Config{
		Addr:                 ":0",
		AnthropicAPIKey:      "test-key",
		EmotionBackend:       config.EmotionBackendAnthropic,
		DefaultIntensity:     types.IntensityStandard,
		TTSSpeed:             1.2,
		MaxBodyBytes:         1 << 20,
		LiveMaxMessageBytes:  1 << 20,
		LiveWSPingInterval:   20 * time.Second,
		LiveWSWriteTimeout:   5 * time.Second,
		LiveHandshakeTimeout: 5 * time.Second,
		LiveMaxSessionTime:   time.Hour,
		ReadHeaderTimeout:    10 * time.Second,
		ReadTimeout:          time.Minute,
		HandlerTimeout:       time.Minute,
		CORSAllowedOrigins:   map[string]struct{}{"http://localhost:3000": {}},
	}
}

func newTestServer(t *testing.T) http.Handler {
	return newTestServerInstance(t).Handler()
}

func newTestServerInstance(t *testing.T) *Server {
	t.Helper()
	return New(testConfig(), Providers{
		Chat:       stubChat{reply: "let's work through it"},
		Classifier: stubClassifier{},
		Analyzer:   stubAnalyzer{},
		Summarizer: stubSummarizer{},
	}, nil, slog.New(slog.NewTextHandler(testLogWriter{t}, nil)))
}

type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func TestServer_Health(t *testing.T) {
	h := newTestServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestServer_Ready(t *testing.T) {
	h := newTestServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		OK             bool   `json:"ok"`
		EmotionBackend string `json:"emotion_backend"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.OK || resp.EmotionBackend != "anthropic" {
		t.Errorf("unexpected ready response: %+v", resp)
	}
}

func TestServer_NotFoundJSON(t *testing.T) {
	h := newTestServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var envelope struct {
		Error struct {
			Type      string `json:"type"`
			RequestID string `json:"request_id"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Error.Type != "not_found_error" {
		t.Errorf("error type = %q", envelope.Error.Type)
	}
	if envelope.Error.RequestID == "" {
		t.Error("not-found error missing request id")
	}
}

func TestServer_ChatRoute(t *testing.T) {
	h := newTestServer(t)
	body := `{"turns":[{"role":"user","content":"help me factor this"}],"emotion":"confused"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Reply   string `json:"reply"`
		Emotion string `json:"emotion"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Reply != "let's work through it" || resp.Emotion != "confused" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestServer_ChatRejectsEmptyTurns(t *testing.T) {
	h := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"turns":[]}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestServer_AmbientRoute(t *testing.T) {
	h := newTestServer(t)
	body := `{"frame":"data:image/webp;base64,aGVsbG8="}`
	req := httptest.NewRequest(http.MethodPost, "/v1/vision/ambient", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var reading types.EmotionReading
	if err := json.Unmarshal(rec.Body.Bytes(), &reading); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if reading.Emotion != types.EmotionFocused {
		t.Errorf("emotion = %q, want focused", reading.Emotion)
	}
}

func TestServer_AssignmentRoute(t *testing.T) {
	h := newTestServer(t)
	body := `{"pages":["data:image/png;base64,cGFnZQ=="],"filename":"hw.pdf"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/assignment/analyze", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Algebra homework") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestServer_SpeakRouteAbsentWithoutTTS(t *testing.T) {
	h := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/tts/speak", strings.NewReader(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when TTS is not configured", rec.Code)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	h := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

func TestServer_MetricsExposed(t *testing.T) {
	h := newTestServer(t)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestServer_RequestMetricsRecorded(t *testing.T) {
	h := newTestServer(t)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `studybuddy_requests_total{endpoint="/healthz",status="200"} 1`) {
		t.Errorf("request counter missing from exposition:\n%s", rec.Body.String())
	}
}

func TestServer_LiveShutdownWarningReachesClient(t *testing.T) {
	srv := newTestServerInstance(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	hello := `{"type":"hello","protocol_version":"1"}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(hello)); err != nil {
		t.Fatalf("write hello: %v", err)
	}

	readFrame := func(wantType string) map[string]any {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		_ = conn.SetReadDeadline(deadline)
		for time.Now().Before(deadline) {
			_, data, err := conn.ReadMessage()
			if err != nil {
				t.Fatalf("read while waiting for %q: %v", wantType, err)
			}
			var msg map[string]any
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("bad frame %q: %v", data, err)
			}
			if msg["type"] == wantType {
				return msg
			}
		}
		t.Fatalf("no %q frame received", wantType)
		return nil
	}

	readFrame("hello_ack")

	if n := srv.LiveSessions().Count(); n != 1 {
		t.Fatalf("tracked sessions = %d, want 1", n)
	}
	if sent := srv.LiveSessions().WarnAll("shutdown", "server is shutting down"); sent != 1 {
		t.Fatalf("WarnAll sent = %d, want 1", sent)
	}

	msg := readFrame("warning")
	if msg["code"] != "shutdown" {
		t.Errorf("code = %v, want shutdown", msg["code"])
	}
}
