package tts

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func requireTCPListen(t testing.TB) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test: TCP listen not permitted in this environment: %v", err)
	}
	ln.Close()
}

func TestDeepgram_Synthesize(t *testing.T) {
	requireTCPListen(t)
	pcm := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0x04, 0x00}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/speak" {
			t.Errorf("path = %s, want /v1/speak", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("model") != DefaultVoice {
			t.Errorf("model = %q, want %q", q.Get("model"), DefaultVoice)
		}
		if q.Get("encoding") != "linear16" {
			t.Errorf("encoding = %q, want linear16", q.Get("encoding"))
		}
		if q.Get("sample_rate") != "24000" {
			t.Errorf("sample_rate = %q, want 24000", q.Get("sample_rate"))
		}
		if q.Get("speed") != "1.2" {
			t.Errorf("speed = %q, want 1.2", q.Get("speed"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"text":"hello there"}` {
			t.Errorf("body = %s", body)
		}
		w.Write(pcm)
	}))
	defer server.Close()

	p := NewDeepgram("test-key").WithBaseURL(server.URL)
	syn, err := p.Synthesize(context.Background(), "hello there", SynthesizeOptions{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(syn.Audio) != len(pcm) {
		t.Errorf("audio length = %d, want %d", len(syn.Audio), len(pcm))
	}
	if syn.SampleRate != DefaultSampleRate {
		t.Errorf("sample rate = %d, want %d", syn.SampleRate, DefaultSampleRate)
	}
}

func TestDeepgram_NoKeyIsUnavailable(t *testing.T) {
	p := NewDeepgram("")
	_, err := p.Synthesize(context.Background(), "hi", SynthesizeOptions{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestDeepgram_UpstreamErrorIsUnavailable(t *testing.T) {
	requireTCPListen(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte("insufficient credits"))
	}))
	defer server.Close()

	p := NewDeepgram("test-key").WithBaseURL(server.URL)
	_, err := p.Synthesize(context.Background(), "hi", SynthesizeOptions{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestDeepgram_RejectsEmptyText(t *testing.T) {
	p := NewDeepgram("test-key")
	if _, err := p.Synthesize(context.Background(), "   ", SynthesizeOptions{}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestSynthesis_DurationSeconds(t *testing.T) {
	syn := &Synthesis{Audio: make([]byte, 48000), SampleRate: 24000}
	if got := syn.DurationSeconds(); got != 1.0 {
		t.Errorf("duration = %v, want 1.0", got)
	}
	var nilSyn *Synthesis
	if got := nilSyn.DurationSeconds(); got != 0 {
		t.Errorf("nil duration = %v, want 0", got)
	}
}
