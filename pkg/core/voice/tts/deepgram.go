package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	deepgramDefaultBaseURL = "https://api.deepgram.com"

	// DefaultVoice is warm, clear, and friendly; a good fit for tutoring.
	DefaultVoice = "aura-asteria-en"

	// DefaultSpeed is slightly faster than natural, which keeps the tutor
	// from dragging during longer explanations.
	DefaultSpeed = 1.2

	// DefaultSampleRate matches the linear16 playback path end to end.
	DefaultSampleRate = 24000
)

// DeepgramProvider synthesizes speech with the Deepgram Aura speak API.
type DeepgramProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewDeepgram creates a Deepgram TTS provider.
func NewDeepgram(apiKey string) *DeepgramProvider {
	return &DeepgramProvider{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    deepgramDefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewDeepgramWithClient creates a provider with a custom HTTP client.
func NewDeepgramWithClient(apiKey string, client *http.Client) *DeepgramProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &DeepgramProvider{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    deepgramDefaultBaseURL,
		httpClient: client,
	}
}

// WithBaseURL overrides the API endpoint.
func (d *DeepgramProvider) WithBaseURL(base string) *DeepgramProvider {
	base = strings.TrimSpace(base)
	if base != "" {
		d.baseURL = strings.TrimSuffix(base, "/")
	}
	return d
}

// Name returns the provider identifier.
func (d *DeepgramProvider) Name() string {
	return "deepgram"
}

// Configured reports whether an API key is present.
func (d *DeepgramProvider) Configured() bool {
	return d.apiKey != ""
}

// Synthesize converts text to linear16 PCM. ErrUnavailable is returned
// when no API key is configured or the upstream rejects the request, so
// callers can fall back to on-device speech.
func (d *DeepgramProvider) Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error) {
	if !d.Configured() {
		return nil, ErrUnavailable
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("tts: no text provided")
	}

	voice := opts.Voice
	if voice == "" {
		voice = DefaultVoice
	}
	speed := opts.Speed
	if speed == 0 {
		speed = DefaultSpeed
	}
	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = DefaultSampleRate
	}

	q := url.Values{}
	q.Set("model", voice)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sampleRate))
	q.Set("speed", strconv.FormatFloat(speed, 'f', -1, 64))

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("tts: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/v1/speak?"+q.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts: create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: deepgram returned %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts: read audio: %w", err)
	}
	return &Synthesis{Audio: audio, SampleRate: sampleRate}, nil
}
