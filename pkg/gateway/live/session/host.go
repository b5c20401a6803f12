package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/studybuddy-ai/tutor-live/pkg/core/tutor"
	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
	"github.com/studybuddy-ai/tutor-live/pkg/core/voice/tts"
	"github.com/studybuddy-ai/tutor-live/pkg/gateway/live/protocol"
)

// frameCache holds the most recent webcam frame per kind. The browser
// pushes frames continuously; only the latest one matters.
type frameCache struct {
	mu     sync.Mutex
	frames map[tutor.FrameKind]types.ImageRef
}

func newFrameCache() *frameCache {
	return &frameCache{frames: make(map[tutor.FrameKind]types.ImageRef)}
}

func (c *frameCache) Put(kind tutor.FrameKind, ref types.ImageRef) {
	if ref.IsZero() {
		return
	}
	c.mu.Lock()
	c.frames[kind] = ref
	c.mu.Unlock()
}

func (c *frameCache) LatestFrame(kind tutor.FrameKind) (types.ImageRef, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ref, ok := c.frames[kind]
	return ref, ok && !ref.IsZero()
}

// ttsSynth adapts a tts.Provider to the speech queue's synthesizer
// interface, pinning the session's voice settings.
type ttsSynth struct {
	provider   tts.Provider
	voice      string
	speed      float64
	sampleRate int
}

func (s *ttsSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	syn, err := s.provider.Synthesize(ctx, text, tts.SynthesizeOptions{
		Voice:      s.voice,
		Speed:      s.speed,
		SampleRate: s.sampleRate,
	})
	if err != nil {
		return nil, err
	}
	return syn.Audio, nil
}

// wsSink plays tutor speech by shipping it to the browser and blocking for
// the estimated playback duration. Cancellation sends a priority stop frame
// so in-flight playback halts on the client too.
type wsSink struct {
	send         func(v any) bool
	sendPriority func(v any) bool
	sampleRate   int

	seq atomic.Int64
}

// playbackLead pads the wait so the sink does not release the queue before
// the client has drained its audio buffer.
const playbackLead = 200 * time.Millisecond

func (s *wsSink) PlayAudio(ctx context.Context, text string, pcm []byte) error {
	id := s.nextUtteranceID()
	if !s.send(protocol.ServerSpeak{
		Type:         "speak",
		UtteranceID:  id,
		Text:         text,
		AudioB64:     base64.StdEncoding.EncodeToString(pcm),
		SampleRateHz: s.sampleRate,
	}) {
		return context.Canceled
	}

	wait := pcmDuration(len(pcm), s.sampleRate) + playbackLead
	return s.await(ctx, id, wait)
}

func (s *wsSink) PlayText(ctx context.Context, text string) error {
	id := s.nextUtteranceID()
	if !s.send(protocol.ServerSpeak{
		Type:        "speak",
		UtteranceID: id,
		Text:        text,
	}) {
		return context.Canceled
	}
	return s.await(ctx, id, speechDuration(text))
}

func (s *wsSink) await(ctx context.Context, utteranceID string, wait time.Duration) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		s.sendPriority(protocol.ServerSpeakCancel{
			Type:        "speak_cancel",
			UtteranceID: utteranceID,
			Reason:      "interrupted",
		})
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *wsSink) nextUtteranceID() string {
	return fmt.Sprintf("utt_%d", s.seq.Add(1))
}

func pcmDuration(byteLen, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := byteLen / 2
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// speechDuration estimates how long on-device speech synthesis takes for
// the fallback path, at roughly conversational pace.
func speechDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	d := time.Duration(words) * 320 * time.Millisecond
	if d < time.Second {
		d = time.Second
	}
	return d
}
