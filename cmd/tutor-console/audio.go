package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/gen2brain/malgo"
)

const (
	audioSampleRateHz = 24000
	audioChannels     = 1
)

// speaker plays raw 16-bit little-endian mono PCM through the default
// output device. Writes are buffered; oto pulls from the buffer via Read.
type speaker struct {
	otoCtx  *oto.Context
	player  *oto.Player
	buf     []byte
	mu      sync.Mutex
	cond    *sync.Cond
	playing bool
	closed  bool
}

func newSpeaker(sampleRateHz int) (*speaker, error) {
	if sampleRateHz <= 0 {
		sampleRateHz = audioSampleRateHz
	}
	opts := &oto.NewContextOptions{
		SampleRate:   sampleRateHz,
		ChannelCount: audioChannels,
		Format:       oto.FormatSignedInt16LE,
		// ~100ms at 24kHz mono 16-bit keeps latency low without glitching.
		BufferSize: sampleRateHz / 5,
	}
	otoCtx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	<-ready

	s := &speaker{
		otoCtx: otoCtx,
		buf:    make([]byte, 0, sampleRateHz*4),
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

func (s *speaker) Write(pcm []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = append(s.buf, pcm...)

	// Lazily start the player on first audio so a text-only session never
	// opens an output stream.
	if !s.playing && !s.closed {
		s.playing = true
		s.player = s.otoCtx.NewPlayer(s)
		s.player.Play()
	}
	s.cond.Signal()
}

// Read implements io.Reader for oto.Player.
func (s *speaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.closed && len(s.buf) == 0 {
		// Feed silence so oto drains gracefully.
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Flush drops all queued audio and stops the current player. Used when the
// session cancels an utterance mid-playback.
func (s *speaker) Flush() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	if s.player != nil && s.playing {
		s.playing = false
		player := s.player
		s.player = nil
		s.mu.Unlock()

		player.Pause()
		player.Reset()
		player.Close()
		return
	}
	s.mu.Unlock()
}

func (s *speaker) Close() {
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	if s.player != nil {
		s.player.Close()
	}
}

// micMonitor watches the default capture device for speech onset. The
// console has no speech-to-text, so the mic is used purely as a barge-in
// signal: an onset interrupts tutor playback, and the typed line remains
// the utterance text.
type micMonitor struct {
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	detector *speechDetector
	onOnset  func()

	mu sync.Mutex
}

func newMicMonitor(thresholdAbs int, endpointSilence time.Duration, onOnset func()) (*micMonitor, error) {
	cfg := malgo.ContextConfig{}
	cfg.ThreadPriority = malgo.ThreadPriorityRealtime

	malgoCtx, err := malgo.InitContext(nil, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	m := &micMonitor{
		malgoCtx: malgoCtx,
		detector: newSpeechDetector(thresholdAbs, endpointSilence),
		onOnset:  onOnset,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = audioChannels
	deviceConfig.SampleRate = audioSampleRateHz
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, samples []byte, _ uint32) {
			m.feed(samples)
		},
	}
	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		malgoCtx.Uninit()
		return nil, fmt.Errorf("init microphone: %w", err)
	}
	m.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		malgoCtx.Uninit()
		return nil, fmt.Errorf("start microphone: %w", err)
	}
	return m, nil
}

func (m *micMonitor) feed(samples []byte) {
	m.mu.Lock()
	onset := m.detector.Feed(pcm16Peak(samples), time.Now())
	m.mu.Unlock()
	if onset && m.onOnset != nil {
		m.onOnset()
	}
}

func (m *micMonitor) Close() {
	if m.device != nil {
		m.device.Stop()
		m.device.Uninit()
	}
	if m.malgoCtx != nil {
		m.malgoCtx.Uninit()
	}
}

// speechDetector is a small amplitude-gate state machine. Feed reports true
// exactly once per utterance, on the frame that crosses the threshold after
// a silent stretch.
type speechDetector struct {
	thresholdAbs int
	silenceAfter time.Duration

	speaking   bool
	lastSpeech time.Time
}

func newSpeechDetector(thresholdAbs int, silenceAfter time.Duration) *speechDetector {
	return &speechDetector{thresholdAbs: thresholdAbs, silenceAfter: silenceAfter}
}

func (d *speechDetector) Feed(peakAbs int, now time.Time) (onset bool) {
	if peakAbs >= d.thresholdAbs {
		if !d.speaking {
			d.speaking = true
			onset = true
		}
		d.lastSpeech = now
		return onset
	}
	if d.speaking && now.Sub(d.lastSpeech) >= d.silenceAfter {
		d.speaking = false
	}
	return false
}

// pcm16Peak returns the peak absolute amplitude of a 16-bit LE PCM buffer.
func pcm16Peak(p []byte) int {
	peak := 0
	for i := 0; i+1 < len(p); i += 2 {
		v := int(int16(uint16(p[i]) | uint16(p[i+1])<<8))
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}
