package tutor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeSynth returns canned PCM or a configured error.
type fakeSynth struct {
	mu    sync.Mutex
	err   error
	delay time.Duration
	calls []string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	err := f.err
	delay := f.delay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []byte{1, 2, 3, 4}, nil
}

// fakeSink records played utterances; playback holds for playDur or until
// cancellation.
type fakeSink struct {
	mu       sync.Mutex
	playDur  time.Duration
	played   []string
	fallback []string
}

func (f *fakeSink) PlayAudio(ctx context.Context, text string, pcm []byte) error {
	f.mu.Lock()
	dur := f.playDur
	f.mu.Unlock()
	if dur > 0 {
		select {
		case <-time.After(dur):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.mu.Lock()
	f.played = append(f.played, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) PlayText(ctx context.Context, text string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.mu.Lock()
	f.fallback = append(f.fallback, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) playedSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.played))
	copy(out, f.played)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestSpeechQueue_PlaybackOrderMatchesEnqueueOrder(t *testing.T) {
	synth := &fakeSynth{}
	sink := &fakeSink{playDur: 10 * time.Millisecond}
	q := NewSpeechQueue(synth, sink, nil)

	q.Enqueue("first")
	q.Enqueue("second")
	q.Enqueue("third")

	waitFor(t, time.Second, func() bool { return len(sink.playedSnapshot()) == 3 })

	got := sink.playedSnapshot()
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("playback order mismatch at %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSpeechQueue_CancelAllClearsPendingAndHaltsInFlight(t *testing.T) {
	synth := &fakeSynth{}
	sink := &fakeSink{playDur: 200 * time.Millisecond}
	q := NewSpeechQueue(synth, sink, nil)

	q.Enqueue("in flight")
	q.Enqueue("pending one")
	q.Enqueue("pending two")

	waitFor(t, time.Second, func() bool { return q.Speaking() })
	q.CancelAll()

	waitFor(t, time.Second, func() bool { return !q.Speaking() })
	if got := q.PendingLen(); got != 0 {
		t.Fatalf("expected empty queue after CancelAll, got %d pending", got)
	}

	// Nothing enqueued before the cancel may play afterwards.
	time.Sleep(250 * time.Millisecond)
	if got := sink.playedSnapshot(); len(got) != 0 {
		t.Fatalf("expected no playback after cancel, got %v", got)
	}
}

func TestSpeechQueue_AcceptsNewJobsAfterCancel(t *testing.T) {
	synth := &fakeSynth{}
	sink := &fakeSink{}
	q := NewSpeechQueue(synth, sink, nil)

	q.Enqueue("old")
	q.CancelAll()
	q.Enqueue("new")

	waitFor(t, time.Second, func() bool {
		got := sink.playedSnapshot()
		return len(got) >= 1 && got[len(got)-1] == "new"
	})
}

func TestSpeechQueue_SynthesisFailureFallsBackToDevice(t *testing.T) {
	synth := &fakeSynth{err: errors.New("tts unavailable")}
	sink := &fakeSink{}
	q := NewSpeechQueue(synth, sink, nil)

	q.Enqueue("hello there")

	waitFor(t, time.Second, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.fallback) == 1
	})
	if got := sink.playedSnapshot(); len(got) != 0 {
		t.Fatalf("expected no synthesized playback, got %v", got)
	}
}

func TestSpeechQueue_NilSynthesizerUsesFallback(t *testing.T) {
	sink := &fakeSink{}
	q := NewSpeechQueue(nil, sink, nil)

	q.Enqueue("no synth configured")

	waitFor(t, time.Second, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.fallback) == 1
	})
}

func TestSpeechQueue_PlaybackFailureFreesQueue(t *testing.T) {
	synth := &fakeSynth{}
	sink := &failingSink{}
	q := NewSpeechQueue(synth, sink, nil)

	q.Enqueue("one")
	q.Enqueue("two")

	waitFor(t, time.Second, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return sink.attempts == 2
	})
	if q.Speaking() {
		t.Fatal("queue should be idle after playback failures")
	}
}

type failingSink struct {
	mu       sync.Mutex
	attempts int
}

func (f *failingSink) PlayAudio(ctx context.Context, text string, pcm []byte) error {
	f.mu.Lock()
	f.attempts++
	f.mu.Unlock()
	return errors.New("device busy")
}

func (f *failingSink) PlayText(ctx context.Context, text string) error {
	return errors.New("device busy")
}
