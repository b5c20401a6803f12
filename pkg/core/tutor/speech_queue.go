package tutor

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// SpeechSynthesizer converts text to playable PCM audio.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SpeechJob is one pending utterance.
type SpeechJob struct {
	Text string
}

// SpeechQueue serializes text-to-speech output so at most one utterance is
// producing audio at any instant. Enqueue is non-blocking; a single worker
// pops the head job, synthesizes, plays, and then attempts the next head.
// CancelAll clears the pending queue and halts in-flight playback through
// the job's cancellation context; a cancelled job never resumes.
//
// Synthesis failure is not retried: the queue falls back to the sink's
// on-device path, and a playback error simply frees the queue for the
// next job.
type SpeechQueue struct {
	synth  SpeechSynthesizer
	sink   AudioSink
	logger *slog.Logger

	mu             sync.Mutex
	pending        []SpeechJob
	busy           bool
	cancelInFlight context.CancelFunc
	closed         bool
}

// NewSpeechQueue creates a speech queue. synth may be nil, in which case
// every job uses the sink's on-device fallback.
func NewSpeechQueue(synth SpeechSynthesizer, sink AudioSink, logger *slog.Logger) *SpeechQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &SpeechQueue{
		synth:  synth,
		sink:   sink,
		logger: logger,
	}
}

// Enqueue appends an utterance to the queue and returns immediately.
func (q *SpeechQueue) Enqueue(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, SpeechJob{Text: text})
	n := len(q.pending)
	q.mu.Unlock()

	q.logger.Debug("speech job enqueued", "queue_len", n)
	q.kick()
}

// CancelAll clears all pending jobs and halts in-flight playback
// immediately. After it returns no job enqueued before the call will
// produce further audio.
func (q *SpeechQueue) CancelAll() {
	q.mu.Lock()
	cleared := len(q.pending)
	q.pending = nil
	cancel := q.cancelInFlight
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if cleared > 0 || cancel != nil {
		q.logger.Debug("speech queue cancelled", "cleared", cleared)
	}
}

// Close cancels everything and rejects future enqueues.
func (q *SpeechQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.CancelAll()
}

// Speaking reports whether a job is currently in flight.
func (q *SpeechQueue) Speaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

// PendingLen returns the number of jobs waiting behind the in-flight one.
func (q *SpeechQueue) PendingLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// kick starts the worker for the head job unless one is already in flight.
func (q *SpeechQueue) kick() {
	q.mu.Lock()
	if q.busy || q.closed || len(q.pending) == 0 {
		q.mu.Unlock()
		return
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	q.busy = true
	ctx, cancel := context.WithCancel(context.Background())
	q.cancelInFlight = cancel
	q.mu.Unlock()

	go q.run(ctx, cancel, job)
}

func (q *SpeechQueue) run(ctx context.Context, cancel context.CancelFunc, job SpeechJob) {
	q.play(ctx, job)
	cancel()

	q.mu.Lock()
	q.busy = false
	q.cancelInFlight = nil
	q.mu.Unlock()

	q.kick()
}

func (q *SpeechQueue) play(ctx context.Context, job SpeechJob) {
	if q.synth != nil {
		pcm, err := q.synth.Synthesize(ctx, job.Text)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			if playErr := q.sink.PlayAudio(ctx, job.Text, pcm); playErr != nil && ctx.Err() == nil {
				q.logger.Warn("speech playback failed", "error", playErr)
			}
			return
		}
		q.logger.Warn("speech synthesis failed, using on-device fallback", "error", err)
	}
	if err := q.sink.PlayText(ctx, job.Text); err != nil && ctx.Err() == nil {
		q.logger.Warn("fallback speech playback failed", "error", err)
	}
}
