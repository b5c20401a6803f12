package tutor

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
)

// AmbientSampler periodically captures a webcam frame and classifies the
// student's emotional state, writing the result into SessionState.
//
// Scheduling: each interval is the intensity's base interval multiplied by
// a uniform jitter factor. While the tab is hidden sampling pauses; on
// becoming visible again the schedule restarts with a fresh jittered
// interval instead of waiting out the remainder of the paused one.
//
// Failures degrade to a neutral reading with no retry; the loop stays on
// schedule regardless of individual failures.
type AmbientSampler struct {
	cfg        Config
	classifier EmotionClassifier
	frames     FrameSource
	state      *SessionState
	logger     *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	visible bool
	rng     *rand.Rand
	ctx     context.Context
	cancel  context.CancelFunc

	onReading     func(types.EmotionReading)
	onCelebration func()
}

// NewAmbientSampler creates a sampler. classifier and frames are required;
// the callbacks are optional.
func NewAmbientSampler(cfg Config, classifier EmotionClassifier, frames FrameSource, state *SessionState, logger *slog.Logger) *AmbientSampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AmbientSampler{
		cfg:        cfg,
		classifier: classifier,
		frames:     frames,
		state:      state,
		logger:     logger,
		visible:    true,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetCallbacks sets the event callbacks. onReading fires after every
// completed sample; onCelebration fires when a breakthrough is detected.
func (a *AmbientSampler) SetCallbacks(onReading func(types.EmotionReading), onCelebration func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onReading = onReading
	a.onCelebration = onCelebration
}

// Start begins the sampling schedule.
func (a *AmbientSampler) Start() {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.ctx, a.cancel = context.WithCancel(context.Background())
	a.mu.Unlock()
	a.schedule()
}

// Stop halts sampling permanently.
func (a *AmbientSampler) Stop() {
	a.mu.Lock()
	a.running = false
	if a.timer != nil {
		a.timer.Stop()
	}
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// SetVisible reports tab visibility. Hidden pauses the schedule; visible
// restarts it immediately with a fresh jittered interval.
func (a *AmbientSampler) SetVisible(visible bool) {
	a.mu.Lock()
	wasVisible := a.visible
	a.visible = visible
	if !visible && a.timer != nil {
		a.timer.Stop()
	}
	running := a.running
	a.mu.Unlock()

	if visible && !wasVisible && running {
		a.schedule()
	}
}

func (a *AmbientSampler) schedule() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running || !a.visible {
		return
	}
	d := a.cfg.Jittered(a.cfg.AmbientInterval(), a.rng)
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(d, a.fire)
}

func (a *AmbientSampler) fire() {
	a.mu.Lock()
	running, visible := a.running, a.visible
	ctx := a.ctx
	a.mu.Unlock()
	if !running {
		return
	}
	if visible {
		a.sample(ctx)
	}
	a.schedule()
}

func (a *AmbientSampler) sample(ctx context.Context) {
	frame, ok := a.frames.LatestFrame(FrameAmbient)
	if !ok {
		a.logger.Debug("ambient sample skipped, no frame available")
		return
	}

	reading, err := a.classifier.ClassifyEmotion(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		a.logger.Warn("emotion classification failed, treating as neutral", "error", err)
		reading = types.EmotionReading{Emotion: types.EmotionNeutral, Reasoning: "classification failed"}
	}
	if !reading.Emotion.Valid() {
		reading.Emotion = types.EmotionNeutral
	}

	a.state.SetEmotion(reading.Emotion)
	a.state.SetCompliment(reading.Compliment)
	a.logger.Info("ambient emotion sampled", "emotion", reading.Emotion)

	a.mu.Lock()
	onReading, onCelebration := a.onReading, a.onCelebration
	a.mu.Unlock()

	if onReading != nil {
		onReading(reading)
	}
	if reading.Emotion == types.EmotionBreakthrough && onCelebration != nil {
		onCelebration()
	}
}
