package tutor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/studybuddy-ai/tutor-live/pkg/core"
	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
)

// WorkCapture runs the explicit "show your work" flow: a short visible
// countdown, a frame capture, and a written-work analysis. It only stores
// the resulting WorkAnalysisResult; speaking about it is the coordinator's
// job, so all AI-generated speech funnels through one path.
type WorkCapture struct {
	cfg      Config
	analyzer WorkAnalyzer
	frames   FrameSource
	state    *SessionState
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool

	onCountdown func(n int)
	onResult    func(types.WorkAnalysisResult)
}

// NewWorkCapture creates a work-capture flow.
func NewWorkCapture(cfg Config, analyzer WorkAnalyzer, frames FrameSource, state *SessionState, logger *slog.Logger) *WorkCapture {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkCapture{
		cfg:      cfg,
		analyzer: analyzer,
		frames:   frames,
		state:    state,
		logger:   logger,
		now:      time.Now,
	}
}

// SetCallbacks sets the event callbacks. onCountdown fires once per
// remaining countdown step; onResult fires with the completed analysis.
func (w *WorkCapture) SetCallbacks(onCountdown func(n int), onResult func(types.WorkAnalysisResult)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onCountdown = onCountdown
	w.onResult = onResult
}

// Trigger starts the countdown-capture-analyze flow. It fails with an
// invalid-state error, making no network calls and changing no state, when
// no problem is highlighted or a capture is already in progress.
func (w *WorkCapture) Trigger(ctx context.Context) error {
	if _, ok := w.state.Highlighted(); !ok {
		return core.NewInvalidStateError("no problem highlighted; highlight one before showing your work")
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return core.NewInvalidStateError("work capture already in progress")
	}
	w.running = true
	w.mu.Unlock()

	go w.run(ctx)
	return nil
}

// Running reports whether a capture flow is in progress.
func (w *WorkCapture) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *WorkCapture) run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	w.mu.Lock()
	onCountdown, onResult := w.onCountdown, w.onResult
	w.mu.Unlock()

	for n := w.cfg.CountdownSteps; n > 0; n-- {
		if onCountdown != nil {
			onCountdown(n)
		}
		select {
		case <-time.After(w.cfg.CountdownTick):
		case <-ctx.Done():
			return
		}
	}

	frame, ok := w.frames.LatestFrame(FrameWork)
	if !ok {
		w.logger.Warn("work capture aborted, no frame available")
		return
	}
	problem, _ := w.state.Highlighted()

	analysis, err := w.analyzer.AnalyzeWork(ctx, frame, problem)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn("work analysis failed", "error", err)
		}
		return
	}

	w.state.MarkActivity()
	result := types.WorkAnalysisResult{
		Timestamp:     w.now(),
		Analysis:      analysis,
		CapturedImage: frame,
	}
	w.logger.Info("work analysis complete",
		"observations", len(analysis.Observations),
		"questions", len(analysis.Questions))

	if onResult != nil {
		onResult(result)
	}
}
