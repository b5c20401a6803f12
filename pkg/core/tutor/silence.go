package tutor

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// SilenceWatcher fires proactive check-ins when the student has been
// inactive for longer than the intensity-derived threshold. The timer uses
// the same jitter policy as ambient sampling, applied independently. A
// firing only produces a check-in when elapsed inactivity is at least 90%
// of the base threshold, so a jittered-early firing right after activity
// stays quiet.
type SilenceWatcher struct {
	cfg    Config
	state  *SessionState
	notify func()
	logger *slog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	running bool
	rng     *rand.Rand
}

// NewSilenceWatcher creates a watcher. notify is invoked on the watcher's
// timer goroutine whenever a check-in is due.
func NewSilenceWatcher(cfg Config, state *SessionState, notify func(), logger *slog.Logger) *SilenceWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &SilenceWatcher{
		cfg:    cfg,
		state:  state,
		notify: notify,
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start begins watching.
func (w *SilenceWatcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()
	w.schedule()
}

// Stop halts the watcher.
func (w *SilenceWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *SilenceWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	d := w.cfg.Jittered(w.cfg.SilenceThreshold(), w.rng)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(d, w.fire)
}

func (w *SilenceWatcher) fire() {
	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	if !running {
		return
	}

	threshold := w.cfg.SilenceThreshold()
	since := time.Since(w.state.LastActivity())
	if since >= threshold*9/10 {
		w.logger.Info("silence threshold exceeded, checking in", "inactive", since.Round(time.Second))
		w.notify()
	}
	w.schedule()
}
