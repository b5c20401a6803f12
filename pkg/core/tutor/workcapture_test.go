package tutor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/studybuddy-ai/tutor-live/pkg/core"
	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
)

type fakeAnalyzer struct {
	mu       sync.Mutex
	analysis types.WorkAnalysis
	err      error
	work     types.ImageRef
	problem  types.ImageRef
	n        int
}

func (f *fakeAnalyzer) AnalyzeWork(ctx context.Context, work, problem types.ImageRef) (types.WorkAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	f.work = work
	f.problem = problem
	if f.err != nil {
		return types.WorkAnalysis{}, f.err
	}
	return f.analysis, nil
}

func (f *fakeAnalyzer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.n
}

func fastCaptureConfig() Config {
	cfg := DefaultConfig()
	cfg.CountdownTick = 10 * time.Millisecond
	return cfg
}

func TestWorkCapture_RequiresHighlightedProblem(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	w := NewWorkCapture(fastCaptureConfig(), analyzer, newFakeFrames(), NewSessionState("s"), nil)

	err := w.Trigger(context.Background())
	if err == nil {
		t.Fatal("expected invalid-state error without a highlighted problem")
	}
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrInvalidState {
		t.Fatalf("error = %v, want invalid_state", err)
	}
	if analyzer.calls() != 0 {
		t.Fatal("analyzer must not be called when the precondition fails")
	}
}

func TestWorkCapture_CountdownThenAnalysis(t *testing.T) {
	analyzer := &fakeAnalyzer{analysis: types.WorkAnalysis{
		Praise:       "clean factoring",
		Observations: []string{"sign error in step 2"},
		Questions:    []string{"what happens to the minus sign?"},
	}}
	state := NewSessionState("s")
	state.SetHighlighted("data:image/webp;base64,cHJvYmxlbQ==")
	w := NewWorkCapture(fastCaptureConfig(), analyzer, newFakeFrames(), state, nil)

	var mu sync.Mutex
	var ticks []int
	var results []types.WorkAnalysisResult
	w.SetCallbacks(func(n int) {
		mu.Lock()
		ticks = append(ticks, n)
		mu.Unlock()
	}, func(r types.WorkAnalysisResult) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	})

	if err := w.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if len(ticks) != 3 || ticks[0] != 3 || ticks[1] != 2 || ticks[2] != 1 {
		t.Fatalf("countdown ticks = %v, want [3 2 1]", ticks)
	}
	res := results[0]
	if res.Analysis.Praise != "clean factoring" {
		t.Fatalf("unexpected analysis: %+v", res.Analysis)
	}
	if res.Timestamp.IsZero() {
		t.Fatal("result must carry a capture timestamp")
	}
	if res.CapturedImage.IsZero() {
		t.Fatal("result must carry the captured frame")
	}

	analyzer.mu.Lock()
	problem := analyzer.problem
	analyzer.mu.Unlock()
	if problem.IsZero() {
		t.Fatal("highlighted problem must be passed to the analyzer")
	}
}

func TestWorkCapture_RejectsConcurrentTrigger(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	state := NewSessionState("s")
	state.SetHighlighted("data:image/webp;base64,cHJvYmxlbQ==")
	cfg := fastCaptureConfig()
	cfg.CountdownTick = 100 * time.Millisecond
	w := NewWorkCapture(cfg, analyzer, newFakeFrames(), state, nil)

	if err := w.Trigger(context.Background()); err != nil {
		t.Fatalf("first Trigger: %v", err)
	}
	if err := w.Trigger(context.Background()); err == nil {
		t.Fatal("second Trigger during countdown must fail")
	}
}

func TestWorkCapture_AnalyzerFailureProducesNoResult(t *testing.T) {
	analyzer := &fakeAnalyzer{err: errors.New("vision model down")}
	state := NewSessionState("s")
	state.SetHighlighted("data:image/webp;base64,cHJvYmxlbQ==")
	w := NewWorkCapture(fastCaptureConfig(), analyzer, newFakeFrames(), state, nil)

	var mu sync.Mutex
	results := 0
	w.SetCallbacks(nil, func(types.WorkAnalysisResult) {
		mu.Lock()
		results++
		mu.Unlock()
	})

	if err := w.Trigger(context.Background()); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	waitFor(t, time.Second, func() bool { return analyzer.calls() == 1 && !w.Running() })

	mu.Lock()
	defer mu.Unlock()
	if results != 0 {
		t.Fatalf("analyzer failure still produced %d results", results)
	}
}

func TestWorkCapture_CancelledContextAbortsCountdown(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	state := NewSessionState("s")
	state.SetHighlighted("data:image/webp;base64,cHJvYmxlbQ==")
	cfg := fastCaptureConfig()
	cfg.CountdownTick = 50 * time.Millisecond
	w := NewWorkCapture(cfg, analyzer, newFakeFrames(), state, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Trigger(ctx); err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	cancel()

	waitFor(t, time.Second, func() bool { return !w.Running() })
	if analyzer.calls() != 0 {
		t.Fatal("cancelled capture must not reach the analyzer")
	}
}
