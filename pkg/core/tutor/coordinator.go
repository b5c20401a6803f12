package tutor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
)

// CoordinatorState is the coordinator's turn-taking state.
type CoordinatorState int

const (
	// CoordIdle means no chat request is in flight.
	CoordIdle CoordinatorState = iota
	// CoordAwaitingReply means a chat request has been issued and its
	// reply has not yet been appended.
	CoordAwaitingReply
)

// String returns a human-readable state name.
func (s CoordinatorState) String() string {
	switch s {
	case CoordIdle:
		return "IDLE"
	case CoordAwaitingReply:
		return "AWAITING_REPLY"
	default:
		return "UNKNOWN"
	}
}

type coordEventKind int

const (
	evUserSpeech coordEventKind = iota
	evWorkAnalysis
	evCheckIn
	evGreet
)

type coordEvent struct {
	kind       coordEventKind
	text       string
	work       types.WorkAnalysisResult
	summary    string
	compliment string
}

// CoordinatorDeps bundles the coordinator's collaborators. Chat, Queue and
// State are required; Recorder and OnTurn are optional.
type CoordinatorDeps struct {
	Chat     ChatClient
	Queue    *SpeechQueue
	State    *SessionState
	Recorder TurnRecorder
	Logger   *slog.Logger

	// OnTurn is invoked for every turn that should be shown to the user.
	// Synthetic context turns (work-analysis summaries, the greeting seed)
	// are appended to history but not surfaced here.
	OnTurn func(types.ConversationTurn)
}

// Coordinator arbitrates between the session's turn sources: finalized
// user speech, newly available work-analysis results, and silence
// check-ins. Every source funnels into one event loop, so chat requests
// are serialized — at most one in flight, each built from a snapshot of
// history taken at request-issue time, with the reply appended before the
// next request is built. Replies therefore land in request-issue order.
//
// Speech onset is the exception: it bypasses the loop and cancels speech
// playback immediately, from any state.
type Coordinator struct {
	chat     ChatClient
	queue    *SpeechQueue
	state    *SessionState
	recorder TurnRecorder
	logger   *slog.Logger
	onTurn   func(types.ConversationTurn)

	events chan coordEvent

	mu         sync.Mutex
	cstate     CoordinatorState
	lastWorkTS int64 // unix nanos of the last consumed work analysis
}

// NewCoordinator creates a coordinator.
func NewCoordinator(deps CoordinatorDeps) (*Coordinator, error) {
	if deps.Chat == nil {
		return nil, fmt.Errorf("chat client is required")
	}
	if deps.Queue == nil {
		return nil, fmt.Errorf("speech queue is required")
	}
	if deps.State == nil {
		return nil, fmt.Errorf("session state is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Coordinator{
		chat:     deps.Chat,
		queue:    deps.Queue,
		state:    deps.State,
		recorder: deps.Recorder,
		logger:   deps.Logger,
		onTurn:   deps.OnTurn,
		events:   make(chan coordEvent, 32),
		cstate:   CoordIdle,
	}, nil
}

// Run processes turn events until ctx is cancelled. It must be running for
// any trigger to take effect.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			c.dispatch(ctx, ev)
		}
	}
}

// State returns the current turn-taking state.
func (c *Coordinator) State() CoordinatorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cstate
}

// UserSpeechDetected reports speech onset (not yet finalized). It cancels
// all pending and in-flight speech playback immediately and is allowed in
// any state: a reply still in flight will be enqueued when it arrives, but
// playback of anything earlier is discarded.
func (c *Coordinator) UserSpeechDetected() {
	c.queue.CancelAll()
	c.state.MarkActivity()
}

// UserSpeechFinalized submits a finalized utterance as a user turn.
func (c *Coordinator) UserSpeechFinalized(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	c.state.MarkActivity()
	c.post(coordEvent{kind: evUserSpeech, text: text})
}

// OfferWorkAnalysis submits a work-analysis result for consumption. A
// result whose timestamp is not newer than the last consumed one is
// ignored, so each result takes effect at most once.
func (c *Coordinator) OfferWorkAnalysis(result types.WorkAnalysisResult) {
	c.post(coordEvent{kind: evWorkAnalysis, work: result})
}

// CheckIn requests a proactive check-in line. No chat round trip is made;
// the line is generated locally from the current emotion, appended as an
// assistant turn, and spoken.
func (c *Coordinator) CheckIn() {
	c.post(coordEvent{kind: evCheckIn})
}

// Greet issues the opening greeting once the assignment summary and the
// first ambient compliment are both available.
func (c *Coordinator) Greet(summary, compliment string) {
	c.post(coordEvent{kind: evGreet, summary: summary, compliment: compliment})
}

func (c *Coordinator) post(ev coordEvent) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn("turn event dropped, coordinator backlog full", "kind", ev.kind)
	}
}

func (c *Coordinator) dispatch(ctx context.Context, ev coordEvent) {
	switch ev.kind {
	case evUserSpeech:
		c.handleUserSpeech(ctx, ev.text)
	case evWorkAnalysis:
		c.handleWorkAnalysis(ctx, ev.work)
	case evCheckIn:
		c.handleCheckIn()
	case evGreet:
		c.handleGreet(ctx, ev.summary, ev.compliment)
	}
}

func (c *Coordinator) handleUserSpeech(ctx context.Context, text string) {
	userTurn := types.ConversationTurn{Role: types.RoleUser, Content: text}
	if ref, ok := c.state.Highlighted(); ok {
		userTurn.AttachedImage = ref
	}
	c.state.AppendTurn(userTurn)
	c.emitTurn(ctx, userTurn)

	reply, err := c.requestReply(ctx, c.state.Snapshot())
	if err != nil {
		c.logger.Warn("chat request failed, no turn appended", "error", err)
		return
	}
	c.appendAssistant(ctx, reply)
	c.queue.Enqueue(reply)
}

func (c *Coordinator) handleWorkAnalysis(ctx context.Context, result types.WorkAnalysisResult) {
	ts := result.Timestamp.UnixNano()
	c.mu.Lock()
	if ts <= c.lastWorkTS {
		c.mu.Unlock()
		c.logger.Debug("stale work analysis ignored", "timestamp", result.Timestamp)
		return
	}
	c.lastWorkTS = ts
	c.mu.Unlock()

	// The analysis rides along as a context turn: part of the request
	// history, never surfaced as a visible user utterance.
	contextTurn := types.ConversationTurn{
		Role:    types.RoleUser,
		Content: formatWorkContext(result.Analysis),
	}
	c.state.AppendTurn(contextTurn)

	reply, err := c.requestReply(ctx, c.state.Snapshot())
	if err != nil {
		c.logger.Warn("chat request for work analysis failed", "error", err)
		return
	}
	c.appendAssistant(ctx, reply)
	c.queue.Enqueue(reply)
}

func (c *Coordinator) handleCheckIn() {
	line := CheckInLine(c.state.Emotion())
	turn := types.ConversationTurn{Role: types.RoleAssistant, Content: line}
	c.state.AppendTurn(turn)
	c.emitTurn(context.Background(), turn)
	c.queue.Enqueue(line)
}

func (c *Coordinator) handleGreet(ctx context.Context, summary, compliment string) {
	prompt := fmt.Sprintf(
		`I just uploaded this document: %q. Start with a warm greeting that includes this compliment: %q. Then ask me what I'm working on right now. Keep it to 2-3 sentences total, friendly and natural.`,
		summary, compliment)

	seed := []types.ConversationTurn{{Role: types.RoleUser, Content: prompt}}
	reply, err := c.requestReply(ctx, seed)
	if err != nil {
		c.logger.Warn("greeting request failed", "error", err)
		return
	}

	c.state.AppendTurn(types.ConversationTurn{Role: types.RoleUser, Content: "Starting session"})
	c.appendAssistant(ctx, reply)
	c.queue.Enqueue(reply)
}

// requestReply issues one chat request from the given history snapshot.
// The reply corresponding to that exact snapshot is returned; state
// transitions bracket the round trip.
func (c *Coordinator) requestReply(ctx context.Context, turns []types.ConversationTurn) (string, error) {
	c.setState(CoordAwaitingReply)
	defer c.setState(CoordIdle)

	reply, err := c.chat.Chat(ctx, ChatRequest{
		Turns:         turns,
		Emotion:       c.state.Emotion(),
		CourseSummary: c.state.CourseSummary(),
	})
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("empty chat reply")
	}
	return reply, nil
}

func (c *Coordinator) appendAssistant(ctx context.Context, reply string) {
	turn := types.ConversationTurn{Role: types.RoleAssistant, Content: reply}
	c.state.AppendTurn(turn)
	c.emitTurn(ctx, turn)
}

func (c *Coordinator) emitTurn(ctx context.Context, turn types.ConversationTurn) {
	if c.onTurn != nil {
		c.onTurn(turn)
	}
	if c.recorder != nil {
		c.recorder.RecordTurn(ctx, c.state.SessionID(), turn, c.state.Emotion())
	}
}

func (c *Coordinator) setState(s CoordinatorState) {
	c.mu.Lock()
	c.cstate = s
	c.mu.Unlock()
}

// formatWorkContext renders a work analysis as the synthesized context the
// chat collaborator turns into a natural response.
func formatWorkContext(a types.WorkAnalysis) string {
	var b strings.Builder
	b.WriteString("[SHOW WORK ANALYSIS - Use this to inform your response, but speak naturally]\n")
	b.WriteString("Praise: " + a.Praise + "\n")
	b.WriteString("Observations: " + strings.Join(a.Observations, "; ") + "\n")
	b.WriteString("Questions to guide student: " + strings.Join(a.Questions, " ") + "\n\n")
	b.WriteString("Based on this analysis, respond naturally about what you see in their work. ")
	b.WriteString("Don't read the analysis verbatim - synthesize it into a warm, conversational response.")
	return b.String()
}
