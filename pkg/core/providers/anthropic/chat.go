package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/studybuddy-ai/tutor-live/pkg/core/tutor"
	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
)

// emotionGuidance steers the tutor's opening depending on the student's
// most recent ambient reading. Neutral adds nothing.
var emotionGuidance = map[types.Emotion]string{
	types.EmotionFrustrated:   "IMPORTANT: The student is FRUSTRATED right now. Start your response by acknowledging their struggle warmly (e.g., 'I can see this is really challenging - that's completely normal with this material!' or 'This is tough, and it's okay to feel stuck!'). Then offer gentle encouragement and break things down into smaller steps.",
	types.EmotionConfused:     "IMPORTANT: The student is CONFUSED. Start by validating their confusion (e.g., 'This concept can be tricky at first' or 'It's totally normal to feel unclear here'). Then ask a clarifying question to understand what specifically is unclear.",
	types.EmotionBreakthrough: "IMPORTANT: The student is experiencing a BREAKTHROUGH moment! Celebrate their success enthusiastically (e.g., 'Yes! That's exactly it!' or 'You got it! Great insight!'). Reinforce what they did well.",
	types.EmotionFocused:      "The student is FOCUSED and engaged. Keep your response supportive but concise to maintain their flow.",
}

// FallbackLine is the deterministic reply used when the upstream model is
// unavailable. Frustrated students get a softer line.
func FallbackLine(emotion types.Emotion) string {
	if emotion == types.EmotionFrustrated {
		return "I can see this is getting tough. What are you trying to do with your current step?"
	}
	return "Got it. Tell me what you're thinking right now."
}

// Chat implements tutor.ChatClient. Upstream failures degrade to
// FallbackLine rather than erroring, so the conversation keeps moving;
// only context cancellation propagates as an error.
func (p *Provider) Chat(ctx context.Context, req tutor.ChatRequest) (string, error) {
	if !p.Configured() {
		return FallbackLine(req.Emotion), nil
	}

	hasCrop := false
	for _, turn := range req.Turns {
		if !turn.AttachedImage.IsZero() {
			hasCrop = true
			break
		}
	}

	text, err := p.complete(ctx, chatSystemPrompt(req.Emotion, req.CourseSummary, hasCrop), buildChatMessages(req.Turns), 400, 0.7)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return FallbackLine(req.Emotion), nil
	}
	if strings.TrimSpace(text) == "" {
		return FallbackLine(req.Emotion), nil
	}
	return text, nil
}

func chatSystemPrompt(emotion types.Emotion, courseSummary string, hasCrop bool) string {
	if emotion == "" {
		emotion = types.EmotionNeutral
	}
	if courseSummary == "" {
		courseSummary = "N/A"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a warm, Socratic tutor helping a student study. Student emotion: %s.\n", emotion)
	fmt.Fprintf(&b, "Course context: %s.\n\n", courseSummary)
	b.WriteString("Guidelines:\n")
	b.WriteString("- Ask guiding questions rather than giving direct answers\n")
	b.WriteString("- Be encouraging and patient\n")
	b.WriteString("- Reference the course context naturally when relevant\n")
	b.WriteString("- Keep responses conversational and brief (2-3 sentences usually)\n")
	if hasCrop {
		b.WriteString("- The student has highlighted a SPECIFIC PROBLEM from their assignment (shown in an image). Reference it naturally when helping them think through their approach.\n")
	}
	if guidance := emotionGuidance[emotion]; guidance != "" {
		b.WriteString("\n")
		b.WriteString(guidance)
	}
	return b.String()
}
