package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
)

// complimentFallbacks guarantees the icebreaker compliment is never empty,
// whatever the model returns.
var complimentFallbacks = []string{
	"love the focus",
	"great study setup",
	"looking ready to learn",
	"nice vibe",
	"ready to tackle this",
}

const emotionSystemPrompt = `You are analyzing a student's facial expression and body language from a webcam feed to determine their emotional state while studying.

Valid emotion labels:
- "focused": Alert, engaged, looking at work, concentrating
- "frustrated": Tense, furrowed brow, hand on head, sighing posture
- "confused": Puzzled expression, tilted head, uncertain look
- "breakthrough": Excited, smiling, sitting up, energetic
- "neutral": Calm, relaxed, no strong emotion visible

IMPORTANT: Always produce a short, warm, genuine compliment based on what you can observe (e.g., clothing color/style like "nice hoodie", "cool shirt", glasses, headphones, room lighting like "great setup", hair, or just general positivity like "looking ready to tackle this"). NEVER return an empty compliment - be creative and friendly. Keep it casual and encouraging (5-8 words max).

Respond with JSON ONLY:
{"emotion": "label", "reasoning": "brief explanation of what you observe", "compliment": "always include a short friendly phrase"}`

// ClassifyEmotion implements tutor.EmotionClassifier. It returns a usable
// neutral reading, never an error, for every failure mode except context
// cancellation; the ambient loop must stay on schedule regardless.
func (p *Provider) ClassifyEmotion(ctx context.Context, frame types.ImageRef) (types.EmotionReading, error) {
	neutral := func(reason string) types.EmotionReading {
		return types.EmotionReading{
			Emotion:    types.EmotionNeutral,
			Reasoning:  reason,
			Compliment: p.pick(complimentFallbacks),
		}
	}

	if frame.IsZero() {
		return neutral("No image provided"), nil
	}
	if !p.Configured() {
		return neutral("API key not configured"), nil
	}

	messages := []messageJSON{{
		Role: "user",
		Content: []contentBlock{
			imageBlock(frame),
			textBlock(`Analyze this student's emotional state and return JSON only: {"emotion": "label", "reasoning": "what you observe", "compliment": "REQUIRED short friendly phrase (5-8 words)"}`),
		},
	}}

	text, err := p.complete(ctx, emotionSystemPrompt, messages, 150, 0.2)
	if err != nil {
		if ctx.Err() != nil {
			return types.EmotionReading{}, ctx.Err()
		}
		return neutral("API call failed"), nil
	}

	var parsed struct {
		Emotion    string `json:"emotion"`
		Reasoning  string `json:"reasoning"`
		Compliment string `json:"compliment"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &parsed); err != nil {
		return neutral("Parse error"), nil
	}

	reading := types.EmotionReading{
		Emotion:    types.ParseEmotion(parsed.Emotion),
		Reasoning:  parsed.Reasoning,
		Compliment: strings.TrimSpace(parsed.Compliment),
	}
	if reading.Reasoning == "" {
		reading.Reasoning = "Unable to determine"
	}
	if reading.Compliment == "" {
		reading.Compliment = p.pick(complimentFallbacks)
	}
	return reading, nil
}

const workSystemWithProblem = `You are a warm, Socratic tutor analyzing a student's written work.

IMAGE 1: The problem they're solving (from their assignment)
IMAGE 2: Their handwritten work/attempt

Analyze what you can see and return ONLY valid JSON (no markdown, no extra text):
{
  "praise": "One encouraging thing they did well",
  "observations": ["Pattern or approach you notice", "Another observation"],
  "questions": ["Guiding question to help them think?", "Another Socratic question?"]
}

Be specific about what you see in their writing. If the image is unclear or you can't see written work, still provide helpful generic guidance based on the problem.`

const workSystemNoProblem = `You are analyzing a student's handwritten work (math, code, or diagrams).

Return ONLY valid JSON (no markdown):
{
  "praise": "Something positive about their effort",
  "observations": ["What you notice in their approach"],
  "questions": ["Guiding question to help them progress?"]
}

If the image is unclear, provide encouraging generic feedback.`

// AnalyzeWork implements tutor.WorkAnalyzer. The problem crop, when
// present, is sent ahead of the work frame so the model sees the problem
// first. Missing response fields are defaulted; the caller never sees
// empty praise or nil slices.
func (p *Provider) AnalyzeWork(ctx context.Context, work, problem types.ImageRef) (types.WorkAnalysis, error) {
	if work.IsZero() {
		return types.WorkAnalysis{}, fmt.Errorf("no work image provided")
	}
	if !p.Configured() {
		return types.WorkAnalysis{
			Praise:       "Great effort on working through this!",
			Observations: []string{"I can see you're working on this problem"},
			Questions:    []string{"What approach are you taking?", "What step are you working on right now?"},
		}, nil
	}

	var content []contentBlock
	system := workSystemNoProblem
	instruction := "Analyze the student's written work shown in the image. Return ONLY valid JSON with praise, observations array, and questions array. No markdown."
	if !problem.IsZero() {
		system = workSystemWithProblem
		instruction = "Analyze the student's written work shown in Image 2, in the context of the problem from Image 1. Return ONLY valid JSON with praise, observations, and questions. No markdown, no code blocks."
		content = append(content, imageBlock(problem))
	}
	content = append(content, imageBlock(work), textBlock(instruction))

	text, err := p.complete(ctx, system, []messageJSON{{Role: "user", Content: content}}, 600, 0.5)
	if err != nil {
		return types.WorkAnalysis{}, err
	}

	var parsed struct {
		Praise       string   `json:"praise"`
		Observations []string `json:"observations"`
		Questions    []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &parsed); err != nil {
		return types.WorkAnalysis{
			Praise:       "Keep working through it - you're making progress!",
			Observations: []string{"I can see your work on the problem"},
			Questions:    []string{"What approach are you considering?", "What's your next step?"},
		}, nil
	}

	analysis := types.WorkAnalysis{
		Praise:       parsed.Praise,
		Observations: parsed.Observations,
		Questions:    parsed.Questions,
	}
	if analysis.Praise == "" {
		analysis.Praise = "Great effort on working through this!"
	}
	if analysis.Observations == nil {
		analysis.Observations = []string{"I can see you're working on this problem"}
	}
	if analysis.Questions == nil {
		analysis.Questions = []string{"What approach are you taking?", "What step are you working on right now?"}
	}
	return analysis, nil
}

const summarizeSystemPrompt = "You analyze the first few pages of a course assignment/problem set. Return a 2-3 sentence summary covering: course/topic, assignment type, key concepts (e.g. recursion, dynamic programming), and any problem numbering/structure you notice. Keep it warm and helpful."

// maxAssignmentPages bounds how many rendered pages are sent for the
// course-context summary.
const maxAssignmentPages = 4

// SummarizeAssignment produces the course-context summary from rendered
// assignment pages. At most maxAssignmentPages images are sent.
func (p *Provider) SummarizeAssignment(ctx context.Context, pages []types.ImageRef) (string, error) {
	if len(pages) == 0 {
		return "", fmt.Errorf("no assignment pages provided")
	}
	if !p.Configured() {
		return "Looks like a course assignment or problem set.", nil
	}

	if len(pages) > maxAssignmentPages {
		pages = pages[:maxAssignmentPages]
	}
	content := make([]contentBlock, 0, len(pages)+1)
	for _, page := range pages {
		content = append(content, imageBlock(page))
	}
	content = append(content, textBlock("Provide a concise 2-3 sentence course-context summary covering the assignment topic, structure, and key problem areas."))

	text, err := p.complete(ctx, summarizeSystemPrompt, []messageJSON{{Role: "user", Content: content}}, 200, 0.3)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
