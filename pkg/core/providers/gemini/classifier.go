// Package gemini implements the ambient emotion classifier on the Gemini
// API. It is the alternate classifier backend; the response contract is
// identical to the Anthropic one, so the two are interchangeable behind
// tutor.EmotionClassifier.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
)

// DefaultModel is the vision-capable model used for classification.
const DefaultModel = "gemini-2.0-flash"

const classifySystemPrompt = `You are analyzing a student's facial expression and body language from a webcam feed to determine their emotional state while studying.

Valid emotion labels: "focused", "frustrated", "confused", "breakthrough", "neutral".

Always produce a short, warm, genuine compliment based on what you can observe. NEVER return an empty compliment. Keep it casual and encouraging (5-8 words max).

Respond with JSON ONLY:
{"emotion": "label", "reasoning": "brief explanation of what you observe", "compliment": "always include a short friendly phrase"}`

var complimentFallbacks = []string{
	"love the focus",
	"great study setup",
	"looking ready to learn",
	"nice vibe",
	"ready to tackle this",
}

// Classifier classifies webcam frames with Gemini.
type Classifier struct {
	client *genai.Client
	model  string

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithModel overrides the model identifier.
func WithModel(model string) Option {
	return func(c *Classifier) { c.model = model }
}

// New creates a classifier. The API key must be non-empty.
func New(ctx context.Context, apiKey string, opts ...Option) (*Classifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	c := &Classifier{
		client: client,
		model:  DefaultModel,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ClassifyEmotion implements tutor.EmotionClassifier. Failures other than
// context cancellation degrade to a neutral reading so the ambient loop
// stays on schedule.
func (c *Classifier) ClassifyEmotion(ctx context.Context, frame types.ImageRef) (types.EmotionReading, error) {
	neutral := func(reason string) types.EmotionReading {
		return types.EmotionReading{
			Emotion:    types.EmotionNeutral,
			Reasoning:  reason,
			Compliment: c.pick(complimentFallbacks),
		}
	}

	if frame.IsZero() {
		return neutral("No image provided"), nil
	}
	raw, err := base64.StdEncoding.DecodeString(frame.Base64Data())
	if err != nil {
		return neutral("Invalid image data"), nil
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(raw, frame.MediaType()),
			genai.NewPartFromText(`Analyze this student's emotional state and return JSON only: {"emotion": "label", "reasoning": "what you observe", "compliment": "REQUIRED short friendly phrase (5-8 words)"}`),
		}, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(classifySystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.2),
		MaxOutputTokens:   150,
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return types.EmotionReading{}, ctx.Err()
		}
		return neutral("API call failed"), nil
	}

	reading, ok := parseReading(resp.Text())
	if !ok {
		return neutral("Parse error"), nil
	}
	if reading.Compliment == "" {
		reading.Compliment = c.pick(complimentFallbacks)
	}
	return reading, nil
}

func (c *Classifier) pick(options []string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return options[c.rng.Intn(len(options))]
}

// parseReading decodes the model's JSON reply, tolerating a wrapping
// markdown fence.
func parseReading(text string) (types.EmotionReading, bool) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var parsed struct {
		Emotion    string `json:"emotion"`
		Reasoning  string `json:"reasoning"`
		Compliment string `json:"compliment"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return types.EmotionReading{}, false
	}

	reading := types.EmotionReading{
		Emotion:    types.ParseEmotion(parsed.Emotion),
		Reasoning:  parsed.Reasoning,
		Compliment: strings.TrimSpace(parsed.Compliment),
	}
	if reading.Reasoning == "" {
		reading.Reasoning = "Unable to determine"
	}
	return reading, true
}
