package anthropic

import (
	"github.com/studybuddy-ai/tutor-live/pkg/core/types"
)

// anthropicRequest is the Messages API request format.
type anthropicRequest struct {
	Model       string        `json:"model"`
	Messages    []messageJSON `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Temperature float64       `json:"temperature"`
}

// messageJSON is the wire format for messages.
type messageJSON struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

// contentBlock is one text or image block inside a message.
type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

// imageSource is a base64 image payload.
type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

func textBlock(text string) contentBlock {
	return contentBlock{Type: "text", Text: text}
}

func imageBlock(ref types.ImageRef) contentBlock {
	return contentBlock{
		Type: "image",
		Source: &imageSource{
			Type:      "base64",
			MediaType: ref.MediaType(),
			Data:      ref.Base64Data(),
		},
	}
}

// buildChatMessages converts conversation turns into the wire format.
// Assistant turns are plain text; user turns carry their attached
// highlighted-problem crop, when present, ahead of the text.
func buildChatMessages(turns []types.ConversationTurn) []messageJSON {
	out := make([]messageJSON, 0, len(turns))
	for _, turn := range turns {
		if turn.Role == types.RoleAssistant {
			out = append(out, messageJSON{
				Role:    "assistant",
				Content: []contentBlock{textBlock(turn.Content)},
			})
			continue
		}
		var content []contentBlock
		if !turn.AttachedImage.IsZero() {
			content = append(content, imageBlock(turn.AttachedImage))
		}
		content = append(content, textBlock(turn.Content))
		out = append(out, messageJSON{Role: "user", Content: content})
	}
	return out
}
