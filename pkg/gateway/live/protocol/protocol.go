// Package protocol defines the JSON websocket protocol between the browser
// client and a live tutoring session.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const ProtocolVersion1 = "1"

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

type HelloClient struct {
	Name     string `json:"name,omitempty"`
	Version  string `json:"version,omitempty"`
	Platform string `json:"platform,omitempty"`
}

// ClientHello opens a session. Intensity selects how proactive the tutor's
// ambient sampling and silence check-ins are.
type ClientHello struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Client          HelloClient `json:"client,omitempty"`
	SessionID       string      `json:"session_id,omitempty"`
	Intensity       string      `json:"intensity,omitempty"`
	WantAudio       bool        `json:"want_audio,omitempty"`
}

// ClientSpeechStart marks user speech onset. The session interrupts any
// in-flight tutor playback on receipt.
type ClientSpeechStart struct {
	Type string `json:"type"`
}

// ClientSpeechFinal carries one finalized user utterance.
type ClientSpeechFinal struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ClientFrame pushes the latest webcam frame of a given kind. The session
// keeps only the most recent frame per kind.
type ClientFrame struct {
	Type  string `json:"type"`
	Kind  string `json:"kind"`
	Image string `json:"image"`
}

type ClientHighlightSet struct {
	Type  string `json:"type"`
	Image string `json:"image"`
}

type ClientHighlightClear struct {
	Type string `json:"type"`
}

type ClientVisibility struct {
	Type    string `json:"type"`
	Visible bool   `json:"visible"`
}

// ClientShowWork requests a countdown-then-capture work analysis of the
// currently highlighted problem.
type ClientShowWork struct {
	Type string `json:"type"`
}

// ClientAssignment uploads rendered assignment pages for summarization.
// The resulting summary seeds the tutor's greeting.
type ClientAssignment struct {
	Type     string   `json:"type"`
	Filename string   `json:"filename,omitempty"`
	Pages    []string `json:"pages"`
}

type ClientControl struct {
	Type string `json:"type"`
	Op   string `json:"op"`
}

// DecodeClientMessage parses and validates one client JSON frame.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "hello":
		var msg ClientHello
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid hello frame", "")
		}
		if err := ValidateHello(msg); err != nil {
			return nil, err
		}
		return msg, nil
	case "speech_start":
		var msg ClientSpeechStart
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid speech_start", "")
		}
		return msg, nil
	case "speech_final":
		var msg ClientSpeechFinal
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid speech_final", "")
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, badRequest("speech_final.text is required", "text")
		}
		return msg, nil
	case "frame":
		var msg ClientFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid frame", "")
		}
		switch strings.TrimSpace(msg.Kind) {
		case "ambient", "work":
		default:
			return nil, unsupported("unsupported frame kind", "kind")
		}
		if strings.TrimSpace(msg.Image) == "" {
			return nil, badRequest("frame.image is required", "image")
		}
		return msg, nil
	case "highlight_set":
		var msg ClientHighlightSet
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid highlight_set", "")
		}
		if strings.TrimSpace(msg.Image) == "" {
			return nil, badRequest("highlight_set.image is required", "image")
		}
		return msg, nil
	case "highlight_clear":
		var msg ClientHighlightClear
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid highlight_clear", "")
		}
		return msg, nil
	case "visibility":
		var msg ClientVisibility
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid visibility", "")
		}
		return msg, nil
	case "show_work":
		var msg ClientShowWork
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid show_work", "")
		}
		return msg, nil
	case "assignment":
		var msg ClientAssignment
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid assignment", "")
		}
		if len(msg.Pages) == 0 {
			return nil, badRequest("assignment.pages is required", "pages")
		}
		for i, page := range msg.Pages {
			if strings.TrimSpace(page) == "" {
				return nil, badRequest("assignment.pages entries must be non-empty", fmt.Sprintf("pages[%d]", i))
			}
		}
		return msg, nil
	case "control":
		var msg ClientControl
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid control", "")
		}
		op := strings.TrimSpace(msg.Op)
		if op == "" {
			return nil, badRequest("control.op is required", "op")
		}
		switch op {
		case "end_session":
		default:
			return nil, unsupported("unsupported control operation", "op")
		}
		msg.Op = op
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

// ValidateHello validates the opening frame.
func ValidateHello(msg ClientHello) error {
	if strings.TrimSpace(msg.ProtocolVersion) == "" {
		return badRequest("hello.protocol_version is required", "protocol_version")
	}
	if msg.ProtocolVersion != ProtocolVersion1 {
		return unsupported("unsupported protocol version", "protocol_version")
	}
	switch strings.TrimSpace(msg.Intensity) {
	case "", "minimal", "standard", "high":
	default:
		return unsupported("unsupported intensity", "intensity")
	}
	return nil
}

type HelloAckLimits struct {
	MaxJSONMessageBytes int64 `json:"max_json_message_bytes"`
	MaxSessionSeconds   int   `json:"max_session_seconds"`
}

type ServerHelloAck struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	SessionID       string          `json:"session_id"`
	Intensity       string          `json:"intensity"`
	Limits          *HelloAckLimits `json:"limits,omitempty"`
}

// ServerTurn mirrors one appended conversation turn to the client.
type ServerTurn struct {
	Type          string `json:"type"`
	Role          string `json:"role"`
	Content       string `json:"content"`
	AttachedImage string `json:"attached_image,omitempty"`
}

// ServerSpeak carries one utterance to play. AudioB64 holds 16-bit
// little-endian mono PCM when synthesis succeeded; when empty the client
// falls back to on-device speech for Text.
type ServerSpeak struct {
	Type         string `json:"type"`
	UtteranceID  string `json:"utterance_id"`
	Text         string `json:"text"`
	AudioB64     string `json:"audio_b64,omitempty"`
	SampleRateHz int    `json:"sample_rate_hz,omitempty"`
}

// ServerSpeakCancel tells the client to stop playback immediately.
type ServerSpeakCancel struct {
	Type        string `json:"type"`
	UtteranceID string `json:"utterance_id,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type ServerCountdown struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type ServerEmotion struct {
	Type      string `json:"type"`
	Emotion   string `json:"emotion"`
	Reasoning string `json:"reasoning,omitempty"`
}

type ServerCelebrate struct {
	Type string `json:"type"`
}

type ServerWorkAnalysis struct {
	Type          string   `json:"type"`
	Praise        string   `json:"praise"`
	Observations  []string `json:"observations"`
	Questions     []string `json:"questions"`
	CapturedImage string   `json:"captured_image,omitempty"`
}

type ServerAssignmentReady struct {
	Type    string `json:"type"`
	Summary string `json:"summary"`
}

type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param,omitempty"`
	Close   bool   `json:"close,omitempty"`
}

type ServerWarning struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
