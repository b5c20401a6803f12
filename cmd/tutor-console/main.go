// Command tutor-console is a terminal client for the live tutoring
// endpoint. It types where a browser would listen: each stdin line is sent
// as a finalized utterance, tutor replies print to stdout, and synthesized
// speech plays through the default output device. Slash commands cover the
// rest of the protocol (frames, highlights, show-work, assignment upload).
package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/studybuddy-ai/tutor-live/pkg/gateway/live/protocol"
)

type options struct {
	gateway            string
	sessionID          string
	intensity          string
	noAudio            bool
	mic                bool
	speechThresholdAbs int
	endpointSilenceMS  int
	debug              bool
}

var errQuit = errors.New("quit")

func main() {
	os.Exit(runMain())
}

func runMain() int {
	var opt options
	flag.StringVar(&opt.gateway, "gateway", "", "Gateway base URL (http(s)://host:port or ws(s)://...); required")
	flag.StringVar(&opt.sessionID, "session-id", "", "Resume an existing session ID (optional)")
	flag.StringVar(&opt.intensity, "intensity", "standard", "Support intensity: minimal, standard, or high")
	flag.BoolVar(&opt.noAudio, "no-audio", false, "Disable speaker playback; tutor speech prints as text only")
	flag.BoolVar(&opt.mic, "mic", false, "Monitor the microphone for speech onset (barge-in); utterance text is still typed")
	flag.IntVar(&opt.speechThresholdAbs, "speech-threshold-abs", 500, "PCM16 abs amplitude threshold to consider a mic frame speech")
	flag.IntVar(&opt.endpointSilenceMS, "endpoint-silence-ms", 700, "Mic silence duration (ms) before the next loud frame counts as a new onset")
	flag.BoolVar(&opt.debug, "debug", false, "Print raw frame types and emotion reasoning")
	flag.Parse()

	if strings.TrimSpace(opt.gateway) == "" {
		fmt.Fprintln(os.Stderr, "--gateway is required")
		return 2
	}
	if opt.speechThresholdAbs < 0 {
		fmt.Fprintln(os.Stderr, "--speech-threshold-abs must be >= 0")
		return 2
	}
	if opt.endpointSilenceMS < 0 {
		fmt.Fprintln(os.Stderr, "--endpoint-silence-ms must be >= 0")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wsURL, err := liveWSURL(opt.gateway)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid --gateway:", err)
		return 2
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial websocket:", err)
		return 1
	}
	defer conn.Close()

	var spk *speaker
	if !opt.noAudio {
		spk, err = newSpeaker(audioSampleRateHz)
		if err != nil {
			fmt.Fprintln(os.Stderr, "speaker unavailable, falling back to text:", err)
			spk = nil
		} else {
			defer spk.Close()
		}
	}

	var writeMu sync.Mutex
	sendJSON := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	hello := protocol.ClientHello{
		Type:            "hello",
		ProtocolVersion: protocol.ProtocolVersion1,
		Client: protocol.HelloClient{
			Name:     "tutor-console",
			Platform: runtime.GOOS,
		},
		SessionID: strings.TrimSpace(opt.sessionID),
		Intensity: strings.TrimSpace(opt.intensity),
		WantAudio: spk != nil,
	}
	if err := sendJSON(hello); err != nil {
		fmt.Fprintln(os.Stderr, "send hello:", err)
		return 1
	}

	if opt.mic {
		mic, err := newMicMonitor(opt.speechThresholdAbs, time.Duration(opt.endpointSilenceMS)*time.Millisecond, func() {
			if spk != nil {
				spk.Flush()
			}
			_ = sendJSON(protocol.ClientSpeechStart{Type: "speech_start"})
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "mic unavailable:", err)
		} else {
			defer mic.Close()
		}
	}

	fmt.Println("connected; type to talk, /help for commands")

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- readServerLoop(ctx, conn, spk, opt.debug)
	}()

	stdinErrCh := make(chan error, 1)
	go func() {
		stdinErrCh <- stdinLoop(sendJSON)
	}()

	select {
	case <-ctx.Done():
		_ = sendJSON(protocol.ClientControl{Type: "control", Op: "end_session"})
		return 0
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "server loop error:", err)
			return 1
		}
		return 0
	case err := <-stdinErrCh:
		_ = sendJSON(protocol.ClientControl{Type: "control", Op: "end_session"})
		if err != nil && !errors.Is(err, errQuit) {
			fmt.Fprintln(os.Stderr, "stdin error:", err)
			return 1
		}
		// Let the session acknowledge the close before tearing down.
		select {
		case <-serverErrCh:
		case <-time.After(2 * time.Second):
		}
		return 0
	}
}

func stdinLoop(sendJSON func(any) error) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/help" {
			printHelp()
			continue
		}
		msgs, err := messagesForLine(line)
		if errors.Is(err, errQuit) {
			return errQuit
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		for _, msg := range msgs {
			if err := sendJSON(msg); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errQuit
}

func printHelp() {
	fmt.Print(`commands:
  <text>                      speak to the tutor
  /frame ambient|work <path>  send a camera or worksheet frame
  /highlight <path>           set the highlighted work region
  /clear                      clear the highlight
  /show                       trigger show-your-work capture
  /hide | /visible            toggle student visibility
  /assignment <path> [path..] upload assignment pages
  /quit                       end the session
`)
}

// messagesForLine translates one stdin line into zero or more protocol
// messages. Plain text becomes a speech onset plus a finalized utterance,
// matching what a browser's speech recognizer would emit.
func messagesForLine(line string) ([]any, error) {
	if !strings.HasPrefix(line, "/") {
		return []any{
			protocol.ClientSpeechStart{Type: "speech_start"},
			protocol.ClientSpeechFinal{Type: "speech_final", Text: line},
		}, nil
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return nil, errQuit
	case "/show":
		return []any{protocol.ClientShowWork{Type: "show_work"}}, nil
	case "/clear":
		return []any{protocol.ClientHighlightClear{Type: "highlight_clear"}}, nil
	case "/hide":
		return []any{protocol.ClientVisibility{Type: "visibility", Visible: false}}, nil
	case "/visible":
		return []any{protocol.ClientVisibility{Type: "visibility", Visible: true}}, nil
	case "/highlight":
		if len(fields) != 2 {
			return nil, errors.New("usage: /highlight <path>")
		}
		img, err := imageDataURL(fields[1])
		if err != nil {
			return nil, err
		}
		return []any{protocol.ClientHighlightSet{Type: "highlight_set", Image: img}}, nil
	case "/frame":
		if len(fields) != 3 {
			return nil, errors.New("usage: /frame ambient|work <path>")
		}
		img, err := imageDataURL(fields[2])
		if err != nil {
			return nil, err
		}
		return []any{protocol.ClientFrame{Type: "frame", Kind: fields[1], Image: img}}, nil
	case "/assignment":
		if len(fields) < 2 {
			return nil, errors.New("usage: /assignment <path> [path...]")
		}
		pages := make([]string, 0, len(fields)-1)
		for _, path := range fields[1:] {
			img, err := imageDataURL(path)
			if err != nil {
				return nil, err
			}
			pages = append(pages, img)
		}
		return []any{protocol.ClientAssignment{
			Type:     "assignment",
			Filename: filepath.Base(fields[1]),
			Pages:    pages,
		}}, nil
	default:
		return nil, fmt.Errorf("unknown command %q (try /help)", fields[0])
	}
}

// imageDataURL reads an image file and encodes it as a data URL, inferring
// the media type from the file extension.
func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mediaType := "image/webp"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mediaType = "image/png"
	case ".jpg", ".jpeg":
		mediaType = "image/jpeg"
	case ".gif":
		mediaType = "image/gif"
	}
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func readServerLoop(ctx context.Context, conn *websocket.Conn, spk *speaker, debug bool) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			fmt.Fprintln(os.Stderr, "invalid server JSON:", err)
			continue
		}
		if debug {
			fmt.Fprintf(os.Stderr, "[frame] %s\n", env.Type)
		}

		switch env.Type {
		case "hello_ack":
			var ack protocol.ServerHelloAck
			if err := json.Unmarshal(data, &ack); err != nil {
				continue
			}
			fmt.Printf("[session] %s intensity=%s\n", ack.SessionID, ack.Intensity)
		case "turn":
			var turn protocol.ServerTurn
			if err := json.Unmarshal(data, &turn); err != nil {
				continue
			}
			// User turns echo what was just typed; only tutor turns are news.
			if turn.Role == "assistant" {
				fmt.Printf("[tutor] %s\n", turn.Content)
			}
		case "speak":
			var sp protocol.ServerSpeak
			if err := json.Unmarshal(data, &sp); err != nil {
				continue
			}
			if spk != nil && sp.AudioB64 != "" {
				pcm, err := base64.StdEncoding.DecodeString(sp.AudioB64)
				if err != nil {
					fmt.Fprintln(os.Stderr, "bad audio payload:", err)
					continue
				}
				spk.Write(pcm)
			} else {
				fmt.Printf("[tutor speaking] %s\n", sp.Text)
			}
		case "speak_cancel":
			if spk != nil {
				spk.Flush()
			}
			if debug {
				fmt.Fprintln(os.Stderr, "[speak] cancelled")
			}
		case "countdown":
			var cd protocol.ServerCountdown
			if err := json.Unmarshal(data, &cd); err != nil {
				continue
			}
			fmt.Printf("[capture] %d...\n", cd.Count)
		case "emotion":
			var em protocol.ServerEmotion
			if err := json.Unmarshal(data, &em); err != nil {
				continue
			}
			if debug {
				fmt.Fprintf(os.Stderr, "[emotion] %s %s\n", em.Emotion, em.Reasoning)
			}
		case "celebrate":
			fmt.Println("[celebrate] 🎉")
		case "work_analysis":
			var wa protocol.ServerWorkAnalysis
			if err := json.Unmarshal(data, &wa); err != nil {
				continue
			}
			fmt.Printf("[work] %s\n", wa.Praise)
			for _, obs := range wa.Observations {
				fmt.Printf("  - %s\n", obs)
			}
			for _, q := range wa.Questions {
				fmt.Printf("  ? %s\n", q)
			}
		case "assignment_ready":
			var ar protocol.ServerAssignmentReady
			if err := json.Unmarshal(data, &ar); err != nil {
				continue
			}
			fmt.Printf("[assignment] %s\n", ar.Summary)
		case "warning":
			var w protocol.ServerWarning
			if err := json.Unmarshal(data, &w); err != nil {
				continue
			}
			fmt.Fprintf(os.Stderr, "[warning] %s: %s\n", w.Code, w.Message)
		case "error":
			var se protocol.ServerError
			if err := json.Unmarshal(data, &se); err != nil {
				continue
			}
			fmt.Fprintf(os.Stderr, "[error] %s: %s\n", se.Code, se.Message)
			if se.Close {
				return fmt.Errorf("session closed by server: %s", se.Code)
			}
		}
	}
}

// liveWSURL converts an http(s) or ws(s) gateway base URL into the live
// websocket endpoint URL.
func liveWSURL(gateway string) (string, error) {
	raw := strings.TrimSpace(gateway)
	if raw == "" {
		return "", fmt.Errorf("empty gateway")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	// Preserve any base path, but always route to /v1/live.
	u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/live"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
