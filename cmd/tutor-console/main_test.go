package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/studybuddy-ai/tutor-live/pkg/gateway/live/protocol"
)

func TestLiveWSURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/v1/live"},
		{"https://tutor.example.com", "wss://tutor.example.com/v1/live"},
		{"ws://localhost:8080", "ws://localhost:8080/v1/live"},
		{"localhost:8080", "ws://localhost:8080/v1/live"},
		{"https://tutor.example.com/base/", "wss://tutor.example.com/base/v1/live"},
		{"http://localhost:8080?x=1", "ws://localhost:8080/v1/live"},
	}
	for _, tc := range cases {
		got, err := liveWSURL(tc.in)
		if err != nil {
			t.Fatalf("liveWSURL(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("liveWSURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLiveWSURL_RejectsBadScheme(t *testing.T) {
	if _, err := liveWSURL("ftp://example.com"); err == nil {
		t.Fatal("expected error for ftp scheme")
	}
	if _, err := liveWSURL("  "); err == nil {
		t.Fatal("expected error for empty gateway")
	}
}

func TestMessagesForLine_PlainText(t *testing.T) {
	msgs, err := messagesForLine("what is a fraction?")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if _, ok := msgs[0].(protocol.ClientSpeechStart); !ok {
		t.Fatalf("first message = %T, want ClientSpeechStart", msgs[0])
	}
	final, ok := msgs[1].(protocol.ClientSpeechFinal)
	if !ok {
		t.Fatalf("second message = %T, want ClientSpeechFinal", msgs[1])
	}
	if final.Text != "what is a fraction?" {
		t.Errorf("text = %q", final.Text)
	}
}

func TestMessagesForLine_Commands(t *testing.T) {
	msgs, err := messagesForLine("/show")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := msgs[0].(protocol.ClientShowWork); !ok {
		t.Fatalf("got %T, want ClientShowWork", msgs[0])
	}

	msgs, err = messagesForLine("/hide")
	if err != nil {
		t.Fatal(err)
	}
	if vis := msgs[0].(protocol.ClientVisibility); vis.Visible {
		t.Error("expected visible=false")
	}

	if _, err := messagesForLine("/quit"); !errors.Is(err, errQuit) {
		t.Fatalf("expected errQuit, got %v", err)
	}
	if _, err := messagesForLine("/bogus"); err == nil {
		t.Fatal("expected error for unknown command")
	}
	if _, err := messagesForLine("/frame ambient"); err == nil {
		t.Fatal("expected usage error for /frame with missing path")
	}
}

func TestMessagesForLine_Assignment(t *testing.T) {
	dir := t.TempDir()
	page := filepath.Join(dir, "worksheet.png")
	if err := os.WriteFile(page, []byte("fake image"), 0o644); err != nil {
		t.Fatal(err)
	}

	msgs, err := messagesForLine("/assignment " + page)
	if err != nil {
		t.Fatal(err)
	}
	asn, ok := msgs[0].(protocol.ClientAssignment)
	if !ok {
		t.Fatalf("got %T, want ClientAssignment", msgs[0])
	}
	if asn.Filename != "worksheet.png" {
		t.Errorf("filename = %q", asn.Filename)
	}
	if len(asn.Pages) != 1 || !strings.HasPrefix(asn.Pages[0], "data:image/png;base64,") {
		t.Errorf("pages = %v", asn.Pages)
	}
}

func TestImageDataURL_MediaTypes(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"a.png":  "data:image/png;base64,",
		"b.JPG":  "data:image/jpeg;base64,",
		"c.webp": "data:image/webp;base64,",
		"d.bin":  "data:image/webp;base64,",
	}
	for name, wantPrefix := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte{1, 2, 3}, 0o644); err != nil {
			t.Fatal(err)
		}
		got, err := imageDataURL(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(got, wantPrefix) {
			t.Errorf("%s: got %q, want prefix %q", name, got, wantPrefix)
		}
	}

	if _, err := imageDataURL(filepath.Join(dir, "missing.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSpeechDetector_OnsetOncePerUtterance(t *testing.T) {
	d := newSpeechDetector(500, 700*time.Millisecond)
	now := time.Now()

	if d.Feed(100, now) {
		t.Fatal("quiet frame should not trigger onset")
	}
	if !d.Feed(900, now) {
		t.Fatal("loud frame should trigger onset")
	}
	if d.Feed(900, now.Add(100*time.Millisecond)) {
		t.Fatal("continued speech should not re-trigger onset")
	}
	// Short pause below the endpoint threshold keeps the utterance open.
	if d.Feed(100, now.Add(300*time.Millisecond)) {
		t.Fatal("brief quiet frame should not trigger onset")
	}
	if d.Feed(900, now.Add(400*time.Millisecond)) {
		t.Fatal("speech after a brief pause is the same utterance")
	}
	// After a full silence window, the next loud frame is a new onset.
	if d.Feed(100, now.Add(1200*time.Millisecond)) {
		t.Fatal("silence should not trigger onset")
	}
	if !d.Feed(900, now.Add(1300*time.Millisecond)) {
		t.Fatal("speech after the silence window should trigger a new onset")
	}
}

func TestPCM16Peak(t *testing.T) {
	if got := pcm16Peak(nil); got != 0 {
		t.Errorf("empty buffer peak = %d", got)
	}
	// Samples: 100, -3000, 50 (little endian).
	buf := []byte{
		0x64, 0x00,
		0x48, 0xf4,
		0x32, 0x00,
	}
	if got := pcm16Peak(buf); got != 3000 {
		t.Errorf("peak = %d, want 3000", got)
	}
	// Odd trailing byte is ignored.
	if got := pcm16Peak([]byte{0xff}); got != 0 {
		t.Errorf("odd buffer peak = %d", got)
	}
}
