package protocol

import (
	"errors"
	"testing"
)

func decodeErr(t *testing.T, data string) *DecodeError {
	t.Helper()
	_, err := DecodeClientMessage([]byte(data))
	if err == nil {
		t.Fatalf("expected error for %s", data)
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %T", err)
	}
	return de
}

func TestDecodeClientMessage_Hello(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"hello","protocol_version":"1","intensity":"high","want_audio":true}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	hello, ok := msg.(ClientHello)
	if !ok {
		t.Fatalf("expected ClientHello, got %T", msg)
	}
	if hello.Intensity != "high" || !hello.WantAudio {
		t.Errorf("unexpected hello: %+v", hello)
	}
}

func TestDecodeClientMessage_HelloValidation(t *testing.T) {
	de := decodeErr(t, `{"type":"hello"}`)
	if de.Param != "protocol_version" {
		t.Errorf("param = %q, want protocol_version", de.Param)
	}

	de = decodeErr(t, `{"type":"hello","protocol_version":"2"}`)
	if de.Code != "unsupported" {
		t.Errorf("code = %q, want unsupported", de.Code)
	}

	de = decodeErr(t, `{"type":"hello","protocol_version":"1","intensity":"extreme"}`)
	if de.Param != "intensity" {
		t.Errorf("param = %q, want intensity", de.Param)
	}
}

func TestDecodeClientMessage_SpeechFinal(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"speech_final","text":"what is a derivative"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	final, ok := msg.(ClientSpeechFinal)
	if !ok || final.Text != "what is a derivative" {
		t.Errorf("unexpected message: %#v", msg)
	}

	de := decodeErr(t, `{"type":"speech_final","text":"  "}`)
	if de.Param != "text" {
		t.Errorf("param = %q, want text", de.Param)
	}
}

func TestDecodeClientMessage_Frame(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"frame","kind":"ambient","image":"data:image/webp;base64,aGk="}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := msg.(ClientFrame); !ok {
		t.Fatalf("expected ClientFrame, got %T", msg)
	}

	de := decodeErr(t, `{"type":"frame","kind":"selfie","image":"x"}`)
	if de.Code != "unsupported" || de.Param != "kind" {
		t.Errorf("unexpected error: %+v", de)
	}

	de = decodeErr(t, `{"type":"frame","kind":"work"}`)
	if de.Param != "image" {
		t.Errorf("param = %q, want image", de.Param)
	}
}

func TestDecodeClientMessage_Assignment(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"assignment","filename":"hw.pdf","pages":["a","b"]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	asn, ok := msg.(ClientAssignment)
	if !ok || len(asn.Pages) != 2 {
		t.Errorf("unexpected message: %#v", msg)
	}

	de := decodeErr(t, `{"type":"assignment","pages":[]}`)
	if de.Param != "pages" {
		t.Errorf("param = %q, want pages", de.Param)
	}

	de = decodeErr(t, `{"type":"assignment","pages":["a",""]}`)
	if de.Param != "pages[1]" {
		t.Errorf("param = %q, want pages[1]", de.Param)
	}
}

func TestDecodeClientMessage_Control(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"control","op":" end_session "}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ctl, ok := msg.(ClientControl)
	if !ok || ctl.Op != "end_session" {
		t.Errorf("unexpected message: %#v", msg)
	}

	de := decodeErr(t, `{"type":"control","op":"reboot"}`)
	if de.Code != "unsupported" {
		t.Errorf("code = %q, want unsupported", de.Code)
	}
}

func TestDecodeClientMessage_Unknown(t *testing.T) {
	de := decodeErr(t, `{"type":"telemetry"}`)
	if de.Param != "type" {
		t.Errorf("param = %q, want type", de.Param)
	}

	de = decodeErr(t, `{not json`)
	if de.Code != "bad_request" {
		t.Errorf("code = %q, want bad_request", de.Code)
	}

	de = decodeErr(t, `{}`)
	if de.Param != "type" {
		t.Errorf("param = %q, want type", de.Param)
	}
}

func TestDecodeClientMessage_SimpleTypes(t *testing.T) {
	for _, raw := range []string{
		`{"type":"speech_start"}`,
		`{"type":"highlight_clear"}`,
		`{"type":"visibility","visible":false}`,
		`{"type":"show_work"}`,
	} {
		if _, err := DecodeClientMessage([]byte(raw)); err != nil {
			t.Errorf("decode %s: %v", raw, err)
		}
	}
}
