package stream

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSSE_Framing(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSSEWriter(&buf)

	if err := sink.Send(Event{Type: EventToken, Content: "hi"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if err := sink.Send(Event{Type: EventDone, StopReason: "end_turn"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	frames := strings.Split(strings.TrimSuffix(buf.String(), "\n\n"), "\n\n")
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2: %q", len(frames), buf.String())
	}
	for i, f := range frames {
		if !strings.HasPrefix(f, "data: {") {
			t.Errorf("frame %d = %q, want data: prefix", i, f)
		}
	}
	if !strings.Contains(frames[0], `"content":"hi"`) {
		t.Errorf("frame 0 = %q", frames[0])
	}
	if !strings.Contains(frames[1], `"stop_reason":"end_turn"`) {
		t.Errorf("frame 1 = %q", frames[1])
	}
}

func TestNewSSE_Headers(t *testing.T) {
	rec := httptest.NewRecorder()
	sink := NewSSE(rec)

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}

	if err := sink.Send(Event{Type: EventToken, Content: "x"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !rec.Flushed {
		t.Error("frames must be flushed as they are written")
	}
}
