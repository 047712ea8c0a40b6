package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// SSE writes events to an HTTP client as server-sent events, flushing after
// each frame so tokens reach the caller as they are generated.
type SSE struct {
	w     io.Writer
	flush func()
	mu    sync.Mutex
}

// NewSSE prepares the response for event streaming and returns the sink.
func NewSSE(w http.ResponseWriter) *SSE {
	headers := w.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")

	var flushFn func()
	if f, ok := w.(http.Flusher); ok {
		flushFn = f.Flush
	}

	return &SSE{w: w, flush: flushFn}
}

// NewSSEWriter allows using a custom writer (e.g. tests).
func NewSSEWriter(w io.Writer) *SSE {
	return &SSE{w: w}
}

// Send writes a single event as one SSE data frame.
func (s *SSE) Send(evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("stream: marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", body); err != nil {
		return err
	}
	if s.flush != nil {
		s.flush()
	}
	return nil
}

var _ Sink = (*SSE)(nil)
