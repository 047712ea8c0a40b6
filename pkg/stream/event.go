// Package stream defines the caller-visible event vocabulary and the sinks
// that deliver it. Each request produces an ordered sequence of small JSON
// events terminated by exactly one done or error event.
package stream

import "encoding/json"

// EventType enumerates the wire event kinds.
type EventType string

const (
	EventThinkingStart EventType = "thinking_start"
	EventThinking      EventType = "thinking"
	EventThinkingEnd   EventType = "thinking_end"
	EventToken         EventType = "token"
	EventToolCall      EventType = "tool_call"
	EventUsage         EventType = "usage"
	EventDone          EventType = "done"
	EventError         EventType = "error"
)

// Tool-call statuses surfaced to the caller alongside the confirmation flag.
const (
	StatusExecute             = "execute"
	StatusPendingConfirmation = "pending_confirmation"
)

// Event is one streamed protocol event. Which fields are meaningful depends
// on Type; MarshalJSON emits only the fields that belong to the kind, so the
// usage event can carry explicit nulls while other events stay small.
type Event struct {
	Type EventType

	// EventToken / EventThinking
	Content string

	// EventToolCall
	ToolCallID           string
	Tool                 string
	Input                map[string]any
	RequiresConfirmation bool
	Status               string

	// EventUsage: nil pointers marshal as null, preserving the difference
	// between "not reported" and zero.
	InputTokens  *int
	OutputTokens *int

	// EventDone
	StopReason string

	// EventError: a generic caller-safe message, never internal detail.
	Message string
}

// MarshalJSON renders the wire shape for the event's kind.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventToken, EventThinking:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Content string    `json:"content"`
		}{e.Type, e.Content})
	case EventToolCall:
		input := e.Input
		if input == nil {
			input = map[string]any{}
		}
		return json.Marshal(struct {
			Type                 EventType      `json:"type"`
			ToolCallID           string         `json:"tool_call_id"`
			Tool                 string         `json:"tool"`
			Input                map[string]any `json:"input"`
			RequiresConfirmation bool           `json:"requires_confirmation"`
			Status               string         `json:"status"`
		}{e.Type, e.ToolCallID, e.Tool, input, e.RequiresConfirmation, e.Status})
	case EventUsage:
		return json.Marshal(struct {
			Type         EventType `json:"type"`
			InputTokens  *int      `json:"input_tokens"`
			OutputTokens *int      `json:"output_tokens"`
		}{e.Type, e.InputTokens, e.OutputTokens})
	case EventDone:
		return json.Marshal(struct {
			Type       EventType `json:"type"`
			StopReason string    `json:"stop_reason"`
		}{e.Type, e.StopReason})
	case EventError:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Message string    `json:"message"`
		}{e.Type, e.Message})
	default:
		return json.Marshal(struct {
			Type EventType `json:"type"`
		}{e.Type})
	}
}

// Sink receives protocol events in order. Implementations need not be safe
// for concurrent use; a request streams from a single goroutine.
type Sink interface {
	Send(Event) error
}

// Capture is a Sink that records events, for tests.
type Capture struct {
	Events []Event
}

func (c *Capture) Send(evt Event) error {
	c.Events = append(c.Events, evt)
	return nil
}

// Types returns the captured event kinds in order.
func (c *Capture) Types() []EventType {
	out := make([]EventType, len(c.Events))
	for i, e := range c.Events {
		out[i] = e.Type
	}
	return out
}
