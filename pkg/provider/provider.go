package provider

import (
	"context"

	"chatrelay/pkg/catalog"
	"chatrelay/pkg/types"
)

// Request carries everything a provider needs for one streaming generation.
type Request struct {
	Model       string // upstream model identifier, already resolved
	System      string // opaque system prompt
	Messages    []types.Message
	Tools       []catalog.Definition
	MaxTokens   int
	Temperature float64
	Reasoning   bool // ask for an internal reasoning phase where supported
}

// ChunkKind identifies the canonical streaming event a Chunk carries. Every
// provider maps its native event vocabulary onto these; providers with no
// reasoning phase simply never emit the reasoning kinds.
type ChunkKind string

const (
	ChunkText           ChunkKind = "text"
	ChunkReasoningStart ChunkKind = "reasoning_start"
	ChunkReasoning      ChunkKind = "reasoning"
	ChunkReasoningEnd   ChunkKind = "reasoning_end"
	ChunkToolCall       ChunkKind = "tool_call"
	ChunkDone           ChunkKind = "done"
	ChunkError          ChunkKind = "error"
)

// ToolCallDelta is one fragment of a streamed tool invocation. ID and Name
// arrive on the first fragment for a given index; ArgsDelta accumulates into
// a JSON document that is only parseable once the stream completes.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	ArgsDelta string
}

// Chunk represents a piece of a streamed response.
type Chunk struct {
	Kind         ChunkKind
	Text         string         // ChunkText / ChunkReasoning delta
	Tool         *ToolCallDelta // ChunkToolCall fragment
	FinishReason string         // ChunkDone: the provider's terminal signal
	Usage        *types.Usage   // ChunkDone: nil when the provider reported none
	Err          error          // ChunkError: terminal stream failure
}

// ChatModel defines the interface for interacting with a streaming chat LLM.
// Implementations form a closed set selected by the routing table; the channel
// is closed after a ChunkDone or ChunkError, whichever comes first.
type ChatModel interface {
	// Name returns the provider name (e.g., "openai", "anthropic").
	Name() string

	// Stream sends the request and returns a channel of chunks. The returned
	// error covers synchronous setup failures only; mid-stream failures
	// arrive as a ChunkError on the channel. Cancelling ctx aborts the
	// upstream read.
	Stream(ctx context.Context, req Request) (<-chan Chunk, error)
}
