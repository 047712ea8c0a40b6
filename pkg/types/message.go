package types

// Role identifies who authored a message in the conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType tags the variants of a ContentBlock.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
	BlockThinking   BlockType = "thinking"
)

// ContentBlock is a union type for text, tool_use, tool_result, and thinking
// blocks. Which fields are populated depends on Type.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// Type == BlockText
	Text string `json:"text,omitempty"`

	// Type == BlockToolUse: an assistant request to invoke a tool.
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// Type == BlockToolResult: the caller-supplied outcome of a prior tool_use.
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`

	// Type == BlockThinking: provider-internal reasoning trace.
	Thinking string `json:"thinking,omitempty"`
}

// Message is a single chat turn. Content is always block-structured; plain
// text turns carry exactly one text block.
type Message struct {
	Role   Role           `json:"role"`
	Blocks []ContentBlock `json:"content"`
}

// NewText builds a single-block text message.
func NewText(role Role, text string) Message {
	return Message{
		Role:   role,
		Blocks: []ContentBlock{{Type: BlockText, Text: text}},
	}
}

// Text concatenates the message's text blocks.
func (m Message) Text() string {
	var out string
	for _, b := range m.Blocks {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// Usage represents token usage statistics as reported by a provider.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Stop reasons produced by the gateway. StopReason on a NormalizedResponse is
// free-form: unrecognized provider signals pass through verbatim.
const (
	StopReasonEndTurn   = "end_turn"
	StopReasonToolUse   = "tool_use"
	StopReasonMaxTokens = "max_tokens"
)

// NormalizedResponse is the provider gateway's output contract regardless of
// which upstream produced it. Usage is nil when the provider reported nothing
// mid-stream, which is distinct from a zero count.
type NormalizedResponse struct {
	Blocks     []ContentBlock `json:"content"`
	Usage      *Usage         `json:"usage,omitempty"`
	StopReason string         `json:"stop_reason"`
}

// ToolUses returns the response's tool_use blocks in order.
func (r *NormalizedResponse) ToolUses() []ContentBlock {
	var calls []ContentBlock
	for _, b := range r.Blocks {
		if b.Type == BlockToolUse {
			calls = append(calls, b)
		}
	}
	return calls
}

// HasToolUse reports whether the response requests any tool invocation.
func (r *NormalizedResponse) HasToolUse() bool {
	return len(r.ToolUses()) > 0
}
