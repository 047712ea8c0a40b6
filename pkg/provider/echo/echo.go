package echo

import (
	"context"
	"strings"

	"chatrelay/pkg/provider"
	"chatrelay/pkg/types"
)

// ChatModel is a deterministic provider useful for tests and local runs with
// no credentials. It streams the last user message back word by word, and can
// be scripted to emit tool calls first.
type ChatModel struct {
	Prefix string
	// Script, when non-empty, is emitted as tool-call chunks before the text.
	Script []provider.ToolCallDelta
}

// New returns a new echo provider.
func New(prefix string) *ChatModel {
	return &ChatModel{Prefix: prefix}
}

func (p *ChatModel) Name() string {
	return "echo"
}

// Stream implements provider.ChatModel.
func (p *ChatModel) Stream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	var reply strings.Builder
	if p.Prefix != "" {
		reply.WriteString(strings.TrimSpace(p.Prefix))
		reply.WriteString(" ")
	}
	if len(req.Messages) > 0 {
		reply.WriteString(req.Messages[len(req.Messages)-1].Text())
	}

	ch := make(chan provider.Chunk)
	go func() {
		defer close(ch)

		if err := ctx.Err(); err != nil {
			ch <- provider.Chunk{Kind: provider.ChunkError, Err: err}
			return
		}

		for i := range p.Script {
			tool := p.Script[i]
			select {
			case ch <- provider.Chunk{Kind: provider.ChunkToolCall, Tool: &tool}:
			case <-ctx.Done():
				ch <- provider.Chunk{Kind: provider.ChunkError, Err: ctx.Err()}
				return
			}
		}

		// Simulate streaming by words
		for _, word := range strings.Fields(reply.String()) {
			select {
			case ch <- provider.Chunk{Kind: provider.ChunkText, Text: word + " "}:
			case <-ctx.Done():
				ch <- provider.Chunk{Kind: provider.ChunkError, Err: ctx.Err()}
				return
			}
		}

		n := reply.Len()
		ch <- provider.Chunk{
			Kind:         provider.ChunkDone,
			FinishReason: "stop",
			Usage:        &types.Usage{InputTokens: n, OutputTokens: n},
		}
	}()

	return ch, nil
}

var _ provider.ChatModel = (*ChatModel)(nil)
