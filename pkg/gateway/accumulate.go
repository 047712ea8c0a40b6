package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"chatrelay/pkg/provider"
	"chatrelay/pkg/types"
)

// toolCallAccum collects the fragments of one streamed tool invocation,
// keyed by the provider's per-call index. Arguments are only parsed once the
// stream has completed; partial JSON is never inspected mid-stream.
type toolCallAccum struct {
	id   string
	name string
	args strings.Builder
}

// accumulator buffers streamed output until the final content-block list can
// be assembled.
type accumulator struct {
	log      *slog.Logger
	text     strings.Builder
	thinking strings.Builder
	calls    map[int]*toolCallAccum
	order    []int
}

func newAccumulator(log *slog.Logger) *accumulator {
	return &accumulator{log: log, calls: make(map[int]*toolCallAccum)}
}

func (a *accumulator) addText(s string)     { a.text.WriteString(s) }
func (a *accumulator) addThinking(s string) { a.thinking.WriteString(s) }

func (a *accumulator) addFragment(d *provider.ToolCallDelta) {
	if d == nil {
		return
	}
	call, ok := a.calls[d.Index]
	if !ok {
		call = &toolCallAccum{}
		a.calls[d.Index] = call
		a.order = append(a.order, d.Index)
	}
	if d.ID != "" {
		call.id = d.ID
	}
	if d.Name != "" {
		call.name = d.Name
	}
	call.args.WriteString(d.ArgsDelta)
}

func (a *accumulator) hasCalls() bool {
	return len(a.order) > 0
}

// finalize assembles the normalized content blocks: thinking first, then the
// visible answer, then tool_use blocks in arrival order. A tool call whose
// accumulated arguments fail to parse keeps an empty input instead of
// failing the response; the assistant's intent — which tool to call — is
// still usable.
func (a *accumulator) finalize() []types.ContentBlock {
	var blocks []types.ContentBlock

	if a.thinking.Len() > 0 {
		blocks = append(blocks, types.ContentBlock{
			Type:     types.BlockThinking,
			Thinking: a.thinking.String(),
		})
	}
	if a.text.Len() > 0 {
		blocks = append(blocks, types.ContentBlock{
			Type: types.BlockText,
			Text: a.text.String(),
		})
	}

	for n, idx := range a.order {
		call := a.calls[idx]

		id := call.id
		if id == "" {
			id = fmt.Sprintf("call-%d", n+1)
		}

		input := map[string]any{}
		if raw := strings.TrimSpace(call.args.String()); raw != "" {
			if err := json.Unmarshal([]byte(raw), &input); err != nil {
				a.log.Warn("tool call arguments did not parse, using empty input",
					"tool", call.name, "tool_call_id", id, "error", err)
				input = map[string]any{}
			}
		}

		blocks = append(blocks, types.ContentBlock{
			Type:  types.BlockToolUse,
			ID:    id,
			Name:  call.name,
			Input: input,
		})
	}

	return blocks
}
