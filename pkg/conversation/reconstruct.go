// Package conversation rebuilds the message list for a continuation request.
//
// The server keeps no conversation state: the caller supplies its own record
// of history, the tool calls still awaiting results, and the new results on
// every request. Reconstruct is a pure function over those inputs so the same
// inputs always produce the same message list.
package conversation

import (
	"encoding/json"

	"chatrelay/pkg/types"
)

// HistoryEntry is one caller-supplied record of a prior turn. Content is
// free-form: clients send strings, but some serialize structured payloads.
type HistoryEntry struct {
	Role       string `json:"role"`
	Content    any    `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`
}

// PendingToolCall echoes a tool_use block the assistant emitted earlier and
// the caller has not yet answered.
type PendingToolCall struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Input      any    `json:"input,omitempty"`
}

// ToolResult is the caller-supplied outcome of executing one tool call.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name"`
	Result     any    `json:"result"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Reconstruct produces the ordered message list to submit to a provider when
// continuing after tool execution:
//
//  1. prior history, in caller order, with stored tool results re-emitted as
//     user messages carrying a tool_result block;
//  2. exactly one synthetic assistant message holding one tool_use block per
//     pending call (or per result, when the caller did not echo the pending
//     calls) — the upstream protocol requires every tool_result to be
//     preceded by a matching tool_use in the same conversation;
//  3. exactly one user message holding one tool_result block per result.
//
// It never fails: the inputs are fully caller-controlled and missing or
// malformed fields degrade to empty structures instead of aborting.
func Reconstruct(history []HistoryEntry, pending []PendingToolCall, results []ToolResult) []types.Message {
	messages := FromHistory(history)

	if len(pending) == 0 && len(results) == 0 {
		return messages
	}

	uses := make([]types.ContentBlock, 0, len(pending)+len(results))
	if len(pending) > 0 {
		for _, p := range pending {
			uses = append(uses, types.ContentBlock{
				Type:  types.BlockToolUse,
				ID:    p.ToolCallID,
				Name:  p.ToolName,
				Input: NormalizeToolInput(p.Input),
			})
		}
	} else {
		// The caller did not echo the original requests; treat each result's
		// declared call as if it had been requested with empty input.
		for _, r := range results {
			uses = append(uses, types.ContentBlock{
				Type:  types.BlockToolUse,
				ID:    r.ToolCallID,
				Name:  r.ToolName,
				Input: map[string]any{},
			})
		}
	}
	messages = append(messages, types.Message{Role: types.RoleAssistant, Blocks: uses})

	outcomes := make([]types.ContentBlock, 0, len(results))
	for _, r := range results {
		outcomes = append(outcomes, types.ContentBlock{
			Type:      types.BlockToolResult,
			ToolUseID: r.ToolCallID,
			Name:      r.ToolName,
			Content:   coerceString(r.Result),
			IsError:   r.IsError,
		})
	}
	messages = append(messages, types.Message{Role: types.RoleUser, Blocks: outcomes})

	return messages
}

// SynthesizedFromResults reports whether Reconstruct would have to invent the
// tool_use blocks from the results alone, losing any real call inputs. The
// entry point logs when this happens.
func SynthesizedFromResults(pending []PendingToolCall, results []ToolResult) bool {
	return len(pending) == 0 && len(results) > 0
}

// FromHistory maps caller-supplied history onto provider-agnostic messages.
// Entries whose role marks a stored tool result become user messages with a
// tool_result block; everything else becomes a plain text message with the
// role normalized to user/assistant.
func FromHistory(history []HistoryEntry) []types.Message {
	messages := make([]types.Message, 0, len(history))
	for _, entry := range history {
		switch entry.Role {
		case "tool_result", "tool":
			messages = append(messages, types.Message{
				Role: types.RoleUser,
				Blocks: []types.ContentBlock{{
					Type:      types.BlockToolResult,
					ToolUseID: entry.ToolCallID,
					// Some providers correlate results by function name
					// rather than call ID.
					Name:    entry.ToolName,
					Content: coerceString(entry.Content),
					IsError: entry.IsError,
				}},
			})
		case "assistant":
			messages = append(messages, types.NewText(types.RoleAssistant, coerceString(entry.Content)))
		default:
			messages = append(messages, types.NewText(types.RoleUser, coerceString(entry.Content)))
		}
	}
	return messages
}

// NormalizeToolInput coerces a caller-supplied tool input to the object shape
// tool inputs always have. An empty array — the falsy encoding some clients
// produce for "no parameters" — and every other non-object value normalize to
// an empty object; well-formed objects pass through unchanged.
func NormalizeToolInput(v any) map[string]any {
	switch in := v.(type) {
	case map[string]any:
		return in
	default:
		return map[string]any{}
	}
}

// coerceString renders free-form content as a string, JSON-encoding anything
// that is not already one.
func coerceString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
