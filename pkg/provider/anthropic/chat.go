package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"chatrelay/pkg/catalog"
	"chatrelay/pkg/provider"
	"chatrelay/pkg/types"
)

const (
	defaultMaxTokens      = 4096
	defaultThinkingBudget = 2048
	minimumThinkingBudget = 1024
)

// thinkingModelPrefixes gates the extended-thinking request on upstream model
// identifiers known to support it. Requesting thinking on other models is an
// API error, so the check is static rather than trial-and-error.
var thinkingModelPrefixes = []string{
	"claude-3-7-sonnet",
	"claude-sonnet-4",
	"claude-opus-4",
	"claude-haiku-4",
}

// SupportsThinking reports whether the upstream model accepts an extended
// thinking phase.
func SupportsThinking(model string) bool {
	for _, p := range thinkingModelPrefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// Config contains Anthropic credential and runtime options.
type Config struct {
	APIKey         string
	BaseURL        string
	MaxTokens      int
	ThinkingBudget int
}

// ChatModel implements provider.ChatModel using the Anthropic Messages API.
type ChatModel struct {
	client         *anthropic.Client
	maxTokens      int
	thinkingBudget int
}

// NewChatModel builds an Anthropic-backed streaming provider.
func NewChatModel(cfg Config) (*ChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	budget := cfg.ThinkingBudget
	if budget <= 0 {
		budget = defaultThinkingBudget
	}
	if budget < minimumThinkingBudget {
		budget = minimumThinkingBudget
	}

	return &ChatModel{client: &client, maxTokens: maxTokens, thinkingBudget: budget}, nil
}

func (m *ChatModel) Name() string {
	return "anthropic"
}

// Stream implements provider.ChatModel. Native stream events are mapped onto
// the canonical chunk kinds: text deltas become ChunkText, thinking blocks
// become the reasoning triple, and tool_use input deltas become indexed
// fragments that the consumer accumulates and parses once complete.
func (m *ChatModel) Stream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  toAnthropicMessages(req.Messages),
		MaxTokens: int64(m.maxTokens),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Tools) > 0 {
		params.Tools = toAnthropicTools(req.Tools)
	}
	if req.Reasoning && SupportsThinking(req.Model) {
		budget := int64(m.thinkingBudget)
		if budget >= params.MaxTokens {
			budget = params.MaxTokens / 2
		}
		params.Thinking = anthropic.ThinkingConfigParamUnion{
			OfEnabled: &anthropic.ThinkingConfigEnabledParam{BudgetTokens: budget},
		}
	}

	stream := m.client.Messages.NewStreaming(ctx, params)

	ch := make(chan provider.Chunk)
	go func() {
		defer close(ch)
		defer stream.Close()

		var finish string
		var inputTokens, outputTokens int
		var sawUsage bool
		thinkingIdx := make(map[int64]bool)

		for stream.Next() {
			switch ev := stream.Current().AsAny().(type) {
			case anthropic.MessageStartEvent:
				inputTokens = int(ev.Message.Usage.InputTokens)
				sawUsage = true

			case anthropic.ContentBlockStartEvent:
				switch blk := ev.ContentBlock.AsAny().(type) {
				case anthropic.ThinkingBlock:
					thinkingIdx[ev.Index] = true
					ch <- provider.Chunk{Kind: provider.ChunkReasoningStart}
				case anthropic.ToolUseBlock:
					ch <- provider.Chunk{
						Kind: provider.ChunkToolCall,
						Tool: &provider.ToolCallDelta{
							Index: int(ev.Index),
							ID:    blk.ID,
							Name:  blk.Name,
						},
					}
				}

			case anthropic.ContentBlockDeltaEvent:
				switch d := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					ch <- provider.Chunk{Kind: provider.ChunkText, Text: d.Text}
				case anthropic.ThinkingDelta:
					ch <- provider.Chunk{Kind: provider.ChunkReasoning, Text: d.Thinking}
				case anthropic.InputJSONDelta:
					ch <- provider.Chunk{
						Kind: provider.ChunkToolCall,
						Tool: &provider.ToolCallDelta{Index: int(ev.Index), ArgsDelta: d.PartialJSON},
					}
				}

			case anthropic.ContentBlockStopEvent:
				if thinkingIdx[ev.Index] {
					ch <- provider.Chunk{Kind: provider.ChunkReasoningEnd}
				}

			case anthropic.MessageDeltaEvent:
				if ev.Delta.StopReason != "" {
					finish = string(ev.Delta.StopReason)
				}
				outputTokens = int(ev.Usage.OutputTokens)
				sawUsage = true
			}
		}

		if err := stream.Err(); err != nil {
			ch <- provider.Chunk{Kind: provider.ChunkError, Err: err}
			return
		}

		done := provider.Chunk{Kind: provider.ChunkDone, FinishReason: finish}
		if sawUsage {
			done.Usage = &types.Usage{InputTokens: inputTokens, OutputTokens: outputTokens}
		}
		ch <- done
	}()

	return ch, nil
}

// toAnthropicTools converts catalog definitions to Anthropic tool params,
// lifting properties/required out of the JSON-schema map.
func toAnthropicTools(tools []catalog.Definition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, t := range tools {
		props, _ := t.InputSchema["properties"].(map[string]any)
		if props == nil {
			props = map[string]any{}
		}
		var required []string
		if req, ok := t.InputSchema["required"].([]any); ok {
			for _, r := range req {
				if s, ok := r.(string); ok {
					required = append(required, s)
				}
			}
		}
		if req, ok := t.InputSchema["required"].([]string); ok {
			required = req
		}

		out[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   required,
				},
			},
		}
	}
	return out
}

// toAnthropicMessages converts block-structured messages to Anthropic params.
//
// The API accepts only user/assistant roles: tool results travel as user
// messages with tool_result content, assistant tool requests as tool_use
// content. Thinking blocks are not replayed.
func toAnthropicMessages(messages []types.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Blocks))
		for _, b := range m.Blocks {
			switch b.Type {
			case types.BlockText:
				if b.Text != "" {
					blocks = append(blocks, anthropic.NewTextBlock(b.Text))
				}
			case types.BlockToolUse:
				input, err := json.Marshal(b.Input)
				if err != nil || len(input) == 0 {
					input = []byte("{}")
				}
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    b.ID,
						Name:  b.Name,
						Input: json.RawMessage(input),
					},
				})
			case types.BlockToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		switch m.Role {
		case types.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		default:
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

// Ensure interface compliance
var _ provider.ChatModel = (*ChatModel)(nil)
