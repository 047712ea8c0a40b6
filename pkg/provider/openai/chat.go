package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"chatrelay/pkg/provider"
	"chatrelay/pkg/types"
)

// Config contains OpenAI credential and runtime options. BaseURL and Headers
// make the same client work against any OpenAI-compatible endpoint
// (OpenRouter, vLLM, Groq, ...).
type Config struct {
	APIKey     string
	BaseURL    string
	Headers    map[string]string // extra headers, e.g. OpenRouter's HTTP-Referer / X-Title
	HTTPClient *http.Client
}

// ChatModel implements provider.ChatModel using OpenAI chat completions.
type ChatModel struct {
	client *goopenai.Client
}

// NewChatModel builds a streaming chat completion provider.
func NewChatModel(cfg Config) (*ChatModel, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil || len(cfg.Headers) > 0 {
		apiCfg.HTTPClient = withHeaders(cfg.HTTPClient, cfg.Headers)
	}

	return &ChatModel{client: goopenai.NewClientWithConfig(apiCfg)}, nil
}

func (m *ChatModel) Name() string {
	return "openai"
}

func (m *ChatModel) prepareRequest(req provider.Request) goopenai.ChatCompletionRequest {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		msgs = append(msgs, toOpenAIMessages(msg)...)
	}

	out := goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}

	if len(req.Tools) > 0 {
		out.Tools = make([]goopenai.Tool, len(req.Tools))
		for i, t := range req.Tools {
			out.Tools[i] = goopenai.Tool{
				Type: goopenai.ToolTypeFunction,
				Function: &goopenai.FunctionDefinition{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.InputSchema,
				},
			}
		}
	}

	return out
}

// Stream implements provider.ChatModel. Tool-call fragments are forwarded
// with the delta's index so the consumer can accumulate parallel calls; the
// arguments are not parseable until the stream ends.
func (m *ChatModel) Stream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	oaiReq := m.prepareRequest(req)
	oaiReq.Stream = true
	// Usage in incremental delivery is opt-in and still not reported by every
	// compatible endpoint; absence is surfaced as a nil Usage, not zero.
	oaiReq.StreamOptions = &goopenai.StreamOptions{IncludeUsage: true}

	stream, err := m.client.CreateChatCompletionStream(ctx, oaiReq)
	if err != nil {
		return nil, err
	}

	ch := make(chan provider.Chunk)
	go func() {
		defer close(ch)
		defer stream.Close()

		var finish string
		var usage *types.Usage

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				ch <- provider.Chunk{Kind: provider.ChunkDone, FinishReason: finish, Usage: usage}
				return
			}
			if err != nil {
				ch <- provider.Chunk{Kind: provider.ChunkError, Err: err}
				return
			}

			if resp.Usage != nil {
				usage = &types.Usage{
					InputTokens:  resp.Usage.PromptTokens,
					OutputTokens: resp.Usage.CompletionTokens,
				}
			}

			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]
			if choice.FinishReason != "" {
				finish = string(choice.FinishReason)
			}

			if choice.Delta.Content != "" {
				ch <- provider.Chunk{Kind: provider.ChunkText, Text: choice.Delta.Content}
			}

			for i, tc := range choice.Delta.ToolCalls {
				index := i
				if tc.Index != nil {
					index = *tc.Index
				}
				ch <- provider.Chunk{
					Kind: provider.ChunkToolCall,
					Tool: &provider.ToolCallDelta{
						Index:     index,
						ID:        tc.ID,
						Name:      tc.Function.Name,
						ArgsDelta: tc.Function.Arguments,
					},
				}
			}
		}
	}()

	return ch, nil
}

// toOpenAIMessages flattens one block-structured message into chat-completion
// messages. Tool results become role=tool messages, one per block; tool_use
// blocks become assistant tool calls with re-serialized arguments.
func toOpenAIMessages(msg types.Message) []goopenai.ChatCompletionMessage {
	var out []goopenai.ChatCompletionMessage

	switch msg.Role {
	case types.RoleAssistant:
		oMsg := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant}
		for _, b := range msg.Blocks {
			switch b.Type {
			case types.BlockText:
				oMsg.Content += b.Text
			case types.BlockToolUse:
				args, err := json.Marshal(b.Input)
				if err != nil {
					args = []byte("{}")
				}
				oMsg.ToolCalls = append(oMsg.ToolCalls, goopenai.ToolCall{
					ID:   b.ID,
					Type: goopenai.ToolTypeFunction,
					Function: goopenai.FunctionCall{
						Name:      b.Name,
						Arguments: string(args),
					},
				})
			}
			// thinking blocks are provider-internal and not replayed
		}
		out = append(out, oMsg)

	default:
		var text string
		for _, b := range msg.Blocks {
			switch b.Type {
			case types.BlockText:
				text += b.Text
			case types.BlockToolResult:
				out = append(out, goopenai.ChatCompletionMessage{
					Role:       goopenai.ChatMessageRoleTool,
					Content:    b.Content,
					ToolCallID: b.ToolUseID,
				})
			}
		}
		if text != "" {
			out = append(out, goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleUser,
				Content: text,
			})
		}
	}

	return out
}

// Helpers

type headerRoundTripper struct {
	headers map[string]string
	base    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range h.headers {
		if strings.TrimSpace(v) == "" {
			continue
		}
		req.Header.Set(k, v)
	}
	return h.base.RoundTrip(req)
}

// withHeaders wraps the provided HTTP client (or default) to inject headers.
func withHeaders(client *http.Client, headers map[string]string) *http.Client {
	baseClient := client
	if baseClient == nil {
		baseClient = &http.Client{}
	}
	if len(headers) == 0 {
		return baseClient
	}

	clone := *baseClient
	baseTransport := baseClient.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	clone.Transport = &headerRoundTripper{
		headers: headers,
		base:    baseTransport,
	}

	return &clone
}

// Ensure interface compliance
var _ provider.ChatModel = (*ChatModel)(nil)
