package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"chatrelay/pkg/catalog"
	"chatrelay/pkg/provider"
	"chatrelay/pkg/types"
)

// Config contains Gemini credential and runtime options.
type Config struct {
	APIKey string
}

// ChatModel implements provider.ChatModel using Google Gemini.
type ChatModel struct {
	client *genai.Client
}

// NewChatModel builds a Gemini chat provider. The client is created eagerly
// because the SDK validates credentials on construction.
func NewChatModel(ctx context.Context, cfg Config) (*ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &ChatModel{client: client}, nil
}

func (m *ChatModel) Name() string {
	return "gemini"
}

// Stream implements provider.ChatModel. Gemini delivers function calls whole
// rather than as argument fragments, so each one becomes a single tool-call
// chunk carrying the complete arguments; the API assigns no call IDs, so one
// is synthesized per call.
func (m *ChatModel) Stream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, error) {
	cs, parts, err := m.prepareSession(req)
	if err != nil {
		return nil, err
	}

	iter := cs.SendMessageStream(ctx, parts...)
	ch := make(chan provider.Chunk)

	go func() {
		defer close(ch)

		var finish string
		var usage *types.Usage
		callIndex := 0

		for {
			resp, err := iter.Next()
			if err == iterator.Done {
				ch <- provider.Chunk{Kind: provider.ChunkDone, FinishReason: finish, Usage: usage}
				return
			}
			if err != nil {
				ch <- provider.Chunk{Kind: provider.ChunkError, Err: err}
				return
			}

			if resp.UsageMetadata != nil {
				usage = &types.Usage{
					InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
					OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
				}
			}

			if len(resp.Candidates) == 0 {
				continue
			}
			cand := resp.Candidates[0]
			if cand.FinishReason != genai.FinishReasonUnspecified {
				finish = toFinishReason(cand.FinishReason)
			}
			if cand.Content == nil {
				continue
			}

			for _, part := range cand.Content.Parts {
				switch p := part.(type) {
				case genai.Text:
					if p != "" {
						ch <- provider.Chunk{Kind: provider.ChunkText, Text: string(p)}
					}
				case genai.FunctionCall:
					args, err := json.Marshal(p.Args)
					if err != nil {
						args = []byte("{}")
					}
					ch <- provider.Chunk{
						Kind: provider.ChunkToolCall,
						Tool: &provider.ToolCallDelta{
							Index:     callIndex,
							ID:        "call_" + uuid.NewString(),
							Name:      p.Name,
							ArgsDelta: string(args),
						},
					}
					callIndex++
				}
			}
		}
	}()

	return ch, nil
}

// prepareSession configures the model and a chat session with all but the
// last message as history; the last message's parts drive the turn.
func (m *ChatModel) prepareSession(req provider.Request) (*genai.ChatSession, []genai.Part, error) {
	if len(req.Messages) == 0 {
		return nil, nil, fmt.Errorf("no messages to send")
	}

	gm := m.client.GenerativeModel(req.Model)
	if req.Temperature > 0 {
		gm.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		gm.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.System != "" {
		gm.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	if len(req.Tools) > 0 {
		gm.Tools = toGeminiTools(req.Tools)
	}

	cs := gm.StartChat()
	if len(req.Messages) > 1 {
		history := req.Messages[:len(req.Messages)-1]
		geminiHistory := make([]*genai.Content, 0, len(history))
		for _, msg := range history {
			role := "user"
			if msg.Role == types.RoleAssistant {
				role = "model" // Gemini uses "model" instead of "assistant"
			}
			parts := toGeminiParts(msg)
			if len(parts) == 0 {
				continue
			}
			geminiHistory = append(geminiHistory, &genai.Content{Role: role, Parts: parts})
		}
		cs.History = geminiHistory
	}

	last := req.Messages[len(req.Messages)-1]
	parts := toGeminiParts(last)
	if len(parts) == 0 {
		return nil, nil, fmt.Errorf("last message has no sendable content")
	}

	return cs, parts, nil
}

// Helpers

func toGeminiTools(defs []catalog.Definition) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, len(defs))
	for i, d := range defs {
		decls[i] = &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  toGeminiSchema(d.InputSchema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// toGeminiSchema converts a JSON-schema map to the SDK's typed schema. Only
// the subset the catalog produces is mapped; unknown constructs are dropped.
func toGeminiSchema(schema map[string]any) *genai.Schema {
	if schema == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}

	out := &genai.Schema{Type: genai.TypeObject}
	if t, ok := schema["type"].(string); ok {
		out.Type = toGeminiType(t)
	}
	if desc, ok := schema["description"].(string); ok {
		out.Description = desc
	}
	if props, ok := schema["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if sub, ok := raw.(map[string]any); ok {
				out.Properties[name] = toGeminiSchema(sub)
			}
		}
	}
	if items, ok := schema["items"].(map[string]any); ok {
		out.Items = toGeminiSchema(items)
	}
	switch req := schema["required"].(type) {
	case []string:
		out.Required = req
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if s, ok := e.(string); ok {
				out.Enum = append(out.Enum, s)
			}
		}
	}
	return out
}

func toGeminiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

func toGeminiParts(msg types.Message) []genai.Part {
	var parts []genai.Part
	for _, b := range msg.Blocks {
		switch b.Type {
		case types.BlockText:
			if b.Text != "" {
				parts = append(parts, genai.Text(b.Text))
			}
		case types.BlockToolUse:
			parts = append(parts, genai.FunctionCall{
				Name: b.Name,
				Args: b.Input,
			})
		case types.BlockToolResult:
			// Gemini correlates responses by function name, not call ID.
			parts = append(parts, genai.FunctionResponse{
				Name:     b.Name,
				Response: map[string]any{"result": b.Content, "is_error": b.IsError},
			})
		}
	}
	return parts
}

func toFinishReason(fr genai.FinishReason) string {
	switch fr {
	case genai.FinishReasonStop:
		return "stop"
	case genai.FinishReasonMaxTokens:
		return "length"
	default:
		return fmt.Sprintf("unknown:%d", fr)
	}
}

// Ensure interface compliance
var _ provider.ChatModel = (*ChatModel)(nil)
