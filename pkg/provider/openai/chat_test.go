package openai

import (
	"context"
	"os"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"

	"chatrelay/pkg/catalog"
	"chatrelay/pkg/provider"
	"chatrelay/pkg/types"
)

func TestNewChatModel(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "Empty API Key",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name:    "Whitespace API Key",
			cfg:     Config{APIKey: "   "},
			wantErr: true,
		},
		{
			name:    "Valid Config",
			cfg:     Config{APIKey: "test-key"},
			wantErr: false,
		},
		{
			name:    "Custom Endpoint With Headers",
			cfg:     Config{APIKey: "test-key", BaseURL: "https://proxy.local/v1", Headers: map[string]string{"X-Title": "chatrelay"}},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewChatModel(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewChatModel() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got == nil {
				t.Error("NewChatModel() returned nil success")
			}
		})
	}
}

func TestPrepareRequest(t *testing.T) {
	m, err := NewChatModel(Config{APIKey: "test-key"})
	if err != nil {
		t.Fatal(err)
	}

	req := provider.Request{
		Model:  "gpt-4o-mini",
		System: "be brief",
		Messages: []types.Message{
			types.NewText(types.RoleUser, "hi"),
		},
		Tools:     catalog.Default().List(),
		MaxTokens: 256,
	}

	out := m.prepareRequest(req)

	if out.Model != "gpt-4o-mini" || out.MaxTokens != 256 {
		t.Errorf("request = %+v", out)
	}
	if len(out.Messages) != 2 || out.Messages[0].Role != goopenai.ChatMessageRoleSystem {
		t.Fatalf("messages = %+v, want system first", out.Messages)
	}
	if out.Messages[0].Content != "be brief" {
		t.Errorf("system content = %q", out.Messages[0].Content)
	}
	if len(out.Tools) != len(req.Tools) {
		t.Errorf("got %d tools, want %d", len(out.Tools), len(req.Tools))
	}
	if out.Tools[0].Type != goopenai.ToolTypeFunction || out.Tools[0].Function.Name == "" {
		t.Errorf("tool 0 = %+v", out.Tools[0])
	}
}

func TestToOpenAIMessages(t *testing.T) {
	t.Run("Assistant Tool Use", func(t *testing.T) {
		msg := types.Message{
			Role: types.RoleAssistant,
			Blocks: []types.ContentBlock{
				{Type: types.BlockText, Text: "Deleting it now."},
				{Type: types.BlockToolUse, ID: "call_1", Name: "delete_post", Input: map[string]any{"id": 3}},
			},
		}

		out := toOpenAIMessages(msg)
		if len(out) != 1 {
			t.Fatalf("got %d messages, want 1", len(out))
		}
		m := out[0]
		if m.Role != goopenai.ChatMessageRoleAssistant || m.Content != "Deleting it now." {
			t.Errorf("message = %+v", m)
		}
		if len(m.ToolCalls) != 1 {
			t.Fatalf("tool calls = %+v", m.ToolCalls)
		}
		tc := m.ToolCalls[0]
		if tc.ID != "call_1" || tc.Function.Name != "delete_post" {
			t.Errorf("tool call = %+v", tc)
		}
		if tc.Function.Arguments != `{"id":3}` {
			t.Errorf("arguments = %q", tc.Function.Arguments)
		}
	})

	t.Run("Tool Result Becomes Tool Role", func(t *testing.T) {
		msg := types.Message{
			Role: types.RoleUser,
			Blocks: []types.ContentBlock{
				{Type: types.BlockToolResult, ToolUseID: "call_1", Content: "deleted"},
			},
		}

		out := toOpenAIMessages(msg)
		if len(out) != 1 {
			t.Fatalf("got %d messages, want 1", len(out))
		}
		if out[0].Role != goopenai.ChatMessageRoleTool || out[0].ToolCallID != "call_1" {
			t.Errorf("message = %+v", out[0])
		}
		if out[0].Content != "deleted" {
			t.Errorf("content = %q", out[0].Content)
		}
	})

	t.Run("Thinking Not Replayed", func(t *testing.T) {
		msg := types.Message{
			Role: types.RoleAssistant,
			Blocks: []types.ContentBlock{
				{Type: types.BlockThinking, Thinking: "private"},
				{Type: types.BlockText, Text: "public"},
			},
		}

		out := toOpenAIMessages(msg)
		if len(out) != 1 || out[0].Content != "public" {
			t.Errorf("messages = %+v", out)
		}
	})

	t.Run("Mixed Result And Text", func(t *testing.T) {
		msg := types.Message{
			Role: types.RoleUser,
			Blocks: []types.ContentBlock{
				{Type: types.BlockToolResult, ToolUseID: "c1", Content: "ok"},
				{Type: types.BlockText, Text: "and now?"},
			},
		}

		out := toOpenAIMessages(msg)
		if len(out) != 2 {
			t.Fatalf("got %d messages, want tool + user", len(out))
		}
		if out[0].Role != goopenai.ChatMessageRoleTool || out[1].Role != goopenai.ChatMessageRoleUser {
			t.Errorf("roles = %q, %q", out[0].Role, out[1].Role)
		}
	})
}

// --- Live Tests below ---

func getLiveClient(t *testing.T) provider.ChatModel {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping live test: OPENAI_API_KEY not set")
	}

	client, err := NewChatModel(Config{
		APIKey:  apiKey,
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func liveModel() string {
	if m := os.Getenv("OPENAI_MODEL"); m != "" {
		return m
	}
	return "gpt-4o-mini"
}

// TestLive_Stream runs streaming against the real OpenAI API.
func TestLive_Stream(t *testing.T) {
	client := getLiveClient(t)
	ctx := context.Background()

	chunks, err := client.Stream(ctx, provider.Request{
		Model:    liveModel(),
		Messages: []types.Message{types.NewText(types.RoleUser, "Count from 1 to 5, separated by spaces.")},
	})
	if err != nil {
		t.Fatalf("Live Stream() error = %v", err)
	}

	var content string
	var done bool
	for chunk := range chunks {
		switch chunk.Kind {
		case provider.ChunkText:
			content += chunk.Text
		case provider.ChunkDone:
			done = true
		case provider.ChunkError:
			t.Fatalf("Stream error: %v", chunk.Err)
		}
	}

	t.Logf("Full Stream Content: %s", content)
	if content == "" {
		t.Error("Stream received no content")
	}
	if !done {
		t.Error("Stream ended without a done chunk")
	}
}

// TestLive_ToolCall runs tool calling against the real OpenAI API.
func TestLive_ToolCall(t *testing.T) {
	client := getLiveClient(t)
	ctx := context.Background()

	chunks, err := client.Stream(ctx, provider.Request{
		Model:    liveModel(),
		Messages: []types.Message{types.NewText(types.RoleUser, "List my draft posts.")},
		Tools:    catalog.Default().List(),
	})
	if err != nil {
		t.Fatalf("Live Stream() with tools error = %v", err)
	}

	var sawCall bool
	for chunk := range chunks {
		if chunk.Kind == provider.ChunkToolCall && chunk.Tool != nil {
			sawCall = true
			t.Logf("ToolCall fragment: %s %q", chunk.Tool.Name, chunk.Tool.ArgsDelta)
		}
		if chunk.Kind == provider.ChunkError {
			t.Fatalf("Stream error: %v", chunk.Err)
		}
	}
	if !sawCall {
		t.Error("Expected tool call fragments, got none")
	}
}
