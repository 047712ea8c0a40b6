package gemini

import (
	"context"
	"os"
	"reflect"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"chatrelay/pkg/catalog"
	"chatrelay/pkg/provider"
	"chatrelay/pkg/types"
)

func TestNewChatModel_EmptyKey(t *testing.T) {
	if _, err := NewChatModel(context.Background(), Config{}); err == nil {
		t.Error("NewChatModel() should fail without an api key")
	}
}

func TestToGeminiSchema(t *testing.T) {
	schema := map[string]any{
		"type":        "object",
		"description": "search input",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "Search query"},
			"limit": map[string]any{"type": "integer"},
			"tags":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"mode":  map[string]any{"type": "string", "enum": []any{"fast", "deep"}},
		},
		"required": []string{"query"},
	}

	out := toGeminiSchema(schema)

	if out.Type != genai.TypeObject || out.Description != "search input" {
		t.Errorf("schema = %+v", out)
	}
	if out.Properties["query"].Type != genai.TypeString {
		t.Errorf("query type = %v", out.Properties["query"].Type)
	}
	if out.Properties["limit"].Type != genai.TypeInteger {
		t.Errorf("limit type = %v", out.Properties["limit"].Type)
	}
	if out.Properties["tags"].Type != genai.TypeArray || out.Properties["tags"].Items.Type != genai.TypeString {
		t.Errorf("tags schema = %+v", out.Properties["tags"])
	}
	if !reflect.DeepEqual(out.Properties["mode"].Enum, []string{"fast", "deep"}) {
		t.Errorf("mode enum = %v", out.Properties["mode"].Enum)
	}
	if !reflect.DeepEqual(out.Required, []string{"query"}) {
		t.Errorf("required = %v", out.Required)
	}
}

func TestToGeminiSchema_Nil(t *testing.T) {
	out := toGeminiSchema(nil)
	if out == nil || out.Type != genai.TypeObject {
		t.Errorf("nil schema should map to an empty object schema, got %+v", out)
	}
}

func TestToGeminiTools_WholeCatalog(t *testing.T) {
	defs := catalog.Default().List()
	tools := toGeminiTools(defs)

	if len(tools) != 1 {
		t.Fatalf("got %d tool groups, want 1", len(tools))
	}
	if len(tools[0].FunctionDeclarations) != len(defs) {
		t.Errorf("got %d declarations, want %d", len(tools[0].FunctionDeclarations), len(defs))
	}
	for _, d := range tools[0].FunctionDeclarations {
		if d.Name == "" || d.Parameters == nil {
			t.Errorf("declaration %+v incomplete", d)
		}
	}
}

func TestToGeminiParts(t *testing.T) {
	msg := types.Message{
		Role: types.RoleUser,
		Blocks: []types.ContentBlock{
			{Type: types.BlockText, Text: "here you go"},
			{Type: types.BlockToolResult, ToolUseID: "call_1", Name: "get_post", Content: "post body", IsError: false},
		},
	}

	parts := toGeminiParts(msg)
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if text, ok := parts[0].(genai.Text); !ok || string(text) != "here you go" {
		t.Errorf("part 0 = %#v", parts[0])
	}
	fr, ok := parts[1].(genai.FunctionResponse)
	if !ok {
		t.Fatalf("part 1 = %#v, want FunctionResponse", parts[1])
	}
	// Correlation is by function name; the call ID means nothing to Gemini.
	if fr.Name != "get_post" {
		t.Errorf("response name = %q", fr.Name)
	}
	if fr.Response["result"] != "post body" {
		t.Errorf("response payload = %v", fr.Response)
	}
}

func TestToGeminiParts_ToolUse(t *testing.T) {
	msg := types.Message{
		Role: types.RoleAssistant,
		Blocks: []types.ContentBlock{
			{Type: types.BlockToolUse, ID: "call_1", Name: "navigate", Input: map[string]any{"target": "posts"}},
		},
	}

	parts := toGeminiParts(msg)
	if len(parts) != 1 {
		t.Fatalf("got %d parts, want 1", len(parts))
	}
	fc, ok := parts[0].(genai.FunctionCall)
	if !ok || fc.Name != "navigate" || fc.Args["target"] != "posts" {
		t.Errorf("part = %#v", parts[0])
	}
}

func TestToFinishReason(t *testing.T) {
	if got := toFinishReason(genai.FinishReasonStop); got != "stop" {
		t.Errorf("stop = %q", got)
	}
	if got := toFinishReason(genai.FinishReasonMaxTokens); got != "length" {
		t.Errorf("max tokens = %q", got)
	}
}

// --- Live Tests below ---

// TestLive_Stream runs streaming against the real Gemini API.
func TestLive_Stream(t *testing.T) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping live test: GEMINI_API_KEY not set")
	}

	ctx := context.Background()
	client, err := NewChatModel(ctx, Config{APIKey: apiKey})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.0-flash"
	}

	chunks, err := client.Stream(ctx, provider.Request{
		Model:    model,
		Messages: []types.Message{types.NewText(types.RoleUser, "Reply with 'LIVE TEST OK'")},
	})
	if err != nil {
		t.Fatalf("Live Stream() error = %v", err)
	}

	var content string
	for chunk := range chunks {
		switch chunk.Kind {
		case provider.ChunkText:
			content += chunk.Text
		case provider.ChunkError:
			t.Fatalf("Stream error: %v", chunk.Err)
		}
	}
	t.Logf("Full Stream Content: %s", content)
	if content == "" {
		t.Error("Stream received no content")
	}
}
