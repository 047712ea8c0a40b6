package echo

import (
	"context"
	"strings"
	"testing"

	"chatrelay/pkg/provider"
	"chatrelay/pkg/types"
)

func TestStream_EchoesLastMessage(t *testing.T) {
	m := New("you said:")
	chunks, err := m.Stream(context.Background(), provider.Request{
		Messages: []types.Message{
			types.NewText(types.RoleUser, "first"),
			types.NewText(types.RoleUser, "hello world"),
		},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var text string
	var done *provider.Chunk
	for chunk := range chunks {
		switch chunk.Kind {
		case provider.ChunkText:
			text += chunk.Text
		case provider.ChunkDone:
			c := chunk
			done = &c
		case provider.ChunkError:
			t.Fatalf("unexpected error chunk: %v", chunk.Err)
		}
	}

	if got := strings.TrimSpace(text); got != "you said: hello world" {
		t.Errorf("echoed text = %q", got)
	}
	if done == nil {
		t.Fatal("stream ended without a done chunk")
	}
	if done.FinishReason != "stop" || done.Usage == nil {
		t.Errorf("done = %+v", done)
	}
}

func TestStream_ScriptedToolCallsComeFirst(t *testing.T) {
	m := New("")
	m.Script = []provider.ToolCallDelta{
		{Index: 0, ID: "call_1", Name: "list_posts", ArgsDelta: "{}"},
	}

	chunks, err := m.Stream(context.Background(), provider.Request{
		Messages: []types.Message{types.NewText(types.RoleUser, "go")},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var kinds []provider.ChunkKind
	for chunk := range chunks {
		kinds = append(kinds, chunk.Kind)
	}
	if len(kinds) < 2 || kinds[0] != provider.ChunkToolCall {
		t.Errorf("chunk order = %v, want tool call first", kinds)
	}
	if kinds[len(kinds)-1] != provider.ChunkDone {
		t.Errorf("chunk order = %v, want done last", kinds)
	}
}

func TestStream_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := New("")
	chunks, err := m.Stream(ctx, provider.Request{
		Messages: []types.Message{types.NewText(types.RoleUser, "a b c d e")},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	var sawError bool
	for chunk := range chunks {
		if chunk.Kind == provider.ChunkError {
			sawError = true
		}
	}
	if !sawError {
		t.Error("cancelled context should surface an error chunk")
	}
}
