// Package gateway routes a request to the right upstream LLM provider,
// forwards incremental output to the caller's sink while the stream runs,
// and buffers the structured parts into a NormalizedResponse.
package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"chatrelay/pkg/catalog"
	"chatrelay/pkg/config"
	"chatrelay/pkg/provider"
	anthropicprovider "chatrelay/pkg/provider/anthropic"
	echoprovider "chatrelay/pkg/provider/echo"
	geminiprovider "chatrelay/pkg/provider/gemini"
	openaiprovider "chatrelay/pkg/provider/openai"
	"chatrelay/pkg/stream"
	"chatrelay/pkg/types"
)

// Factory builds a provider client from its configuration. Overridable for
// tests; the default wires the real SDK clients.
type Factory func(ctx context.Context, name string, cfg config.Provider) (provider.ChatModel, error)

// Config describes how a Gateway is assembled.
type Config struct {
	Store   *config.Store
	Catalog *catalog.Catalog
	Logger  *slog.Logger
	Factory Factory
}

// Gateway implements the provider side of the conversation protocol. Client
// handles are built lazily, once per provider, and reused across requests;
// everything else it touches is immutable or request-local, so no locking is
// needed beyond the lazy-init mutex.
type Gateway struct {
	store   *config.Store
	catalog *catalog.Catalog
	log     *slog.Logger
	factory Factory

	mu      sync.Mutex
	clients map[string]provider.ChatModel
}

// New builds a Gateway and wires defaults.
func New(cfg Config) (*Gateway, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("config store is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	factory := cfg.Factory
	if factory == nil {
		factory = defaultFactory
	}
	return &Gateway{
		store:   cfg.Store,
		catalog: cfg.Catalog,
		log:     log,
		factory: factory,
		clients: make(map[string]provider.ChatModel),
	}, nil
}

// Send resolves the model, streams the provider's response into sink, and
// returns the normalized result. Configuration problems (unknown model key,
// missing credential) fail synchronously before any event is emitted;
// mid-stream transport failures come back as an error after whatever partial
// tokens were already delivered, which remain valid.
func (g *Gateway) Send(ctx context.Context, model, system string, messages []types.Message, sink stream.Sink) (*types.NormalizedResponse, error) {
	cfg := g.store.Load()

	route, err := cfg.Resolve(model)
	if err != nil {
		return nil, err
	}
	client, err := g.client(ctx, route.Provider, cfg)
	if err != nil {
		return nil, err
	}

	req := provider.Request{
		Model:     route.ID,
		System:    system,
		Messages:  messages,
		Tools:     g.catalog.List(),
		MaxTokens: route.MaxTokens,
		Reasoning: route.Reasoning,
	}

	chunks, err := client.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	acc := newAccumulator(g.log)
	var usage *types.Usage
	var finish string
	var done bool

	// On an early return the producer goroutine is still blocked sending into
	// chunks; drain until it closes the channel so it can exit.
	defer func() {
		if !done {
			go func() {
				for range chunks {
				}
			}()
		}
	}()

consume:
	for chunk := range chunks {
		switch chunk.Kind {
		case provider.ChunkReasoningStart:
			if err := sink.Send(stream.Event{Type: stream.EventThinkingStart}); err != nil {
				return nil, err
			}
		case provider.ChunkReasoning:
			acc.addThinking(chunk.Text)
			if err := sink.Send(stream.Event{Type: stream.EventThinking, Content: chunk.Text}); err != nil {
				return nil, err
			}
		case provider.ChunkReasoningEnd:
			if err := sink.Send(stream.Event{Type: stream.EventThinkingEnd}); err != nil {
				return nil, err
			}
		case provider.ChunkText:
			acc.addText(chunk.Text)
			if err := sink.Send(stream.Event{Type: stream.EventToken, Content: chunk.Text}); err != nil {
				return nil, err
			}
		case provider.ChunkToolCall:
			acc.addFragment(chunk.Tool)
		case provider.ChunkDone:
			finish = chunk.FinishReason
			usage = chunk.Usage
			done = true
			break consume
		case provider.ChunkError:
			return nil, chunk.Err
		}
	}
	if !done {
		return nil, io.ErrUnexpectedEOF
	}

	return &types.NormalizedResponse{
		Blocks:     acc.finalize(),
		Usage:      usage,
		StopReason: deriveStopReason(finish, acc.hasCalls()),
	}, nil
}

// client returns the cached provider handle, building it on first use.
func (g *Gateway) client(ctx context.Context, name string, cfg *config.Config) (provider.ChatModel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c, ok := g.clients[name]; ok {
		return c, nil
	}

	pcfg, ok := cfg.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", name)
	}
	c, err := g.factory(ctx, name, pcfg)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", name, err)
	}
	g.clients[name] = c
	return c, nil
}

// deriveStopReason normalizes the provider's terminal signal. Tool use wins
// over whatever the provider reported: the response carries tool_use blocks
// exactly when calls were accumulated, and the stop reason must agree.
func deriveStopReason(finish string, hasCalls bool) string {
	if hasCalls {
		return types.StopReasonToolUse
	}
	switch finish {
	case "", "stop", "end_turn", "tool_calls", "tool_use":
		return types.StopReasonEndTurn
	case "length", "max_tokens":
		return types.StopReasonMaxTokens
	default:
		return finish
	}
}

func defaultFactory(ctx context.Context, name string, cfg config.Provider) (provider.ChatModel, error) {
	switch name {
	case catalog.ProviderAnthropic:
		return anthropicprovider.NewChatModel(anthropicprovider.Config{
			APIKey:  cfg.Key(),
			BaseURL: cfg.BaseURL,
		})
	case catalog.ProviderOpenAI:
		return openaiprovider.NewChatModel(openaiprovider.Config{
			APIKey:  cfg.Key(),
			BaseURL: cfg.BaseURL,
			Headers: cfg.Headers,
		})
	case catalog.ProviderGemini:
		return geminiprovider.NewChatModel(ctx, geminiprovider.Config{
			APIKey: cfg.Key(),
		})
	case "echo":
		return echoprovider.New(""), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
