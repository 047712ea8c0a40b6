// Package server exposes the conversation entry points over HTTP. Each
// operation accepts a JSON body and answers with an ordered stream of JSON
// events terminated by exactly one done or error event.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"chatrelay/pkg/catalog"
	"chatrelay/pkg/config"
	"chatrelay/pkg/stream"
	"chatrelay/pkg/types"
	"chatrelay/pkg/usage"
)

// Sender is the provider-gateway surface the entry points drive.
type Sender interface {
	Send(ctx context.Context, model, system string, messages []types.Message, sink stream.Sink) (*types.NormalizedResponse, error)
}

// Config describes how a Server is assembled. Usage and Store are optional.
type Config struct {
	Gateway Sender
	Catalog *catalog.Catalog
	Store   *config.Store
	Usage   *usage.Recorder
	Logger  *slog.Logger
}

// Server holds the entry-point handlers. It keeps no per-conversation state:
// the caller is the durable store of history.
type Server struct {
	gateway Sender
	catalog *catalog.Catalog
	store   *config.Store
	usage   *usage.Recorder
	log     *slog.Logger
}

// New builds a Server.
func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		gateway: cfg.Gateway,
		catalog: cfg.Catalog,
		store:   cfg.Store,
		usage:   cfg.Usage,
		log:     log,
	}
}

// Routes returns the HTTP handler for all entry points.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat", s.handleStartTurn)
	mux.HandleFunc("POST /v1/chat/continue", s.handleContinue)
	mux.HandleFunc("GET /v1/tools", s.handleTools)
	return mux
}
