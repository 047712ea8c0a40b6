package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"chatrelay/pkg/config"
	"chatrelay/pkg/conversation"
	"chatrelay/pkg/prompt"
	"chatrelay/pkg/stream"
	"chatrelay/pkg/types"
	"chatrelay/pkg/usage"
)

// Caller-facing input limits, enforced at this boundary. Lengths count
// characters, not bytes.
const (
	maxMessageLen  = 10000
	maxHistory     = 100
	maxEntryLen    = 4000
	maxToolResults = 20
)

// Generic caller-visible failure messages. Internal detail stays in the logs.
const (
	errMsgUnknownModel = "the requested model is not available"
	errMsgGeneric      = "something went wrong while generating the response"
)

type startTurnRequest struct {
	Message             string                      `json:"message"`
	Model               string                      `json:"model"`
	ConversationHistory []conversation.HistoryEntry `json:"conversation_history,omitempty"`
	SiteProfile         map[string]any              `json:"site_profile,omitempty"`
	CustomSystemPrompt  string                      `json:"custom_system_prompt,omitempty"`
}

type continueRequest struct {
	Model               string                         `json:"model"`
	ToolResults         []conversation.ToolResult      `json:"tool_results"`
	ConversationHistory []conversation.HistoryEntry    `json:"conversation_history,omitempty"`
	PendingToolCalls    []conversation.PendingToolCall `json:"pending_tool_calls,omitempty"`
	SiteProfile         map[string]any                 `json:"site_profile,omitempty"`
	CustomSystemPrompt  string                         `json:"custom_system_prompt,omitempty"`
}

// handleStartTurn begins a fresh turn: history as supplied plus the new user
// message, no reconstruction needed because no tool cycle is in progress.
func (s *Server) handleStartTurn(w http.ResponseWriter, r *http.Request) {
	var req startTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if n := utf8.RuneCountInString(req.Message); n == 0 || n > maxMessageLen {
		badRequest(w, fmt.Sprintf("message must be 1-%d characters", maxMessageLen))
		return
	}
	if len(req.ConversationHistory) > maxHistory {
		badRequest(w, fmt.Sprintf("conversation_history exceeds %d entries", maxHistory))
		return
	}
	if req.Model == "" {
		badRequest(w, "model is required")
		return
	}

	history := truncateHistory(req.ConversationHistory)
	messages := append(conversation.FromHistory(history), types.NewText(types.RoleUser, req.Message))

	s.streamTurn(w, r, req.Model, req.SiteProfile, req.CustomSystemPrompt, messages)
}

// handleContinue resumes a conversation after the caller executed tools.
// Message-list construction is delegated entirely to the reconstructor.
func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	var req continueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	if len(req.ToolResults) == 0 || len(req.ToolResults) > maxToolResults {
		badRequest(w, fmt.Sprintf("tool_results must have 1-%d entries", maxToolResults))
		return
	}
	if len(req.ConversationHistory) > maxHistory {
		badRequest(w, fmt.Sprintf("conversation_history exceeds %d entries", maxHistory))
		return
	}
	if req.Model == "" {
		badRequest(w, "model is required")
		return
	}

	if conversation.SynthesizedFromResults(req.PendingToolCalls, req.ToolResults) {
		// The caller sent results without echoing the pending calls; the
		// synthesized tool_use blocks carry empty inputs, which loses any
		// real parameters. Worth noticing in the logs.
		s.log.Warn("continuation without pending_tool_calls, synthesizing tool_use from results",
			"results", len(req.ToolResults))
	}

	history := truncateHistory(req.ConversationHistory)
	messages := conversation.Reconstruct(history, req.PendingToolCalls, req.ToolResults)

	s.streamTurn(w, r, req.Model, req.SiteProfile, req.CustomSystemPrompt, messages)
}

// handleTools reports the catalog, optionally reshaped for one provider's
// wire schema.
func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if p := r.URL.Query().Get("provider"); p != "" {
		defer func() {
			if rec := recover(); rec != nil {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"error": "unknown provider"})
			}
		}()
		json.NewEncoder(w).Encode(s.catalog.ForProvider(p))
		return
	}
	json.NewEncoder(w).Encode(s.catalog.List())
}

// streamTurn drives the gateway and translates its normalized output into
// the caller-visible event sequence. Every failure past this point becomes a
// single generic error event; nothing internal leaks to the caller.
func (s *Server) streamTurn(w http.ResponseWriter, r *http.Request, model string, profile map[string]any, custom string, messages []types.Message) {
	requestID := uuid.NewString()
	log := s.log.With("request_id", requestID, "model", model)
	start := time.Now()

	sink := stream.NewSSE(w)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("panic in turn handler", "panic", rec)
			sink.Send(stream.Event{Type: stream.EventError, Message: errMsgGeneric})
		}
	}()

	system := prompt.BuildSystem(profile, custom)

	resp, err := s.gateway.Send(r.Context(), model, system, messages, sink)
	if err != nil {
		msg := errMsgGeneric
		if errors.Is(err, config.ErrUnknownModel) {
			msg = errMsgUnknownModel
		}
		log.Error("turn failed", "error", err, "elapsed", time.Since(start))
		sink.Send(stream.Event{Type: stream.EventError, Message: msg})
		return
	}

	// All tool_call events precede usage, which precedes done.
	for _, call := range resp.ToolUses() {
		confirm := s.catalog.RequiresConfirmation(call.Name)
		status := stream.StatusExecute
		if confirm {
			status = stream.StatusPendingConfirmation
		}
		sink.Send(stream.Event{
			Type:                 stream.EventToolCall,
			ToolCallID:           call.ID,
			Tool:                 call.Name,
			Input:                call.Input,
			RequiresConfirmation: confirm,
			Status:               status,
		})
	}

	usageEvt := stream.Event{Type: stream.EventUsage}
	if resp.Usage != nil {
		usageEvt.InputTokens = &resp.Usage.InputTokens
		usageEvt.OutputTokens = &resp.Usage.OutputTokens
	}
	sink.Send(usageEvt)
	sink.Send(stream.Event{Type: stream.EventDone, StopReason: resp.StopReason})

	s.recordUsage(r, model, resp)
	log.Info("turn complete",
		"stop_reason", resp.StopReason,
		"tool_calls", len(resp.ToolUses()),
		"elapsed", time.Since(start))
}

// recordUsage appends the turn to the ledger, best effort.
func (s *Server) recordUsage(r *http.Request, model string, resp *types.NormalizedResponse) {
	if s.usage == nil || resp.Usage == nil {
		return
	}
	providerName := ""
	if s.store != nil {
		if route, err := s.store.Load().Resolve(model); err == nil {
			providerName = route.Provider
		}
	}
	err := s.usage.Record(r.Context(), usage.Entry{
		Model:        model,
		Provider:     providerName,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		ToolCalls:    len(resp.ToolUses()),
	})
	if err != nil {
		s.log.Warn("usage record failed", "error", err)
	}
}

func truncateHistory(entries []conversation.HistoryEntry) []conversation.HistoryEntry {
	out := make([]conversation.HistoryEntry, len(entries))
	for i, e := range entries {
		if s, ok := e.Content.(string); ok && utf8.RuneCountInString(s) > maxEntryLen {
			e.Content = string([]rune(s)[:maxEntryLen])
		}
		out[i] = e
	}
	return out
}

func badRequest(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
