package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/otic-foundation/chatrelay/pkg/guardrails"
	"github.com/otic-foundation/chatrelay/pkg/logging"
	"github.com/otic-foundation/chatrelay/pkg/relay"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Stream    *bool  `json:"stream"`
}

// handleChat serves POST /chat. The response body is plain text either
// way: a single canned message for rejected requests, the streamed
// generation otherwise. Guard rejections are normal outcomes and keep a
// success status.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	clientKey := clientIP(r)

	// Callers that send no session id get one scoped to their own
	// address rather than a shared default, so anonymous users never
	// see each other's conversation.
	session := req.SessionID
	if session == "" {
		session = clientKey
	}

	ctx := logging.WithSessionID(r.Context(), session)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if req.Stream != nil && !*req.Stream {
		s.chatOnce(ctx, w, clientKey, session, req.Message)
		return
	}

	flusher, canFlush := w.(http.Flusher)
	sink := func(chunk string) error {
		if _, err := w.Write([]byte(chunk)); err != nil {
			return err
		}
		if canFlush {
			flusher.Flush()
		}
		return nil
	}

	decision, text, err := s.service.ChatStream(ctx, clientKey, session, req.Message, sink)
	switch {
	case errors.Is(err, relay.ErrClientGone):
		// nothing left to write
	case err != nil:
		s.logger.Error(ctx, "Chat request failed", map[string]interface{}{"error": err.Error()})
		_, _ = w.Write([]byte(relay.FallbackText))
	case decision != guardrails.Allow:
		_, _ = w.Write([]byte(text))
	}
}

// chatOnce serves the non-streaming variant: the whole reply is
// generated, sentence-truncated to the budget, and written at once
func (s *Server) chatOnce(ctx context.Context, w http.ResponseWriter, clientKey, session, message string) {
	_, text, err := s.service.ChatOnce(ctx, clientKey, session, message)
	if err != nil {
		s.logger.Error(ctx, "Chat request failed", map[string]interface{}{"error": err.Error()})
		text = relay.FallbackText
	}
	_, _ = w.Write([]byte(text))
}

// handleHealth serves GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":     "healthy",
		"guardrails": "active",
	})
}

// handleRoot serves GET / with service metadata
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"name":        ServiceName,
		"version":     ServiceVersion,
		"description": ServiceDescription,
		"endpoints":   []string{"POST /chat", "GET /health", "GET /"},
		"guardrails":  true,
	})
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
