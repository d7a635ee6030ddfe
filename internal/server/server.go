// Package server exposes the deliberation pipeline over HTTP. Message and
// retry endpoints stream progress as server-sent events; a deliberation
// always runs to completion server-side, so a dropped stream costs the
// client nothing but the live view.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/synod-dev/synod/internal/council"
	"github.com/synod-dev/synod/internal/errors"
	"github.com/synod-dev/synod/internal/logging"
	"github.com/synod-dev/synod/internal/store"
	"github.com/synod-dev/synod/internal/transport"
)

// Enricher optionally augments a question with retrieved context before
// the first stage. The returned text is prepended opaquely to the
// response prompt; an error only disables enrichment for that message.
type Enricher interface {
	Enrich(ctx context.Context, content string) (string, error)
}

// Server wires the store and orchestrator to HTTP handlers.
type Server struct {
	store    *store.Store
	orch     *council.Orchestrator
	logger   *logging.Logger
	enricher Enricher
}

// New creates a Server. enricher may be nil.
func New(st *store.Store, orch *council.Orchestrator, logger *logging.Logger, enricher Enricher) *Server {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Server{store: st, orch: orch, logger: logger, enricher: enricher}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/conversations", s.handleList)
	mux.HandleFunc("POST /api/conversations", s.handleCreate)
	mux.HandleFunc("GET /api/conversations/{id}", s.handleGet)
	mux.HandleFunc("DELETE /api/conversations/{id}", s.handleDelete)
	mux.HandleFunc("POST /api/conversations/{id}/message", s.handleMessage)
	mux.HandleFunc("POST /api/conversations/{id}/retry-synthesis", s.handleRetrySynthesis)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	summaries, err := s.store.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if summaries == nil {
		summaries = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

type createRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err))
		return
	}
	conv, err := s.store.Create(req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, conv)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	conv, err := s.store.Load(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type messageRequest struct {
	Content      string       `json:"content"`
	Mode         council.Mode `json:"mode,omitempty"`
	DebateRounds int          `json:"debate_rounds,omitempty"`
	Resume       bool         `json:"resume,omitempty"`
}

// handleMessage runs a full deliberation for a conversation, streaming
// events. The run is detached from the request context: closing the
// stream abandons the view, never the work.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	logger := s.logger.WithConversation(id)

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errors.ErrInvalidInput, err))
		return
	}
	if req.Content == "" && !req.Resume {
		s.writeError(w, fmt.Errorf("%w: content is required", errors.ErrInvalidInput))
		return
	}

	conv, err := s.store.Load(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	lock, err := s.store.AcquireLock(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer lock.Release()

	if req.Content != "" {
		conv, err = s.store.AppendMessage(id, store.Message{
			Role:      "user",
			Content:   req.Content,
			CreatedAt: time.Now(),
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
	}

	sse, err := transport.NewWriter(w)
	if err != nil {
		s.writeError(w, err)
		return
	}

	question := req.Content
	if question == "" {
		question = lastUserContent(conv)
	}

	runReq := council.Request{
		ConversationID: id,
		Content:        question,
		Mode:           req.Mode,
		DebateRounds:   req.DebateRounds,
		Resume:         req.Resume,
	}
	if s.enricher != nil {
		enriched, err := s.enricher.Enrich(r.Context(), question)
		if err != nil {
			logger.Warn("enrichment failed, continuing without", "error", err)
		} else {
			runReq.Context = enriched
		}
	}

	session, runErr := s.orch.Run(context.WithoutCancel(r.Context()), runReq, sse.Emitter())
	if runErr != nil {
		logger.Error("deliberation failed", "error", runErr)
		if session == nil {
			return
		}
	}

	content := ""
	if session.Synthesis != nil {
		content = session.Synthesis.Content
	}
	if _, err := s.store.AppendMessage(id, store.Message{
		Role:      "assistant",
		Content:   content,
		Session:   session,
		CreatedAt: time.Now(),
	}); err != nil {
		logger.Error("failed to persist assistant message", "error", err)
	}
}

// handleRetrySynthesis reruns only the synthesis stage of the most recent
// deliberation, replacing the stored Synthesis entity in place.
func (s *Server) handleRetrySynthesis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	logger := s.logger.WithConversation(id)

	conv, err := s.store.Load(id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	msgIndex := lastSessionIndex(conv)
	if msgIndex < 0 {
		s.writeError(w, fmt.Errorf("%w: no deliberation to retry", errors.ErrInvalidInput))
		return
	}

	lock, err := s.store.AcquireLock(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer lock.Release()

	sse, err := transport.NewWriter(w)
	if err != nil {
		s.writeError(w, err)
		return
	}

	session := s.orch.RetrySynthesis(context.WithoutCancel(r.Context()), id, conv.Messages[msgIndex].Session, sse.Emitter())

	conv.Messages[msgIndex].Session = session
	if session.Synthesis != nil {
		conv.Messages[msgIndex].Content = session.Synthesis.Content
	}
	if err := s.store.Save(conv); err != nil {
		logger.Error("failed to persist retried synthesis", "error", err)
	}
}

func lastUserContent(conv *store.Conversation) string {
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Role == "user" {
			return conv.Messages[i].Content
		}
	}
	return ""
}

func lastSessionIndex(conv *store.Conversation) int {
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Session != nil {
			return i
		}
	}
	return -1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errors.ErrConversationNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errors.ErrConversationLocked):
		status = http.StatusConflict
	case errors.Is(err, errors.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, errors.ErrConversationCorrupted):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
