package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/enrollassist/internal/conversation"
	"github.com/ent0n29/enrollassist/internal/session"
)

type submitRequest struct {
	Text string `json:"text"`
}

type submitResponse struct {
	SessionID string             `json:"session_id"`
	Accepted  bool               `json:"accepted"`
	State     conversation.State `json:"state"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sess := s.sessions.Create(req)
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:        sess.ID,
		VisitorID:        sess.VisitorID,
		Status:           sess.Status,
		State:            sess.State,
		KnowledgeVersion: sess.KnowledgeVersion,
		StartedAt:        sess.StartedAt,
		LastActivityAt:   sess.LastActivityAt,
		InactivityTTLMS:  s.sessions.InactivityTimeout().Milliseconds(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	detail, err := s.sessions.Detail(chi.URLParam(r, "id"))
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	accepted, state, err := s.sessions.Submit(id, req.Text)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	event := "submit_accepted"
	if !accepted {
		event = "submit_ignored"
	}
	s.metrics.SessionEvents.WithLabelValues(event).Inc()
	respondJSON(w, http.StatusAccepted, submitResponse{SessionID: id, Accepted: accepted, State: state})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
	s.metrics.SessionEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, sess)
}
