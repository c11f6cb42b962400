package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ent0n29/enrollassist/internal/knowledge"
	"github.com/ent0n29/enrollassist/internal/matcher"
)

type knowledgeInfo struct {
	Version    string   `json:"version"`
	Source     string   `json:"source"`
	Entries    int      `json:"entries"`
	Categories []string `json:"categories"`
}

// matchRequest scores text without a session. Recent stands in for the context
// window, oldest first.
type matchRequest struct {
	Text   string   `json:"text"`
	Recent []string `json:"recent,omitempty"`
}

type matchResponse struct {
	KnowledgeVersion string                `json:"knowledge_version"`
	Response         matcher.Response      `json:"response"`
	Ranking          []matcher.Explanation `json:"ranking"`
}

func (s *Server) handleKnowledgeInfo(w http.ResponseWriter, _ *http.Request) {
	table := s.registry.Current()
	respondJSON(w, http.StatusOK, knowledgeInfo{
		Version:    table.Version(),
		Source:     table.Source(),
		Entries:    table.Len(),
		Categories: table.Categories(),
	})
}

func (s *Server) handleKnowledgeSchema(w http.ResponseWriter, _ *http.Request) {
	raw, err := knowledge.Schema()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "schema_unavailable", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) handleKnowledgeMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			err = errors.New("text is required")
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	table := s.registry.Current()
	entries := table.Entries()
	var booster matcher.Booster
	if len(req.Recent) > 0 {
		// Same order as a live session: prior inputs, then the current one.
		tracker := matcher.NewTracker(matcher.DefaultWindow)
		for _, prior := range req.Recent {
			tracker.Record(prior)
		}
		tracker.Record(req.Text)
		booster = tracker
	}

	resp, _ := matcher.Match(req.Text, entries, booster)
	ranking := matcher.Explain(req.Text, entries, booster)
	if ranking == nil {
		ranking = []matcher.Explanation{}
	}
	respondJSON(w, http.StatusOK, matchResponse{
		KnowledgeVersion: table.Version(),
		Response:         resp,
		Ranking:          ranking,
	})
}
