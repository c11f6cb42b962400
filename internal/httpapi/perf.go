package httpapi

import (
	"net/http"

	"github.com/ent0n29/enrollassist/internal/observability"
)

type latencyReport struct {
	observability.TurnWindowSnapshot
	KnowledgeVersion string `json:"knowledge_version"`
	ActiveSessions   int    `json:"active_sessions"`
}

// handlePerfLatency reports recent turn pacing and match outcomes.
func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	report := latencyReport{ActiveSessions: s.sessions.ActiveCount()}
	if table := s.registry.Current(); table != nil {
		report.KnowledgeVersion = table.Version()
	}
	if s.metrics != nil {
		report.TurnWindowSnapshot = s.metrics.SnapshotTurns()
	}
	if report.Stages == nil {
		report.Stages = []observability.StageStats{}
	}
	respondJSON(w, http.StatusOK, report)
}
