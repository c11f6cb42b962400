package httpapi

import (
	"net/http"

	"github.com/ent0n29/enrollassist/internal/matcher"
)

type widgetSettingsResponse struct {
	KnowledgeVersion   string   `json:"knowledge_version"`
	ContextWindow      int      `json:"context_window"`
	ThinkDelayMinMS    int64    `json:"think_delay_min_ms"`
	ThinkDelayMaxMS    int64    `json:"think_delay_max_ms"`
	RevealDelayMinMS   int64    `json:"reveal_delay_min_ms"`
	RevealDelayMaxMS   int64    `json:"reveal_delay_max_ms"`
	InactivityTTLMS    int64    `json:"inactivity_ttl_ms"`
	StarterSuggestions []string `json:"starter_suggestions"`
}

func (s *Server) handleWidgetSettings(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, widgetSettingsResponse{
		KnowledgeVersion:   s.registry.Current().Version(),
		ContextWindow:      s.cfg.ContextWindow,
		ThinkDelayMinMS:    s.cfg.ThinkDelayMin.Milliseconds(),
		ThinkDelayMaxMS:    s.cfg.ThinkDelayMax.Milliseconds(),
		RevealDelayMinMS:   s.cfg.RevealDelayMin.Milliseconds(),
		RevealDelayMaxMS:   s.cfg.RevealDelayMax.Milliseconds(),
		InactivityTTLMS:    s.sessions.InactivityTimeout().Milliseconds(),
		StarterSuggestions: matcher.Fallback().FollowUps,
	})
}
