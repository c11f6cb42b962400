package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ent0n29/enrollassist/internal/knowledge"
)

type statusCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type statusResponse struct {
	KnowledgeSource  string        `json:"knowledge_source"`
	KnowledgeVersion string        `json:"knowledge_version"`
	ActiveSessions   int           `json:"active_sessions"`
	Checks           []statusCheck `json:"checks"`
}

// handleStatus is the operator view: what is loaded and which settings need attention.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	table := s.registry.Current()
	mode := knowledge.ResolveMode(s.cfg.KnowledgeOptions())

	checks := make([]statusCheck, 0, 6)
	checks = append(checks, statusCheck{
		ID:     "knowledge_table",
		Status: "ok",
		Label:  "Knowledge table",
		Detail: fmt.Sprintf("%d entries, version %s (%s)", table.Len(), table.Version(), table.Source()),
	})
	if mode == knowledge.ModeEmbedded {
		checks = append(checks, statusCheck{
			ID:     "knowledge_source",
			Status: "warn",
			Label:  "Knowledge source",
			Detail: "using the built-in rule set",
			Fix:    "Set APP_KNOWLEDGE_PATH, APP_SQLITE_PATH or DATABASE_URL to serve your own answers.",
		})
	} else {
		checks = append(checks, statusCheck{
			ID:     "knowledge_source",
			Status: "ok",
			Label:  "Knowledge source",
			Detail: mode,
		})
	}
	if mode == knowledge.ModeFile {
		check := statusCheck{ID: "knowledge_watch", Status: "ok", Label: "Hot reload", Detail: "watching rule files"}
		if !s.cfg.KnowledgeWatch {
			check.Status = "warn"
			check.Detail = "disabled"
			check.Fix = "Set APP_KNOWLEDGE_WATCH=true to pick up rule edits without a restart."
		}
		checks = append(checks, check)
	}

	switch {
	case s.cfg.AllowAnyOrigin:
		checks = append(checks, statusCheck{
			ID:     "origins",
			Status: "warn",
			Label:  "Allowed origins",
			Detail: "any origin may open widget sessions",
			Fix:    "Set APP_ALLOWED_ORIGINS to the marketing site origins and unset APP_ALLOW_ANY_ORIGIN.",
		})
	case len(s.cfg.AllowedOrigins) > 0:
		checks = append(checks, statusCheck{
			ID:     "origins",
			Status: "ok",
			Label:  "Allowed origins",
			Detail: strings.Join(s.cfg.AllowedOrigins, ", "),
		})
	default:
		checks = append(checks, statusCheck{
			ID:     "origins",
			Status: "ok",
			Label:  "Allowed origins",
			Detail: "same origin only",
		})
	}

	if s.cfg.ThinkDelayMax == 0 && s.cfg.RevealDelayMax == 0 {
		checks = append(checks, statusCheck{
			ID:     "pacing",
			Status: "warn",
			Label:  "Response pacing",
			Detail: "think and reveal delays are zero",
			Fix:    "Zero delays are meant for tests; set APP_THINK_DELAY_MIN/MAX for production.",
		})
	}

	respondJSON(w, http.StatusOK, statusResponse{
		KnowledgeSource:  mode,
		KnowledgeVersion: table.Version(),
		ActiveSessions:   s.sessions.ActiveCount(),
		Checks:           checks,
	})
}
