package session

import (
	"time"

	"github.com/ent0n29/enrollassist/internal/conversation"
)

// CreateRequest defines payload for opening a widget session.
type CreateRequest struct {
	VisitorID string `json:"visitor_id"`
	Page      string `json:"page"`
}

// CreateResponse returns created session metadata.
type CreateResponse struct {
	SessionID        string             `json:"session_id"`
	VisitorID        string             `json:"visitor_id,omitempty"`
	Status           Status             `json:"status"`
	State            conversation.State `json:"state"`
	KnowledgeVersion string             `json:"knowledge_version"`
	StartedAt        time.Time          `json:"started_at"`
	LastActivityAt   time.Time          `json:"last_activity_at"`
	InactivityTTLMS  int64              `json:"inactivity_ttl_ms"`
}

// Detail is a session plus its conversation log.
type Detail struct {
	Session
	Turns []conversation.Turn `json:"turns"`
	Facts map[string]string   `json:"facts"`
}
