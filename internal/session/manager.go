package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/enrollassist/internal/conversation"
	"github.com/ent0n29/enrollassist/internal/knowledge"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrEnded    = errors.New("session ended")
)

type Session struct {
	ID               string             `json:"session_id"`
	VisitorID        string             `json:"visitor_id,omitempty"`
	Page             string             `json:"page,omitempty"`
	Status           Status             `json:"status"`
	State            conversation.State `json:"state"`
	KnowledgeVersion string             `json:"knowledge_version"`
	TurnCount        int                `json:"turn_count"`
	StartedAt        time.Time          `json:"started_at"`
	LastActivityAt   time.Time          `json:"last_activity_at"`
	EndedAt          time.Time          `json:"ended_at,omitzero"`
}

type record struct {
	meta Session
	conv *conversation.Session
}

// Manager owns every open widget session. Each session gets its own conversation
// opened against the registry's table at creation time.
type Manager struct {
	mu                sync.RWMutex
	sessions          map[string]*record
	sessionByVisitor  map[string]string
	inactivityTimeout time.Duration
	retention         time.Duration
	registry          *knowledge.Registry
	options           conversation.Options
	onExpire          func(*Session)
	now               func() time.Time
}

func NewManager(registry *knowledge.Registry, options conversation.Options, inactivityTimeout time.Duration) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 2 * time.Minute
	}
	return &Manager{
		sessions:          make(map[string]*record),
		sessionByVisitor:  make(map[string]string),
		inactivityTimeout: inactivityTimeout,
		retention:         5 * inactivityTimeout,
		registry:          registry,
		options:           options,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) SetExpireHook(hook func(*Session)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) InactivityTimeout() time.Duration { return m.inactivityTimeout }

// Create opens a new session. A visitor has at most one active session; opening a
// new one ends the previous.
func (m *Manager) Create(req CreateRequest) *Session {
	req.VisitorID = strings.TrimSpace(req.VisitorID)
	now := m.now()
	id := uuid.NewString()
	conv := conversation.Open(id, m.registry.Current(), m.options)
	rec := &record{
		meta: Session{
			ID:               id,
			VisitorID:        req.VisitorID,
			Page:             strings.TrimSpace(req.Page),
			Status:           StatusActive,
			KnowledgeVersion: conv.KnowledgeVersion(),
			StartedAt:        now,
			LastActivityAt:   now,
		},
		conv: conv,
	}

	var replaced *conversation.Session
	m.mu.Lock()
	if prevID, ok := m.sessionByVisitor[req.VisitorID]; ok && req.VisitorID != "" {
		if prev, ok := m.sessions[prevID]; ok && prev.meta.Status == StatusActive {
			m.endLocked(prev, now)
			replaced = prev.conv
		}
	}
	m.sessions[id] = rec
	if req.VisitorID != "" {
		m.sessionByVisitor[req.VisitorID] = id
	}
	out := m.snapshotLocked(rec)
	m.mu.Unlock()

	if replaced != nil {
		replaced.Close()
	}
	return out
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.snapshotLocked(rec), nil
}

func (m *Manager) Detail(sessionID string) (*Detail, error) {
	m.mu.RLock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		m.mu.RUnlock()
		return nil, ErrNotFound
	}
	meta := m.snapshotLocked(rec)
	conv := rec.conv
	m.mu.RUnlock()

	return &Detail{Session: *meta, Turns: conv.Turns(), Facts: conv.Facts()}, nil
}

// Conversation returns the live conversation of an active session.
func (m *Manager) Conversation(sessionID string) (*conversation.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.meta.Status != StatusActive {
		return nil, ErrEnded
	}
	return rec.conv, nil
}

// Submit forwards user text to the session. accepted is false when the text is blank
// or a turn is still in flight.
func (m *Manager) Submit(sessionID, text string) (bool, conversation.State, error) {
	conv, err := m.Conversation(sessionID)
	if err != nil {
		return false, "", err
	}
	accepted := conv.Submit(text)
	if accepted {
		_ = m.Touch(sessionID)
	}
	return accepted, conv.State(), nil
}

func (m *Manager) Touch(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	rec.meta.LastActivityAt = m.now()
	return nil
}

func (m *Manager) End(sessionID string) (*Session, error) {
	m.mu.Lock()
	rec, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	if rec.meta.Status != StatusEnded {
		m.endLocked(rec, m.now())
	}
	conv := rec.conv
	m.mu.Unlock()

	// Close is idempotent and waits for the turn goroutine, so it runs outside the lock.
	conv.Close()

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked(rec), nil
}

// CloseAll ends every active session; used on shutdown.
func (m *Manager) CloseAll() int {
	now := m.now()
	var convs []*conversation.Session
	m.mu.Lock()
	for _, rec := range m.sessions {
		if rec.meta.Status != StatusActive {
			continue
		}
		m.endLocked(rec, now)
		convs = append(convs, rec.conv)
	}
	m.mu.Unlock()

	for _, c := range convs {
		c.Close()
	}
	return len(convs)
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, rec := range m.sessions {
		if rec.meta.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := m.now()
	var (
		expired []*Session
		convs   []*conversation.Session
	)

	m.mu.Lock()
	for id, rec := range m.sessions {
		if rec.meta.Status != StatusActive {
			if now.Sub(rec.meta.EndedAt) >= m.retention {
				delete(m.sessions, id)
			}
			continue
		}
		if now.Sub(rec.meta.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		m.endLocked(rec, now)
		convs = append(convs, rec.conv)
		expired = append(expired, m.snapshotLocked(rec))
	}
	hook := m.onExpire
	m.mu.Unlock()

	for _, c := range convs {
		c.Close()
	}
	if hook != nil {
		for _, s := range expired {
			s.State = conversation.StateClosed
			hook(s)
		}
	}
}

func (m *Manager) endLocked(rec *record, now time.Time) {
	rec.meta.Status = StatusEnded
	rec.meta.LastActivityAt = now
	rec.meta.EndedAt = now
	if rec.meta.VisitorID != "" && m.sessionByVisitor[rec.meta.VisitorID] == rec.meta.ID {
		delete(m.sessionByVisitor, rec.meta.VisitorID)
	}
}

func (m *Manager) snapshotLocked(rec *record) *Session {
	c := rec.meta
	c.State = rec.conv.State()
	c.TurnCount = rec.conv.TurnCount()
	return &c
}
