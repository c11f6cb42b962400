package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/enrollassist/internal/knowledge"
	"github.com/ent0n29/enrollassist/internal/matcher"
)

type Options struct {
	ThinkDelay    DelayFunc
	RevealDelay   DelayFunc
	Sleep         SleepFunc
	ContextWindow int
	Now           func() time.Time
	Logger        *zap.Logger
	// OnTurnComplete runs on the turn goroutine after a turn is finalized. It must not
	// call Close on the same session.
	OnTurnComplete func(TurnReport)
}

// TurnReport summarizes a finished turn for metrics and logging.
type TurnReport struct {
	SessionID        string
	KnowledgeVersion string
	Input            string
	Response         matcher.Response
	Candidates       int
	Facts            map[string]string
	ThinkDelay       time.Duration
	Reveal           time.Duration
	Total            time.Duration
}

type Snapshot struct {
	ID               string            `json:"session_id"`
	State            State             `json:"state"`
	KnowledgeVersion string            `json:"knowledge_version"`
	OpenedAt         time.Time         `json:"opened_at"`
	Turns            []Turn            `json:"turns"`
	Facts            map[string]string `json:"facts"`
}

// Session is one open widget: its own rule snapshot, context tracker, log and
// sequencer. Sessions share nothing with each other.
type Session struct {
	id       string
	version  string
	entries  []knowledge.Entry
	opts     Options
	log      *Log
	openedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	state    State
	tracker  *matcher.Tracker
	turnDone chan struct{}
}

// Open starts a session against table. The table's entries are copied, so later
// registry swaps never affect it.
func Open(id string, table *knowledge.Table, opts Options) *Session {
	if opts.ThinkDelay == nil {
		opts.ThinkDelay = DefaultThinkDelay
	}
	if opts.RevealDelay == nil {
		opts.RevealDelay = DefaultRevealDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:       id,
		version:  table.Version(),
		entries:  table.Entries(),
		opts:     opts,
		log:      NewLog(opts.Now),
		openedAt: opts.Now().UTC(),
		ctx:      ctx,
		cancel:   cancel,
		state:    StateIdle,
		tracker:  matcher.NewTracker(opts.ContextWindow),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) KnowledgeVersion() string { return s.version }

// Submit starts a turn. It returns false, changing nothing, for blank input or when a
// turn is already in flight.
func (s *Session) Submit(raw string) bool {
	text := strings.TrimSpace(raw)
	if text == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return false
	}
	user := s.log.Append(RoleUser, text, false)
	s.setStateLocked(StateAwaitingThinkDelay)

	done := make(chan struct{})
	s.turnDone = done
	s.wg.Add(1)
	go s.runTurn(s.ctx, user, done)
	return true
}

// Close cancels any in-flight turn and waits for it to stop. No log mutation or
// callback happens after Close returns.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.setStateLocked(StateClosed)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.log.Shutdown()
}

// WaitIdle blocks until the current turn, if any, has finished.
func (s *Session) WaitIdle(ctx context.Context) error {
	s.mu.Lock()
	done := s.turnDone
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Turns() []Turn {
	return s.log.Turns()
}

func (s *Session) TurnCount() int {
	return s.log.Len()
}

func (s *Session) Facts() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Facts()
}

// Recent returns the context window, oldest first.
func (s *Session) Recent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Recent()
}

func (s *Session) Subscribe() (<-chan Update, func()) {
	return s.log.Subscribe()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	state := s.state
	facts := s.tracker.Facts()
	s.mu.Unlock()
	return Snapshot{
		ID:               s.id,
		State:            state,
		KnowledgeVersion: s.version,
		OpenedAt:         s.openedAt,
		Turns:            s.log.Turns(),
		Facts:            facts,
	}
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	s.log.PublishState(state)
}
