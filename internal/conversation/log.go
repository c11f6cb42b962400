package conversation

import (
	"sync"
	"time"

	"github.com/ent0n29/enrollassist/internal/matcher"
)

type UpdateKind string

const (
	UpdateAppended  UpdateKind = "appended"
	UpdateDelta     UpdateKind = "delta"
	UpdateCompleted UpdateKind = "completed"
	UpdateState     UpdateKind = "state"
)

const subscriberBuffer = 128

// Update is one observable mutation of the log. Turn holds a full copy of the turn, so
// a later delta supersedes an earlier one.
type Update struct {
	Kind  UpdateKind
	Turn  Turn
	State State
}

// Log is the append-only conversation log of one session.
type Log struct {
	mu     sync.Mutex
	now    func() time.Time
	turns  []Turn
	nextID int

	subscribers map[int]chan Update
	nextSubID   int
	lagged      int
	closed      bool
}

func NewLog(now func() time.Time) *Log {
	if now == nil {
		now = time.Now
	}
	return &Log{
		now:         now,
		subscribers: make(map[int]chan Update),
	}
}

// Subscribe returns a channel of updates and a func that releases it. The channel is
// closed on release, when the log is shut down, or when the subscriber falls so far
// behind that an appended or completed update no longer fits. A subscriber closed
// while the session is still open should resubscribe and resync from a snapshot.
func (l *Log) Subscribe() (<-chan Update, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		ch := make(chan Update)
		close(ch)
		return ch, func() {}
	}
	ch := make(chan Update, subscriberBuffer)
	l.nextSubID++
	id := l.nextSubID
	l.subscribers[id] = ch

	return ch, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if c, ok := l.subscribers[id]; ok {
			delete(l.subscribers, id)
			close(c)
		}
	}
}

func (l *Log) Append(role Role, text string, revealing bool) Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	t := Turn{
		ID:        l.nextID,
		Role:      role,
		Text:      text,
		CreatedAt: l.now().UTC(),
		Revealing: revealing,
	}
	l.turns = append(l.turns, t)
	l.publishLocked(Update{Kind: UpdateAppended, Turn: t.clone()}, true)
	return t.clone()
}

// SetText replaces the text of a turn that is still revealing.
func (l *Log) SetText(id int, text string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.findLocked(id)
	if t == nil || !t.Revealing {
		return false
	}
	t.Text = text
	l.publishLocked(Update{Kind: UpdateDelta, Turn: t.clone()}, false)
	return true
}

// Finalize attaches the resolved response to a revealing turn and freezes it.
func (l *Log) Finalize(id int, resp matcher.Response) (Turn, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.findLocked(id)
	if t == nil || !t.Revealing {
		return Turn{}, false
	}
	confidence := resp.Confidence
	t.Text = resp.Text
	t.Confidence = &confidence
	t.Category = resp.Category
	t.EntryID = resp.EntryID
	t.Suggestions = resp.FollowUps
	t.Links = resp.Links
	t.Actions = resp.Actions
	t.Revealing = false
	out := t.clone()
	l.publishLocked(Update{Kind: UpdateCompleted, Turn: out}, true)
	return out.clone(), true
}

func (l *Log) PublishState(state State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.publishLocked(Update{Kind: UpdateState, State: state}, true)
}

func (l *Log) Turns() []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Turn, len(l.turns))
	for i, t := range l.turns {
		out[i] = t.clone()
	}
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}

// Shutdown closes every subscriber; later subscriptions get a closed channel.
func (l *Log) Shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	for id, ch := range l.subscribers {
		delete(l.subscribers, id)
		close(ch)
	}
}

func (l *Log) findLocked(id int) *Turn {
	for i := len(l.turns) - 1; i >= 0; i-- {
		if l.turns[i].ID == id {
			return &l.turns[i]
		}
	}
	return nil
}

// publishLocked fans out an update without blocking. A full subscriber loses reveal
// deltas and is cut loose on anything else.
func (l *Log) publishLocked(u Update, critical bool) {
	for id, ch := range l.subscribers {
		select {
		case ch <- u:
		default:
			if critical {
				delete(l.subscribers, id)
				close(ch)
				l.lagged++
			}
		}
	}
}

// Lagged reports how many subscribers were dropped for falling behind.
func (l *Log) Lagged() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lagged
}
