package conversation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ent0n29/enrollassist/internal/matcher"
)

// runTurn drives one turn: think delay, match, reveal, finalize. Every mutation
// re-checks the session state under s.mu so nothing lands after Close.
func (s *Session) runTurn(ctx context.Context, user Turn, done chan struct{}) {
	defer s.wg.Done()
	defer close(done)

	started := s.opts.Now()
	if err := s.opts.Sleep(ctx, s.opts.ThinkDelay()); err != nil {
		return
	}
	thought := s.opts.Now()

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.tracker.Record(user.Text)
	s.tracker.ExtractFacts(user.Text)
	resp, ranked := matcher.Match(user.Text, s.entries, s.tracker)
	placeholder := s.log.Append(RoleAssistant, "", true)
	s.setStateLocked(StateRevealing)
	s.mu.Unlock()

	err := Reveal(ctx, resp.Text, s.opts.RevealDelay, s.opts.Sleep, func(partial string) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == StateClosed {
			return
		}
		s.log.SetText(placeholder.ID, partial)
	})
	if err != nil {
		return
	}
	revealed := s.opts.Now()

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.log.Finalize(placeholder.ID, resp)
	s.setStateLocked(StateIdle)
	facts := s.tracker.Facts()
	s.mu.Unlock()

	s.opts.Logger.Debug("turn completed",
		zap.String("session_id", s.id),
		zap.String("entry_id", resp.EntryID),
		zap.String("category", resp.Category),
		zap.Bool("matched", resp.Matched),
		zap.Float64("score", resp.Score),
		zap.Int("confidence", resp.Confidence))

	if s.opts.OnTurnComplete != nil {
		s.opts.OnTurnComplete(TurnReport{
			SessionID:        s.id,
			KnowledgeVersion: s.version,
			Input:            user.Text,
			Response:         resp,
			Candidates:       len(ranked),
			Facts:            facts,
			ThinkDelay:       thought.Sub(started),
			Reveal:           revealed.Sub(thought),
			Total:            nonNegative(revealed.Sub(started)),
		})
	}
}

func nonNegative(d time.Duration) time.Duration {
	return max(d, 0)
}
