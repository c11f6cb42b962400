package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ent0n29/enrollassist/internal/conversation"
	"github.com/ent0n29/enrollassist/internal/protocol"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsReadTimeout  = 120 * time.Second
	wsPingInterval = 30 * time.Second
)

// handleSessionWS streams one session's log to the widget and accepts submissions.
// All writes happen on the writer goroutine.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	conv, err := s.sessions.Conversation(sessionID)
	if err != nil {
		respondSessionError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.metrics.SessionEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Subscribe before the snapshot; clients key turns by id, so a repeat is harmless.
	updates, unsubscribe := conv.Subscribe()
	defer func() { unsubscribe() }()

	outbound := make(chan any, 64)
	outbound <- snapshotMessage(conv)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		// Closing the connection unblocks the read loop.
		defer conn.Close()
		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()
		for {
			var msg any
			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
				continue
			case m := <-outbound:
				msg = m
			case u, ok := <-updates:
				switch {
				case ok:
					msg = protocol.FromUpdate(sessionID, u)
				case conv.State() != conversation.StateClosed:
					// Dropped for lagging; start over from a fresh snapshot.
					unsubscribe()
					updates, unsubscribe = conv.Subscribe()
					s.metrics.WSMessages.WithLabelValues("outbound", "resync").Inc()
					msg = snapshotMessage(conv)
				default:
					// The session ended; say goodbye and hang up.
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
						time.Now().Add(wsWriteTimeout))
					return
				}
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				s.metrics.WSMessages.WithLabelValues("outbound", "write_error").Inc()
				return
			}
			if t, ok := messageTypeOf(msg); ok {
				s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
			}
		}
	}()

	queue := func(msg any) {
		select {
		case outbound <- msg:
		default:
			// Keep websocket writes single-threaded; drop if the queue is saturated.
			s.metrics.WSMessages.WithLabelValues("outbound", "drop_full").Inc()
		}
	}

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			queue(errorEvent(sessionID, "invalid_client_message", err.Error()))
			continue
		}
		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}

		switch m := parsed.(type) {
		case protocol.ClientSubmit:
			if m.SessionID != sessionID {
				queue(errorEvent(sessionID, "session_mismatch", "message session_id does not match the connection"))
				continue
			}
			accepted, state, err := s.sessions.Submit(sessionID, m.Text)
			if err != nil {
				queue(errorEvent(sessionID, "session_unavailable", err.Error()))
				continue
			}
			queue(protocol.SubmitResult{
				Type:        protocol.TypeSubmitResult,
				SessionID:   sessionID,
				ClientMsgID: m.ClientMsgID,
				Accepted:    accepted,
				State:       state,
			})
		case protocol.ClientControl:
			if m.SessionID != sessionID {
				queue(errorEvent(sessionID, "session_mismatch", "message session_id does not match the connection"))
				continue
			}
			switch m.Action {
			case protocol.ActionSnapshot:
				queue(snapshotMessage(conv))
			case protocol.ActionEnd:
				if _, err := s.sessions.End(sessionID); err != nil {
					s.logger.Debug("ws end failed", zap.String("session_id", sessionID), zap.Error(err))
					continue
				}
				s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
				s.metrics.SessionEvents.WithLabelValues("ended").Inc()
			default:
				queue(errorEvent(sessionID, "unsupported_action", "unknown control action "+m.Action))
			}
		}
	}

	cancel()
	<-writerDone
	s.metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
}

func snapshotMessage(conv *conversation.Session) protocol.TurnSnapshot {
	snap := conv.Snapshot()
	return protocol.TurnSnapshot{
		Type:      protocol.TypeTurnSnapshot,
		SessionID: snap.ID,
		State:     snap.State,
		Turns:     snap.Turns,
		Facts:     snap.Facts,
	}
}

func errorEvent(sessionID, code, detail string) protocol.ErrorEvent {
	return protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: sessionID,
		Code:      code,
		Source:    "gateway",
		Retryable: false,
		Detail:    detail,
	}
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientSubmit:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.TurnSnapshot:
		return m.Type, true
	case protocol.TurnAppended:
		return m.Type, true
	case protocol.TurnDelta:
		return m.Type, true
	case protocol.TurnCompleted:
		return m.Type, true
	case protocol.StateChanged:
		return m.Type, true
	case protocol.SubmitResult:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
