package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ent0n29/enrollassist/internal/conversation"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientSubmit  MessageType = "client_submit"
	TypeClientControl MessageType = "client_control"
	TypeTurnSnapshot  MessageType = "turn_snapshot"
	TypeTurnAppended  MessageType = "turn_appended"
	TypeTurnDelta     MessageType = "turn_delta"
	TypeTurnCompleted MessageType = "turn_completed"
	TypeStateChanged  MessageType = "state_changed"
	TypeSubmitResult  MessageType = "submit_result"
	TypeErrorEvent    MessageType = "error_event"
)

const (
	ActionEnd      = "end"
	ActionSnapshot = "snapshot"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientSubmit struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Text        string      `json:"text"`
	ClientMsgID string      `json:"client_msg_id,omitempty"`
}

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
}

type TurnSnapshot struct {
	Type      MessageType         `json:"type"`
	SessionID string              `json:"session_id"`
	State     conversation.State  `json:"state"`
	Turns     []conversation.Turn `json:"turns"`
	Facts     map[string]string   `json:"facts,omitempty"`
}

type TurnAppended struct {
	Type      MessageType       `json:"type"`
	SessionID string            `json:"session_id"`
	Turn      conversation.Turn `json:"turn"`
}

// TurnDelta carries the whole revealed text so far; clients replace, not append.
type TurnDelta struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	TurnID    int         `json:"turn_id"`
	Text      string      `json:"text"`
}

type TurnCompleted struct {
	Type      MessageType       `json:"type"`
	SessionID string            `json:"session_id"`
	Turn      conversation.Turn `json:"turn"`
}

type StateChanged struct {
	Type      MessageType        `json:"type"`
	SessionID string             `json:"session_id"`
	State     conversation.State `json:"state"`
}

type SubmitResult struct {
	Type        MessageType        `json:"type"`
	SessionID   string             `json:"session_id"`
	ClientMsgID string             `json:"client_msg_id,omitempty"`
	Accepted    bool               `json:"accepted"`
	State       conversation.State `json:"state"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientSubmit:
		var msg ClientSubmit
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid client_submit")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		msg.Action = strings.ToLower(strings.TrimSpace(msg.Action))
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// FromUpdate maps a conversation log update onto its wire message.
func FromUpdate(sessionID string, u conversation.Update) any {
	switch u.Kind {
	case conversation.UpdateAppended:
		return TurnAppended{Type: TypeTurnAppended, SessionID: sessionID, Turn: u.Turn}
	case conversation.UpdateDelta:
		return TurnDelta{Type: TypeTurnDelta, SessionID: sessionID, TurnID: u.Turn.ID, Text: u.Turn.Text}
	case conversation.UpdateCompleted:
		return TurnCompleted{Type: TypeTurnCompleted, SessionID: sessionID, Turn: u.Turn}
	default:
		return StateChanged{Type: TypeStateChanged, SessionID: sessionID, State: u.State}
	}
}
