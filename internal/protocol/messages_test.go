package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ent0n29/enrollassist/internal/conversation"
)

func TestParseClientMessageSubmit(t *testing.T) {
	raw := []byte(`{"type":"client_submit","session_id":"s1","text":"how do I apply","client_msg_id":"m1"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	submit, ok := msg.(ClientSubmit)
	if !ok {
		t.Fatalf("message type = %T, want ClientSubmit", msg)
	}
	if submit.SessionID != "s1" || submit.Text != "how do I apply" || submit.ClientMsgID != "m1" {
		t.Fatalf("unexpected submit: %+v", submit)
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestParseClientMessageControl(t *testing.T) {
	raw := []byte(`{"type":"client_control","session_id":"s1","action":" END "}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	control, ok := msg.(ClientControl)
	if !ok {
		t.Fatalf("message type = %T, want ClientControl", msg)
	}
	if control.SessionID != "s1" || control.Action != ActionEnd {
		t.Fatalf("unexpected client control: %+v", control)
	}
}

func TestParseClientMessageRejectsInvalid(t *testing.T) {
	cases := []string{
		`{"type":"client_submit","session_id":"","text":"hi"}`,
		`{"type":"client_control","session_id":"s1","action":""}`,
		`not json`,
	}
	for _, raw := range cases {
		if _, err := ParseClientMessage([]byte(raw)); err == nil {
			t.Fatalf("ParseClientMessage(%s) expected validation error", raw)
		}
	}
}

func TestFromUpdate(t *testing.T) {
	turn := conversation.Turn{ID: 2, Role: conversation.RoleAssistant, Text: "Applications open", Revealing: true}

	delta, ok := FromUpdate("s1", conversation.Update{Kind: conversation.UpdateDelta, Turn: turn}).(TurnDelta)
	if !ok {
		t.Fatalf("delta update did not map to TurnDelta")
	}
	if delta.TurnID != 2 || delta.Text != "Applications open" || delta.Type != TypeTurnDelta {
		t.Fatalf("unexpected delta: %+v", delta)
	}

	state, ok := FromUpdate("s1", conversation.Update{Kind: conversation.UpdateState, State: conversation.StateRevealing}).(StateChanged)
	if !ok || state.State != conversation.StateRevealing {
		t.Fatalf("unexpected state message: %+v", state)
	}

	raw, err := json.Marshal(FromUpdate("s1", conversation.Update{Kind: conversation.UpdateCompleted, Turn: turn}))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(raw), `"type":"turn_completed"`) {
		t.Fatalf("completed payload = %s", raw)
	}
}

func BenchmarkParseClientMessageSubmit(b *testing.B) {
	raw := []byte(`{"type":"client_submit","session_id":"s1","text":"what are the fees for the weekend batch","client_msg_id":"m7"}`)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := ParseClientMessage(raw); err != nil {
			b.Fatalf("ParseClientMessage() error = %v", err)
		}
	}
}
