package telegram

import (
	"testing"

	"github.com/tbourn/flatmate-bot/internal/gateway"
)

func TestToEvent_Text(t *testing.T) {
	u, err := DecodeUpdate([]byte(`{"update_id":10,"message":{"message_id":3,"from":{"id":7,"first_name":"Ann","last_name":"Lee","username":"ann"},"chat":{"id":-100,"type":"supergroup"},"text":"/start"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ev, ok := ToEvent(u)
	if !ok {
		t.Fatalf("text update ignored")
	}
	m, ok := ev.(*gateway.TextMessage)
	if !ok {
		t.Fatalf("event = %T", ev)
	}
	if m.UpdateID != 10 || m.ChatID != -100 || m.Kind != gateway.ChatSupergroup ||
		m.From.ID != 7 || m.From.LastName != "Lee" || m.Text != "/start" || m.Ref.MessageID != 3 {
		t.Fatalf("message = %+v", m)
	}
}

func TestToEvent_ButtonPress(t *testing.T) {
	u, _ := DecodeUpdate([]byte(`{"update_id":11,"callback_query":{"id":"q1","from":{"id":7,"first_name":"Ann"},"message":{"message_id":4,"chat":{"id":7,"type":"private"}},"data":"dw.load"}}`))
	ev, ok := ToEvent(u)
	p, isPress := ev.(*gateway.ButtonPress)
	if !ok || !isPress {
		t.Fatalf("event = %T, %v", ev, ok)
	}
	if p.ID != "q1" || p.Payload != "dw.load" || p.ChatID != 7 || p.Kind != gateway.ChatPrivate ||
		p.Ref != (gateway.MessageRef{ChatID: 7, MessageID: 4}) {
		t.Fatalf("press = %+v", p)
	}
}

func TestToEvent_Ignored(t *testing.T) {
	cases := []string{
		`{"update_id":1}`,
		`{"update_id":2,"message":{"message_id":1,"chat":{"id":1,"type":"private"},"text":"hi"}}`,
		`{"update_id":3,"message":{"message_id":1,"from":{"id":1,"is_bot":true,"first_name":"B"},"chat":{"id":1,"type":"private"},"text":"hi"}}`,
		`{"update_id":4,"message":{"message_id":1,"from":{"id":1,"first_name":"A"},"chat":{"id":1,"type":"private"}}}`,
	}
	for _, c := range cases {
		u, err := DecodeUpdate([]byte(c))
		if err != nil {
			t.Fatalf("decode %s: %v", c, err)
		}
		if ev, ok := ToEvent(u); ok {
			t.Fatalf("%s produced %T", c, ev)
		}
	}
	if _, err := DecodeUpdate([]byte(`{`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
