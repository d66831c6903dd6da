package telegram

import (
	"encoding/json"
	"fmt"

	"github.com/tbourn/flatmate-bot/internal/gateway"
)

// DecodeUpdate parses a raw update body as delivered to the webhook.
func DecodeUpdate(body []byte) (Update, error) {
	var u Update
	if err := json.Unmarshal(body, &u); err != nil {
		return Update{}, fmt.Errorf("telegram: decode update: %w", err)
	}
	return u, nil
}

// ToEvent converts an update into a gateway event. ok is false for updates
// the bot ignores: edits, stickers, messages from bots, service messages.
func ToEvent(u Update) (ev gateway.Event, ok bool) {
	switch {
	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		if cq.From.IsBot {
			return nil, false
		}
		p := &gateway.ButtonPress{
			UpdateID: u.UpdateID,
			ID:       cq.ID,
			From:     sender(cq.From),
			Payload:  cq.Data,
		}
		if cq.Message != nil {
			p.ChatID = cq.Message.Chat.ID
			p.Kind = gateway.ChatKind(cq.Message.Chat.Type)
			p.Ref = gateway.MessageRef{ChatID: cq.Message.Chat.ID, MessageID: cq.Message.MessageID}
		}
		return p, true

	case u.Message != nil:
		m := u.Message
		if m.From == nil || m.From.IsBot || m.Text == "" {
			return nil, false
		}
		return &gateway.TextMessage{
			UpdateID: u.UpdateID,
			ChatID:   m.Chat.ID,
			Kind:     gateway.ChatKind(m.Chat.Type),
			From:     sender(*m.From),
			Text:     m.Text,
			Ref:      gateway.MessageRef{ChatID: m.Chat.ID, MessageID: m.MessageID},
		}, true
	}
	return nil, false
}

func sender(u User) gateway.Sender {
	return gateway.Sender{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Username: u.Username}
}
