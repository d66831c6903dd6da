// Package gateway defines the messaging contract between the bot core and a
// chat platform. The core renders text and button menus and receives text
// messages and button presses; transport details (webhook or long polling,
// HTTP client, rate limits) live in the platform implementation.
package gateway

import (
	"context"
	"html"
	"strconv"
)

// ChatKind distinguishes private conversations from group chats.
type ChatKind string

const (
	ChatPrivate    ChatKind = "private"
	ChatGroup      ChatKind = "group"
	ChatSupergroup ChatKind = "supergroup"
	ChatChannel    ChatKind = "channel"
)

// Button is a single inline button. Data is a callback payload token.
type Button struct {
	Text string
	Data string
}

// Menu is an inline button grid, row by row.
type Menu [][]Button

// Row builds a menu row.
func Row(buttons ...Button) []Button { return buttons }

// MessageRef identifies a sent message so it can be edited later.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Sender describes the account behind an inbound event.
type Sender struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// Event is an inbound update: *TextMessage or *ButtonPress.
type Event interface {
	event()
}

// TextMessage is a plain text message.
type TextMessage struct {
	UpdateID int64
	ChatID   int64
	Kind     ChatKind
	From     Sender
	Text     string
	Ref      MessageRef
}

// ButtonPress is a press on an inline button.
type ButtonPress struct {
	UpdateID int64
	ID       string // acknowledgement handle
	ChatID   int64
	Kind     ChatKind
	From     Sender
	Payload  string
	Ref      MessageRef // message that carries the menu
}

func (*TextMessage) event() {}
func (*ButtonPress) event() {}

// Gateway sends messages to the platform. Texts are HTML-formatted; use
// Escape for user-supplied content.
type Gateway interface {
	// SendText posts a message.
	SendText(ctx context.Context, chatID int64, text string) error
	// SendMenu posts a message with an inline button menu.
	SendMenu(ctx context.Context, chatID int64, text string, menu Menu) (MessageRef, error)
	// SendKeyboard posts a message and installs a persistent reply keyboard.
	SendKeyboard(ctx context.Context, chatID int64, text string, keys [][]string) error
	// EditMenu replaces the menu of an already sent message in place.
	EditMenu(ctx context.Context, ref MessageRef, menu Menu) error
	// ClearMenu removes the menu from a sent message.
	ClearMenu(ctx context.Context, ref MessageRef) error
	// AnswerPress acknowledges a button press, optionally with a toast text.
	AnswerPress(ctx context.Context, pressID, text string) error
}

// Escape makes user-provided text safe for HTML-formatted messages.
func Escape(s string) string { return html.EscapeString(s) }

// Mention renders a clickable mention of the user.
func Mention(userID int64, name string) string {
	return `<a href="tg://user?id=` + strconv.FormatInt(userID, 10) + `">` + Escape(name) + `</a>`
}
