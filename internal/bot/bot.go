// Package bot is the conversational core: an ordered route table maps each
// inbound text or button press (and the sender's current flow) to a handler.
// Handlers call the services, advance the per-user flow and answer through
// the messaging gateway. Broadcasts go to the shared household chat.
package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/flatmate-bot/internal/callback"
	"github.com/tbourn/flatmate-bot/internal/domain"
	"github.com/tbourn/flatmate-bot/internal/gateway"
	"github.com/tbourn/flatmate-bot/internal/services"
	"github.com/tbourn/flatmate-bot/internal/session"
)

// Config holds the bot's own settings.
type Config struct {
	// TargetChatID is the shared household chat that receives broadcasts.
	TargetChatID int64
	// Location is the household time zone used for dates and times.
	Location *time.Location
}

// Deps are the collaborators the bot is built from.
type Deps struct {
	Gateway    gateway.Gateway
	Users      *services.Users
	Dishwasher *services.Dishwasher
	Chores     *services.Chores
	Parties    *services.Parties
	Rating     *services.Rating
	Sessions   *session.Manager
	Logger     zerolog.Logger
}

// Triggerer runs a registered recurring job on demand.
type Triggerer interface {
	Trigger(name string) error
}

// Bot routes inbound events. It is not safe for concurrent use; run it
// behind a Loop.
type Bot struct {
	cfg        Config
	gw         gateway.Gateway
	users      *services.Users
	dishwasher *services.Dishwasher
	chores     *services.Chores
	parties    *services.Parties
	rating     *services.Rating
	sessions   *session.Manager
	jobs       Triggerer
	log        zerolog.Logger
	routes     []route

	// applicants holds pending join requests by chat id until an admin
	// answers them.
	applicants map[int64]services.Profile
}

// New wires a bot. It also points the dishwasher reminder at the household
// chat.
func New(cfg Config, d Deps) *Bot {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	b := &Bot{
		cfg:        cfg,
		gw:         d.Gateway,
		users:      d.Users,
		dishwasher: d.Dishwasher,
		chores:     d.Chores,
		parties:    d.Parties,
		rating:     d.Rating,
		sessions:   d.Sessions,
		log:        d.Logger.With().Str("component", "bot").Logger(),
		routes:     routes(),
		applicants: make(map[int64]services.Profile),
	}
	if b.dishwasher != nil {
		b.dishwasher.OnReady = b.DishwasherReady
	}
	return b
}

// request is one inbound event together with everything routing needs.
type request struct {
	ctx    context.Context
	kind   eventKind
	chatID int64
	chat   gateway.ChatKind
	from   gateway.Sender
	ref    gateway.MessageRef

	text    string        // text events
	pressID string        // press events
	data    callback.Data // press events

	user *domain.User // nil for non-members
	flow session.Flow

	// answer is the toast shown on a press acknowledgement.
	answer string
}

func (r *request) private() bool { return r.chat == gateway.ChatPrivate }

// command returns the leading "/command" of a text message, without any
// "@botname" suffix.
func (r *request) command() string {
	f := strings.Fields(r.text)
	if len(f) == 0 || !strings.HasPrefix(f[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(f[0], "@")
	return strings.ToLower(cmd)
}

// args returns the words after the command.
func (r *request) args() []string {
	f := strings.Fields(r.text)
	if len(f) < 2 {
		return nil
	}
	return f[1:]
}

// allowed reports whether events from chatID are considered at all.
func (b *Bot) allowed(chatID int64, kind gateway.ChatKind) bool {
	return kind == gateway.ChatPrivate || chatID == b.cfg.TargetChatID
}

// Handle processes one inbound event to completion.
func (b *Bot) Handle(ctx context.Context, ev gateway.Event) {
	r := &request{ctx: ctx}
	switch e := ev.(type) {
	case *gateway.TextMessage:
		r.kind, r.chatID, r.chat, r.from, r.ref, r.text = textEvent, e.ChatID, e.Kind, e.From, e.Ref, e.Text
	case *gateway.ButtonPress:
		r.kind, r.chatID, r.chat, r.from, r.ref = pressEvent, e.ChatID, e.Kind, e.From, e.Ref
		r.pressID, r.data = e.ID, decodePayload(e.Payload)
	default:
		return
	}
	log := b.log.With().Int64("user_id", r.from.ID).Int64("chat_id", r.chatID).Logger()

	if !b.allowed(r.chatID, r.chat) {
		updatesHandled.WithLabelValues("none", "foreign_chat").Inc()
		log.Debug().Msg("event from foreign chat ignored")
		return
	}
	if r.kind == pressEvent {
		defer b.acknowledge(r)
	}

	user, err := b.users.Active(ctx, r.from.ID)
	switch {
	case err == nil:
		r.user = user
	case !errors.Is(err, services.ErrNotFound):
		log.Error().Err(err).Msg("load user")
		return
	}
	flow, err := b.sessions.Current(ctx, r.from.ID)
	if err != nil {
		log.Error().Err(err).Msg("load flow")
		return
	}
	r.flow = flow

	rt, ok := b.match(r)
	if !ok {
		updatesHandled.WithLabelValues("none", "unmatched").Inc()
		return
	}
	if !b.permitted(rt.access, r) {
		updatesHandled.WithLabelValues(rt.name, "denied").Inc()
		log.Debug().Str("route", rt.name).Msg("access denied")
		return
	}

	start := time.Now()
	err = rt.handle(b, r)
	handlerDuration.WithLabelValues(rt.name).Observe(time.Since(start).Seconds())
	if err != nil {
		updatesHandled.WithLabelValues(rt.name, "error").Inc()
		b.fail(r, log.With().Str("route", rt.name).Logger(), err)
		return
	}
	updatesHandled.WithLabelValues(rt.name, "ok").Inc()
}

func (b *Bot) match(r *request) (route, bool) {
	for _, rt := range b.routes {
		if rt.matches(r) {
			return rt, true
		}
	}
	return route{}, false
}

func (b *Bot) permitted(a access, r *request) bool {
	switch a {
	case member:
		return r.user != nil && r.private()
	case admin:
		return r.user != nil && r.user.IsAdmin && r.private()
	}
	return true
}

// fail reports a handler error. Stale references get a short notice; other
// errors are logged and the user sees a generic message.
func (b *Bot) fail(r *request, log zerolog.Logger, err error) {
	if errors.Is(err, services.ErrNotFound) {
		log.Debug().Err(err).Msg("stale reference")
		r.answer = msgStale
		if r.kind == textEvent {
			b.reply(r, msgStale)
		}
		return
	}
	log.Error().Err(err).Msg("handler failed")
	if r.private() {
		b.reply(r, msgGeneric)
	}
}

func (b *Bot) acknowledge(r *request) {
	if r.pressID == "" {
		return
	}
	if err := b.gw.AnswerPress(r.ctx, r.pressID, r.answer); err != nil {
		b.log.Warn().Err(err).Msg("answer press")
	}
}

// reply answers in the chat the event came from. Delivery is best effort.
func (b *Bot) reply(r *request, text string) {
	if err := b.gw.SendText(r.ctx, r.chatID, text); err != nil {
		b.log.Warn().Err(err).Int64("chat_id", r.chatID).Msg("send reply")
	}
}

func (b *Bot) replyMenu(r *request, text string, menu gateway.Menu) {
	if _, err := b.gw.SendMenu(r.ctx, r.chatID, text, menu); err != nil {
		b.log.Warn().Err(err).Int64("chat_id", r.chatID).Msg("send menu")
	}
}

// clearMenu removes the buttons from the message that was pressed.
func (b *Bot) clearMenu(r *request) {
	if r.ref.MessageID == 0 {
		return
	}
	if err := b.gw.ClearMenu(r.ctx, r.ref); err != nil {
		b.log.Warn().Err(err).Msg("clear menu")
	}
}

// broadcast posts to the household chat.
func (b *Bot) broadcast(ctx context.Context, text string) {
	if err := b.gw.SendText(ctx, b.cfg.TargetChatID, text); err != nil {
		broadcasts.WithLabelValues("error").Inc()
		b.log.Warn().Err(err).Msg("broadcast")
		return
	}
	broadcasts.WithLabelValues("ok").Inc()
}

// begin starts a flow, honouring the start policy.
func (b *Bot) begin(r *request, f session.Flow) (bool, error) {
	prev, err := b.sessions.Begin(r.ctx, r.from.ID, f)
	if errors.Is(err, session.ErrFlowActive) {
		b.reply(r, msgFlowActive)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if prev != nil {
		b.log.Debug().Int64("user_id", r.from.ID).Stringer("abandoned", prev.State()).Msg("flow abandoned")
	}
	return true, nil
}

func (b *Bot) finish(r *request) error {
	return b.sessions.Finish(r.ctx, r.from.ID)
}
