package bot

import (
	"strings"

	"github.com/tbourn/flatmate-bot/internal/calendar"
	"github.com/tbourn/flatmate-bot/internal/callback"
	"github.com/tbourn/flatmate-bot/internal/session"
)

type eventKind int

const (
	textEvent eventKind = iota + 1
	pressEvent
)

type access int

const (
	// anyone: any sender in an allowed chat.
	anyone access = iota
	// member: an active user, in a private chat.
	member
	// admin: an active admin, in a private chat.
	admin
)

// route maps (event kind, flow state, predicate) to a handler. Routes are
// evaluated in declaration order and the first match wins.
type route struct {
	name   string
	kind   eventKind
	states []session.State // nil matches every state
	match  func(r *request) bool
	access access
	handle func(b *Bot, r *request) error
}

func (rt route) matches(r *request) bool {
	if rt.kind != r.kind {
		return false
	}
	if rt.states != nil {
		ok := false
		for _, s := range rt.states {
			if s == r.flow.State() {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return rt.match == nil || rt.match(r)
}

// Predicates.

func command(names ...string) func(r *request) bool {
	return func(r *request) bool {
		cmd := r.command()
		for _, n := range names {
			if cmd == n {
				return true
			}
		}
		return false
	}
}

func label(text string) func(r *request) bool {
	return func(r *request) bool { return strings.TrimSpace(r.text) == text }
}

func tag(t string) func(r *request) bool {
	return func(r *request) bool { return r.data.Tag == t }
}

func tagPrefix(p string) func(r *request) bool {
	return func(r *request) bool { return r.data.HasPrefix(p) }
}

// Callback tags.
const (
	tagDishwasherLoad   = "dw.load"
	tagDishwasherUnload = "dw.unload"
	tagSofa             = "sofa"
	tagPartyNew         = "party.new"
	tagPartyClosest     = "party.closest"
	tagPartyMine        = "party.mine"
	tagPartyPick        = "party.pick"
	tagPartyDate        = "party.date"
	tagPartyGuests      = "party.guests"
	tagPartySofa        = "party.sofa"
	tagPartyDelete      = "party.delete"
	tagUserAccept       = "user.accept"
	tagUserReject       = "user.reject"
	tagStatsRating      = "stats.rating"
	tagStatsSilence     = "stats.silence"
)

var (
	planningDate   = []session.State{session.AwaitingPartyDate}
	planningGuests = []session.State{session.AwaitingGuestCount}
	planningSofa   = []session.State{session.AwaitingSofaChoice}
	editingDate    = []session.State{session.AwaitingEditedPartyDate}
	editingGuests  = []session.State{session.AwaitingEditedGuestCount}
)

// routes is the full dispatch table.
func routes() []route {
	return []route{
		// Commands work in every state.
		{name: "cancel", kind: textEvent, match: command("/cancel"), access: member, handle: (*Bot).onCancel},
		{name: "start", kind: textEvent, match: command("/start", "/home"), access: anyone, handle: (*Bot).onStart},
		{name: "remove", kind: textEvent, match: command("/remove"), access: admin, handle: (*Bot).onRemove},
		{name: "digest", kind: textEvent, match: command("/digest"), access: admin, handle: (*Bot).onDigest},

		// Free text while a flow waits for a number.
		{name: "plan_guests", kind: textEvent, states: planningGuests, access: member, handle: (*Bot).onPlanGuests},
		{name: "edit_guests", kind: textEvent, states: editingGuests, access: member, handle: (*Bot).onEditGuests},

		// Main menu.
		{name: "dishwasher_menu", kind: textEvent, match: label(LabelDishwasher), access: member, handle: (*Bot).onDishwasherMenu},
		{name: "trash", kind: textEvent, match: label(LabelTrash), access: member, handle: (*Bot).onTrash},
		{name: "parties_menu", kind: textEvent, match: label(LabelParties), access: member, handle: (*Bot).onPartiesMenu},
		{name: "silence", kind: textEvent, match: label(LabelQuiet), access: member, handle: (*Bot).onSilence},
		{name: "stats_menu", kind: textEvent, match: label(LabelStats), access: member, handle: (*Bot).onStatsMenu},
		{name: "unknown_text", kind: textEvent, access: member, handle: (*Bot).onUnknownText},

		// Calendar presses belong to whichever flow shows a calendar.
		{name: "plan_date", kind: pressEvent, states: planningDate, match: tagPrefix(calendar.TagPrefix), access: member, handle: (*Bot).onPlanDate},
		{name: "edit_date", kind: pressEvent, states: editingDate, match: tagPrefix(calendar.TagPrefix), access: member, handle: (*Bot).onEditDate},
		{name: "stale_calendar", kind: pressEvent, match: tagPrefix(calendar.TagPrefix), access: member, handle: (*Bot).onStaleMenu},
		{name: "plan_sofa", kind: pressEvent, states: planningSofa, match: tag(tagSofa), access: member, handle: (*Bot).onPlanSofa},
		{name: "stale_sofa", kind: pressEvent, match: tag(tagSofa), access: member, handle: (*Bot).onStaleMenu},

		{name: "dishwasher_load", kind: pressEvent, match: tag(tagDishwasherLoad), access: member, handle: (*Bot).onDishwasherLoad},
		{name: "dishwasher_unload", kind: pressEvent, match: tag(tagDishwasherUnload), access: member, handle: (*Bot).onDishwasherUnload},

		{name: "party_new", kind: pressEvent, match: tag(tagPartyNew), access: member, handle: (*Bot).onPartyNew},
		{name: "party_closest", kind: pressEvent, match: tag(tagPartyClosest), access: member, handle: (*Bot).onPartyClosest},
		{name: "party_mine", kind: pressEvent, match: tag(tagPartyMine), access: member, handle: (*Bot).onPartyMine},
		{name: "party_pick", kind: pressEvent, match: tag(tagPartyPick), access: member, handle: (*Bot).onPartyPick},
		{name: "party_date", kind: pressEvent, match: tag(tagPartyDate), access: member, handle: (*Bot).onPartyEditDate},
		{name: "party_guests", kind: pressEvent, match: tag(tagPartyGuests), access: member, handle: (*Bot).onPartyEditGuests},
		{name: "party_sofa", kind: pressEvent, match: tag(tagPartySofa), access: member, handle: (*Bot).onPartyToggleSofa},
		{name: "party_delete", kind: pressEvent, match: tag(tagPartyDelete), access: member, handle: (*Bot).onPartyDelete},

		{name: "user_accept", kind: pressEvent, match: tag(tagUserAccept), access: admin, handle: (*Bot).onUserAccept},
		{name: "user_reject", kind: pressEvent, match: tag(tagUserReject), access: admin, handle: (*Bot).onUserReject},

		{name: "stats_rating", kind: pressEvent, match: tag(tagStatsRating), access: member, handle: (*Bot).onStatsRating},
		{name: "stats_silence", kind: pressEvent, match: tag(tagStatsSilence), access: member, handle: (*Bot).onStatsSilence},

		{name: "stale_button", kind: pressEvent, access: anyone, handle: (*Bot).onStaleMenu},
	}
}

// data decodes a press payload; undecodable payloads match no tag.
func decodePayload(p string) callback.Data {
	d, err := callback.Decode(p)
	if err != nil {
		return callback.Data{}
	}
	return d
}
