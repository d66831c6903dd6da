// Package session holds per-user conversation state. A user is in exactly one
// Flow at a time; the zero state is Idle. Flows are small value types so they
// can be kept in memory or serialized to Redis.
package session

import (
	"encoding/json"
	"fmt"

	"github.com/tbourn/flatmate-bot/internal/domain"
)

// State enumerates the steps of every flow.
type State int

const (
	Idle State = iota
	AwaitingPartyDate
	AwaitingGuestCount
	AwaitingSofaChoice
	AwaitingEditedPartyDate
	AwaitingEditedGuestCount
)

var stateNames = map[State]string{
	Idle:                     "idle",
	AwaitingPartyDate:        "awaiting_party_date",
	AwaitingGuestCount:       "awaiting_guest_count",
	AwaitingSofaChoice:       "awaiting_sofa_choice",
	AwaitingEditedPartyDate:  "awaiting_edited_party_date",
	AwaitingEditedGuestCount: "awaiting_edited_guest_count",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Flow is the sum type {IdleFlow, PlanningParty, EditingDate, EditingGuests}.
type Flow interface {
	State() State
	sealed()
}

// IdleFlow means no multi-step interaction is in progress.
type IdleFlow struct{}

// PlanningParty accumulates a new booking. Date is set once Step has moved
// past AwaitingPartyDate, Guests once it has moved past AwaitingGuestCount.
type PlanningParty struct {
	Step   State
	Date   domain.Date
	Guests int
}

// EditingDate targets an existing party for a date change.
type EditingDate struct {
	PartyID uint
}

// EditingGuests targets an existing party for a guest count change.
type EditingGuests struct {
	PartyID uint
}

func (IdleFlow) State() State        { return Idle }
func (p PlanningParty) State() State { return p.Step }
func (EditingDate) State() State     { return AwaitingEditedPartyDate }
func (EditingGuests) State() State   { return AwaitingEditedGuestCount }

func (IdleFlow) sealed()      {}
func (PlanningParty) sealed() {}
func (EditingDate) sealed()   {}
func (EditingGuests) sealed() {}

// IsIdle reports whether f is nil or IdleFlow.
func IsIdle(f Flow) bool { return f == nil || f.State() == Idle }

// envelope is the serialized form of a Flow.
type envelope struct {
	Kind    string      `json:"kind"`
	Step    State       `json:"step,omitempty"`
	Date    domain.Date `json:"date,omitempty"`
	Guests  int         `json:"guests,omitempty"`
	PartyID uint        `json:"party_id,omitempty"`
}

const (
	kindIdle          = "idle"
	kindPlanningParty = "planning_party"
	kindEditingDate   = "editing_date"
	kindEditingGuests = "editing_guests"
)

// Marshal serializes a flow.
func Marshal(f Flow) ([]byte, error) {
	var e envelope
	switch v := f.(type) {
	case nil, IdleFlow:
		e.Kind = kindIdle
	case PlanningParty:
		e = envelope{Kind: kindPlanningParty, Step: v.Step, Date: v.Date, Guests: v.Guests}
	case EditingDate:
		e = envelope{Kind: kindEditingDate, PartyID: v.PartyID}
	case EditingGuests:
		e = envelope{Kind: kindEditingGuests, PartyID: v.PartyID}
	default:
		return nil, fmt.Errorf("session: unknown flow %T", f)
	}
	return json.Marshal(e)
}

// Unmarshal restores a flow written by Marshal.
func Unmarshal(b []byte) (Flow, error) {
	var e envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, err
	}
	switch e.Kind {
	case kindIdle:
		return IdleFlow{}, nil
	case kindPlanningParty:
		switch e.Step {
		case AwaitingPartyDate, AwaitingGuestCount, AwaitingSofaChoice:
		default:
			return nil, fmt.Errorf("session: bad planning step %v", e.Step)
		}
		return PlanningParty{Step: e.Step, Date: e.Date, Guests: e.Guests}, nil
	case kindEditingDate:
		return EditingDate{PartyID: e.PartyID}, nil
	case kindEditingGuests:
		return EditingGuests{PartyID: e.PartyID}, nil
	}
	return nil, fmt.Errorf("session: unknown flow kind %q", e.Kind)
}
