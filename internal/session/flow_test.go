package session

import (
	"testing"

	"github.com/tbourn/flatmate-bot/internal/domain"
)

func TestFlow_States(t *testing.T) {
	cases := []struct {
		f    Flow
		want State
	}{
		{IdleFlow{}, Idle},
		{PlanningParty{Step: AwaitingGuestCount}, AwaitingGuestCount},
		{EditingDate{PartyID: 1}, AwaitingEditedPartyDate},
		{EditingGuests{PartyID: 1}, AwaitingEditedGuestCount},
	}
	for _, c := range cases {
		if got := c.f.State(); got != c.want {
			t.Fatalf("%T.State() = %v; want %v", c.f, got, c.want)
		}
	}
	if !IsIdle(nil) || !IsIdle(IdleFlow{}) || IsIdle(EditingDate{}) {
		t.Fatalf("IsIdle")
	}
	if AwaitingSofaChoice.String() != "awaiting_sofa_choice" || State(99).String() != "state(99)" {
		t.Fatalf("State.String")
	}
}

func TestFlow_MarshalRoundTrip(t *testing.T) {
	flows := []Flow{
		IdleFlow{},
		PlanningParty{Step: AwaitingPartyDate},
		PlanningParty{Step: AwaitingSofaChoice, Date: domain.NewDate(2030, 2, 28), Guests: 12},
		EditingDate{PartyID: 7},
		EditingGuests{PartyID: 9},
	}
	for _, f := range flows {
		b, err := Marshal(f)
		if err != nil {
			t.Fatalf("marshal %T: %v", f, err)
		}
		back, err := Unmarshal(b)
		if err != nil {
			t.Fatalf("unmarshal %s: %v", b, err)
		}
		if back != f {
			t.Fatalf("round trip %#v -> %s -> %#v", f, b, back)
		}
	}
}

func TestFlow_UnmarshalRejectsGarbage(t *testing.T) {
	bad := []string{
		`{`,
		`{"kind":"dancing"}`,
		`{"kind":"planning_party","step":0}`,
		`{"kind":"planning_party","step":4}`,
	}
	for _, s := range bad {
		if _, err := Unmarshal([]byte(s)); err == nil {
			t.Fatalf("expected error for %s", s)
		}
	}
}
