package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tbourn/flatmate-bot/internal/calendar"
	"github.com/tbourn/flatmate-bot/internal/callback"
	"github.com/tbourn/flatmate-bot/internal/domain"
	"github.com/tbourn/flatmate-bot/internal/gateway"
	"github.com/tbourn/flatmate-bot/internal/services"
	"github.com/tbourn/flatmate-bot/internal/session"
)

const (
	msgDateTaken   = "That date is already booked. Pick another one."
	msgPartyBooked = "Party booked!"
)

func (b *Bot) onPartiesMenu(r *request) error {
	b.replyMenu(r, msgPartiesMenu, gateway.Menu{
		gateway.Row(gateway.Button{Text: btnNewParty, Data: callback.MustEncode(tagPartyNew)}),
		gateway.Row(
			gateway.Button{Text: btnClosest, Data: callback.MustEncode(tagPartyClosest)},
			gateway.Button{Text: btnManage, Data: callback.MustEncode(tagPartyMine)},
		),
	})
	return nil
}

// showCalendar sends a fresh calendar for the month of d.
func (b *Bot) showCalendar(r *request, text string, d domain.Date) {
	today := b.parties.Today()
	if d.Before(today) {
		d = today
	}
	b.replyMenu(r, text, calendar.Render(d.Year, d.Month, today))
}

// repromptDate drops the pressed calendar and shows a new one for the same
// month, leaving the flow where it is.
func (b *Bot) repromptDate(r *request, err error, d domain.Date) error {
	var text string
	switch {
	case errors.Is(err, services.ErrDateConflict):
		text = msgDateTaken
	case errors.Is(err, services.ErrValidation):
		text = msgPastDate
	default:
		return err
	}
	b.clearMenu(r)
	b.showCalendar(r, text, d)
	return nil
}

// decodeCalendar interprets a calendar press and handles the outcomes that
// are the same for every flow. It reports whether the caller still has work
// to do.
func (b *Bot) decodeCalendar(r *request, cancelled string) (calendar.Outcome, bool, error) {
	today := b.parties.Today()
	out, err := calendar.Decode(r.data, today)
	if err != nil {
		b.log.Debug().Err(err).Msg("bad calendar payload")
		r.answer = msgStale
		return out, false, nil
	}
	switch out.Kind {
	case calendar.NavigatedTo:
		if err := b.gw.EditMenu(r.ctx, r.ref, calendar.Render(out.Year, out.Month, today)); err != nil {
			b.log.Warn().Err(err).Msg("redraw calendar")
		}
		return out, false, nil
	case calendar.Cancelled:
		if err := b.finish(r); err != nil {
			return out, false, err
		}
		b.clearMenu(r)
		b.reply(r, cancelled)
		return out, false, nil
	case calendar.DaySelected:
		return out, true, nil
	}
	return out, false, nil
}

func (b *Bot) onPartyNew(r *request) error {
	ok, err := b.begin(r, session.PlanningParty{Step: session.AwaitingPartyDate})
	if err != nil || !ok {
		return err
	}
	b.clearMenu(r)
	b.showCalendar(r, msgPickDate, b.parties.Today())
	return nil
}

func (b *Bot) onPlanDate(r *request) error {
	out, more, err := b.decodeCalendar(r, msgBookingOff)
	if err != nil || !more {
		return err
	}
	if err := b.parties.CheckDate(r.ctx, out.Date, 0); err != nil {
		return b.repromptDate(r, err, out.Date)
	}
	next := session.PlanningParty{Step: session.AwaitingGuestCount, Date: out.Date}
	if err := b.sessions.Advance(r.ctx, r.from.ID, next); err != nil {
		return err
	}
	b.clearMenu(r)
	b.reply(r, fmt.Sprintf("Date: %s\n%s", fmtDate(out.Date), msgAskGuests))
	return nil
}

func (b *Bot) onPlanGuests(r *request) error {
	f, ok := r.flow.(session.PlanningParty)
	if !ok {
		return b.finish(r)
	}
	n, err := b.parties.ValidateGuests(r.text)
	var ge *services.GuestsError
	if errors.As(err, &ge) {
		b.reply(r, guestsText(ge))
		return nil
	}
	if err != nil {
		return err
	}
	f.Step, f.Guests = session.AwaitingSofaChoice, n
	if err := b.sessions.Advance(r.ctx, r.from.ID, f); err != nil {
		return err
	}
	b.replyMenu(r, msgAskSofa, gateway.Menu{gateway.Row(
		gateway.Button{Text: btnYes, Data: callback.MustEncode(tagSofa, true)},
		gateway.Button{Text: btnNo, Data: callback.MustEncode(tagSofa, false)},
	)})
	return nil
}

func (b *Bot) onPlanSofa(r *request) error {
	f, ok := r.flow.(session.PlanningParty)
	if !ok {
		return b.finish(r)
	}
	sofa, err := r.data.Bool(0)
	if err != nil {
		r.answer = msgStale
		return nil
	}
	party, err := b.parties.Create(r.ctx, r.from.ID, f.Date, f.Guests, sofa)
	if errors.Is(err, services.ErrDateConflict) || errors.Is(err, services.ErrValidation) {
		// The date was taken (or passed) while the user was typing.
		back := session.PlanningParty{Step: session.AwaitingPartyDate}
		if aerr := b.sessions.Advance(r.ctx, r.from.ID, back); aerr != nil {
			return aerr
		}
		return b.repromptDate(r, err, f.Date)
	}
	if err != nil {
		return err
	}
	if err := b.finish(r); err != nil {
		return err
	}
	b.clearMenu(r)
	b.reply(r, msgPartyBooked)
	b.broadcast(r.ctx, fmt.Sprintf("%s booked a party on %s\nGuests: %d\nSofa taken: %s",
		gateway.Escape(senderName(r.from)), fmtDate(party.PartyDate), party.GuestsAmount, yesNo(party.UsingSofa)))
	return nil
}

func (b *Bot) onPartyClosest(r *request) error {
	parties, err := b.parties.Upcoming(r.ctx, services.UpcomingLimit)
	if err != nil {
		return err
	}
	b.clearMenu(r)
	if len(parties) == 0 {
		b.reply(r, msgNoUpcoming)
		return nil
	}
	lines := []string{"Closest parties:"}
	for _, p := range parties {
		lines = append(lines, gateway.Escape(userName(p.Host))+": "+partyLine(p))
	}
	b.reply(r, strings.Join(lines, "\n"))
	return nil
}

func (b *Bot) onPartyMine(r *request) error {
	parties, err := b.parties.ForUser(r.ctx, r.from.ID)
	if err != nil {
		return err
	}
	b.clearMenu(r)
	if len(parties) == 0 {
		b.reply(r, msgNoOwnParties)
		return nil
	}
	menu := make(gateway.Menu, 0, len(parties))
	for _, p := range parties {
		menu = append(menu, gateway.Row(gateway.Button{
			Text: partyLine(p),
			Data: callback.MustEncode(tagPartyPick, p.ID),
		}))
	}
	b.replyMenu(r, msgPickParty, menu)
	return nil
}

// ownParty loads the party whose id a press carries; it must still belong
// to the sender.
func (b *Bot) ownParty(r *request) (*domain.Party, error) {
	id, err := r.data.Uint(0)
	if err != nil {
		return nil, services.ErrNotFound
	}
	return b.parties.Get(r.ctx, r.from.ID, id)
}

func (b *Bot) onPartyPick(r *request) error {
	p, err := b.ownParty(r)
	if err != nil {
		return err
	}
	b.clearMenu(r)
	sofa := "Take the sofa"
	if p.UsingSofa {
		sofa = "Free the sofa"
	}
	b.replyMenu(r, msgPickAction+"\n"+partyLine(*p), gateway.Menu{
		gateway.Row(gateway.Button{Text: btnEditDate, Data: callback.MustEncode(tagPartyDate, p.ID)}),
		gateway.Row(gateway.Button{Text: btnEditGuests, Data: callback.MustEncode(tagPartyGuests, p.ID)}),
		gateway.Row(gateway.Button{Text: sofa, Data: callback.MustEncode(tagPartySofa, p.ID)}),
		gateway.Row(gateway.Button{Text: btnDeleteParty, Data: callback.MustEncode(tagPartyDelete, p.ID)}),
	})
	return nil
}

func (b *Bot) onPartyEditDate(r *request) error {
	p, err := b.ownParty(r)
	if err != nil {
		return err
	}
	ok, err := b.begin(r, session.EditingDate{PartyID: p.ID})
	if err != nil || !ok {
		return err
	}
	b.clearMenu(r)
	b.showCalendar(r, msgPickNewDate, p.PartyDate)
	return nil
}

func (b *Bot) onEditDate(r *request) error {
	f, ok := r.flow.(session.EditingDate)
	if !ok {
		return b.finish(r)
	}
	out, more, err := b.decodeCalendar(r, msgDateChangeOff)
	if err != nil || !more {
		return err
	}
	if err := b.parties.CheckDate(r.ctx, out.Date, f.PartyID); err != nil {
		return b.repromptDate(r, err, out.Date)
	}
	p, old, changed, err := b.parties.ChangeDate(r.ctx, r.from.ID, f.PartyID, out.Date)
	switch {
	case errors.Is(err, services.ErrDateConflict), errors.Is(err, services.ErrValidation):
		return b.repromptDate(r, err, out.Date)
	case err != nil:
		if ferr := b.finish(r); ferr != nil {
			return ferr
		}
		b.clearMenu(r)
		return err
	}
	if err := b.finish(r); err != nil {
		return err
	}
	b.clearMenu(r)
	if !changed {
		b.reply(r, msgDateSame)
		return nil
	}
	b.reply(r, "Date changed to "+fmtDate(p.PartyDate)+".")
	b.broadcast(r.ctx, fmt.Sprintf("%s moved the party from %s to %s",
		gateway.Escape(senderName(r.from)), fmtDate(old), fmtDate(p.PartyDate)))
	return nil
}

func (b *Bot) onPartyEditGuests(r *request) error {
	p, err := b.ownParty(r)
	if err != nil {
		return err
	}
	ok, err := b.begin(r, session.EditingGuests{PartyID: p.ID})
	if err != nil || !ok {
		return err
	}
	b.clearMenu(r)
	b.reply(r, msgAskNewGuests)
	return nil
}

func (b *Bot) onEditGuests(r *request) error {
	f, ok := r.flow.(session.EditingGuests)
	if !ok {
		return b.finish(r)
	}
	n, err := b.parties.ValidateGuests(r.text)
	var ge *services.GuestsError
	if errors.As(err, &ge) {
		b.reply(r, guestsText(ge))
		return nil
	}
	if err != nil {
		return err
	}
	p, old, changed, err := b.parties.ChangeGuests(r.ctx, r.from.ID, f.PartyID, n)
	if ferr := b.finish(r); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}
	if !changed {
		b.reply(r, msgGuestsSame)
		return nil
	}
	b.reply(r, fmt.Sprintf("Guest count changed to %d.", p.GuestsAmount))
	b.broadcast(r.ctx, fmt.Sprintf("%s changed the guest count for the party on %s from %d to %d",
		gateway.Escape(senderName(r.from)), fmtDate(p.PartyDate), old, p.GuestsAmount))
	return nil
}

func (b *Bot) onPartyToggleSofa(r *request) error {
	id, err := r.data.Uint(0)
	if err != nil {
		return services.ErrNotFound
	}
	p, err := b.parties.ToggleSofa(r.ctx, r.from.ID, id)
	if err != nil {
		return err
	}
	b.clearMenu(r)
	b.reply(r, "Sofa taken: "+yesNo(p.UsingSofa))
	b.broadcast(r.ctx, fmt.Sprintf("%s updated the party on %s\nSofa taken: %s",
		gateway.Escape(senderName(r.from)), fmtDate(p.PartyDate), yesNo(p.UsingSofa)))
	return nil
}

func (b *Bot) onPartyDelete(r *request) error {
	id, err := r.data.Uint(0)
	if err != nil {
		return services.ErrNotFound
	}
	p, err := b.parties.Cancel(r.ctx, r.from.ID, id)
	if err != nil {
		return err
	}
	b.clearMenu(r)
	b.reply(r, "Party cancelled.")
	b.broadcast(r.ctx, fmt.Sprintf("%s cancelled the party on %s",
		gateway.Escape(senderName(r.from)), fmtDate(p.PartyDate)))
	return nil
}
