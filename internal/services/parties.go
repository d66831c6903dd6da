package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/flatmate-bot/internal/domain"
	"github.com/tbourn/flatmate-bot/internal/repo"
)

// Guest count bounds.
const (
	DefaultGuestsMin = 1
	DefaultGuestsMax = 50
)

// UpcomingLimit is how many parties "closest parties" shows.
const UpcomingLimit = 3

// Parties manages party bookings. Only the host may change or cancel a
// booking; anyone else gets ErrNotFound.
type Parties struct {
	DB        *gorm.DB
	Clock     clockwork.Clock
	Loc       *time.Location
	GuestsMin int
	GuestsMax int
}

func (p *Parties) bounds() (int, int) {
	lo, hi := p.GuestsMin, p.GuestsMax
	if lo <= 0 {
		lo = DefaultGuestsMin
	}
	if hi < lo {
		hi = DefaultGuestsMax
	}
	return lo, hi
}

// Today returns the current calendar day in the household's time zone.
func (p *Parties) Today() domain.Date {
	loc := p.Loc
	if loc == nil {
		loc = time.Local
	}
	return domain.DateOf(p.Clock.Now().In(loc))
}

// ValidateGuests parses a guest count typed by a user.
func (p *Parties) ValidateGuests(input string) (int, error) {
	lo, hi := p.bounds()
	s := strings.TrimSpace(input)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &GuestsError{Problem: NotANumber, Input: s, Min: lo, Max: hi}
	}
	return n, p.checkGuests(n)
}

func (p *Parties) checkGuests(n int) error {
	lo, hi := p.bounds()
	switch {
	case n < lo:
		return &GuestsError{Problem: TooFew, Input: strconv.Itoa(n), Min: lo, Max: hi}
	case n > hi:
		return &GuestsError{Problem: TooMany, Input: strconv.Itoa(n), Min: lo, Max: hi}
	}
	return nil
}

// CheckDate reports whether d can be booked. exclude skips the party being
// edited (0 for new bookings).
func (p *Parties) CheckDate(ctx context.Context, d domain.Date, exclude uint) error {
	if d.Before(p.Today()) {
		return fmt.Errorf("%w: %s is in the past", ErrValidation, d)
	}
	_, err := repo.FindActivePartyByDate(ctx, p.DB, d, exclude)
	switch {
	case err == nil:
		return ErrDateConflict
	case errors.Is(err, repo.ErrNotFound):
		return nil
	default:
		return err
	}
}

// Create books a party for userID.
func (p *Parties) Create(ctx context.Context, userID int64, d domain.Date, guests int, usingSofa bool) (*domain.Party, error) {
	ctx, span := otel.Tracer("services/Parties").Start(ctx, "Create",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.String("party.date", d.String()),
		))
	defer span.End()

	if err := p.checkGuests(guests); err != nil {
		return nil, err
	}
	if d.Before(p.Today()) {
		return nil, fmt.Errorf("%w: %s is in the past", ErrValidation, d)
	}
	party := &domain.Party{
		UserID:       userID,
		PartyDate:    d,
		GuestsAmount: guests,
		UsingSofa:    usingSofa,
		CreatedAt:    p.Clock.Now().UTC(),
	}
	if err := repo.CreateParty(ctx, p.DB, party); err != nil {
		return nil, mapRepoErr(err)
	}
	return party, nil
}

// Get returns an active party owned by userID.
func (p *Parties) Get(ctx context.Context, userID int64, id uint) (*domain.Party, error) {
	party, err := repo.FindActivePartyByID(ctx, p.DB, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if party.UserID != userID {
		return nil, ErrNotFound
	}
	return party, nil
}

// ChangeDate moves a party. changed is false when d equals the current date,
// in which case nothing is written.
func (p *Parties) ChangeDate(ctx context.Context, userID int64, id uint, d domain.Date) (party *domain.Party, old domain.Date, changed bool, err error) {
	party, err = p.Get(ctx, userID, id)
	if err != nil {
		return nil, old, false, err
	}
	old = party.PartyDate
	if d == old {
		return party, old, false, nil
	}
	if d.Before(p.Today()) {
		return nil, old, false, fmt.Errorf("%w: %s is in the past", ErrValidation, d)
	}
	if err := repo.UpdateParty(ctx, p.DB, party, repo.PartyFields{Date: &d}); err != nil {
		return nil, old, false, mapRepoErr(err)
	}
	return party, old, true, nil
}

// ChangeGuests updates the guest count. changed is false when n equals the
// current count.
func (p *Parties) ChangeGuests(ctx context.Context, userID int64, id uint, n int) (party *domain.Party, old int, changed bool, err error) {
	if err := p.checkGuests(n); err != nil {
		return nil, 0, false, err
	}
	party, err = p.Get(ctx, userID, id)
	if err != nil {
		return nil, 0, false, err
	}
	old = party.GuestsAmount
	if n == old {
		return party, old, false, nil
	}
	if err := repo.UpdateParty(ctx, p.DB, party, repo.PartyFields{Guests: &n}); err != nil {
		return nil, old, false, mapRepoErr(err)
	}
	return party, old, true, nil
}

// ToggleSofa flips the sofa flag and returns the updated party.
func (p *Parties) ToggleSofa(ctx context.Context, userID int64, id uint) (*domain.Party, error) {
	party, err := p.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	flipped := !party.UsingSofa
	if err := repo.UpdateParty(ctx, p.DB, party, repo.PartyFields{UsingSofa: &flipped}); err != nil {
		return nil, mapRepoErr(err)
	}
	return party, nil
}

// Cancel soft-deletes a party, freeing its date.
func (p *Parties) Cancel(ctx context.Context, userID int64, id uint) (*domain.Party, error) {
	party, err := p.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := repo.SoftDeleteParty(ctx, p.DB, party.ID); err != nil {
		return nil, mapRepoErr(err)
	}
	return party, nil
}

// Upcoming lists the closest active parties from today on.
func (p *Parties) Upcoming(ctx context.Context, limit int) ([]domain.Party, error) {
	return repo.ListActivePartiesFrom(ctx, p.DB, p.Today(), limit)
}

// ForUser lists userID's parties from today on.
func (p *Parties) ForUser(ctx context.Context, userID int64) ([]domain.Party, error) {
	return repo.ListUserPartiesFrom(ctx, p.DB, userID, p.Today())
}

// Window lists parties from today through today+days.
func (p *Parties) Window(ctx context.Context, days int) ([]domain.Party, error) {
	today := p.Today()
	return repo.ListActivePartiesBetween(ctx, p.DB, today, today.AddDays(days))
}

func mapRepoErr(err error) error {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repo.ErrDateConflict):
		return ErrDateConflict
	}
	return err
}
