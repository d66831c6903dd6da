package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/tbourn/flatmate-bot/internal/gateway"
	"github.com/tbourn/flatmate-bot/internal/scheduler"
)

// Recurring job names.
const (
	JobRatingDigest  = "rating-digest"
	JobPartiesDigest = "parties-digest"
)

// partiesWindow is how many days past today the parties digest covers.
const partiesWindow = 3

// JobRegistry is the slice of the scheduler RegisterJobs needs.
type JobRegistry interface {
	Triggerer
	AddRecurring(name, spec string, job scheduler.Job) error
}

// RegisterJobs schedules both digests on spec and lets admins trigger them
// with /digest.
func (b *Bot) RegisterJobs(s JobRegistry, spec string) error {
	if err := s.AddRecurring(JobRatingDigest, spec, b.RatingDigest); err != nil {
		return err
	}
	if err := s.AddRecurring(JobPartiesDigest, spec, b.PartiesDigest); err != nil {
		return err
	}
	b.jobs = s
	return nil
}

// RatingDigest posts the leaderboard and nudges whoever is behind: members
// with no chores at all, otherwise the last one on the board.
func (b *Bot) RatingDigest(ctx context.Context) error {
	d, err := b.rating.Digest(ctx)
	if err != nil {
		return err
	}
	if len(d.Rows) == 0 {
		return nil
	}
	b.broadcast(ctx, msgDigestHeader+"\n"+ratingList(d.Rows))

	switch {
	case len(d.Idle) > 0:
		names := make([]string, 0, len(d.Idle))
		for _, u := range d.Idle {
			names = append(names, gateway.Mention(u.ChatID, userName(u)))
		}
		b.broadcast(ctx, strings.Join(names, ", ")+", you're at zero. Time to do something around the flat!")
	case d.Laggard != nil && len(d.Rows) > 1:
		name := displayName(d.Laggard.FirstName, d.Laggard.LastName)
		b.broadcast(ctx, gateway.Mention(d.Laggard.UserID, name)+", you're at the bottom of the rating. Time to catch up!")
	}
	return nil
}

// PartiesDigest lists the parties from today through the next few days.
func (b *Bot) PartiesDigest(ctx context.Context) error {
	parties, err := b.parties.Window(ctx, partiesWindow)
	if err != nil {
		return err
	}
	if len(parties) == 0 {
		return nil
	}
	today := b.parties.Today()
	lines := []string{msgPartiesHeader}
	for _, p := range parties {
		lines = append(lines, fmt.Sprintf("%s: %s (%s)",
			relativeDay(today.DaysUntil(p.PartyDate)), partyLine(p), gateway.Escape(userName(p.Host))))
	}
	b.broadcast(ctx, strings.Join(lines, "\n"))
	return nil
}

// DishwasherReady tells the household the program has finished.
func (b *Bot) DishwasherReady(ctx context.Context) error {
	b.broadcast(ctx, msgDishwasherReady)
	return nil
}
