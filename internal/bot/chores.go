package bot

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tbourn/flatmate-bot/internal/callback"
	"github.com/tbourn/flatmate-bot/internal/domain"
	"github.com/tbourn/flatmate-bot/internal/gateway"
	"github.com/tbourn/flatmate-bot/internal/repo"
	"github.com/tbourn/flatmate-bot/internal/services"
)

func (b *Bot) onDishwasherMenu(r *request) error {
	b.replyMenu(r, msgDishwasherMenu, gateway.Menu{gateway.Row(
		gateway.Button{Text: btnLoad, Data: callback.MustEncode(tagDishwasherLoad)},
		gateway.Button{Text: btnUnload, Data: callback.MustEncode(tagDishwasherUnload)},
	)})
	return nil
}

func (b *Bot) onDishwasherLoad(r *request) error {
	_, readyAt, err := b.dishwasher.Load(r.ctx, r.from.ID)
	if err != nil {
		return b.choreRejected(r, err)
	}
	choresRecorded.WithLabelValues(string(domain.NotificationDishwasherLoad)).Inc()
	b.clearMenu(r)
	r.answer = "Done"
	b.broadcast(r.ctx, fmt.Sprintf("%s loaded the dishwasher, it can be unloaded at %s",
		gateway.Escape(senderName(r.from)), b.fmtTime(readyAt)))
	return nil
}

func (b *Bot) onDishwasherUnload(r *request) error {
	if _, err := b.dishwasher.Unload(r.ctx, r.from.ID); err != nil {
		return b.choreRejected(r, err)
	}
	choresRecorded.WithLabelValues(string(domain.NotificationDishwasherUnload)).Inc()
	b.clearMenu(r)
	r.answer = "Done"
	b.broadcast(r.ctx, gateway.Escape(senderName(r.from))+" unloaded the dishwasher")
	return nil
}

func (b *Bot) onTrash(r *request) error {
	if _, err := b.chores.Trash(r.ctx, r.from.ID); err != nil {
		return b.choreRejected(r, err)
	}
	choresRecorded.WithLabelValues(string(domain.NotificationTrash)).Inc()
	b.reply(r, "Thanks! Everyone has been told.")
	b.broadcast(r.ctx, gateway.Escape(senderName(r.from))+" took out the trash")
	return nil
}

// choreRejected turns rule violations into replies and passes anything else
// through.
func (b *Bot) choreRejected(r *request, err error) error {
	var (
		rl *services.RateLimitError
		pe *services.PreconditionError
	)
	switch {
	case errors.As(err, &rl):
		b.reply(r, rateLimitText(rl))
	case errors.As(err, &pe):
		b.reply(r, b.preconditionText(pe))
		if pe.Reason == services.StillRunning {
			b.clearMenu(r)
		}
	default:
		return err
	}
	return nil
}

func (b *Bot) preconditionText(pe *services.PreconditionError) string {
	switch pe.Reason {
	case services.MustUnloadFirst:
		return fmt.Sprintf("The dishwasher was already loaded on %s. Unload it first.", b.fmtDateTime(pe.At))
	case services.MustLoadFirst:
		if pe.At.IsZero() {
			return "The dishwasher is empty, there is nothing to unload."
		}
		return fmt.Sprintf("The dishwasher was already unloaded on %s. Load it first.", b.fmtDateTime(pe.At))
	default:
		return fmt.Sprintf("The dishwasher is still running until %s.", b.fmtTime(pe.At))
	}
}

func (b *Bot) onSilence(r *request) error {
	out, err := b.chores.Silence(r.ctx, r.from.ID)
	if err != nil {
		return err
	}
	if out != services.SilenceExhausted {
		choresRecorded.WithLabelValues(string(domain.NotificationSilence)).Inc()
	}
	switch out {
	case services.SilenceFirst:
		b.broadcast(r.ctx, msgTooLoud)
	case services.SilenceRepeated:
		b.broadcast(r.ctx, msgStillTooLoud)
	case services.SilenceExhausted:
		b.reply(r, msgAskingFailed)
	}
	return nil
}

func (b *Bot) onStatsMenu(r *request) error {
	b.replyMenu(r, msgStatsMenu, gateway.Menu{gateway.Row(
		gateway.Button{Text: btnRating, Data: callback.MustEncode(tagStatsRating)},
		gateway.Button{Text: btnSilenceStats, Data: callback.MustEncode(tagStatsSilence)},
	)})
	return nil
}

func (b *Bot) onStatsRating(r *request) error {
	rows, err := b.rating.Leaderboard(r.ctx)
	if err != nil {
		return err
	}
	b.clearMenu(r)
	if len(rows) == 0 {
		b.reply(r, msgNoActivity)
		return nil
	}
	b.reply(r, msgRatingHeader+"\n"+ratingList(rows))
	return nil
}

func (b *Bot) onStatsSilence(r *request) error {
	yours, others, err := b.chores.SilenceStats(r.ctx, r.from.ID)
	if err != nil {
		return err
	}
	b.clearMenu(r)
	b.reply(r, fmt.Sprintf("You asked for quiet %d time(s). Everyone else: %d time(s).", yours, others))
	return nil
}

// ratingList renders "1. Name - n🍴, m🗑" lines.
func ratingList(rows []repo.RatingRow) string {
	var sb strings.Builder
	for i, row := range rows {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d. %s - %d🍴, %d🗑", i+1,
			gateway.Escape(displayName(row.FirstName, row.LastName)), row.Dishwasher, row.Trash)
	}
	return sb.String()
}
