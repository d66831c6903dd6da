package bot

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tbourn/flatmate-bot/internal/calendar"
	"github.com/tbourn/flatmate-bot/internal/callback"
	"github.com/tbourn/flatmate-bot/internal/gateway"
	"github.com/tbourn/flatmate-bot/internal/services"
	"github.com/tbourn/flatmate-bot/internal/session"
)

func profileOf(s gateway.Sender) services.Profile {
	return services.Profile{ChatID: s.ID, FirstName: s.FirstName, LastName: s.LastName, Nickname: s.Username}
}

// onStart registers group members directly and turns private /start from a
// stranger into a join request.
func (b *Bot) onStart(r *request) error {
	if !r.private() {
		_, out, err := b.users.Register(r.ctx, profileOf(r.from))
		if err != nil {
			return err
		}
		if out != services.AlreadyActive {
			b.log.Info().Int64("user_id", r.from.ID).Msg("member registered from group")
		}
		b.reply(r, msgGroupHint)
		return nil
	}

	if r.user != nil {
		if err := b.gw.SendKeyboard(r.ctx, r.chatID, msgWhatNow, mainMenu); err != nil {
			b.log.Warn().Err(err).Msg("send main menu")
		}
		return nil
	}

	admins, err := b.users.Admins(r.ctx)
	if err != nil {
		return err
	}
	b.applicants[r.from.ID] = profileOf(r.from)
	text := fmt.Sprintf("%s wants to join the household.", gateway.Mention(r.from.ID, senderName(r.from)))
	if r.from.Username != "" {
		text += " @" + gateway.Escape(r.from.Username)
	}
	menu := gateway.Menu{gateway.Row(
		gateway.Button{Text: btnAccept, Data: callback.MustEncode(tagUserAccept, r.from.ID)},
		gateway.Button{Text: btnReject, Data: callback.MustEncode(tagUserReject, r.from.ID)},
	)}
	for _, a := range admins {
		if _, err := b.gw.SendMenu(r.ctx, a.ChatID, text, menu); err != nil {
			b.log.Warn().Err(err).Int64("admin_id", a.ChatID).Msg("send join request")
		}
	}
	b.reply(r, msgJoinSent)
	return nil
}

func (b *Bot) applicant(r *request) (services.Profile, bool) {
	id, err := r.data.Int64(0)
	if err != nil {
		return services.Profile{}, false
	}
	p, ok := b.applicants[id]
	return p, ok
}

func (b *Bot) onUserAccept(r *request) error {
	b.clearMenu(r)
	p, ok := b.applicant(r)
	if !ok {
		b.reply(r, msgRequestExpired)
		return nil
	}
	delete(b.applicants, p.ChatID)
	u, out, err := b.users.Register(r.ctx, p)
	if err != nil {
		return err
	}
	name := userName(*u)
	if out == services.AlreadyActive {
		b.reply(r, gateway.Escape(name)+" is already a member.")
		return nil
	}
	b.log.Info().Int64("user_id", u.ChatID).Int64("admin_id", r.from.ID).Msg("join request accepted")
	if err := b.gw.SendText(r.ctx, u.ChatID, msgAccepted); err != nil {
		b.log.Warn().Err(err).Msg("notify accepted user")
	}
	b.reply(r, gateway.Escape(name)+" has been added.")
	return nil
}

func (b *Bot) onUserReject(r *request) error {
	b.clearMenu(r)
	p, ok := b.applicant(r)
	if !ok {
		b.reply(r, msgRequestExpired)
		return nil
	}
	delete(b.applicants, p.ChatID)
	b.log.Info().Int64("user_id", p.ChatID).Int64("admin_id", r.from.ID).Msg("join request rejected")
	if err := b.gw.SendText(r.ctx, p.ChatID, msgDeclined); err != nil {
		b.log.Warn().Err(err).Msg("notify rejected user")
	}
	b.reply(r, gateway.Escape(displayName(p.FirstName, p.LastName))+" has been declined.")
	return nil
}

// onRemove handles "/remove <chat id>".
func (b *Bot) onRemove(r *request) error {
	args := r.args()
	if len(args) != 1 {
		b.reply(r, "Usage: /remove <user id>")
		return nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.reply(r, "Usage: /remove <user id>")
		return nil
	}
	if id == r.from.ID {
		b.reply(r, "You cannot remove yourself.")
		return nil
	}
	if err := b.users.Remove(r.ctx, id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			b.reply(r, "No such member.")
			return nil
		}
		return err
	}
	if err := b.sessions.Finish(r.ctx, id); err != nil {
		b.log.Warn().Err(err).Int64("user_id", id).Msg("clear removed user's flow")
	}
	b.log.Info().Int64("user_id", id).Int64("admin_id", r.from.ID).Msg("member removed")
	b.reply(r, "Member removed.")
	return nil
}

// onDigest runs both digests right away.
func (b *Bot) onDigest(r *request) error {
	if b.jobs == nil {
		b.reply(r, "Digests are not scheduled.")
		return nil
	}
	for _, name := range []string{JobRatingDigest, JobPartiesDigest} {
		if err := b.jobs.Trigger(name); err != nil {
			return err
		}
	}
	b.reply(r, "Digests sent to the household chat.")
	return nil
}

func (b *Bot) onCancel(r *request) error {
	if session.IsIdle(r.flow) {
		b.reply(r, msgNothingToCancel)
		return nil
	}
	if err := b.finish(r); err != nil {
		return err
	}
	b.reply(r, msgCancelled)
	return nil
}

func (b *Bot) onUnknownText(r *request) error {
	if session.IsIdle(r.flow) {
		b.reply(r, msgUseMenu)
		return nil
	}
	// A flow that waits for a button press ignores stray text.
	b.reply(r, msgFlowActive)
	return nil
}

// onStaleMenu answers presses on menus that no longer belong to any flow.
func (b *Bot) onStaleMenu(r *request) error {
	if calendar.Is(r.data) {
		r.answer = msgCalendarExpired
	} else {
		r.answer = msgStale
	}
	b.clearMenu(r)
	return nil
}
