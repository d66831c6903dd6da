package bot

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/flatmate-bot/internal/domain"
	"github.com/tbourn/flatmate-bot/internal/gateway"
	"github.com/tbourn/flatmate-bot/internal/services"
)

// Main menu labels. They arrive back as plain text messages.
const (
	LabelDishwasher = "Dishwasher 🍴"
	LabelTrash      = "Take out trash 🗑"
	LabelParties    = "Parties 🍻"
	LabelQuiet      = "Quiet please 🤫"
	LabelStats      = "Statistics 📊"
)

var mainMenu = [][]string{
	{LabelDishwasher, LabelTrash},
	{LabelParties, LabelQuiet},
	{LabelStats},
}

const (
	dateLayout = "02.01.06"
	timeLayout = "15:04"
)

const (
	msgWhatNow         = "What are we doing?"
	msgGroupHint       = "Use /start or /home in a private chat with me so actions don't clutter this chat. Important notices will still show up here for everyone."
	msgJoinSent        = "Your request has been sent to the admins."
	msgAccepted        = "You have been accepted into the household! Send /start to open the menu."
	msgDeclined        = "Your request to join the household was declined."
	msgRequestExpired  = "This request has expired. Ask them to send /start again."
	msgStale           = "This button is no longer valid."
	msgCalendarExpired = "This calendar has expired."
	msgGeneric         = "Something went wrong, please try again."
	msgFlowActive      = "Finish what you started first, or send /cancel."
	msgCancelled       = "Cancelled."
	msgNothingToCancel = "Nothing to cancel."
	msgUseMenu         = "Use the menu buttons below."

	msgDishwasherMenu  = "What should we do with the dishwasher?"
	msgDishwasherReady = "The dishwasher can be unloaded!"

	msgTooLoud       = "Too loud! Could you keep it down?"
	msgStillTooLoud  = "We already asked to keep it down! Does someone need to come over?"
	msgAskingFailed  = "Asking didn't help. Time to go and talk to them without me."
	msgStatsMenu     = "Which statistics?"
	msgNoActivity    = "Nothing to show yet. There has been no activity."
	msgRatingHeader  = "Household activity rating:"
	msgDigestHeader  = "Daily summary of the most active flatmates:"
	msgPartiesHeader = "Upcoming parties:"

	msgPartiesMenu    = "What about parties?"
	msgPickDate       = "Pick a date"
	msgPickNewDate    = "Pick a new date"
	msgAskGuests      = "How many guests?"
	msgAskNewGuests   = "So how many guests will there be?"
	msgAskSofa        = "Will the sofa be used?"
	msgBookingOff     = "Party booking cancelled."
	msgDateChangeOff  = "Date change cancelled."
	msgDateSame       = "The date did not change."
	msgGuestsSame     = "The guest count did not change."
	msgNoUpcoming     = "No parties planned for the near future."
	msgNoOwnParties   = "You have no upcoming parties."
	msgPickParty      = "Pick a party"
	msgPickAction     = "Pick an action"
	msgGuestsNotANum  = "Nice joke. Now enter the number of guests as a number."
	msgGuestsTooFew   = "Sounds like a wild party. Still, enter at least %d guest(s)."
	msgGuestsTooMany  = "The flat can't take that many guests. %d is the maximum."
	msgPastDate       = "That day has already passed. Pick another date."
	btnLoad           = "Load ⬇"
	btnUnload         = "Unload ⬆"
	btnYes            = "Yes"
	btnNo             = "No"
	btnAccept         = "Accept ✅"
	btnReject         = "Reject ❌"
	btnNewParty       = "Book a new one 🎉"
	btnClosest        = "See upcoming 📆"
	btnManage         = "Manage 🏄"
	btnEditDate       = "Edit party date"
	btnEditGuests     = "Edit guest count"
	btnDeleteParty    = "Cancel the party"
	btnRating         = "Rating"
	btnSilenceStats   = "Noise complaints"
)

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// displayName title-cases the person's name for messages.
func displayName(first, last string) string {
	name := strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
	if name == "" {
		return "Someone"
	}
	return cases.Title(language.Und, cases.NoLower).String(name)
}

func senderName(s gateway.Sender) string { return displayName(s.FirstName, s.LastName) }

func userName(u domain.User) string { return displayName(u.FirstName, u.LastName) }

func fmtDate(d domain.Date) string { return d.Format(dateLayout) }

func (b *Bot) fmtTime(t time.Time) string { return t.In(b.cfg.Location).Format(timeLayout) }

func (b *Bot) fmtDateTime(t time.Time) string {
	t = t.In(b.cfg.Location)
	return t.Format(dateLayout) + " at " + t.Format(timeLayout)
}

func rateLimitText(e *services.RateLimitError) string {
	var what string
	switch e.Type {
	case domain.NotificationTrash:
		what = "The trash has already been taken out"
	case domain.NotificationDishwasherLoad:
		what = "The dishwasher has already been loaded"
	case domain.NotificationDishwasherUnload:
		what = "The dishwasher has already been unloaded"
	default:
		what = "That has already been done"
	}
	return fmt.Sprintf("%s %d times today. Looks like you're just boosting your rating.", what, e.Limit)
}

func guestsText(e *services.GuestsError) string {
	switch e.Problem {
	case services.NotANumber:
		return msgGuestsNotANum
	case services.TooFew:
		return fmt.Sprintf(msgGuestsTooFew, e.Min)
	default:
		return fmt.Sprintf(msgGuestsTooMany, e.Max)
	}
}

func partyLine(p domain.Party) string {
	return fmt.Sprintf("%s, guests: %d, sofa taken: %s", fmtDate(p.PartyDate), p.GuestsAmount, yesNo(p.UsingSofa))
}

// relativeDay labels the digest window.
func relativeDay(n int) string {
	switch n {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	case 2:
		return "Day after tomorrow"
	default:
		return fmt.Sprintf("In %d days", n)
	}
}
