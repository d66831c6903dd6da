// Package calendar renders a month grid as an inline button menu and decodes
// presses on it. It is a pure function of (year, month, today); the caller
// decides what to do with each Outcome (redraw the same message on
// navigation, remove the menu on selection or cancel).
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/flatmate-bot/internal/callback"
	"github.com/tbourn/flatmate-bot/internal/domain"
	"github.com/tbourn/flatmate-bot/internal/gateway"
	"github.com/tbourn/flatmate-bot/internal/utils"
)

// Payload tags produced by Render.
const (
	TagPrefix = "cal."
	TagIgnore = "cal.ignore"
	TagDay    = "cal.day"
	TagPrev   = "cal.prev"
	TagNext   = "cal.next"
	TagCancel = "cal.cancel"
)

// CancelLabel is the text of the trailing cancel control.
const CancelLabel = "Cancel"

var weekdays = [7]string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

// ErrPayload is returned for payloads that do not describe a calendar press.
var ErrPayload = errors.New("calendar: malformed payload")

// Kind classifies a decoded press.
type Kind int

const (
	NoOp Kind = iota
	Cancelled
	DaySelected
	NavigatedTo
)

func (k Kind) String() string {
	switch k {
	case Cancelled:
		return "cancelled"
	case DaySelected:
		return "day_selected"
	case NavigatedTo:
		return "navigated_to"
	}
	return "noop"
}

// Outcome is the result of Decode. Date is set for DaySelected, Year and
// Month for NavigatedTo.
type Outcome struct {
	Kind  Kind
	Date  domain.Date
	Year  int
	Month time.Month
}

// Is reports whether d is a calendar payload.
func Is(d callback.Data) bool { return d.HasPrefix(TagPrefix) }

// Render builds the grid for (year, month) as seen on day today:
//
//	[<] [Month YYYY] [>]
//	Mo Tu We Th Fr Sa Su
//	one row per Monday-first week
//	[Cancel]
//
// The "<" control is only present when the shown month is after today's
// month. Days before today and padding cells are blank no-op buttons.
func Render(year int, month time.Month, today domain.Date) gateway.Menu {
	ignore := callback.MustEncode(TagIgnore)
	menu := gateway.Menu{}

	header := []gateway.Button{}
	if utils.MonthAfter(year, month, today.Year, today.Month) {
		header = append(header, gateway.Button{Text: "<", Data: callback.MustEncode(TagPrev, year, int(month))})
	}
	header = append(header,
		gateway.Button{Text: fmt.Sprintf("%s %d", month, year), Data: ignore},
		gateway.Button{Text: ">", Data: callback.MustEncode(TagNext, year, int(month))},
	)
	menu = append(menu, header)

	names := make([]gateway.Button, 0, 7)
	for _, w := range weekdays {
		names = append(names, gateway.Button{Text: w, Data: ignore})
	}
	menu = append(menu, names)

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	lead := utils.MondayIndex(first.Weekday())
	days := utils.DaysIn(year, month)

	row := make([]gateway.Button, 0, 7)
	for i := 0; i < lead; i++ {
		row = append(row, gateway.Button{Text: " ", Data: ignore})
	}
	for day := 1; day <= days; day++ {
		d := domain.Date{Year: year, Month: month, Day: day}
		if d.Before(today) {
			row = append(row, gateway.Button{Text: " ", Data: ignore})
		} else {
			row = append(row, gateway.Button{
				Text: strconv.Itoa(day),
				Data: callback.MustEncode(TagDay, year, int(month), day),
			})
		}
		if len(row) == 7 {
			menu = append(menu, row)
			row = make([]gateway.Button, 0, 7)
		}
	}
	if len(row) > 0 {
		for len(row) < 7 {
			row = append(row, gateway.Button{Text: " ", Data: ignore})
		}
		menu = append(menu, row)
	}

	menu = append(menu, []gateway.Button{{Text: CancelLabel, Data: callback.MustEncode(TagCancel)}})
	return menu
}

// Decode interprets a press on a grid produced by Render. Stale presses that
// would land in the past (an old "<" or a day that has since passed) decode
// to NoOp.
func Decode(d callback.Data, today domain.Date) (Outcome, error) {
	switch d.Tag {
	case TagIgnore:
		return Outcome{Kind: NoOp}, nil
	case TagCancel:
		return Outcome{Kind: Cancelled}, nil
	case TagPrev, TagNext:
		year, month, err := yearMonth(d)
		if err != nil {
			return Outcome{}, err
		}
		if d.Tag == TagPrev {
			if !utils.MonthAfter(year, month, today.Year, today.Month) {
				return Outcome{Kind: NoOp}, nil
			}
			year, month = utils.AddMonths(year, month, -1)
		} else {
			year, month = utils.AddMonths(year, month, 1)
		}
		return Outcome{Kind: NavigatedTo, Year: year, Month: month}, nil
	case TagDay:
		year, month, err := yearMonth(d)
		if err != nil {
			return Outcome{}, err
		}
		day, err := d.Int(2)
		if err != nil || day < 1 || day > utils.DaysIn(year, month) {
			return Outcome{}, ErrPayload
		}
		date := domain.Date{Year: year, Month: month, Day: day}
		if date.Before(today) {
			return Outcome{Kind: NoOp}, nil
		}
		return Outcome{Kind: DaySelected, Date: date}, nil
	}
	if strings.HasPrefix(d.Tag, TagPrefix) {
		return Outcome{}, fmt.Errorf("%w: unknown action %q", ErrPayload, d.Tag)
	}
	return Outcome{}, ErrPayload
}

func yearMonth(d callback.Data) (int, time.Month, error) {
	year, err := d.Int(0)
	if err != nil {
		return 0, 0, ErrPayload
	}
	m, err := d.Int(1)
	if err != nil || m < 1 || m > 12 {
		return 0, 0, ErrPayload
	}
	return year, time.Month(m), nil
}
