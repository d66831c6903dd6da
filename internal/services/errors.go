// Package services holds the household rules: the honesty check, the
// dishwasher cycle, chores, party bookings, ratings and membership.
//
// This file centralizes service-level errors. Handlers match them with
// errors.Is and errors.As and translate them into chat replies; the services
// themselves never format user-facing text.
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/tbourn/flatmate-bot/internal/domain"
)

var (
	// ErrValidation marks user input that failed validation. The flow that
	// asked for it stays where it is.
	ErrValidation = errors.New("invalid input")

	// ErrDateConflict is returned when a party would share its date with
	// another active party.
	ErrDateConflict = errors.New("date already booked")

	// ErrRateLimited is returned when the daily honesty limit for an event
	// type is used up. Nothing is recorded.
	ErrRateLimited = errors.New("daily limit reached")

	// ErrPrecondition is returned for out-of-order dishwasher actions.
	ErrPrecondition = errors.New("precondition failed")

	// ErrNotFound indicates a missing or inaccessible party or user, usually
	// a stale button.
	ErrNotFound = errors.New("not found")
)

// GuestsProblem classifies a rejected guest count.
type GuestsProblem int

const (
	NotANumber GuestsProblem = iota + 1
	TooFew
	TooMany
)

// GuestsError describes why a guest count was rejected.
type GuestsError struct {
	Problem  GuestsProblem
	Input    string
	Min, Max int
}

func (e *GuestsError) Error() string {
	switch e.Problem {
	case NotANumber:
		return fmt.Sprintf("guests: %q is not a number", e.Input)
	case TooFew:
		return fmt.Sprintf("guests: %s is below %d", e.Input, e.Min)
	default:
		return fmt.Sprintf("guests: %s is above %d", e.Input, e.Max)
	}
}

func (e *GuestsError) Is(target error) bool { return target == ErrValidation }

// RateLimitError names the event type whose daily limit was hit.
type RateLimitError struct {
	Type  domain.NotificationType
	Limit int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: already recorded %d times today", e.Type, e.Limit)
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }

// PreconditionReason says which dishwasher rule blocked an action.
type PreconditionReason int

const (
	// MustUnloadFirst: load attempted while loaded. At is the last load.
	MustUnloadFirst PreconditionReason = iota + 1
	// MustLoadFirst: unload attempted while unloaded. At is the last
	// unload, zero when there is no history.
	MustLoadFirst
	// StillRunning: unload attempted before the cycle ended. At is the
	// ready time.
	StillRunning
)

// PreconditionError reports a rejected dishwasher action.
type PreconditionError struct {
	Reason PreconditionReason
	At     time.Time
}

func (e *PreconditionError) Error() string {
	switch e.Reason {
	case MustUnloadFirst:
		return "dishwasher: unload before loading again"
	case MustLoadFirst:
		return "dishwasher: nothing to unload"
	default:
		return "dishwasher: still running until " + e.At.Format(time.RFC3339)
	}
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }
