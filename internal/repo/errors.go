package repo

import (
	"errors"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a record with the same unique key already
// exists (for example a webhook update that was already claimed).
var ErrDuplicate = errors.New("duplicate")

// ErrDateConflict is returned when an active party already occupies the
// requested date.
var ErrDateConflict = errors.New("party date already booked")
