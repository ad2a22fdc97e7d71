package service

import "errors"

// Business-rule rejections. All are terminal: the caller may retry a fresh
// request (e.g. pick another slot) but never the same operation.
var (
	// ErrSlotUnavailable rejects a booking attempt on a slot that is not
	// available, including the loser of a create race.
	ErrSlotUnavailable = errors.New("slot is not available")

	// ErrInvalidAction rejects a booking action not permitted from the
	// booking's current status.
	ErrInvalidAction = errors.New("action not permitted")

	// ErrUnauthorized rejects an actor who is neither the booking's owner
	// nor an admin, or who lacks the manager role.
	ErrUnauthorized = errors.New("not authorized")
)
