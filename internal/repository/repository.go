package repository

import (
	"context"
	"errors"
	"time"

	"parkhub/internal/db"
)

// ErrNotFound reports an unknown lot, slot, booking or notification id.
var ErrNotFound = errors.New("record not found")

// ErrConflict reports a failed optimistic-concurrency precondition: the row
// was not in the expected state when the conditional update ran.
var ErrConflict = errors.New("record changed concurrently")

// SlotFilter narrows ListByLot. Zero values match everything.
type SlotFilter struct {
	Type   db.SlotType
	Status db.SlotStatus
}

// LotCounts is a live tally of a lot's slots by status.
type LotCounts struct {
	Available   int `json:"available"`
	Occupied    int `json:"occupied"`
	Reserved    int `json:"reserved"`
	Maintenance int `json:"maintenance"`
}

func (c LotCounts) Total() int {
	return c.Available + c.Occupied + c.Reserved + c.Maintenance
}

// SlotRepository is the slot store. Transition is the sole mutation entry
// point: it succeeds only when the slot's current status equals from, so two
// writers racing on one slot resolve with exactly one winner. A failed
// precondition yields ErrConflict, an unknown id ErrNotFound.
type SlotRepository interface {
	GetByID(ctx context.Context, id int) (*db.Slot, error)
	ListByLot(ctx context.Context, lotID int, filter SlotFilter) ([]db.Slot, error)
	Transition(ctx context.Context, id int, from, to db.SlotStatus, bookingID *int, reservedUntil *time.Time) (*db.Slot, error)
	CountByLot(ctx context.Context, lotID int) (LotCounts, error)
}

type BookingRepository interface {
	Create(ctx context.Context, b *db.Booking) error
	GetByID(ctx context.Context, id int) (*db.Booking, error)
	ListByUser(ctx context.Context, userID int, status db.BookingStatus) ([]db.Booking, error)
	ListByLot(ctx context.Context, lotID int, status db.BookingStatus) ([]db.Booking, error)
	// UpdateStatus persists the booking's mutated fields, gated on the row
	// still holding the expected status. Zero rows updated yields ErrConflict.
	UpdateStatus(ctx context.Context, b *db.Booking, expected db.BookingStatus) error
	Delete(ctx context.Context, id int) error
	FindExpiredReservations(ctx context.Context, now time.Time) ([]db.Booking, error)
	FindReservationsExpiringBetween(ctx context.Context, from, to time.Time) ([]db.Booking, error)
}

type LotRepository interface {
	GetByID(ctx context.Context, id int) (*db.Lot, error)
	List(ctx context.Context) ([]db.Lot, error)
	// RefreshCounts rewrites the lot's cached available/occupied totals from
	// the live slot tally. Counts are cache, never source of truth.
	RefreshCounts(ctx context.Context, lotID int) error
}

type NotificationRepository interface {
	Create(ctx context.Context, n *db.Notification) error
	ListByUser(ctx context.Context, userID int, unreadOnly bool) ([]db.Notification, error)
	MarkRead(ctx context.Context, id, userID int, at time.Time) error
	Delete(ctx context.Context, id, userID int) error
	// HasRecentOfType reports whether a notification of typ for the booking
	// was created at or after since. Used to deduplicate reminders.
	HasRecentOfType(ctx context.Context, userID, bookingID int, typ db.NotificationType, since time.Time) (bool, error)
}

// UserContactRepository exposes the identity layer's contact details
// read-only; account management itself lives outside this service.
type UserContactRepository interface {
	GetContact(ctx context.Context, userID int) (*db.UserContact, error)
}
