// Package memory implements the repository contracts over mutex-guarded maps.
// It backs the test suite and local runs without postgres; the conditional
// checks mirror the SQL implementations exactly.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"parkhub/internal/db"
	"parkhub/internal/repository"
)

type Store struct {
	mu            sync.Mutex
	lots          map[int]*db.Lot
	slots         map[int]*db.Slot
	bookings      map[int]*db.Booking
	notifications map[int]*db.Notification
	contacts      map[int]*db.UserContact
	nextSlot      int
	nextBooking   int
	nextNotif     int
}

func NewStore() *Store {
	return &Store{
		lots:          make(map[int]*db.Lot),
		slots:         make(map[int]*db.Slot),
		bookings:      make(map[int]*db.Booking),
		notifications: make(map[int]*db.Notification),
		contacts:      make(map[int]*db.UserContact),
		nextSlot:      1,
		nextBooking:   1,
		nextNotif:     1,
	}
}

// Seed helpers. Lots and slots are provisioned externally in production, so
// the store only grows them through these.

func (s *Store) AddLot(lot db.Lot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := lot
	s.lots[l.ID] = &l
}

func (s *Store) AddSlot(slot db.Slot) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl := slot
	if sl.ID == 0 {
		sl.ID = s.nextSlot
	}
	if sl.ID >= s.nextSlot {
		s.nextSlot = sl.ID + 1
	}
	if sl.Status == "" {
		sl.Status = db.SlotAvailable
	}
	s.slots[sl.ID] = &sl
	return sl.ID
}

func (s *Store) AddContact(c db.UserContact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cc := c
	s.contacts[cc.ID] = &cc
}

func copySlot(sl *db.Slot) *db.Slot {
	out := *sl
	if sl.CurrentBookingID != nil {
		id := *sl.CurrentBookingID
		out.CurrentBookingID = &id
	}
	if sl.ReservedUntil != nil {
		t := *sl.ReservedUntil
		out.ReservedUntil = &t
	}
	return &out
}

func copyBooking(b *db.Booking) *db.Booking {
	out := *b
	cp := func(t *time.Time) *time.Time {
		if t == nil {
			return nil
		}
		v := *t
		return &v
	}
	out.EndTime = cp(b.EndTime)
	out.ReservedUntil = cp(b.ReservedUntil)
	out.ActualStartTime = cp(b.ActualStartTime)
	out.ActualEndTime = cp(b.ActualEndTime)
	out.CancelledAt = cp(b.CancelledAt)
	return &out
}

// SlotRepository

func (s *Store) GetByID(ctx context.Context, id int) (*db.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copySlot(sl), nil
}

func (s *Store) ListByLot(ctx context.Context, lotID int, filter repository.SlotFilter) ([]db.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Slot
	for _, sl := range s.slots {
		if sl.LotID != lotID {
			continue
		}
		if filter.Type != "" && sl.Type != filter.Type {
			continue
		}
		if filter.Status != "" && sl.Status != filter.Status {
			continue
		}
		out = append(out, *copySlot(sl))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotNumber < out[j].SlotNumber })
	return out, nil
}

func (s *Store) Transition(ctx context.Context, id int, from, to db.SlotStatus, bookingID *int, reservedUntil *time.Time) (*db.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if sl.Status != from {
		return nil, repository.ErrConflict
	}
	sl.Status = to
	sl.CurrentBookingID = nil
	if bookingID != nil {
		ref := *bookingID
		sl.CurrentBookingID = &ref
	}
	sl.ReservedUntil = nil
	if reservedUntil != nil {
		t := *reservedUntil
		sl.ReservedUntil = &t
	}
	sl.LastUpdated = time.Now().UTC()
	return copySlot(sl), nil
}

func (s *Store) CountByLot(ctx context.Context, lotID int) (repository.LotCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c repository.LotCounts
	for _, sl := range s.slots {
		if sl.LotID != lotID {
			continue
		}
		switch sl.Status {
		case db.SlotAvailable:
			c.Available++
		case db.SlotOccupied:
			c.Occupied++
		case db.SlotReserved:
			c.Reserved++
		case db.SlotMaintenance:
			c.Maintenance++
		}
	}
	return c, nil
}

// BookingRepository

func (s *Store) Create(ctx context.Context, b *db.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.nextBooking
	s.nextBooking++
	now := time.Now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now
	s.bookings[b.ID] = copyBooking(b)
	return nil
}

func (s *Store) GetBookingByID(ctx context.Context, id int) (*db.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyBooking(b), nil
}

func (s *Store) ListByUser(ctx context.Context, userID int, status db.BookingStatus) ([]db.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Booking
	for _, b := range s.bookings {
		if b.UserID != userID {
			continue
		}
		if status != "" && b.Status != status {
			continue
		}
		out = append(out, *copyBooking(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListBookingsByLot(ctx context.Context, lotID int, status db.BookingStatus) ([]db.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Booking
	for _, b := range s.bookings {
		if b.LotID != lotID {
			continue
		}
		if status != "" && b.Status != status {
			continue
		}
		out = append(out, *copyBooking(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateStatus(ctx context.Context, b *db.Booking, expected db.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.bookings[b.ID]
	if !ok || cur.Status != expected {
		return repository.ErrConflict
	}
	b.UpdatedAt = time.Now().UTC()
	s.bookings[b.ID] = copyBooking(b)
	return nil
}

func (s *Store) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.bookings, id)
	return nil
}

func (s *Store) FindExpiredReservations(ctx context.Context, now time.Time) ([]db.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Booking
	for _, b := range s.bookings {
		if b.Status == db.BookingConfirmed && b.Kind == db.BookingReservation &&
			b.ReservedUntil != nil && b.ReservedUntil.Before(now) {
			out = append(out, *copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReservedUntil.Before(*out[j].ReservedUntil) })
	return out, nil
}

func (s *Store) FindReservationsExpiringBetween(ctx context.Context, from, to time.Time) ([]db.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Booking
	for _, b := range s.bookings {
		if b.Status != db.BookingConfirmed || b.Kind != db.BookingReservation || b.ReservedUntil == nil {
			continue
		}
		if !b.ReservedUntil.Before(from) && !b.ReservedUntil.After(to) {
			out = append(out, *copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReservedUntil.Before(*out[j].ReservedUntil) })
	return out, nil
}

// LotRepository

func (s *Store) GetLotByID(ctx context.Context, id int) (*db.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *l
	return &out, nil
}

func (s *Store) List(ctx context.Context) ([]db.Lot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Lot
	for _, l := range s.lots {
		if l.IsActive {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) RefreshCounts(ctx context.Context, lotID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lots[lotID]
	if !ok {
		return repository.ErrNotFound
	}
	available, occupied := 0, 0
	for _, sl := range s.slots {
		if sl.LotID != lotID {
			continue
		}
		switch sl.Status {
		case db.SlotAvailable:
			available++
		case db.SlotOccupied, db.SlotReserved:
			occupied++
		}
	}
	l.AvailableSlots = available
	l.OccupiedSlots = occupied
	l.UpdatedAt = time.Now().UTC()
	return nil
}

// NotificationRepository

func (s *Store) CreateNotification(ctx context.Context, n *db.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = s.nextNotif
	s.nextNotif++
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	cp := *n
	s.notifications[n.ID] = &cp
	return nil
}

func (s *Store) ListNotificationsByUser(ctx context.Context, userID int, unreadOnly bool) ([]db.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Notification
	for _, n := range s.notifications {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.IsRead {
			continue
		}
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) MarkRead(ctx context.Context, id, userID int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return repository.ErrNotFound
	}
	n.IsRead = true
	t := at
	n.ReadAt = &t
	return nil
}

func (s *Store) DeleteNotification(ctx context.Context, id, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return repository.ErrNotFound
	}
	delete(s.notifications, id)
	return nil
}

func (s *Store) HasRecentOfType(ctx context.Context, userID, bookingID int, typ db.NotificationType, since time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.UserID == userID && n.Type == typ && n.BookingID != nil && *n.BookingID == bookingID &&
			!n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// UserContactRepository

func (s *Store) GetContact(ctx context.Context, userID int) (*db.UserContact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *c
	return &out, nil
}
