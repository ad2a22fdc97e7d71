package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"parkhub/internal/auth"
	"parkhub/internal/clock"
	"parkhub/internal/db"
	"parkhub/internal/entities"
	"parkhub/internal/events"
	"parkhub/internal/repository"
)

// BookingService is the reservation engine. It validates and applies booking
// state transitions against the slot store's optimistic-concurrency contract,
// keeps the lot's derived counts fresh, and emits state-change events before
// returning to the caller.
type BookingService struct {
	slots         repository.SlotRepository
	bookings      repository.BookingRepository
	lots          repository.LotRepository
	notifications repository.NotificationRepository
	broadcaster   *events.Broadcaster
	notifier      *Notifier
	clock         clock.Clock
}

func NewBookingService(
	slots repository.SlotRepository,
	bookings repository.BookingRepository,
	lots repository.LotRepository,
	notifications repository.NotificationRepository,
	broadcaster *events.Broadcaster,
	notifier *Notifier,
	clk clock.Clock,
) *BookingService {
	return &BookingService{
		slots:         slots,
		bookings:      bookings,
		lots:          lots,
		notifications: notifications,
		broadcaster:   broadcaster,
		notifier:      notifier,
		clock:         clk,
	}
}

// CreateBooking claims an available slot for the actor. Exactly one of two
// concurrent calls on the same slot succeeds; the loser's booking record is
// rolled back and the caller sees ErrSlotUnavailable.
func (s *BookingService) CreateBooking(ctx context.Context, actor auth.Actor, req entities.CreateBookingRequest) (*db.Booking, error) {
	kind := db.BookingKind(req.Kind)
	if kind == "" {
		kind = db.BookingInstant
	}
	if kind != db.BookingInstant && kind != db.BookingReservation {
		return nil, fmt.Errorf("unknown booking kind %q: %w", req.Kind, ErrInvalidAction)
	}
	if req.VehicleNumber == "" {
		return nil, fmt.Errorf("vehicle number is required: %w", ErrInvalidAction)
	}
	now := s.clock.Now()
	if kind == db.BookingReservation {
		if req.ReservedUntil == nil || !req.ReservedUntil.After(now) {
			return nil, fmt.Errorf("a reservation needs a future deadline: %w", ErrInvalidAction)
		}
	}

	slot, err := s.slots.GetByID(ctx, req.SlotID)
	if err != nil {
		return nil, err
	}
	if slot.LotID != req.LotID {
		return nil, fmt.Errorf("slot %d does not belong to lot %d: %w", req.SlotID, req.LotID, repository.ErrNotFound)
	}
	if slot.Status != db.SlotAvailable {
		return nil, ErrSlotUnavailable
	}

	lot, err := s.lots.GetByID(ctx, req.LotID)
	if err != nil {
		return nil, err
	}

	startTime := now
	if req.StartTime != nil {
		startTime = req.StartTime.UTC()
	}

	booking := &db.Booking{
		UserID:        actor.UserID,
		LotID:         lot.ID,
		SlotID:        slot.ID,
		VehicleNumber: req.VehicleNumber,
		Kind:          kind,
		StartTime:     startTime,
		ReservedUntil: req.ReservedUntil,
		// Pricing snapshot: rate changes after this point do not affect the
		// placed booking.
		BaseRate:   lot.BaseRate,
		HourlyRate: lot.HourlyRate,
		Currency:   lot.Currency,
	}
	targetStatus := db.SlotOccupied
	if kind == db.BookingReservation {
		booking.Status = db.BookingConfirmed
		targetStatus = db.SlotReserved
	} else {
		booking.Status = db.BookingPending
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}

	var expiry *time.Time
	if kind == db.BookingReservation {
		expiry = booking.ReservedUntil
	}
	updated, err := s.slots.Transition(ctx, slot.ID, db.SlotAvailable, targetStatus, &booking.ID, expiry)
	if err != nil {
		// Lost the race (or the slot vanished). Never leave an orphaned
		// booking record behind.
		if delErr := s.bookings.Delete(ctx, booking.ID); delErr != nil {
			log.Printf("booking %d: rollback after failed slot transition: %v", booking.ID, delErr)
		}
		if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	s.finishSlotMutation(ctx, lot.ID, updated)
	s.notifyBooking(ctx, booking, db.NotificationBookingConfirmed,
		"Booking Confirmed",
		fmt.Sprintf("Your booking for slot %s at %s has been confirmed.", updated.SlotNumber, lot.Name))

	return booking, nil
}

// GetBooking returns one booking, to its owner or an admin.
func (s *BookingService) GetBooking(ctx context.Context, actor auth.Actor, bookingID int) (*db.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}
	return booking, nil
}

// ListBookings returns the actor's own bookings, newest first, optionally
// filtered by status.
func (s *BookingService) ListBookings(ctx context.Context, actor auth.Actor, status db.BookingStatus) ([]db.Booking, error) {
	return s.bookings.ListByUser(ctx, actor.UserID, status)
}

// ListLotBookings is the manager/admin view of one lot's bookings.
func (s *BookingService) ListLotBookings(ctx context.Context, actor auth.Actor, lotID int, status db.BookingStatus) ([]db.Booking, error) {
	if !actor.CanManage() {
		return nil, ErrUnauthorized
	}
	if _, err := s.lots.GetByID(ctx, lotID); err != nil {
		return nil, err
	}
	return s.bookings.ListByLot(ctx, lotID, status)
}

// UpdateBooking applies a start, end or cancel action. The booking row's
// status-conditional update claims the booking first, so a concurrent sweep
// expiry and a manual action resolve with one winner; the slot transition
// then follows the same optimistic contract.
func (s *BookingService) UpdateBooking(ctx context.Context, actor auth.Actor, bookingID int, req entities.UpdateBookingRequest) (*db.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrUnauthorized
	}

	slot, err := s.slots.GetByID(ctx, booking.SlotID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	prev := booking.Status
	var (
		slotTarget   db.SlotStatus
		slotRef      *int
		slotExpiry   *time.Time
		notifType    db.NotificationType
		notifTitle   string
		notifMessage string
	)

	switch req.Action {
	case "start":
		if prev != db.BookingPending && prev != db.BookingConfirmed {
			return nil, fmt.Errorf("cannot start a booking in status %q: %w", prev, ErrInvalidAction)
		}
		booking.Status = db.BookingActive
		booking.ActualStartTime = &now
		slotTarget = db.SlotOccupied
		slotRef = &booking.ID
		notifType = db.NotificationBookingStarted
		notifTitle = "Booking Started"
		notifMessage = "Your booking has started."

	case "end":
		if prev != db.BookingActive {
			return nil, fmt.Errorf("cannot end a booking in status %q, it is not active: %w", prev, ErrInvalidAction)
		}
		endedAt := now
		if req.EndTime != nil {
			endedAt = req.EndTime.UTC()
		}
		booking.Status = db.BookingCompleted
		booking.ActualEndTime = &endedAt
		booking.EndTime = &endedAt
		if booking.ActualStartTime != nil {
			booking.DurationMinutes = elapsedMinutes(*booking.ActualStartTime, endedAt)
		}
		booking.TotalAmount = db.FinalAmount(booking.BaseRate, booking.HourlyRate, booking.DurationMinutes)
		slotTarget = db.SlotAvailable
		notifType = db.NotificationBookingCompleted
		notifTitle = "Booking Completed"
		notifMessage = fmt.Sprintf("Your booking has been completed. Total: %d %s.", booking.TotalAmount, booking.Currency)

	case "cancel":
		if booking.IsTerminal() {
			return nil, fmt.Errorf("cannot cancel a booking in status %q, it is already finished: %w", prev, ErrInvalidAction)
		}
		reason := req.Reason
		if reason == "" {
			reason = "User cancelled"
		}
		booking.Status = db.BookingCancelled
		booking.CancelledAt = &now
		booking.CancellationReason = reason
		slotTarget = db.SlotAvailable
		notifType = db.NotificationBookingCancelled
		notifTitle = "Booking Cancelled"
		notifMessage = "Your booking has been cancelled."

	default:
		return nil, fmt.Errorf("unknown action %q: %w", req.Action, ErrInvalidAction)
	}

	if err := s.bookings.UpdateStatus(ctx, booking, prev); err != nil {
		return nil, err
	}

	updated, err := s.slots.Transition(ctx, slot.ID, slot.Status, slotTarget, slotRef, slotExpiry)
	if err != nil {
		// The booking row already changed hands; a conflicting slot write
		// (e.g. a manager override landing in between) keeps its own state.
		log.Printf("booking %d: slot %d transition to %s failed: %v", booking.ID, slot.ID, slotTarget, err)
		if !errors.Is(err, repository.ErrConflict) {
			return nil, err
		}
		return nil, repository.ErrConflict
	}

	s.finishSlotMutation(ctx, booking.LotID, updated)
	s.notifyBooking(ctx, booking, notifType, notifTitle, notifMessage)

	return booking, nil
}

// finishSlotMutation refreshes the owning lot's derived counts and broadcasts
// the slot change. Failures here are logged, never rolled back: the slot
// transition already succeeded and is authoritative.
func (s *BookingService) finishSlotMutation(ctx context.Context, lotID int, slot *db.Slot) {
	if err := s.lots.RefreshCounts(ctx, lotID); err != nil {
		log.Printf("lot %d: refreshing counts: %v", lotID, err)
	}
	counts, err := s.slots.CountByLot(ctx, lotID)
	if err != nil {
		log.Printf("lot %d: counting slots for broadcast: %v", lotID, err)
	}
	s.broadcaster.Publish(events.LotTopic(lotID), entities.Event{
		Type: entities.EventSlotUpdated,
		Data: entities.SlotUpdatePayload{
			SlotID:         slot.ID,
			LotID:          lotID,
			Status:         string(slot.Status),
			AvailableSlots: counts.Available,
			OccupiedSlots:  counts.Occupied + counts.Reserved,
			Timestamp:      s.clock.Now(),
		},
	})
}

// notifyBooking persists the in-app notification, pushes the user-scoped
// event and hands off to the outbound notifier. All best-effort.
func (s *BookingService) notifyBooking(ctx context.Context, booking *db.Booking, typ db.NotificationType, title, message string) {
	n := &db.Notification{
		UserID:    booking.UserID,
		Type:      typ,
		Title:     title,
		Message:   message,
		BookingID: &booking.ID,
		LotID:     &booking.LotID,
		CreatedAt: s.clock.Now(),
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		log.Printf("booking %d: creating %s notification: %v", booking.ID, typ, err)
	}

	s.broadcaster.Publish(events.UserTopic(booking.UserID), entities.Event{
		Type: entities.EventBookingUpdated,
		Data: entities.BookingUpdatePayload{
			BookingID: booking.ID,
			LotID:     booking.LotID,
			SlotID:    booking.SlotID,
			Status:    string(booking.Status),
		},
	})

	s.notifier.BookingStatusChanged(booking, title, message)
}

func elapsedMinutes(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	return int(math.Ceil(to.Sub(from).Minutes()))
}
