package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"parkhub/internal/clock"
	"parkhub/internal/db"
	"parkhub/internal/entities"
	"parkhub/internal/events"
	"parkhub/internal/repository"
)

const (
	// How far ahead the reminder sweep looks for deadlines.
	reminderWindow = 15 * time.Minute
	// How far back the dedup check looks for an already-sent reminder.
	reminderLookback = 5 * time.Minute
)

// SweepService runs the time-driven transitions: expiring stale reservations
// and warning owners shortly before their deadline. Both sweeps are
// idempotent; a second run over unchanged state is a no-op.
type SweepService struct {
	slots         repository.SlotRepository
	bookings      repository.BookingRepository
	lots          repository.LotRepository
	notifications repository.NotificationRepository
	broadcaster   *events.Broadcaster
	notifier      *Notifier
	clock         clock.Clock
}

func NewSweepService(
	slots repository.SlotRepository,
	bookings repository.BookingRepository,
	lots repository.LotRepository,
	notifications repository.NotificationRepository,
	broadcaster *events.Broadcaster,
	notifier *Notifier,
	clk clock.Clock,
) *SweepService {
	return &SweepService{
		slots:         slots,
		bookings:      bookings,
		lots:          lots,
		notifications: notifications,
		broadcaster:   broadcaster,
		notifier:      notifier,
		clock:         clk,
	}
}

// ReleaseExpiredReservations expires every confirmed reservation whose
// deadline has passed and releases its slot. A reservation cancelled
// concurrently by its owner loses the booking-row update and is skipped
// silently; a slot already released by another path is likewise skipped.
func (s *SweepService) ReleaseExpiredReservations(ctx context.Context) error {
	now := s.clock.Now()
	expired, err := s.bookings.FindExpiredReservations(ctx, now)
	if err != nil {
		return fmt.Errorf("sweep: finding expired reservations: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	processed := 0
	for i := range expired {
		booking := expired[i]
		booking.Status = db.BookingExpired
		if err := s.bookings.UpdateStatus(ctx, &booking, db.BookingConfirmed); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				// A manual cancel got there first; its path already
				// released the slot.
				continue
			}
			log.Printf("sweep: expiring booking %d: %v", booking.ID, err)
			continue
		}

		slot, err := s.slots.Transition(ctx, booking.SlotID, db.SlotReserved, db.SlotAvailable, nil, nil)
		if err != nil {
			if !errors.Is(err, repository.ErrConflict) {
				log.Printf("sweep: releasing slot %d for booking %d: %v", booking.SlotID, booking.ID, err)
			}
			// Slot no longer reserved: another path already moved it.
		}

		if err := s.lots.RefreshCounts(ctx, booking.LotID); err != nil {
			log.Printf("sweep: refreshing counts for lot %d: %v", booking.LotID, err)
		}

		n := &db.Notification{
			UserID:    booking.UserID,
			Type:      db.NotificationReservationExpired,
			Title:     "Reservation Expired",
			Message:   "Your reservation has expired and the slot was released.",
			BookingID: &booking.ID,
			LotID:     &booking.LotID,
			CreatedAt: now,
		}
		if err := s.notifications.Create(ctx, n); err != nil {
			log.Printf("sweep: creating expiry notification for booking %d: %v", booking.ID, err)
		}

		s.broadcaster.Publish(events.UserTopic(booking.UserID), entities.Event{
			Type: entities.EventBookingUpdated,
			Data: entities.BookingUpdatePayload{
				BookingID: booking.ID,
				LotID:     booking.LotID,
				SlotID:    booking.SlotID,
				Status:    string(db.BookingExpired),
			},
		})
		if slot != nil {
			counts, err := s.slots.CountByLot(ctx, booking.LotID)
			if err != nil {
				log.Printf("sweep: counting slots for lot %d: %v", booking.LotID, err)
			}
			s.broadcaster.Publish(events.LotTopic(booking.LotID), entities.Event{
				Type: entities.EventSlotUpdated,
				Data: entities.SlotUpdatePayload{
					SlotID:         slot.ID,
					LotID:          booking.LotID,
					Status:         string(slot.Status),
					AvailableSlots: counts.Available,
					OccupiedSlots:  counts.Occupied + counts.Reserved,
					Timestamp:      now,
				},
			})
		}

		s.notifier.BookingStatusChanged(&booking, n.Title, n.Message)
		processed++
	}

	if processed > 0 {
		log.Printf("sweep: processed %d expired reservations", processed)
	}
	return nil
}

// SendExpiryReminders emits a one-shot "expiring soon" notification for every
// confirmed reservation whose deadline falls within the next fifteen minutes.
// A reminder already sent within the lookback window suppresses a duplicate.
func (s *SweepService) SendExpiryReminders(ctx context.Context) error {
	now := s.clock.Now()
	upcoming, err := s.bookings.FindReservationsExpiringBetween(ctx, now, now.Add(reminderWindow))
	if err != nil {
		return fmt.Errorf("sweep: finding upcoming expirations: %w", err)
	}

	for i := range upcoming {
		booking := upcoming[i]
		sent, err := s.notifications.HasRecentOfType(ctx, booking.UserID, booking.ID,
			db.NotificationReservationExpiring, now.Add(-reminderLookback))
		if err != nil {
			log.Printf("sweep: checking reminder dedup for booking %d: %v", booking.ID, err)
			continue
		}
		if sent {
			continue
		}

		minutesLeft := int(booking.ReservedUntil.Sub(now).Minutes())
		n := &db.Notification{
			UserID:    booking.UserID,
			Type:      db.NotificationReservationExpiring,
			Title:     "Reservation Expiring Soon",
			Message:   fmt.Sprintf("Your reservation expires in %d minutes.", minutesLeft),
			BookingID: &booking.ID,
			LotID:     &booking.LotID,
			CreatedAt: now,
		}
		if err := s.notifications.Create(ctx, n); err != nil {
			log.Printf("sweep: creating reminder notification for booking %d: %v", booking.ID, err)
			continue
		}

		s.broadcaster.Publish(events.UserTopic(booking.UserID), entities.Event{
			Type: entities.EventNotification,
			Data: entities.NotificationPayload{
				Type:    string(db.NotificationReservationExpiring),
				Title:   n.Title,
				Message: n.Message,
			},
		})

		s.notifier.BookingStatusChanged(&booking, n.Title, n.Message)
	}
	return nil
}
