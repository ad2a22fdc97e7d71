package service

import (
	"context"
	"testing"
	"time"

	"parkhub/internal/db"
	"parkhub/internal/entities"
	"parkhub/internal/events"
	"parkhub/internal/repository/memory"
)

type sweepFixture struct {
	store    *memory.Store
	clk      *testClock
	bus      *events.Broadcaster
	bookings *BookingService
	sweep    *SweepService
}

func newSweepFixture(t *testing.T) *sweepFixture {
	t.Helper()
	f := newBookingFixture(t)
	sweep := NewSweepService(f.store.Slots(), f.store.Bookings(), f.store.Lots(), f.store.Notifications(), f.bus, nil, f.clk)
	return &sweepFixture{store: f.store, clk: f.clk, bus: f.bus, bookings: f.svc, sweep: sweep}
}

func (f *sweepFixture) reserve(t *testing.T, slotID int, deadline time.Time) *db.Booking {
	t.Helper()
	booking, err := f.bookings.CreateBooking(context.Background(), driver, entities.CreateBookingRequest{
		LotID: 1, SlotID: slotID, VehicleNumber: "KA-01-1234", Kind: "reservation", ReservedUntil: &deadline,
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	return booking
}

func TestReleaseExpiredReservations(t *testing.T) {
	ctx := context.Background()

	t.Run("expires the reservation and releases the slot", func(t *testing.T) {
		f := newSweepFixture(t)
		booking := f.reserve(t, 1, f.clk.Now().Add(30*time.Minute))

		userSub := f.bus.Subscribe(events.UserTopic(driver.UserID))
		lotSub := f.bus.Subscribe(events.LotTopic(1))

		f.clk.Advance(31 * time.Minute)
		if err := f.sweep.ReleaseExpiredReservations(ctx); err != nil {
			t.Fatalf("sweep: %v", err)
		}

		got, _ := f.store.GetBookingByID(ctx, booking.ID)
		if got.Status != db.BookingExpired {
			t.Errorf("booking status = %q, want %q", got.Status, db.BookingExpired)
		}
		slot, _ := f.store.GetByID(ctx, 1)
		if slot.Status != db.SlotAvailable || slot.CurrentBookingID != nil || slot.ReservedUntil != nil {
			t.Errorf("slot after sweep = %+v, want available with no ref and no expiry", slot)
		}

		// The release puts the slot back into the lot's cached tally.
		lot, _ := f.store.GetLotByID(ctx, 1)
		if lot.AvailableSlots != 2 {
			t.Errorf("lot available = %d, want 2", lot.AvailableSlots)
		}

		notifs, _ := f.store.ListNotificationsByUser(ctx, driver.UserID, false)
		var expiredNotif bool
		for _, n := range notifs {
			if n.Type == db.NotificationReservationExpired {
				expiredNotif = true
			}
		}
		if !expiredNotif {
			t.Error("no reservation_expired notification created")
		}

		select {
		case ev := <-userSub.C:
			if ev.Type != entities.EventBookingUpdated {
				t.Errorf("user event = %q, want %q", ev.Type, entities.EventBookingUpdated)
			}
		default:
			t.Error("no user event published")
		}
		select {
		case ev := <-lotSub.C:
			if ev.Type != entities.EventSlotUpdated {
				t.Errorf("lot event = %q, want %q", ev.Type, entities.EventSlotUpdated)
			}
		default:
			t.Error("no lot event published")
		}
	})

	t.Run("second run is a no-op", func(t *testing.T) {
		f := newSweepFixture(t)
		f.reserve(t, 1, f.clk.Now().Add(10*time.Minute))

		f.clk.Advance(11 * time.Minute)
		if err := f.sweep.ReleaseExpiredReservations(ctx); err != nil {
			t.Fatalf("first sweep: %v", err)
		}
		if err := f.sweep.ReleaseExpiredReservations(ctx); err != nil {
			t.Fatalf("second sweep: %v", err)
		}

		notifs, _ := f.store.ListNotificationsByUser(ctx, driver.UserID, false)
		expired := 0
		for _, n := range notifs {
			if n.Type == db.NotificationReservationExpired {
				expired++
			}
		}
		if expired != 1 {
			t.Errorf("%d expiry notifications after two sweeps, want 1", expired)
		}
	})

	t.Run("deadline still ahead is untouched", func(t *testing.T) {
		f := newSweepFixture(t)
		booking := f.reserve(t, 1, f.clk.Now().Add(30*time.Minute))

		f.clk.Advance(10 * time.Minute)
		if err := f.sweep.ReleaseExpiredReservations(ctx); err != nil {
			t.Fatalf("sweep: %v", err)
		}

		got, _ := f.store.GetBookingByID(ctx, booking.ID)
		if got.Status != db.BookingConfirmed {
			t.Errorf("booking status = %q, want %q", got.Status, db.BookingConfirmed)
		}
	})

	t.Run("booking cancelled before the sweep keeps its cancellation", func(t *testing.T) {
		f := newSweepFixture(t)
		booking := f.reserve(t, 1, f.clk.Now().Add(10*time.Minute))

		if _, err := f.bookings.UpdateBooking(ctx, driver, booking.ID, entities.UpdateBookingRequest{Action: "cancel"}); err != nil {
			t.Fatalf("cancel: %v", err)
		}

		f.clk.Advance(11 * time.Minute)
		if err := f.sweep.ReleaseExpiredReservations(ctx); err != nil {
			t.Fatalf("sweep: %v", err)
		}

		got, _ := f.store.GetBookingByID(ctx, booking.ID)
		if got.Status != db.BookingCancelled {
			t.Errorf("booking status = %q, want %q", got.Status, db.BookingCancelled)
		}
	})

	t.Run("slot moved by another path is left alone", func(t *testing.T) {
		f := newSweepFixture(t)
		booking := f.reserve(t, 1, f.clk.Now().Add(10*time.Minute))

		// The slot leaves reserved through some other path while the
		// booking row still reads confirmed.
		if _, err := f.store.Transition(ctx, 1, db.SlotReserved, db.SlotMaintenance, nil, nil); err != nil {
			t.Fatalf("transition: %v", err)
		}

		f.clk.Advance(11 * time.Minute)
		if err := f.sweep.ReleaseExpiredReservations(ctx); err != nil {
			t.Fatalf("sweep: %v", err)
		}

		got, _ := f.store.GetBookingByID(ctx, booking.ID)
		if got.Status != db.BookingExpired {
			t.Errorf("booking status = %q, want %q", got.Status, db.BookingExpired)
		}
		slot, _ := f.store.GetByID(ctx, 1)
		if slot.Status != db.SlotMaintenance {
			t.Errorf("slot status = %q, want %q", slot.Status, db.SlotMaintenance)
		}
	})
}

func TestSendExpiryReminders(t *testing.T) {
	ctx := context.Background()

	countReminders := func(f *sweepFixture) int {
		notifs, _ := f.store.ListNotificationsByUser(ctx, driver.UserID, false)
		n := 0
		for _, notif := range notifs {
			if notif.Type == db.NotificationReservationExpiring {
				n++
			}
		}
		return n
	}

	t.Run("warns when the deadline is close", func(t *testing.T) {
		f := newSweepFixture(t)
		f.reserve(t, 1, f.clk.Now().Add(10*time.Minute))

		userSub := f.bus.Subscribe(events.UserTopic(driver.UserID))
		if err := f.sweep.SendExpiryReminders(ctx); err != nil {
			t.Fatalf("sweep: %v", err)
		}

		if got := countReminders(f); got != 1 {
			t.Errorf("%d reminders, want 1", got)
		}
		select {
		case ev := <-userSub.C:
			if ev.Type != entities.EventNotification {
				t.Errorf("event = %q, want %q", ev.Type, entities.EventNotification)
			}
		default:
			t.Error("no notification event published")
		}
	})

	t.Run("deadline outside the window stays quiet", func(t *testing.T) {
		f := newSweepFixture(t)
		f.reserve(t, 1, f.clk.Now().Add(20*time.Minute))

		if err := f.sweep.SendExpiryReminders(ctx); err != nil {
			t.Fatalf("sweep: %v", err)
		}
		if got := countReminders(f); got != 0 {
			t.Errorf("%d reminders, want 0", got)
		}
	})

	t.Run("a recent reminder suppresses a duplicate", func(t *testing.T) {
		f := newSweepFixture(t)
		f.reserve(t, 1, f.clk.Now().Add(12*time.Minute))

		if err := f.sweep.SendExpiryReminders(ctx); err != nil {
			t.Fatalf("first sweep: %v", err)
		}
		f.clk.Advance(3 * time.Minute)
		if err := f.sweep.SendExpiryReminders(ctx); err != nil {
			t.Fatalf("second sweep: %v", err)
		}
		if got := countReminders(f); got != 1 {
			t.Errorf("%d reminders after two close sweeps, want 1", got)
		}
	})
}
