package memory

import (
	"context"
	"time"

	"parkhub/internal/db"
	"parkhub/internal/repository"
)

// The Store itself satisfies SlotRepository and UserContactRepository; the
// remaining contracts share method names, so they are exposed as views.

func (s *Store) Slots() repository.SlotRepository { return s }

func (s *Store) Contacts() repository.UserContactRepository { return s }

func (s *Store) Bookings() repository.BookingRepository { return bookingView{s} }

func (s *Store) Lots() repository.LotRepository { return lotView{s} }

func (s *Store) Notifications() repository.NotificationRepository { return notificationView{s} }

type bookingView struct{ st *Store }

func (v bookingView) Create(ctx context.Context, b *db.Booking) error {
	return v.st.Create(ctx, b)
}

func (v bookingView) GetByID(ctx context.Context, id int) (*db.Booking, error) {
	return v.st.GetBookingByID(ctx, id)
}

func (v bookingView) ListByUser(ctx context.Context, userID int, status db.BookingStatus) ([]db.Booking, error) {
	return v.st.ListByUser(ctx, userID, status)
}

func (v bookingView) ListByLot(ctx context.Context, lotID int, status db.BookingStatus) ([]db.Booking, error) {
	return v.st.ListBookingsByLot(ctx, lotID, status)
}

func (v bookingView) UpdateStatus(ctx context.Context, b *db.Booking, expected db.BookingStatus) error {
	return v.st.UpdateStatus(ctx, b, expected)
}

func (v bookingView) Delete(ctx context.Context, id int) error {
	return v.st.Delete(ctx, id)
}

func (v bookingView) FindExpiredReservations(ctx context.Context, now time.Time) ([]db.Booking, error) {
	return v.st.FindExpiredReservations(ctx, now)
}

func (v bookingView) FindReservationsExpiringBetween(ctx context.Context, from, to time.Time) ([]db.Booking, error) {
	return v.st.FindReservationsExpiringBetween(ctx, from, to)
}

type lotView struct{ st *Store }

func (v lotView) GetByID(ctx context.Context, id int) (*db.Lot, error) {
	return v.st.GetLotByID(ctx, id)
}

func (v lotView) List(ctx context.Context) ([]db.Lot, error) {
	return v.st.List(ctx)
}

func (v lotView) RefreshCounts(ctx context.Context, lotID int) error {
	return v.st.RefreshCounts(ctx, lotID)
}

type notificationView struct{ st *Store }

func (v notificationView) Create(ctx context.Context, n *db.Notification) error {
	return v.st.CreateNotification(ctx, n)
}

func (v notificationView) ListByUser(ctx context.Context, userID int, unreadOnly bool) ([]db.Notification, error) {
	return v.st.ListNotificationsByUser(ctx, userID, unreadOnly)
}

func (v notificationView) MarkRead(ctx context.Context, id, userID int, at time.Time) error {
	return v.st.MarkRead(ctx, id, userID, at)
}

func (v notificationView) Delete(ctx context.Context, id, userID int) error {
	return v.st.DeleteNotification(ctx, id, userID)
}

func (v notificationView) HasRecentOfType(ctx context.Context, userID, bookingID int, typ db.NotificationType, since time.Time) (bool, error) {
	return v.st.HasRecentOfType(ctx, userID, bookingID, typ, since)
}
