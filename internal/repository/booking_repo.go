package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkhub/internal/db"
)

type PgBookingRepository struct {
	DB *sql.DB
}

func NewPgBookingRepository(database *sql.DB) *PgBookingRepository {
	return &PgBookingRepository{DB: database}
}

const bookingColumns = `id, user_id, lot_id, slot_id, vehicle_number, kind, status,
	start_time, end_time, reserved_until, actual_start_time, actual_end_time,
	duration_minutes, base_rate, hourly_rate, total_amount, currency,
	cancellation_reason, cancelled_at, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*db.Booking, error) {
	var b db.Booking
	var endTime, reservedUntil, actualStart, actualEnd, cancelledAt sql.NullTime
	var reason sql.NullString
	err := row.Scan(
		&b.ID, &b.UserID, &b.LotID, &b.SlotID, &b.VehicleNumber, &b.Kind, &b.Status,
		&b.StartTime, &endTime, &reservedUntil, &actualStart, &actualEnd,
		&b.DurationMinutes, &b.BaseRate, &b.HourlyRate, &b.TotalAmount, &b.Currency,
		&reason, &cancelledAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	assign := func(dst **time.Time, src sql.NullTime) {
		if src.Valid {
			t := src.Time.UTC()
			*dst = &t
		}
	}
	assign(&b.EndTime, endTime)
	assign(&b.ReservedUntil, reservedUntil)
	assign(&b.ActualStartTime, actualStart)
	assign(&b.ActualEndTime, actualEnd)
	assign(&b.CancelledAt, cancelledAt)
	if reason.Valid {
		b.CancellationReason = reason.String
	}
	b.StartTime = b.StartTime.UTC()
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return &b, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (r *PgBookingRepository) Create(ctx context.Context, b *db.Booking) error {
	query := `INSERT INTO bookings
		(user_id, lot_id, slot_id, vehicle_number, kind, status, start_time, end_time,
		 reserved_until, base_rate, hourly_rate, total_amount, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := r.DB.QueryRowContext(ctx, query,
		b.UserID, b.LotID, b.SlotID, b.VehicleNumber, b.Kind, b.Status,
		b.StartTime, nullTime(b.EndTime), nullTime(b.ReservedUntil),
		b.BaseRate, b.HourlyRate, b.TotalAmount, b.Currency,
	).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("BookingRepository.Create: %w", err)
	}
	return nil
}

func (r *PgBookingRepository) GetByID(ctx context.Context, id int) (*db.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("BookingRepository.GetByID: %w", err)
	}
	return b, nil
}

func (r *PgBookingRepository) list(ctx context.Context, query string, args ...any) ([]db.Booking, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []db.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *PgBookingRepository) ListByUser(ctx context.Context, userID int, status db.BookingStatus) ([]db.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		args = append(args, status)
		query += " AND status = $2"
	}
	query += " ORDER BY created_at DESC"
	bookings, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("BookingRepository.ListByUser: %w", err)
	}
	return bookings, nil
}

func (r *PgBookingRepository) ListByLot(ctx context.Context, lotID int, status db.BookingStatus) ([]db.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE lot_id = $1`
	args := []any{lotID}
	if status != "" {
		args = append(args, status)
		query += " AND status = $2"
	}
	query += " ORDER BY created_at DESC"
	bookings, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("BookingRepository.ListByLot: %w", err)
	}
	return bookings, nil
}

// UpdateStatus rewrites the booking's mutable fields, gated on the row still
// holding the expected status. The condition is what lets a request-path
// cancel and a sweep-path expiry race safely: the second writer touches zero
// rows and observes ErrConflict.
func (r *PgBookingRepository) UpdateStatus(ctx context.Context, b *db.Booking, expected db.BookingStatus) error {
	query := `UPDATE bookings
		SET status = $1, end_time = $2, actual_start_time = $3, actual_end_time = $4,
		    duration_minutes = $5, total_amount = $6, cancellation_reason = $7,
		    cancelled_at = $8, updated_at = NOW()
		WHERE id = $9 AND status = $10
		RETURNING updated_at`
	var reason sql.NullString
	if b.CancellationReason != "" {
		reason = sql.NullString{String: b.CancellationReason, Valid: true}
	}
	err := r.DB.QueryRowContext(ctx, query,
		b.Status, nullTime(b.EndTime), nullTime(b.ActualStartTime), nullTime(b.ActualEndTime),
		b.DurationMinutes, b.TotalAmount, reason, nullTime(b.CancelledAt),
		b.ID, expected,
	).Scan(&b.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrConflict
		}
		return fmt.Errorf("BookingRepository.UpdateStatus: %w", err)
	}
	return nil
}

func (r *PgBookingRepository) Delete(ctx context.Context, id int) error {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("BookingRepository.Delete: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("BookingRepository.Delete (checking rows affected): %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgBookingRepository) FindExpiredReservations(ctx context.Context, now time.Time) ([]db.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE status = $1 AND kind = $2 AND reserved_until < $3
		ORDER BY reserved_until`
	bookings, err := r.list(ctx, query, db.BookingConfirmed, db.BookingReservation, now)
	if err != nil {
		return nil, fmt.Errorf("BookingRepository.FindExpiredReservations: %w", err)
	}
	return bookings, nil
}

func (r *PgBookingRepository) FindReservationsExpiringBetween(ctx context.Context, from, to time.Time) ([]db.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE status = $1 AND kind = $2 AND reserved_until >= $3 AND reserved_until <= $4
		ORDER BY reserved_until`
	bookings, err := r.list(ctx, query, db.BookingConfirmed, db.BookingReservation, from, to)
	if err != nil {
		return nil, fmt.Errorf("BookingRepository.FindReservationsExpiringBetween: %w", err)
	}
	return bookings, nil
}
