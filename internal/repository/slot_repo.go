package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkhub/internal/db"
)

type PgSlotRepository struct {
	DB *sql.DB
}

func NewPgSlotRepository(database *sql.DB) *PgSlotRepository {
	return &PgSlotRepository{DB: database}
}

const slotColumns = `id, lot_id, slot_number, slot_type, status, current_booking_id, reserved_until, last_updated, created_at`

func scanSlot(row interface{ Scan(...any) error }) (*db.Slot, error) {
	var s db.Slot
	var bookingID sql.NullInt64
	var reservedUntil sql.NullTime
	err := row.Scan(
		&s.ID, &s.LotID, &s.SlotNumber, &s.Type, &s.Status,
		&bookingID, &reservedUntil, &s.LastUpdated, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if bookingID.Valid {
		id := int(bookingID.Int64)
		s.CurrentBookingID = &id
	}
	if reservedUntil.Valid {
		t := reservedUntil.Time.UTC()
		s.ReservedUntil = &t
	}
	s.LastUpdated = s.LastUpdated.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	return &s, nil
}

func (r *PgSlotRepository) GetByID(ctx context.Context, id int) (*db.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`
	slot, err := scanSlot(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("SlotRepository.GetByID: %w", err)
	}
	return slot, nil
}

func (r *PgSlotRepository) ListByLot(ctx context.Context, lotID int, filter SlotFilter) ([]db.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM slots WHERE lot_id = $1`
	args := []any{lotID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND slot_type = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY slot_number"

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("SlotRepository.ListByLot: %w", err)
	}
	defer rows.Close()

	var slots []db.Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("SlotRepository.ListByLot (scanning row): %w", err)
		}
		slots = append(slots, *slot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("SlotRepository.ListByLot (rows error): %w", err)
	}
	return slots, nil
}

// Transition applies the single conditional UPDATE that guards every slot
// mutation. When the row is not in the expected prior status the statement
// touches zero rows and a follow-up existence probe splits ErrConflict from
// ErrNotFound.
func (r *PgSlotRepository) Transition(ctx context.Context, id int, from, to db.SlotStatus, bookingID *int, reservedUntil *time.Time) (*db.Slot, error) {
	query := `UPDATE slots
	           SET status = $1, current_booking_id = $2, reserved_until = $3, last_updated = NOW()
	           WHERE id = $4 AND status = $5
	           RETURNING ` + slotColumns

	var ref sql.NullInt64
	if bookingID != nil {
		ref = sql.NullInt64{Int64: int64(*bookingID), Valid: true}
	}
	var until sql.NullTime
	if reservedUntil != nil {
		until = sql.NullTime{Time: *reservedUntil, Valid: true}
	}

	slot, err := scanSlot(r.DB.QueryRowContext(ctx, query, to, ref, until, id, from))
	if err == nil {
		return slot, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("SlotRepository.Transition: %w", err)
	}

	var exists bool
	if probeErr := r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM slots WHERE id = $1)`, id).Scan(&exists); probeErr != nil {
		return nil, fmt.Errorf("SlotRepository.Transition (existence probe): %w", probeErr)
	}
	if !exists {
		return nil, ErrNotFound
	}
	return nil, ErrConflict
}

func (r *PgSlotRepository) CountByLot(ctx context.Context, lotID int) (LotCounts, error) {
	query := `SELECT status, COUNT(*) FROM slots WHERE lot_id = $1 GROUP BY status`
	rows, err := r.DB.QueryContext(ctx, query, lotID)
	if err != nil {
		return LotCounts{}, fmt.Errorf("SlotRepository.CountByLot: %w", err)
	}
	defer rows.Close()

	var counts LotCounts
	for rows.Next() {
		var status db.SlotStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return LotCounts{}, fmt.Errorf("SlotRepository.CountByLot (scanning row): %w", err)
		}
		switch status {
		case db.SlotAvailable:
			counts.Available = n
		case db.SlotOccupied:
			counts.Occupied = n
		case db.SlotReserved:
			counts.Reserved = n
		case db.SlotMaintenance:
			counts.Maintenance = n
		}
	}
	if err = rows.Err(); err != nil {
		return LotCounts{}, fmt.Errorf("SlotRepository.CountByLot (rows error): %w", err)
	}
	return counts, nil
}
