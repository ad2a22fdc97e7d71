package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"parkhub/internal/db"
)

type PgLotRepository struct {
	DB *sql.DB
}

func NewPgLotRepository(database *sql.DB) *PgLotRepository {
	return &PgLotRepository{DB: database}
}

const lotColumns = `id, name, address, manager_id, total_slots, available_slots,
	occupied_slots, base_rate, hourly_rate, currency, is_active, created_at, updated_at`

func scanLot(row interface{ Scan(...any) error }) (*db.Lot, error) {
	var l db.Lot
	err := row.Scan(
		&l.ID, &l.Name, &l.Address, &l.ManagerID, &l.TotalSlots, &l.AvailableSlots,
		&l.OccupiedSlots, &l.BaseRate, &l.HourlyRate, &l.Currency, &l.IsActive,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return &l, nil
}

func (r *PgLotRepository) GetByID(ctx context.Context, id int) (*db.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots WHERE id = $1`
	lot, err := scanLot(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("LotRepository.GetByID: %w", err)
	}
	return lot, nil
}

func (r *PgLotRepository) List(ctx context.Context) ([]db.Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM lots WHERE is_active ORDER BY name`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("LotRepository.List: %w", err)
	}
	defer rows.Close()

	var lots []db.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("LotRepository.List (scanning row): %w", err)
		}
		lots = append(lots, *lot)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("LotRepository.List (rows error): %w", err)
	}
	return lots, nil
}

// RefreshCounts rewrites the lot's cached totals from the live slot tally.
// Reserved slots count as occupied for the public availability number, the
// same way the dashboard presents them.
func (r *PgLotRepository) RefreshCounts(ctx context.Context, lotID int) error {
	query := `UPDATE lots SET
		available_slots = (SELECT COUNT(*) FROM slots WHERE lot_id = $1 AND status = 'available'),
		occupied_slots  = (SELECT COUNT(*) FROM slots WHERE lot_id = $1 AND status IN ('occupied', 'reserved')),
		updated_at = NOW()
		WHERE id = $1`
	result, err := r.DB.ExecContext(ctx, query, lotID)
	if err != nil {
		return fmt.Errorf("LotRepository.RefreshCounts: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("LotRepository.RefreshCounts (checking rows affected): %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
