package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkhub/internal/db"
)

type PgNotificationRepository struct {
	DB *sql.DB
}

func NewPgNotificationRepository(database *sql.DB) *PgNotificationRepository {
	return &PgNotificationRepository{DB: database}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func (r *PgNotificationRepository) Create(ctx context.Context, n *db.Notification) error {
	query := `INSERT INTO notifications (user_id, type, title, message, booking_id, lot_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		RETURNING id`
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	err := r.DB.QueryRowContext(ctx, query,
		n.UserID, n.Type, n.Title, n.Message, nullInt(n.BookingID), nullInt(n.LotID), n.CreatedAt,
	).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("NotificationRepository.Create: %w", err)
	}
	return nil
}

func (r *PgNotificationRepository) ListByUser(ctx context.Context, userID int, unreadOnly bool) ([]db.Notification, error) {
	query := `SELECT id, user_id, type, title, message, booking_id, lot_id, is_read, read_at, created_at
		FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += " AND NOT is_read"
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("NotificationRepository.ListByUser: %w", err)
	}
	defer rows.Close()

	var notifications []db.Notification
	for rows.Next() {
		var n db.Notification
		var bookingID, lotID sql.NullInt64
		var readAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &bookingID, &lotID, &n.IsRead, &readAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("NotificationRepository.ListByUser (scanning row): %w", err)
		}
		if bookingID.Valid {
			id := int(bookingID.Int64)
			n.BookingID = &id
		}
		if lotID.Valid {
			id := int(lotID.Int64)
			n.LotID = &id
		}
		if readAt.Valid {
			t := readAt.Time.UTC()
			n.ReadAt = &t
		}
		n.CreatedAt = n.CreatedAt.UTC()
		notifications = append(notifications, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("NotificationRepository.ListByUser (rows error): %w", err)
	}
	return notifications, nil
}

func (r *PgNotificationRepository) MarkRead(ctx context.Context, id, userID int, at time.Time) error {
	query := `UPDATE notifications SET is_read = TRUE, read_at = $1 WHERE id = $2 AND user_id = $3`
	result, err := r.DB.ExecContext(ctx, query, at, id, userID)
	if err != nil {
		return fmt.Errorf("NotificationRepository.MarkRead: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("NotificationRepository.MarkRead (checking rows affected): %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgNotificationRepository) Delete(ctx context.Context, id, userID int) error {
	result, err := r.DB.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("NotificationRepository.Delete: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("NotificationRepository.Delete (checking rows affected): %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgNotificationRepository) HasRecentOfType(ctx context.Context, userID, bookingID int, typ db.NotificationType, since time.Time) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM notifications
		WHERE user_id = $1 AND booking_id = $2 AND type = $3 AND created_at >= $4)`
	var exists bool
	if err := r.DB.QueryRowContext(ctx, query, userID, bookingID, typ, since).Scan(&exists); err != nil {
		return false, fmt.Errorf("NotificationRepository.HasRecentOfType: %w", err)
	}
	return exists, nil
}

type PgUserContactRepository struct {
	DB *sql.DB
}

func NewPgUserContactRepository(database *sql.DB) *PgUserContactRepository {
	return &PgUserContactRepository{DB: database}
}

func (r *PgUserContactRepository) GetContact(ctx context.Context, userID int) (*db.UserContact, error) {
	var c db.UserContact
	var email, phone sql.NullString
	query := `SELECT id, name, email, phone FROM users WHERE id = $1`
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(&c.ID, &c.Name, &email, &phone)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("UserContactRepository.GetContact: %w", err)
	}
	c.Email = email.String
	c.Phone = phone.String
	return &c, nil
}
