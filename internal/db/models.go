package db

import (
	"math"
	"time"
)

type SlotStatus string

const (
	SlotAvailable   SlotStatus = "available"
	SlotOccupied    SlotStatus = "occupied"
	SlotReserved    SlotStatus = "reserved"
	SlotMaintenance SlotStatus = "maintenance"
)

type SlotType string

const (
	SlotTypeRegular    SlotType = "regular"
	SlotTypeCovered    SlotType = "covered"
	SlotTypeEVCharging SlotType = "evCharging"
	SlotTypeHandicap   SlotType = "handicap"
)

// Slot is a single physical parking space. Its status, booking reference and
// reservation expiry are the only fields that mutate after provisioning.
type Slot struct {
	ID               int        `json:"id"`
	LotID            int        `json:"lot_id"`
	SlotNumber       string     `json:"slot_number"`
	Type             SlotType   `json:"type"`
	Status           SlotStatus `json:"status"`
	CurrentBookingID *int       `json:"current_booking_id,omitempty"`
	ReservedUntil    *time.Time `json:"reserved_until,omitempty"`
	LastUpdated      time.Time  `json:"last_updated"`
	CreatedAt        time.Time  `json:"created_at"`
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingActive    BookingStatus = "active"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingExpired   BookingStatus = "expired"
)

type BookingKind string

const (
	BookingInstant     BookingKind = "instant"
	BookingReservation BookingKind = "reservation"
)

type Booking struct {
	ID                 int           `json:"id"`
	UserID             int           `json:"user_id"`
	LotID              int           `json:"lot_id"`
	SlotID             int           `json:"slot_id"`
	VehicleNumber      string        `json:"vehicle_number"`
	Kind               BookingKind   `json:"kind"`
	Status             BookingStatus `json:"status"`
	StartTime          time.Time     `json:"start_time"`
	EndTime            *time.Time    `json:"end_time,omitempty"`
	ReservedUntil      *time.Time    `json:"reserved_until,omitempty"`
	ActualStartTime    *time.Time    `json:"actual_start_time,omitempty"`
	ActualEndTime      *time.Time    `json:"actual_end_time,omitempty"`
	DurationMinutes    int           `json:"duration_minutes"`
	BaseRate           int           `json:"base_rate"`
	HourlyRate         int           `json:"hourly_rate"`
	TotalAmount        int           `json:"total_amount"`
	Currency           string        `json:"currency"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// IsTerminal reports whether the booking reached a final status. Terminal
// bookings are immutable.
func (b *Booking) IsTerminal() bool {
	switch b.Status {
	case BookingCompleted, BookingCancelled, BookingExpired:
		return true
	}
	return false
}

// FinalAmount is the amount owed for a stay: the base rate plus the hourly
// rate for every started hour.
func FinalAmount(baseRate, hourlyRate, durationMinutes int) int {
	if durationMinutes <= 0 {
		return baseRate
	}
	hours := int(math.Ceil(float64(durationMinutes) / 60.0))
	return baseRate + hours*hourlyRate
}

// Lot holds the read-only lot configuration plus cached slot counts. The
// counts are derived from the slots table and rewritten by RefreshCounts,
// never mutated directly by callers.
type Lot struct {
	ID             int       `json:"id"`
	Name           string    `json:"name"`
	Address        string    `json:"address"`
	ManagerID      int       `json:"manager_id"`
	TotalSlots     int       `json:"total_slots"`
	AvailableSlots int       `json:"available_slots"`
	OccupiedSlots  int       `json:"occupied_slots"`
	BaseRate       int       `json:"base_rate"`
	HourlyRate     int       `json:"hourly_rate"`
	Currency       string    `json:"currency"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type NotificationType string

const (
	NotificationBookingConfirmed    NotificationType = "booking_confirmed"
	NotificationBookingStarted      NotificationType = "booking_started"
	NotificationBookingCompleted    NotificationType = "booking_completed"
	NotificationBookingCancelled    NotificationType = "booking_cancelled"
	NotificationReservationExpiring NotificationType = "reservation_expiring"
	NotificationReservationExpired  NotificationType = "reservation_expired"
)

type Notification struct {
	ID        int              `json:"id"`
	UserID    int              `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	BookingID *int             `json:"booking_id,omitempty"`
	LotID     *int             `json:"lot_id,omitempty"`
	IsRead    bool             `json:"is_read"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// UserContact is the read-only slice of the identity layer's user record that
// the outbound notifier needs.
type UserContact struct {
	ID    int
	Name  string
	Email string
	Phone string
}
