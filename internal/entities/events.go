package entities

import "time"

// Event types delivered over lot- and user-scoped subscriptions. Delivery is
// at-most-once best-effort; reconnecting clients re-fetch current state over
// the HTTP read path before resuming.
const (
	EventSlotUpdated    = "slot-updated"
	EventLotStatus      = "parking-lot-status"
	EventBookingUpdated = "booking-updated"
	EventNotification   = "notification"
)

type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type SlotUpdatePayload struct {
	SlotID         int       `json:"slot_id"`
	LotID          int       `json:"lot_id"`
	Status         string    `json:"status"`
	AvailableSlots int       `json:"available_slots"`
	OccupiedSlots  int       `json:"occupied_slots"`
	Timestamp      time.Time `json:"timestamp"`
}

type LotStatusPayload struct {
	LotID          int `json:"lot_id"`
	TotalSlots     int `json:"total_slots"`
	AvailableSlots int `json:"available_slots"`
	OccupiedSlots  int `json:"occupied_slots"`
	ReservedSlots  int `json:"reserved_slots"`
	InMaintenance  int `json:"in_maintenance"`
}

type BookingUpdatePayload struct {
	BookingID int    `json:"booking_id"`
	LotID     int    `json:"lot_id"`
	SlotID    int    `json:"slot_id"`
	Status    string `json:"status"`
}

type NotificationPayload struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}
