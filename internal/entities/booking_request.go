package entities

import "time"

type CreateBookingRequest struct {
	LotID         int        `json:"lot_id"`
	SlotID        int        `json:"slot_id"`
	VehicleNumber string     `json:"vehicle_number"`
	Kind          string     `json:"kind"` // instant | reservation
	StartTime     *time.Time `json:"start_time,omitempty"`
	ReservedUntil *time.Time `json:"reserved_until,omitempty"`
}

type UpdateBookingRequest struct {
	Action  string     `json:"action"` // start | end | cancel
	EndTime *time.Time `json:"end_time,omitempty"`
	Reason  string     `json:"reason,omitempty"`
}

type OverrideSlotRequest struct {
	Status string `json:"status"` // available | maintenance
}
