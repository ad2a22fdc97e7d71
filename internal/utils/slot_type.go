package utils

import (
	"strings"

	"parkhub/internal/db"
)

// ParseSlotType normalizes a client-supplied capability type. An empty input
// defaults to regular.
func ParseSlotType(s string) (db.SlotType, bool) {
	switch strings.TrimSpace(s) {
	case "", "regular":
		return db.SlotTypeRegular, true
	case "covered":
		return db.SlotTypeCovered, true
	case "evCharging", "ev_charging", "ev":
		return db.SlotTypeEVCharging, true
	case "handicap":
		return db.SlotTypeHandicap, true
	}
	return "", false
}

// ParseSlotStatus validates a client-supplied slot status filter.
func ParseSlotStatus(s string) (db.SlotStatus, bool) {
	switch strings.TrimSpace(s) {
	case "available":
		return db.SlotAvailable, true
	case "occupied":
		return db.SlotOccupied, true
	case "reserved":
		return db.SlotReserved, true
	case "maintenance":
		return db.SlotMaintenance, true
	}
	return "", false
}
