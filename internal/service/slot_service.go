package service

import (
	"context"
	"fmt"
	"log"

	"parkhub/internal/auth"
	"parkhub/internal/clock"
	"parkhub/internal/db"
	"parkhub/internal/entities"
	"parkhub/internal/events"
	"parkhub/internal/repository"
)

// SlotService covers the read path over slots and lots plus the manager-only
// status override. Lots themselves are provisioned elsewhere; this service
// never creates or deletes them.
type SlotService struct {
	slots       repository.SlotRepository
	lots        repository.LotRepository
	broadcaster *events.Broadcaster
	clock       clock.Clock
}

func NewSlotService(slots repository.SlotRepository, lots repository.LotRepository, broadcaster *events.Broadcaster, clk clock.Clock) *SlotService {
	return &SlotService{slots: slots, lots: lots, broadcaster: broadcaster, clock: clk}
}

func (s *SlotService) ListLots(ctx context.Context) ([]db.Lot, error) {
	return s.lots.List(ctx)
}

func (s *SlotService) GetLot(ctx context.Context, lotID int) (*db.Lot, error) {
	return s.lots.GetByID(ctx, lotID)
}

func (s *SlotService) ListSlots(ctx context.Context, lotID int, filter repository.SlotFilter) ([]db.Slot, error) {
	if _, err := s.lots.GetByID(ctx, lotID); err != nil {
		return nil, err
	}
	return s.slots.ListByLot(ctx, lotID, filter)
}

// LotStatus is the live tally used by dashboards and the websocket join
// handshake. Unlike the lot row's cached counts it is always computed from
// the slot store.
func (s *SlotService) LotStatus(ctx context.Context, lotID int) (*entities.LotStatusPayload, error) {
	lot, err := s.lots.GetByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	counts, err := s.slots.CountByLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	return &entities.LotStatusPayload{
		LotID:          lot.ID,
		TotalSlots:     lot.TotalSlots,
		AvailableSlots: counts.Available,
		OccupiedSlots:  counts.Occupied + counts.Reserved,
		ReservedSlots:  counts.Reserved,
		InMaintenance:  counts.Maintenance,
	}, nil
}

// OverrideStatus lets a manager force a slot to available or maintenance. A
// slot holding an active booking is refused; the booking has to be cancelled
// or ended first so no booking reference is ever orphaned.
func (s *SlotService) OverrideStatus(ctx context.Context, actor auth.Actor, slotID int, target db.SlotStatus) (*db.Slot, error) {
	if !actor.CanManage() {
		return nil, ErrUnauthorized
	}
	if target != db.SlotAvailable && target != db.SlotMaintenance {
		return nil, fmt.Errorf("slot status can only be overridden to available or maintenance, not %q: %w", target, ErrInvalidAction)
	}

	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.Status == target {
		return slot, nil
	}
	if slot.CurrentBookingID != nil {
		return nil, fmt.Errorf("slot %d has an active booking, cancel it first: %w", slotID, ErrInvalidAction)
	}

	updated, err := s.slots.Transition(ctx, slotID, slot.Status, target, nil, nil)
	if err != nil {
		return nil, err
	}

	if err := s.lots.RefreshCounts(ctx, slot.LotID); err != nil {
		log.Printf("lot %d: refreshing counts after override: %v", slot.LotID, err)
	}
	counts, err := s.slots.CountByLot(ctx, slot.LotID)
	if err != nil {
		log.Printf("lot %d: counting slots for broadcast: %v", slot.LotID, err)
	}
	s.broadcaster.Publish(events.LotTopic(slot.LotID), entities.Event{
		Type: entities.EventSlotUpdated,
		Data: entities.SlotUpdatePayload{
			SlotID:         updated.ID,
			LotID:          slot.LotID,
			Status:         string(updated.Status),
			AvailableSlots: counts.Available,
			OccupiedSlots:  counts.Occupied + counts.Reserved,
			Timestamp:      s.clock.Now(),
		},
	})

	return updated, nil
}
