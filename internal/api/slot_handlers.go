package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"parkhub/internal/auth"
	"parkhub/internal/db"
	"parkhub/internal/entities"
	"parkhub/internal/repository"
	"parkhub/internal/service"
	"parkhub/internal/utils"
)

type SlotHandler struct {
	Service *service.SlotService
}

func NewSlotHandler(svc *service.SlotService) *SlotHandler {
	return &SlotHandler{Service: svc}
}

func (h *SlotHandler) ListLots(w http.ResponseWriter, r *http.Request) {
	lots, err := h.Service.ListLots(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if lots == nil {
		lots = []db.Lot{}
	}
	writeJSON(w, http.StatusOK, lots)
}

func (h *SlotHandler) GetLot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	lot, err := h.Service.GetLot(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lot)
}

func (h *SlotHandler) GetLotStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	status, err := h.Service.LotStatus(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *SlotHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	lotID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	var filter repository.SlotFilter
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, ok := utils.ParseSlotType(raw)
		if !ok {
			http.Error(w, "Invalid slot type", http.StatusBadRequest)
			return
		}
		filter.Type = t
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		s, ok := utils.ParseSlotStatus(raw)
		if !ok {
			http.Error(w, "Invalid slot status", http.StatusBadRequest)
			return
		}
		filter.Status = s
	}

	slots, err := h.Service.ListSlots(r.Context(), lotID, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if slots == nil {
		slots = []db.Slot{}
	}
	writeJSON(w, http.StatusOK, slots)
}

// OverrideSlot is the manager tooling endpoint, e.g. forcing a slot into
// maintenance.
func (h *SlotHandler) OverrideSlot(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	var req entities.OverrideSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	target, ok := utils.ParseSlotStatus(req.Status)
	if !ok {
		http.Error(w, "Invalid slot status", http.StatusBadRequest)
		return
	}
	slot, err := h.Service.OverrideStatus(r.Context(), actor, id, target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, slot)
}
