package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"parkhub/internal/clock"
	"parkhub/internal/db"
	"parkhub/internal/entities"
	"parkhub/internal/events"
	"parkhub/internal/repository/memory"
	"parkhub/internal/service"
)

func TestLotStream(t *testing.T) {
	store := memory.NewStore()
	store.AddLot(db.Lot{ID: 1, Name: "Central Garage", TotalSlots: 2, IsActive: true})
	store.AddSlot(db.Slot{ID: 1, LotID: 1, SlotNumber: "A-01"})
	store.AddSlot(db.Slot{ID: 2, LotID: 1, SlotNumber: "A-02", Status: db.SlotOccupied})

	bus := events.NewBroadcaster()
	slotSvc := service.NewSlotService(store.Slots(), store.Lots(), bus, clock.NewFixed(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)))
	wsHandler := NewWSHandler(bus, slotSvc)

	r := mux.NewRouter()
	r.HandleFunc("/api/ws/lots/{id}", wsHandler.LotStream).Methods("GET")
	server := httptest.NewServer(r)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws/lots/1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	// The join handshake is a status snapshot.
	var first entities.Event
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("reading snapshot: %v", err)
	}
	if first.Type != entities.EventLotStatus {
		t.Fatalf("first frame = %q, want %q", first.Type, entities.EventLotStatus)
	}

	bus.Publish(events.LotTopic(1), entities.Event{
		Type: entities.EventSlotUpdated,
		Data: entities.SlotUpdatePayload{SlotID: 1, LotID: 1, Status: "occupied"},
	})

	var second entities.Event
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if second.Type != entities.EventSlotUpdated {
		t.Errorf("second frame = %q, want %q", second.Type, entities.EventSlotUpdated)
	}

	t.Run("unknown lot refuses the upgrade", func(t *testing.T) {
		badURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws/lots/9"
		if _, resp, err := websocket.DefaultDialer.Dial(badURL, nil); err == nil {
			t.Error("dial to unknown lot should fail")
		} else if resp != nil && resp.StatusCode != 404 {
			t.Errorf("status %d, want 404", resp.StatusCode)
		}
	})
}
