package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"parkhub/internal/auth"
	"parkhub/internal/clock"
	"parkhub/internal/db"
	"parkhub/internal/events"
	"parkhub/internal/repository/memory"
	"parkhub/internal/service"
)

const testSecret = "test-secret"

func token(t *testing.T, userID int, role string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  float64(userID),
		"role": role,
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return raw
}

// newTestRouter wires the full route table over the in-memory store, the way
// the server binary does over postgres.
func newTestRouter(t *testing.T) (*mux.Router, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	store.AddLot(db.Lot{
		ID: 1, Name: "Central Garage", ManagerID: 2, TotalSlots: 2,
		BaseRate: 10, HourlyRate: 5, Currency: "USD", IsActive: true,
	})
	store.AddSlot(db.Slot{ID: 1, LotID: 1, SlotNumber: "A-01", Type: db.SlotTypeRegular})
	store.AddSlot(db.Slot{ID: 2, LotID: 1, SlotNumber: "A-02", Type: db.SlotTypeCovered})

	bus := events.NewBroadcaster()
	clk := clock.NewFixed(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	bookingSvc := service.NewBookingService(store.Slots(), store.Bookings(), store.Lots(), store.Notifications(), bus, nil, clk)
	slotSvc := service.NewSlotService(store.Slots(), store.Lots(), bus, clk)

	bookingHandler := NewBookingHandler(bookingSvc)
	slotHandler := NewSlotHandler(slotSvc)
	notificationHandler := NewNotificationHandler(store.Notifications(), clk)

	r := mux.NewRouter()
	r.HandleFunc("/api/lots", slotHandler.ListLots).Methods("GET")
	r.HandleFunc("/api/lots/{id}", slotHandler.GetLot).Methods("GET")
	r.HandleFunc("/api/lots/{id}/status", slotHandler.GetLotStatus).Methods("GET")
	r.HandleFunc("/api/lots/{id}/slots", slotHandler.ListSlots).Methods("GET")

	private := r.PathPrefix("/api").Subrouter()
	private.Use(auth.Middleware(testSecret))
	private.HandleFunc("/bookings", bookingHandler.CreateBooking).Methods("POST")
	private.HandleFunc("/bookings", bookingHandler.ListBookings).Methods("GET")
	private.HandleFunc("/bookings/{id}", bookingHandler.GetBooking).Methods("GET")
	private.HandleFunc("/bookings/{id}", bookingHandler.UpdateBooking).Methods("PUT")
	private.HandleFunc("/lots/{id}/bookings", bookingHandler.ListLotBookings).Methods("GET")
	private.HandleFunc("/slots/{id}", slotHandler.OverrideSlot).Methods("PUT")
	private.HandleFunc("/notifications", notificationHandler.List).Methods("GET")
	private.HandleFunc("/notifications/{id}/read", notificationHandler.MarkRead).Methods("PUT")
	private.HandleFunc("/notifications/{id}", notificationHandler.Delete).Methods("DELETE")

	return r, store
}

func doJSON(t *testing.T, router *mux.Router, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestBookingEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	driverToken := token(t, 10, "driver")

	rr := doJSON(t, router, "POST", "/api/bookings", driverToken, map[string]any{
		"lot_id": 1, "slot_id": 1, "vehicle_number": "KA-01-1234", "kind": "instant",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", rr.Code, rr.Body.String())
	}
	var booking db.Booking
	if err := json.Unmarshal(rr.Body.Bytes(), &booking); err != nil {
		t.Fatalf("decoding booking: %v", err)
	}
	if booking.Status != db.BookingPending || booking.UserID != 10 {
		t.Errorf("booking = %+v", booking)
	}

	t.Run("double booking conflicts with the canonical message", func(t *testing.T) {
		rr := doJSON(t, router, "POST", "/api/bookings", token(t, 11, "driver"), map[string]any{
			"lot_id": 1, "slot_id": 1, "vehicle_number": "KA-11-0001",
		})
		if rr.Code != http.StatusConflict {
			t.Fatalf("status %d, body %s", rr.Code, rr.Body.String())
		}
		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp["error"] != "Slot no longer available, please pick another" {
			t.Errorf("error = %q", resp["error"])
		}
	})

	t.Run("list own bookings", func(t *testing.T) {
		rr := doJSON(t, router, "GET", "/api/bookings", driverToken, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status %d", rr.Code)
		}
		var got []db.Booking
		json.Unmarshal(rr.Body.Bytes(), &got)
		if len(got) != 1 {
			t.Errorf("got %d bookings, want 1", len(got))
		}
	})

	t.Run("another driver gets 403 on the booking", func(t *testing.T) {
		rr := doJSON(t, router, "GET", fmt.Sprintf("/api/bookings/%d", booking.ID), token(t, 11, "driver"), nil)
		if rr.Code != http.StatusForbidden {
			t.Errorf("status %d, want 403", rr.Code)
		}
	})

	t.Run("unknown booking is 404", func(t *testing.T) {
		rr := doJSON(t, router, "GET", "/api/bookings/999", driverToken, nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("status %d, want 404", rr.Code)
		}
	})

	t.Run("invalid action is 400 with the reason", func(t *testing.T) {
		rr := doJSON(t, router, "PUT", fmt.Sprintf("/api/bookings/%d", booking.ID), driverToken, map[string]any{"action": "end"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status %d, body %s", rr.Code, rr.Body.String())
		}
	})

	t.Run("cancel succeeds", func(t *testing.T) {
		rr := doJSON(t, router, "PUT", fmt.Sprintf("/api/bookings/%d", booking.ID), driverToken, map[string]any{"action": "cancel"})
		if rr.Code != http.StatusOK {
			t.Fatalf("status %d, body %s", rr.Code, rr.Body.String())
		}
		var got db.Booking
		json.Unmarshal(rr.Body.Bytes(), &got)
		if got.Status != db.BookingCancelled {
			t.Errorf("status = %q, want %q", got.Status, db.BookingCancelled)
		}
	})

	t.Run("no token is 401", func(t *testing.T) {
		rr := doJSON(t, router, "GET", "/api/bookings", "", nil)
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("status %d, want 401", rr.Code)
		}
	})
}

func TestLotEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	t.Run("lots are public", func(t *testing.T) {
		rr := doJSON(t, router, "GET", "/api/lots", "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status %d", rr.Code)
		}
		var lots []db.Lot
		json.Unmarshal(rr.Body.Bytes(), &lots)
		if len(lots) != 1 || lots[0].Name != "Central Garage" {
			t.Errorf("lots = %+v", lots)
		}
	})

	t.Run("slot listing filters by status", func(t *testing.T) {
		rr := doJSON(t, router, "GET", "/api/lots/1/slots?status=available", "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status %d", rr.Code)
		}
		var slots []db.Slot
		json.Unmarshal(rr.Body.Bytes(), &slots)
		if len(slots) != 2 {
			t.Errorf("got %d slots, want 2", len(slots))
		}
	})

	t.Run("bad filter is 400", func(t *testing.T) {
		rr := doJSON(t, router, "GET", "/api/lots/1/slots?status=free", "", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status %d, want 400", rr.Code)
		}
	})

	t.Run("lot status tallies live", func(t *testing.T) {
		rr := doJSON(t, router, "GET", "/api/lots/1/status", "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("status %d", rr.Code)
		}
	})

	t.Run("unknown lot is 404", func(t *testing.T) {
		rr := doJSON(t, router, "GET", "/api/lots/9", "", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("status %d, want 404", rr.Code)
		}
	})
}

func TestSlotOverrideEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	t.Run("driver is forbidden", func(t *testing.T) {
		rr := doJSON(t, router, "PUT", "/api/slots/1", token(t, 10, "driver"), map[string]any{"status": "maintenance"})
		if rr.Code != http.StatusForbidden {
			t.Errorf("status %d, want 403", rr.Code)
		}
	})

	t.Run("manager override succeeds", func(t *testing.T) {
		rr := doJSON(t, router, "PUT", "/api/slots/1", token(t, 2, "manager"), map[string]any{"status": "maintenance"})
		if rr.Code != http.StatusOK {
			t.Fatalf("status %d, body %s", rr.Code, rr.Body.String())
		}
		var slot db.Slot
		json.Unmarshal(rr.Body.Bytes(), &slot)
		if slot.Status != db.SlotMaintenance {
			t.Errorf("status = %q, want %q", slot.Status, db.SlotMaintenance)
		}
	})

	t.Run("invalid target is 400", func(t *testing.T) {
		rr := doJSON(t, router, "PUT", "/api/slots/1", token(t, 2, "manager"), map[string]any{"status": "occupied"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status %d, want 400", rr.Code)
		}
	})
}

func TestNotificationEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	driverToken := token(t, 10, "driver")

	rr := doJSON(t, router, "POST", "/api/bookings", driverToken, map[string]any{
		"lot_id": 1, "slot_id": 1, "vehicle_number": "KA-01-1234",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create booking: status %d", rr.Code)
	}

	rr = doJSON(t, router, "GET", "/api/notifications", driverToken, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: status %d", rr.Code)
	}
	var notifs []db.Notification
	json.Unmarshal(rr.Body.Bytes(), &notifs)
	if len(notifs) != 1 || notifs[0].Type != db.NotificationBookingConfirmed {
		t.Fatalf("notifications = %+v", notifs)
	}

	t.Run("mark read then filter unread", func(t *testing.T) {
		rr := doJSON(t, router, "PUT", fmt.Sprintf("/api/notifications/%d/read", notifs[0].ID), driverToken, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("mark read: status %d", rr.Code)
		}
		rr = doJSON(t, router, "GET", "/api/notifications?unread=true", driverToken, nil)
		var unread []db.Notification
		json.Unmarshal(rr.Body.Bytes(), &unread)
		if len(unread) != 0 {
			t.Errorf("unread = %+v, want none", unread)
		}
	})

	t.Run("another user cannot touch it", func(t *testing.T) {
		rr := doJSON(t, router, "DELETE", fmt.Sprintf("/api/notifications/%d", notifs[0].ID), token(t, 11, "driver"), nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("status %d, want 404", rr.Code)
		}
	})

	t.Run("owner deletes it", func(t *testing.T) {
		rr := doJSON(t, router, "DELETE", fmt.Sprintf("/api/notifications/%d", notifs[0].ID), driverToken, nil)
		if rr.Code != http.StatusNoContent {
			t.Errorf("status %d, want 204", rr.Code)
		}
	})
}
