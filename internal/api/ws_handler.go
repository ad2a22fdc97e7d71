package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"parkhub/internal/auth"
	"parkhub/internal/entities"
	"parkhub/internal/events"
	"parkhub/internal/service"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin policy is enforced by the CORS layer; the upgrade itself
	// accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades clients onto the event broadcaster. Lot streams are
// public; the per-user stream requires an authenticated actor.
type WSHandler struct {
	Broadcaster *events.Broadcaster
	Slots       *service.SlotService
}

func NewWSHandler(b *events.Broadcaster, slots *service.SlotService) *WSHandler {
	return &WSHandler{Broadcaster: b, Slots: slots}
}

// LotStream streams slot-updated and parking-lot-status events for one lot.
// The first frame is a status snapshot so clients render without waiting for
// a change.
func (h *WSHandler) LotStream(w http.ResponseWriter, r *http.Request) {
	lotID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}
	status, err := h.Slots.LotStatus(r.Context(), lotID)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	sub := h.Broadcaster.Subscribe(events.LotTopic(lotID))
	snapshot := entities.Event{Type: entities.EventLotStatus, Data: status}
	go h.writePump(conn, sub, &snapshot)
	h.readPump(conn, sub)
}

// UserStream streams booking-updated and notification events for the
// authenticated user.
func (h *WSHandler) UserStream(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed: %v", err)
		return
	}

	sub := h.Broadcaster.Subscribe(events.UserTopic(actor.UserID))
	go h.writePump(conn, sub, nil)
	h.readPump(conn, sub)
}

func (h *WSHandler) writePump(conn *websocket.Conn, sub *events.Subscription, first *entities.Event) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	if first != nil {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(first); err != nil {
			return
		}
	}
	for {
		select {
		case ev, ok := <-sub.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains incoming frames until the peer disconnects, then tears the
// subscription down.
func (h *WSHandler) readPump(conn *websocket.Conn, sub *events.Subscription) {
	defer func() {
		h.Broadcaster.Unsubscribe(sub)
		conn.Close()
	}()
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
