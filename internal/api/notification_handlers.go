package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"parkhub/internal/auth"
	"parkhub/internal/clock"
	"parkhub/internal/db"
	"parkhub/internal/repository"
)

type NotificationHandler struct {
	Repo  repository.NotificationRepository
	Clock clock.Clock
}

func NewNotificationHandler(repo repository.NotificationRepository, clk clock.Clock) *NotificationHandler {
	return &NotificationHandler{Repo: repo, Clock: clk}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"
	items, err := h.Repo.ListByUser(r.Context(), actor.UserID, unreadOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []db.Notification{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Repo.MarkRead(r.Context(), id, actor.UserID, h.Clock.Now()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Repo.Delete(r.Context(), id, actor.UserID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
