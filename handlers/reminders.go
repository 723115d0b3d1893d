package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"chime-server/middleware"
	"chime-server/models"
	"chime-server/store"
)

// ReminderHandler is the REST surface over the reminder store. It supplements
// the textual command surface with stable-ID addressing.
type ReminderHandler struct {
	store     *store.Store
	reminders store.ReminderStore
}

func NewReminderHandler(s *store.Store, reminders store.ReminderStore) *ReminderHandler {
	return &ReminderHandler{store: s, reminders: reminders}
}

func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	user, err := h.store.GetUserByID(userID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	reminders, err := h.reminders.ListFor(userID, user.IsAdmin)
	if err != nil {
		http.Error(w, "Failed to fetch reminders", http.StatusInternalServerError)
		return
	}

	if reminders == nil {
		reminders = []models.Reminder{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reminders)
}

func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	reminderID := r.PathValue("id")

	if reminderID == "" {
		http.Error(w, "Reminder ID required", http.StatusBadRequest)
		return
	}

	user, err := h.store.GetUserByID(userID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	err = h.reminders.Remove(userID, user.IsAdmin, reminderID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Reminder not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to delete reminder", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
}
