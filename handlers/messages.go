package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"chime-server/middleware"
	"chime-server/models"
	"chime-server/store"
)

type MessageHandler struct {
	store      *store.Store
	hub        *Hub
	commands   *BotCommands
	dispatcher *BotDispatcher
}

func NewMessageHandler(s *store.Store, hub *Hub, commands *BotCommands, dispatcher *BotDispatcher) *MessageHandler {
	return &MessageHandler{store: s, hub: hub, commands: commands, dispatcher: dispatcher}
}

func (h *MessageHandler) GetChannelMessages(w http.ResponseWriter, r *http.Request) {
	channelID := r.PathValue("id")
	if channelID == "" {
		http.Error(w, "Channel ID required", http.StatusBadRequest)
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	messages, err := h.store.GetChannelMessages(channelID, limit)
	if err != nil {
		log.Printf("Error fetching messages for channel %s: %v", channelID, err)
		http.Error(w, "Failed to fetch messages", http.StatusInternalServerError)
		return
	}

	if messages == nil {
		messages = []models.MessageWithUser{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(messages)
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.ChannelID == "" || req.Content == "" {
		http.Error(w, "Channel ID and content are required", http.StatusBadRequest)
		return
	}

	user, err := h.store.GetUserByID(userID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	msg, err := h.store.CreateMessage(req.ChannelID, userID, req.Content)
	if err != nil {
		http.Error(w, "Failed to send message", http.StatusInternalServerError)
		return
	}

	h.hub.BroadcastToChannel(req.ChannelID, models.WSMessage{
		Type: models.WSTypeNewMessage,
		Payload: models.MessageWithUser{
			Message: *msg,
			User:    user.ToResponse(),
		},
	})

	// Bot commands reply into the channel the command came from.
	if reply, handled := h.commands.HandleMessage(userID, req.Content); handled {
		go func() {
			if err := h.dispatcher.PostAsBot(req.ChannelID, reply); err != nil {
				log.Printf("[BOT] failed to post reply in channel %s: %v", req.ChannelID, err)
			}
		}()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(msg)
}
