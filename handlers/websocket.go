package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"chime-server/middleware"
	"chime-server/models"
	"chime-server/store"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
)

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	store      *store.Store
	mu         sync.RWMutex
}

func NewHub(s *store.Store) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		store:      s,
	}
}

func (h *Hub) Run() {
	log.Printf("[WS HUB] hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			isFirstConnection := true
			for c := range h.clients {
				if c.userID == client.userID {
					isFirstConnection = false
					break
				}
			}
			h.clients[client] = true
			h.mu.Unlock()

			log.Printf("[WS HUB] client registered: %s (first=%v)", client.userID, isFirstConnection)
			h.store.UpdateUserStatus(client.userID, "online")

			if isFirstConnection {
				go h.BroadcastAll(models.WSMessage{
					Type: models.WSTypeUserOnline,
					Payload: map[string]string{
						"user_id": client.userID,
					},
				})
			}

		case client := <-h.unregister:
			h.mu.Lock()
			wasPresent := false
			if _, ok := h.clients[client]; ok {
				wasPresent = true
				delete(h.clients, client)
				close(client.send)
			}
			hasOtherConnections := false
			if wasPresent {
				for c := range h.clients {
					if c.userID == client.userID {
						hasOtherConnections = true
						break
					}
				}
			}
			h.mu.Unlock()

			if wasPresent && !hasOtherConnections {
				log.Printf("[WS HUB] client unregistered: %s", client.userID)
				h.store.UpdateUserStatus(client.userID, "offline")

				go h.BroadcastAll(models.WSMessage{
					Type: models.WSTypeUserOffline,
					Payload: map[string]string{
						"user_id": client.userID,
					},
				})
			}

		case message := <-h.broadcast:
			var staleClients []*Client
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					staleClients = append(staleClients, client)
				}
			}
			h.mu.RUnlock()

			if len(staleClients) > 0 {
				h.mu.Lock()
				for _, client := range staleClients {
					if _, ok := h.clients[client]; ok {
						close(client.send)
						delete(h.clients, client)
						log.Printf("[WS HUB] removed stale client: %s", client.userID)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// BroadcastToChannel fans a message out to all clients; clients filter by
// channel themselves.
func (h *Hub) BroadcastToChannel(channelID string, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	var staleClients []*Client
	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			staleClients = append(staleClients, client)
		}
	}
	h.mu.RUnlock()

	if len(staleClients) > 0 {
		h.mu.Lock()
		for _, client := range staleClients {
			if _, ok := h.clients[client]; ok {
				close(client.send)
				delete(h.clients, client)
			}
		}
		h.mu.Unlock()
	}
}

// BroadcastToChannelExcept sends a message to all clients except the given one.
func (h *Hub) BroadcastToChannelExcept(channelID string, except *Client, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	h.mu.RLock()
	for client := range h.clients {
		if client != except {
			select {
			case client.send <- data:
			default:
				// Buffer full, skip
			}
		}
	}
	h.mu.RUnlock()
}

func (h *Hub) BroadcastAll(msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WS HUB] marshal error for type '%s': %v", msg.Type, err)
		return
	}
	h.broadcast <- data
}

func (h *Hub) SendToUser(userID string, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WS HUB] marshal error for type '%s': %v", msg.Type, err)
		return
	}

	var staleClients []*Client
	h.mu.RLock()
	for client := range h.clients {
		if client.userID == userID {
			select {
			case client.send <- data:
			default:
				staleClients = append(staleClients, client)
			}
		}
	}
	h.mu.RUnlock()

	if len(staleClients) > 0 {
		h.mu.Lock()
		for _, client := range staleClients {
			if _, ok := h.clients[client]; ok {
				close(client.send)
				delete(h.clients, client)
			}
		}
		h.mu.Unlock()
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Token required", http.StatusUnauthorized)
		return
	}

	claims, err := middleware.ValidateToken(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] upgrade error for user %s: %v", claims.UserID, err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		userID: claims.UserID,
	}

	welcomeMsg := []byte(`{"type":"welcome","payload":{"message":"connected"}}`)
	if err := conn.WriteMessage(websocket.TextMessage, welcomeMsg); err != nil {
		log.Printf("[WS] failed to send welcome to %s: %v", claims.UserID, err)
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	h.register <- client
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] unexpected close for client %s: %v", c.userID, err)
			}
			break
		}

		var wsMsg models.WSMessage
		if err := json.Unmarshal(message, &wsMsg); err != nil {
			log.Printf("[WS] bad message from client %s: %v", c.userID, err)
			continue
		}

		switch wsMsg.Type {
		case models.WSTypeTyping:
			// Relay typing indicators to everyone but the sender.
			if payload, ok := wsMsg.Payload.(map[string]interface{}); ok {
				if channelID, ok := payload["channel_id"].(string); ok {
					c.hub.BroadcastToChannelExcept(channelID, c, models.WSMessage{
						Type: models.WSTypeTyping,
						Payload: map[string]string{
							"user_id":    c.userID,
							"channel_id": channelID,
						},
					})
				}
			}
		default:
			log.Printf("[WS] unknown message type '%s' from client %s", wsMsg.Type, c.userID)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
