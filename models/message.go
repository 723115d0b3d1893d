package models

import "time"

type Message struct {
	ID        string    `json:"id"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type MessageWithUser struct {
	Message
	User UserResponse `json:"user"`
}

type SendMessageRequest struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	WSTypeNewMessage  = "new_message"
	WSTypeUserOnline  = "user_online"
	WSTypeUserOffline = "user_offline"
	WSTypeTyping      = "typing"
)
