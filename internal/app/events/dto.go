package events

import (
	"time"

	"modBot/internal/domain"
)

// ChatMessageDTO describe el payload que se envía al frontend a través del bus/eventos.
type ChatMessageDTO struct {
	Platform      string `json:"platform"`
	ID            string `json:"id"`
	Channel       string `json:"channel"`
	ChannelID     string `json:"channel_id"`
	UserID        string `json:"user_id"`
	Username      string `json:"username"`
	DisplayName   string `json:"display_name"`
	Text          string `json:"text"`
	IsBroadcaster bool   `json:"is_broadcaster"`
	IsModerator   bool   `json:"is_moderator"`
	IsVip         bool   `json:"is_vip"`
	Timestamp     string `json:"timestamp"`
}

// NewChatMessageDTO crea un DTO serializable a partir de domain.Message.
func NewChatMessageDTO(msg domain.Message) ChatMessageDTO {
	sent := msg.SentAt
	if sent.IsZero() {
		sent = time.Now()
	}
	return ChatMessageDTO{
		Platform:      string(msg.Platform),
		ID:            msg.ID,
		Channel:       msg.Channel,
		ChannelID:     msg.ChannelID,
		UserID:        msg.UserID,
		Username:      msg.Username,
		DisplayName:   msg.DisplayName,
		Text:          msg.Text,
		IsBroadcaster: msg.IsBroadcaster,
		IsModerator:   msg.IsModerator,
		IsVip:         msg.IsVip,
		Timestamp:     sent.UTC().Format(time.RFC3339Nano),
	}
}

type TwitchBotEventDTO struct {
	Username string   `json:"username"`
	Channels []string `json:"channels"`
	Message  string   `json:"message,omitempty"`
}

// Envelope es lo que recibe cada cliente del websocket.
type Envelope struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}
