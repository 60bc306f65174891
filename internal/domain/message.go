package domain

import "time"

type Platform string

const (
	PlatformTwitch Platform = "twitch"
)

// Message es un evento de chat entrante ya normalizado por el adapter.
type Message struct {
	Platform  Platform
	ID        string
	Channel   string
	ChannelID string
	UserID    string
	Username  string
	// DisplayName puede venir vacío; en ese caso se usa Username.
	DisplayName string
	Text        string
	SentAt      time.Time

	// Flags que vienen de la plataforma (los rellenamos en el adapter)
	IsBroadcaster bool
	IsModerator   bool
	IsVip         bool
}

func (m Message) Name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.Username
}
