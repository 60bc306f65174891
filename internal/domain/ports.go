package domain

import (
	"context"
	"time"
)

type SendOptions struct {
	// ReplyTo es el ID del mensaje al que se responde.
	ReplyTo string
	// ReplyName se antepone como mención cuando la plataforma no soporta hilos.
	ReplyName string
}

// ChatTransport es el puerto de salida hacia el chat.
type ChatTransport interface {
	Send(ctx context.Context, channel, text string, opts SendOptions) error
	Action(ctx context.Context, channel, text string) error
	Join(ctx context.Context, channel string) error
	Part(ctx context.Context, channel string) error
	Channels() []string
}

type UserRepository interface {
	PermissionTier(ctx context.Context, userID string) (int, error)
	SetPermissionTier(ctx context.Context, userID string, tier int) error
}

type Channel struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

type ChannelRepository interface {
	GetChannel(ctx context.Context, name string) (*Channel, error)
	ListChannels(ctx context.Context) ([]*Channel, error)
	UpsertChannel(ctx context.Context, ch *Channel) error
	DeleteChannel(ctx context.Context, name string) error
}

// ModerationAPI expone exactamente las acciones que usa el motor de moderación.
// false sin error significa que la plataforma rechazó la acción.
type ModerationAPI interface {
	Ban(ctx context.Context, channelID, userID, reason string) (bool, error)
	Timeout(ctx context.Context, channelID, userID string, seconds int, reason string) (bool, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) (bool, error)
}

type TwitchUser struct {
	ID          string
	Login       string
	DisplayName string
}

type UserDirectory interface {
	LookupUser(ctx context.Context, login string) (*TwitchUser, error)
}
