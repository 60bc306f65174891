package twitchadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adeithe/go-twitch/irc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modBot/internal/domain"
)

func TestMapChatMessageToDomain(t *testing.T) {
	sent := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cm := irc.ChatMessage{
		ID:        "abc-123",
		Channel:   "#Forsen",
		ChannelID: 22484632,
		Text:      "!ping",
		CreatedAt: sent,
	}
	cm.Sender.ID = 42
	cm.Sender.Username = "Viewer"
	cm.Sender.DisplayName = "Viewer"
	cm.Sender.IsModerator = true

	msg := mapChatMessageToDomain(cm)
	assert.Equal(t, domain.PlatformTwitch, msg.Platform)
	assert.Equal(t, "abc-123", msg.ID)
	assert.Equal(t, "forsen", msg.Channel)
	assert.Equal(t, "22484632", msg.ChannelID)
	assert.Equal(t, "42", msg.UserID)
	assert.Equal(t, "viewer", msg.Username)
	assert.Equal(t, "Viewer", msg.Name())
	assert.Equal(t, sent, msg.SentAt)
	assert.True(t, msg.IsModerator)
	assert.False(t, msg.IsBroadcaster)
}

func TestChannelsBeforeConnect(t *testing.T) {
	a := NewAdapter(Config{Channels: []string{"#B", "a", "b", " "}})
	assert.Equal(t, []string{"a", "b"}, a.Channels())

	require.NoError(t, a.Join(context.Background(), "#C"))
	require.NoError(t, a.Join(context.Background(), "c"))
	assert.Equal(t, []string{"a", "b", "c"}, a.Channels())

	require.NoError(t, a.Part(context.Background(), "A"))
	require.NoError(t, a.Part(context.Background(), "missing"))
	assert.Equal(t, []string{"b", "c"}, a.Channels())

	assert.Error(t, a.Join(context.Background(), "#"))
}

func TestSendWithoutConnection(t *testing.T) {
	a := NewAdapter(Config{})
	err := a.Send(context.Background(), "forsen", "hi", domain.SendOptions{ReplyName: "viewer"})
	assert.True(t, errors.Is(err, ErrNotConnected))
	assert.ErrorIs(t, a.Action(context.Background(), "forsen", "Thinking..."), ErrNotConnected)
}

func TestStartRequiresCredentials(t *testing.T) {
	a := NewAdapter(Config{Channels: []string{"forsen"}})
	assert.Error(t, a.Start(context.Background(), nil))
}
