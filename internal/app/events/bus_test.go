package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modBot/internal/domain"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe(TopicChatMessage)
	defer unsubscribe()

	other, unsubOther := bus.Subscribe(TopicAppError)
	defer unsubOther()

	bus.Publish(TopicChatMessage, "hello")

	select {
	case got := <-ch:
		assert.Equal(t, "hello", got)
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	assert.Empty(t, other)
}

func TestBusPublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	_, unsubscribe := bus.Subscribe(TopicChatMessage)
	defer unsubscribe()

	for i := 0; i < defaultBufferSize+10; i++ {
		bus.Publish(TopicChatMessage, i)
	}
	assert.EqualValues(t, 10, bus.Drops(TopicChatMessage))
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe(TopicChatMessage)

	unsubscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)
	bus.Publish(TopicChatMessage, "after")
}

func TestBusConcurrentPublishAndUnsubscribe(t *testing.T) {
	bus := NewBus()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		ch, unsubscribe := bus.Subscribe(TopicCommandExecuted)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range ch {
			}
		}()
		go func() {
			defer wg.Done()
			bus.Publish(TopicCommandExecuted, "x")
			unsubscribe()
		}()
	}
	wg.Wait()
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe(TopicModerationAction)

	bus.Close()
	_, ok := <-ch
	assert.False(t, ok)
	unsubscribe()

	late, _ := bus.Subscribe(TopicModerationAction)
	_, ok = <-late
	assert.False(t, ok)
	bus.Publish(TopicModerationAction, "ignored")
}

func TestNewChatMessageDTO(t *testing.T) {
	sent := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	dto := NewChatMessageDTO(domain.Message{
		Platform:    domain.PlatformTwitch,
		ID:          "m1",
		Channel:     "forsen",
		Username:    "viewer",
		DisplayName: "Viewer",
		Text:        "hi",
		SentAt:      sent,
		IsModerator: true,
	})

	require.Equal(t, "twitch", dto.Platform)
	assert.Equal(t, "2024-03-01T12:00:00Z", dto.Timestamp)
	assert.True(t, dto.IsModerator)
}
