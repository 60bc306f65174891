package handle_message

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modBot/internal/domain"
	"modBot/internal/usecase/commands"
	"modBot/internal/usecase/moderation"
)

type memTransport struct {
	mu   sync.Mutex
	sent []string
}

func (m *memTransport) Send(_ context.Context, _ string, text string, _ domain.SendOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, text)
	return nil
}
func (m *memTransport) Action(context.Context, string, string) error { return nil }
func (m *memTransport) Join(context.Context, string) error           { return nil }
func (m *memTransport) Part(context.Context, string) error           { return nil }
func (m *memTransport) Channels() []string                           { return nil }

type memAPI struct {
	mu    sync.Mutex
	calls []string
}

func (m *memAPI) add(call string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
	return true, nil
}

func (m *memAPI) Ban(_ context.Context, _, userID, _ string) (bool, error) {
	return m.add("ban:" + userID)
}

func (m *memAPI) Timeout(_ context.Context, _, userID string, _ int, _ string) (bool, error) {
	return m.add("timeout:" + userID)
}

func (m *memAPI) DeleteMessage(_ context.Context, _, messageID string) (bool, error) {
	return m.add("delete:" + messageID)
}

func newInteractor(t *testing.T, out *memTransport, api *memAPI) *Interactor {
	t.Helper()
	reg := commands.NewRegistry(nil)
	require.True(t, reg.Register(&commands.Definition{
		Name:  "say",
		Reply: true,
		Execute: func(ctx context.Context, c *commands.Context) (string, error) {
			return c.Raw, nil
		},
	}))
	rules := moderation.NewRuleSet([]moderation.Rule{
		{Pattern: "cheap viewers", Action: 0, Reason: "viewbot"},
	}, nil)

	return NewInteractor(Config{
		Out:        out,
		Dispatcher: commands.NewDispatcher(commands.DispatcherConfig{Registry: reg}),
		Matcher:    moderation.NewMatcher(rules),
		Executor:   moderation.NewExecutor(moderation.ExecutorConfig{API: api}),
		BotLogin:   "ModBot",
	})
}

func TestHandleRunsBothPipelines(t *testing.T) {
	out := &memTransport{}
	api := &memAPI{}
	uc := newInteractor(t, out, api)

	err := uc.Handle(context.Background(), domain.Message{
		ID:       "m1",
		Channel:  "forsen",
		UserID:   "u1",
		Username: "spammer",
		Text:     "!say cheap viewers here",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"say cheap viewers here"}, out.sent)
	assert.Equal(t, []string{"ban:u1"}, api.calls)
}

func TestHandleSkipsModerationForBot(t *testing.T) {
	out := &memTransport{}
	api := &memAPI{}
	uc := newInteractor(t, out, api)

	err := uc.Handle(context.Background(), domain.Message{
		ID:       "m2",
		Channel:  "forsen",
		UserID:   "999",
		Username: "modbot",
		Text:     "!say cheap viewers",
	})
	require.NoError(t, err)

	assert.Len(t, out.sent, 1, "the bot's own commands still dispatch")
	assert.Empty(t, api.calls)
}

func TestHandleCleanMessage(t *testing.T) {
	out := &memTransport{}
	api := &memAPI{}
	uc := newInteractor(t, out, api)

	require.NoError(t, uc.Handle(context.Background(), domain.Message{UserID: "u1", Username: "viewer", Text: "hello"}))
	assert.Empty(t, out.sent)
	assert.Empty(t, api.calls)
}
