package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"modBot/internal/domain"
)

type sentMessage struct {
	Channel string
	Text    string
	Opts    domain.SendOptions
}

type fakeTransport struct {
	mu       sync.Mutex
	sent     []sentMessage
	actions  []string
	channels []string
	joinErr  error
}

func (f *fakeTransport) Send(_ context.Context, channel, text string, opts domain.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{Channel: channel, Text: text, Opts: opts})
	return nil
}

func (f *fakeTransport) Action(_ context.Context, channel, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, channel+":"+text)
	return nil
}

func (f *fakeTransport) Join(_ context.Context, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		return f.joinErr
	}
	if !slices.Contains(f.channels, channel) {
		f.channels = append(f.channels, channel)
	}
	return nil
}

func (f *fakeTransport) Part(_ context.Context, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := slices.Index(f.channels, channel); i >= 0 {
		f.channels = slices.Delete(f.channels, i, i+1)
	}
	return nil
}

func (f *fakeTransport) Channels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.channels)
}

func (f *fakeTransport) Sent() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.sent)
}

func (f *fakeTransport) Actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.actions)
}

type fakeUsers struct {
	tiers map[string]int
	err   error
}

func (f *fakeUsers) PermissionTier(_ context.Context, userID string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.tiers[userID], nil
}

func (f *fakeUsers) SetPermissionTier(_ context.Context, userID string, tier int) error {
	if f.tiers == nil {
		f.tiers = make(map[string]int)
	}
	f.tiers[userID] = tier
	return nil
}

type fakeChannels struct {
	mu      sync.Mutex
	records map[string]*domain.Channel
}

func (f *fakeChannels) GetChannel(_ context.Context, name string) (*domain.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[name], nil
}

func (f *fakeChannels) ListChannels(_ context.Context) ([]*domain.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Channel
	for _, ch := range f.records {
		out = append(out, ch)
	}
	return out, nil
}

func (f *fakeChannels) UpsertChannel(_ context.Context, ch *domain.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records == nil {
		f.records = make(map[string]*domain.Channel)
	}
	f.records[ch.Name] = ch
	return nil
}

func (f *fakeChannels) DeleteChannel(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, name)
	return nil
}

type fakeDirectory struct {
	users map[string]*domain.TwitchUser
}

func (f *fakeDirectory) LookupUser(_ context.Context, login string) (*domain.TwitchUser, error) {
	if f.users == nil {
		return nil, errors.New("directory down")
	}
	return f.users[login], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ExecutedEvent
}

func (p *recordingPublisher) Publish(topic string, payload any) {
	if topic != TopicCommandExecuted {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, payload.(ExecutedEvent))
}

func (p *recordingPublisher) States() []State {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]State, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.State)
	}
	return out
}

// fakeClock is a manually advanced clock safe for concurrent use.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// logBuffer collects slog text output; the dispatcher may log from the
// typing goroutine, so writes are serialized.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *logBuffer) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(b, nil))
}
