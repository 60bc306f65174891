// Package twitchadapter adapter for twitch
package twitchadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adeithe/go-twitch/irc"
	"golang.org/x/time/rate"

	"modBot/internal/domain"
)

// Twitch permite 20 mensajes cada 30 segundos para cuentas sin privilegios.
const (
	DefaultRateLimit = 20
	ratePeriod       = 30 * time.Second
)

var ErrNotConnected = errors.New("twitch: conexión no inicializada o cerrada")

type Config struct {
	Username   string
	OAuthToken string
	Channels   []string
	// RateLimit es el número de mensajes permitidos por ventana de 30s.
	RateLimit int
	Logger    *slog.Logger
}

type MessageHandler func(ctx context.Context, msg domain.Message) error

// Adapter owns the IRC connection. It implements domain.ChatTransport.
type Adapter struct {
	cfg     Config
	log     *slog.Logger
	limiter *rate.Limiter

	mu       sync.RWMutex
	handler  MessageHandler
	conn     *irc.Conn
	channels []string
}

var _ domain.ChatTransport = (*Adapter)(nil)

func NewAdapter(cfg Config) *Adapter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	every := ratePeriod / time.Duration(cfg.RateLimit)
	return &Adapter{
		cfg:      cfg,
		log:      cfg.Logger.With("component", "twitch.irc"),
		limiter:  rate.NewLimiter(rate.Every(every), cfg.RateLimit),
		channels: normalizeChannels(cfg.Channels),
	}
}

func (a *Adapter) SetHandler(h MessageHandler) {
	a.mu.Lock()
	a.handler = h
	a.mu.Unlock()
}

// Start conecta, une los canales iniciales y bloquea hasta que ctx termine.
// onReady se llama una vez con la conexión lista.
func (a *Adapter) Start(ctx context.Context, onReady func()) error {
	if a.cfg.Username == "" || a.cfg.OAuthToken == "" {
		return errors.New("twitch: username u oauth token vacíos")
	}

	conn := &irc.Conn{}
	if err := conn.SetLogin(a.cfg.Username, a.cfg.OAuthToken); err != nil {
		return fmt.Errorf("twitch: SetLogin: %w", err)
	}

	conn.OnMessage(func(cm irc.ChatMessage) {
		a.mu.RLock()
		handler := a.handler
		a.mu.RUnlock()
		if handler == nil {
			return
		}

		msg := mapChatMessageToDomain(cm)
		go func() {
			if err := handler(ctx, msg); err != nil {
				a.log.Error("message handler failed", "channel", msg.Channel, "err", err)
			}
		}()
	})

	if err := conn.Connect(); err != nil {
		return fmt.Errorf("twitch: Connect: %w", err)
	}

	a.mu.Lock()
	a.conn = conn
	initial := slices.Clone(a.channels)
	a.mu.Unlock()

	if len(initial) > 0 {
		if err := conn.Join(initial...); err != nil {
			conn.Close()
			return fmt.Errorf("twitch: Join: %w", err)
		}
	}

	a.log.Info("connected", "user", a.cfg.Username, "channels", initial)
	if onReady != nil {
		onReady()
	}

	<-ctx.Done()

	a.mu.Lock()
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	a.mu.Unlock()

	return ctx.Err()
}

func (a *Adapter) Send(ctx context.Context, channel, text string, opts domain.SendOptions) error {
	if opts.ReplyName != "" {
		text = "@" + opts.ReplyName + ", " + text
	}
	return a.say(ctx, channel, text)
}

// Action envía el texto como /me usando CTCP ACTION.
func (a *Adapter) Action(ctx context.Context, channel, text string) error {
	return a.say(ctx, channel, "\x01ACTION "+text+"\x01")
}

func (a *Adapter) say(ctx context.Context, channel, text string) error {
	conn, err := a.connection()
	if err != nil {
		return err
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("twitch: rate limit: %w", err)
	}
	channel = normalizeChannel(channel)
	a.log.Debug("say", "channel", channel, "text", text)
	if err := conn.Say(channel, text); err != nil {
		return fmt.Errorf("twitch: Say(%s): %w", channel, err)
	}
	return nil
}

func (a *Adapter) Join(_ context.Context, channel string) error {
	channel = normalizeChannel(channel)
	if channel == "" {
		return errors.New("twitch: canal vacío")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if slices.Contains(a.channels, channel) {
		return nil
	}
	if a.conn != nil {
		if err := a.conn.Join(channel); err != nil {
			return fmt.Errorf("twitch: Join(%s): %w", channel, err)
		}
	}
	a.channels = append(a.channels, channel)
	return nil
}

func (a *Adapter) Part(_ context.Context, channel string) error {
	channel = normalizeChannel(channel)

	a.mu.Lock()
	defer a.mu.Unlock()
	idx := slices.Index(a.channels, channel)
	if idx < 0 {
		return nil
	}
	if a.conn != nil {
		if err := a.conn.Leave(channel); err != nil {
			return fmt.Errorf("twitch: Leave(%s): %w", channel, err)
		}
	}
	a.channels = slices.Delete(a.channels, idx, idx+1)
	return nil
}

func (a *Adapter) Channels() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := slices.Clone(a.channels)
	slices.Sort(out)
	return out
}

func (a *Adapter) connection() (*irc.Conn, error) {
	a.mu.RLock()
	conn := a.conn
	a.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return nil, ErrNotConnected
	}
	return conn, nil
}

func mapChatMessageToDomain(cm irc.ChatMessage) domain.Message {
	sender := cm.Sender

	msg := domain.Message{
		Platform:      domain.PlatformTwitch,
		ID:            cm.ID,
		Channel:       normalizeChannel(cm.Channel),
		UserID:        strconv.FormatInt(sender.ID, 10),
		Username:      strings.ToLower(sender.Username),
		DisplayName:   sender.DisplayName,
		Text:          cm.Text,
		SentAt:        cm.CreatedAt,
		IsBroadcaster: sender.IsBroadcaster,
		IsModerator:   sender.IsModerator,
		IsVip:         sender.IsVIP,
	}
	if cm.ChannelID != 0 {
		msg.ChannelID = strconv.FormatInt(cm.ChannelID, 10)
	}
	return msg
}

func normalizeChannel(ch string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ch), "#"))
}

func normalizeChannels(in []string) []string {
	out := make([]string, 0, len(in))
	for _, ch := range in {
		ch = normalizeChannel(ch)
		if ch == "" || slices.Contains(out, ch) {
			continue
		}
		out = append(out, ch)
	}
	return out
}
