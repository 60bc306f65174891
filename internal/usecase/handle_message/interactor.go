// Package handle_message
package handle_message

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"modBot/internal/domain"
	"modBot/internal/usecase/commands"
	"modBot/internal/usecase/moderation"
)

type Config struct {
	Out        domain.ChatTransport
	Dispatcher *commands.Dispatcher
	Matcher    *moderation.Matcher
	Executor   *moderation.Executor
	Logger     *slog.Logger
	// BotLogin evita que el bot se modere a sí mismo.
	BotLogin string
}

// Interactor splits one chat event into the command pipeline and the
// moderation pipeline. The two run concurrently and do not share state.
type Interactor struct {
	out        domain.ChatTransport
	dispatcher *commands.Dispatcher
	matcher    *moderation.Matcher
	executor   *moderation.Executor
	log        *slog.Logger
	botLogin   string
}

func NewInteractor(cfg Config) *Interactor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Interactor{
		out:        cfg.Out,
		dispatcher: cfg.Dispatcher,
		matcher:    cfg.Matcher,
		executor:   cfg.Executor,
		log:        cfg.Logger.With("component", "handle_message"),
		botLogin:   strings.ToLower(strings.TrimSpace(cfg.BotLogin)),
	}
}

func (uc *Interactor) Handle(ctx context.Context, msg domain.Message) error {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}
	uc.log.Debug("chat message", "channel", msg.Channel, "user", msg.Username, "text", msg.Text)

	var g errgroup.Group

	if uc.dispatcher != nil {
		g.Go(func() error {
			return uc.dispatcher.Handle(ctx, msg, uc.out)
		})
	}

	if uc.matcher != nil && uc.executor != nil && !uc.isBot(msg) {
		g.Go(func() error {
			uc.moderate(ctx, msg)
			return nil
		})
	}

	return g.Wait()
}

func (uc *Interactor) moderate(ctx context.Context, msg domain.Message) moderation.Outcome {
	verdict := uc.matcher.Match(msg.Text)
	return uc.executor.Enforce(ctx, msg, verdict)
}

func (uc *Interactor) isBot(msg domain.Message) bool {
	return uc.botLogin != "" && strings.EqualFold(msg.Username, uc.botLogin)
}
