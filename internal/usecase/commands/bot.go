package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modBot/internal/domain"
)

type BotCommandDeps struct {
	Channels  domain.ChannelRepository
	Directory domain.UserDirectory
	Logger    *slog.Logger
	Now       func() time.Time
}

// NewBotCommand administra los canales en los que está el bot.
func NewBotCommand(deps BotCommandDeps) *Definition {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	log := deps.Logger.With("component", "commands.bot")

	return &Definition{
		Name:        "bot",
		Description: "Bot administration (join/leave/channels).",
		Usage:       "!bot <join|leave|channels> [channel]",
		Access:      AccessPolicy{MinGlobal: 1},
		Reply:       true,
		Execute: func(ctx context.Context, c *Context) (string, error) {
			action := strings.ToLower(c.Arg(0))
			if action == "" {
				return "Usage: !bot <join|leave|channels>", nil
			}
			channel := normalizeChannelArg(c.Arg(1))

			switch action {
			case "join":
				if channel == "" {
					return "", NewError("Please specify a channel.")
				}
				return botJoin(ctx, deps, log, c, channel)
			case "leave", "part":
				if channel == "" {
					return "", NewError("Please specify a channel name to leave.")
				}
				return botLeave(ctx, deps, log, c, channel)
			case "channels", "list":
				joined := c.Out.Channels()
				if len(joined) == 0 {
					return "Not currently in any channels.", nil
				}
				return "Currently in: " + strings.Join(joined, ", "), nil
			default:
				return fmt.Sprintf("Unknown bot action: %s. Available: join, leave, channels.", action), nil
			}
		},
	}
}

func botJoin(ctx context.Context, deps BotCommandDeps, log *slog.Logger, c *Context, channel string) (string, error) {
	var user *domain.TwitchUser
	if deps.Directory != nil {
		u, err := deps.Directory.LookupUser(ctx, channel)
		if err != nil {
			log.Error("lookup channel failed", "channel", channel, "err", err)
			return "", NewError(fmt.Sprintf("Could not join #%s.", channel))
		}
		if u == nil {
			return "", NewError(fmt.Sprintf("Twitch channel %q not found.", channel))
		}
		user = u
	}

	for _, joined := range c.Out.Channels() {
		if normalizeChannelArg(joined) == channel {
			if err := c.Out.Part(ctx, channel); err != nil {
				log.Warn("part before rejoin failed", "channel", channel, "err", err)
			}
			break
		}
	}

	if err := c.Out.Join(ctx, channel); err != nil {
		log.Error("join failed", "channel", channel, "err", err)
		return "", NewError(fmt.Sprintf("Could not join #%s.", channel))
	}

	if deps.Channels != nil {
		record := &domain.Channel{Name: channel, CreatedAt: deps.Now().UTC()}
		if user != nil {
			record.ID = user.ID
		}
		if err := deps.Channels.UpsertChannel(ctx, record); err != nil {
			return "", fmt.Errorf("persist channel %s: %w", channel, err)
		}
	}

	if user != nil {
		greeting := fmt.Sprintf("@%s FeelsOkayMan 👋🏻", user.DisplayName)
		if err := c.Out.Send(ctx, channel, greeting, domain.SendOptions{}); err != nil {
			log.Warn("greeting failed", "channel", channel, "err", err)
		}
	}

	return "Joined #" + channel, nil
}

func botLeave(ctx context.Context, deps BotCommandDeps, log *slog.Logger, c *Context, channel string) (string, error) {
	if err := c.Out.Part(ctx, channel); err != nil {
		log.Error("part failed", "channel", channel, "err", err)
		return "", NewError(fmt.Sprintf("Could not leave #%s.", channel))
	}
	if deps.Channels != nil {
		if err := deps.Channels.DeleteChannel(ctx, channel); err != nil {
			return "", fmt.Errorf("delete channel %s: %w", channel, err)
		}
	}
	return "Left #" + channel, nil
}

func normalizeChannelArg(value string) string {
	return channelKey(value)
}
