package commands

import (
	"context"
	"time"

	"modBot/internal/domain"
)

// ChannelTier es el rol mínimo dentro del canal.
type ChannelTier int

const (
	TierEveryone    ChannelTier = 0
	TierVIP         ChannelTier = 1
	TierModerator   ChannelTier = 2
	TierBroadcaster ChannelTier = 3
)

// AccessPolicy uses zero values as "not set": MinGlobal 0 and Channel 0 let everyone through.
type AccessPolicy struct {
	MinGlobal   int         `json:"global,omitempty"`
	Broadcaster bool        `json:"broadcaster,omitempty"`
	Channel     ChannelTier `json:"channel,omitempty"`
}

// CooldownPolicy in whole seconds; a zero scope is not enforced.
type CooldownPolicy struct {
	Global  int `json:"global,omitempty"`
	Channel int `json:"channel,omitempty"`
	User    int `json:"user,omitempty"`
}

func (p CooldownPolicy) IsZero() bool {
	return p.Global <= 0 && p.Channel <= 0 && p.User <= 0
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// ExecuteFunc runs a command body. An empty result suppresses the reply.
type ExecuteFunc func(ctx context.Context, c *Context) (string, error)

type Definition struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      AccessPolicy
	Cooldown    CooldownPolicy
	Reply       bool
	ShowTyping  bool
	Execute     ExecuteFunc
}

type Context struct {
	Message domain.Message
	Out     domain.ChatTransport

	Channel   string
	ChannelID string
	Caller    CallerFacts

	Raw  string
	Args []string
}

// Arg devuelve el argumento i o "" si no existe.
func (c *Context) Arg(i int) string {
	if c == nil || i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}
