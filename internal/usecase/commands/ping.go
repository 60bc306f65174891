package commands

import (
	"context"
	"fmt"
	"time"
)

func NewPingCommand(now func() time.Time) *Definition {
	if now == nil {
		now = time.Now
	}
	return &Definition{
		Name:        "ping",
		Description: "Checks bot latency.",
		Usage:       "!ping",
		Cooldown:    CooldownPolicy{User: 5},
		Reply:       true,
		Execute: func(ctx context.Context, c *Context) (string, error) {
			sent := c.Message.SentAt
			if sent.IsZero() {
				return "Pong!", nil
			}
			latency := now().Sub(sent)
			if latency < 0 {
				latency = 0
			}
			return fmt.Sprintf("Pong! Latency: %dms", latency.Milliseconds()), nil
		},
	}
}
