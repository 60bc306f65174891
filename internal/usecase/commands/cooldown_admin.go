package commands

import (
	"context"
	"fmt"
)

func NewCooldownCommand(registry *Registry, tracker *CooldownTracker) *Definition {
	return &Definition{
		Name:        "cooldown",
		Aliases:     []string{"cd"},
		Description: "Resets the cooldowns of a command.",
		Usage:       "!cooldown <command> [userId] [channel]",
		Access:      AccessPolicy{MinGlobal: 2},
		Reply:       true,
		Execute: func(ctx context.Context, c *Context) (string, error) {
			name := c.Arg(0)
			if name == "" {
				return "", NewError("Please specify a command.")
			}
			def, ok := registry.Resolve(name)
			if !ok {
				return "", NewError("Unknown command: " + name)
			}
			tracker.ClearCooldown(def.Name, c.Arg(1), c.Arg(2))
			return fmt.Sprintf("Cooldowns cleared for %s.", def.Name), nil
		},
	}
}
