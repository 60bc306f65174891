package commands

import (
	"context"
	"strings"
)

// NewHelpCommand lista los comandos a los que el usuario tiene acceso.
func NewHelpCommand(registry *Registry, prefix string) *Definition {
	return &Definition{
		Name:        "help",
		Aliases:     []string{"commands"},
		Description: "Lists the commands you can use, or describes one.",
		Usage:       "!help [command]",
		Cooldown:    CooldownPolicy{User: 5},
		Reply:       true,
		Execute: func(ctx context.Context, c *Context) (string, error) {
			if name := c.Arg(0); name != "" {
				def, ok := registry.Resolve(strings.TrimPrefix(name, prefix))
				if !ok {
					return "", NewError("Unknown command: " + name)
				}
				text := prefix + def.Name + ": " + def.Description
				if def.Usage != "" {
					text += " Usage: " + def.Usage
				}
				return text, nil
			}

			var names []string
			for _, def := range registry.List() {
				if HasAccess(def.Access, c.Caller) {
					names = append(names, prefix+def.Name)
				}
			}
			if len(names) == 0 {
				return "", nil
			}
			return "Commands: " + strings.Join(names, ", "), nil
		},
	}
}
