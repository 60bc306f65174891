package commands

import (
	"log/slog"
	"time"

	"modBot/internal/domain"
)

// CommandDescriptor expone metadatos de cada comando para la API HTTP.
type CommandDescriptor struct {
	Name        string         `json:"name"`
	Aliases     []string       `json:"aliases"`
	Description string         `json:"description,omitempty"`
	Usage       string         `json:"usage,omitempty"`
	Access      AccessPolicy   `json:"access"`
	Cooldown    CooldownPolicy `json:"cooldown"`
	Reply       bool           `json:"reply"`
	ShowTyping  bool           `json:"show_typing"`
}

func Describe(registry *Registry) []CommandDescriptor {
	defs := registry.List()
	out := make([]CommandDescriptor, 0, len(defs))
	for _, def := range defs {
		out = append(out, CommandDescriptor{
			Name:        def.Name,
			Aliases:     append([]string{}, def.Aliases...),
			Description: def.Description,
			Usage:       def.Usage,
			Access:      def.Access,
			Cooldown:    def.Cooldown,
			Reply:       def.Reply,
			ShowTyping:  def.ShowTyping,
		})
	}
	return out
}

type BuiltinDeps struct {
	Prefix    string
	Registry  *Registry
	Cooldowns *CooldownTracker
	Channels  domain.ChannelRepository
	Directory domain.UserDirectory
	Profiles  UserProfileProvider
	Logger    *slog.Logger
	Now       func() time.Time
}

// BuiltinCommands es la tabla estática de comandos incluidos en el bot.
func BuiltinCommands(deps BuiltinDeps) []*Definition {
	if deps.Prefix == "" {
		deps.Prefix = "!"
	}
	defs := []*Definition{
		NewPingCommand(deps.Now),
		NewHelpCommand(deps.Registry, deps.Prefix),
		NewCooldownCommand(deps.Registry, deps.Cooldowns),
		NewBotCommand(BotCommandDeps{
			Channels:  deps.Channels,
			Directory: deps.Directory,
			Logger:    deps.Logger,
			Now:       deps.Now,
		}),
	}
	if deps.Profiles != nil {
		defs = append(defs, NewUserCommand(deps.Profiles, deps.Logger, deps.Now))
	}
	return defs
}
