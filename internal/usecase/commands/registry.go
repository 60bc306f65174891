package commands

import (
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Registry holds command definitions and the alias index. Definitions are
// never mutated after registration; Replace swaps the whole table.
type Registry struct {
	log *slog.Logger

	mu          sync.RWMutex
	commands    map[string]*Definition
	aliasToName map[string]string
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		log:         logger.With("component", "commands.registry"),
		commands:    make(map[string]*Definition),
		aliasToName: make(map[string]string),
	}
}

// Register inserts def by canonical name. Overwrites of names or alias
// bindings are allowed but logged as warnings.
func (r *Registry) Register(def *Definition) bool {
	if !r.valid(def) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	registerLocked(r.log, r.commands, r.aliasToName, def)
	return true
}

// Load registers every valid definition and skips the malformed ones.
func (r *Registry) Load(defs []*Definition) int {
	n := 0
	for _, def := range defs {
		if r.Register(def) {
			n++
		}
	}
	r.log.Info("commands loaded", "count", n)
	return n
}

// Replace rebuilds the registry from defs and swaps it in as a whole.
func (r *Registry) Replace(defs []*Definition) int {
	commands := make(map[string]*Definition, len(defs))
	aliases := make(map[string]string)
	n := 0
	for _, def := range defs {
		if !r.valid(def) {
			continue
		}
		registerLocked(r.log, commands, aliases, def)
		n++
	}

	r.mu.Lock()
	r.commands = commands
	r.aliasToName = aliases
	r.mu.Unlock()

	r.log.Info("commands reloaded", "count", n)
	return n
}

// Resolve looks nameOrAlias up as an alias first, then as a canonical name.
func (r *Registry) Resolve(nameOrAlias string) (*Definition, bool) {
	key := normalizeCommandName(nameOrAlias)
	if key == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if canonical, ok := r.aliasToName[key]; ok {
		key = canonical
	}
	def, ok := r.commands[key]
	return def, ok
}

func (r *Registry) List() []*Definition {
	r.mu.RLock()
	out := make([]*Definition, 0, len(r.commands))
	for _, def := range r.commands {
		out = append(out, def)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Definition) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

func (r *Registry) valid(def *Definition) bool {
	if def == nil {
		r.log.Warn("skipping nil command definition")
		return false
	}
	if normalizeCommandName(def.Name) == "" || def.Execute == nil {
		r.log.Warn("skipping command definition: missing name or execute function", "name", def.Name)
		return false
	}
	return true
}

func registerLocked(log *slog.Logger, commands map[string]*Definition, aliases map[string]string, def *Definition) {
	name := normalizeCommandName(def.Name)
	if _, exists := commands[name]; exists {
		log.Warn("command already registered, overwriting", "command", name)
	}

	stored := *def
	stored.Name = name
	stored.Aliases = normalizeAliasList(def.Aliases)
	commands[name] = &stored

	for _, alias := range stored.Aliases {
		if prev, exists := aliases[alias]; exists && prev != name {
			log.Warn("alias already registered for another command, overwriting",
				"alias", alias, "previous", prev, "command", name)
		}
		aliases[alias] = name
	}
}

func normalizeCommandName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func normalizeAliasList(list []string) []string {
	out := make([]string, 0, len(list))
	seen := make(map[string]struct{}, len(list))
	for _, alias := range list {
		key := normalizeCommandName(alias)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}
