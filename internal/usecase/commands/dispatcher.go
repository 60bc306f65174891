package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modBot/internal/domain"
)

const (
	TopicCommandExecuted = "command:executed"

	defaultLookupTimeout = 3 * time.Second
	typingText           = "Thinking..."
	genericFailureReply  = "An unexpected error occurred. Please try again later."
)

// State is where an inbound event stopped in the dispatch pipeline.
type State string

const (
	StateNotACommand State = "not_a_command"
	StateUnknown     State = "unknown"
	StateDenied      State = "denied"
	StateOnCooldown  State = "on_cooldown"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

type Publisher interface {
	Publish(topic string, payload any)
}

type ExecutedEvent struct {
	Command   string    `json:"command"`
	Channel   string    `json:"channel"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	State     State     `json:"state"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type DispatcherConfig struct {
	Prefix        string
	Registry      *Registry
	Cooldowns     *CooldownTracker
	Users         domain.UserRepository
	Publisher     Publisher
	Logger        *slog.Logger
	LookupTimeout time.Duration
}

type Dispatcher struct {
	prefix        string
	registry      *Registry
	cooldowns     *CooldownTracker
	users         domain.UserRepository
	publisher     Publisher
	log           *slog.Logger
	lookupTimeout time.Duration
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Prefix == "" {
		cfg.Prefix = "!"
	}
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry(cfg.Logger)
	}
	if cfg.Cooldowns == nil {
		cfg.Cooldowns = NewCooldownTracker()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = defaultLookupTimeout
	}
	return &Dispatcher{
		prefix:        cfg.Prefix,
		registry:      cfg.Registry,
		cooldowns:     cfg.Cooldowns,
		users:         cfg.Users,
		publisher:     cfg.Publisher,
		log:           cfg.Logger.With("component", "commands.dispatcher"),
		lookupTimeout: cfg.LookupTimeout,
	}
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

func (d *Dispatcher) Cooldowns() *CooldownTracker {
	return d.cooldowns
}

// Handle runs one chat message through the dispatch pipeline. The returned
// error only reports failed sends back to the chat.
func (d *Dispatcher) Handle(ctx context.Context, msg domain.Message, out domain.ChatTransport) error {
	_, err := d.Dispatch(ctx, msg, out)
	return err
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg domain.Message, out domain.ChatTransport) (State, error) {
	name, raw, args, ok := d.parse(msg.Text)
	if !ok {
		return StateNotACommand, nil
	}

	def, ok := d.registry.Resolve(name)
	if !ok {
		return StateUnknown, nil
	}

	caller := d.callerFacts(ctx, msg)
	if !HasAccess(def.Access, caller) {
		d.record(def, msg, StateDenied, resultDenied, nil)
		if !def.Reply {
			return StateDenied, nil
		}
		text := fmt.Sprintf("@%s, you don't have permission to use this command.", msg.Name())
		return StateDenied, out.Send(ctx, msg.Channel, text, domain.SendOptions{ReplyTo: msg.ID})
	}

	reservation, ok := d.cooldowns.Reserve(def, msg.UserID, msg.Channel)
	if !ok {
		d.record(def, msg, StateOnCooldown, resultCooldown, nil)
		return StateOnCooldown, nil
	}

	if def.ShowTyping {
		go d.typing(ctx, msg.Channel, out)
	}

	cmdCtx := &Context{
		Message:   msg,
		Out:       out,
		Channel:   msg.Channel,
		ChannelID: msg.ChannelID,
		Caller:    caller,
		Raw:       raw,
		Args:      args,
	}

	start := time.Now()
	result, err := d.execute(ctx, def, cmdCtx)
	commandDuration.WithLabelValues(def.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		reservation.Release()
		return StateFailed, d.handleError(ctx, def, msg, out, err)
	}

	reservation.Commit()
	d.record(def, msg, StateCompleted, resultOK, nil)

	if def.Reply && strings.TrimSpace(result) != "" {
		return StateCompleted, out.Send(ctx, msg.Channel, result, domain.SendOptions{ReplyTo: msg.ID, ReplyName: msg.Name()})
	}
	return StateCompleted, nil
}

func (d *Dispatcher) parse(text string) (name, raw string, args []string, ok bool) {
	if !strings.HasPrefix(text, d.prefix) {
		return "", "", nil, false
	}
	raw = strings.TrimSpace(strings.TrimPrefix(text, d.prefix))
	parts := strings.Fields(raw)
	if len(parts) == 0 {
		return "", "", nil, false
	}
	return strings.ToLower(parts[0]), raw, parts[1:], true
}

func (d *Dispatcher) callerFacts(ctx context.Context, msg domain.Message) CallerFacts {
	facts := CallerFacts{
		IsModerator:   msg.IsModerator,
		IsVip:         msg.IsVip,
		IsBroadcaster: msg.IsBroadcaster,
	}
	if d.users == nil || msg.UserID == "" {
		return facts
	}

	lookupCtx, cancel := context.WithTimeout(ctx, d.lookupTimeout)
	defer cancel()
	tier, err := d.users.PermissionTier(lookupCtx, msg.UserID)
	if err != nil {
		d.log.Warn("permission lookup failed, using default tier", "user_id", msg.UserID, "err", err)
		return facts
	}
	facts.GlobalPermission = tier
	return facts
}

func (d *Dispatcher) execute(ctx context.Context, def *Definition, cmdCtx *Context) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in command %s: %v", def.Name, r)
		}
	}()
	return def.Execute(ctx, cmdCtx)
}

func (d *Dispatcher) typing(ctx context.Context, channel string, out domain.ChatTransport) {
	typingCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.lookupTimeout)
	defer cancel()
	if err := out.Action(typingCtx, channel, typingText); err != nil {
		d.log.Warn("typing indicator failed", "channel", channel, "err", err)
	}
}

func (d *Dispatcher) handleError(ctx context.Context, def *Definition, msg domain.Message, out domain.ChatTransport, err error) error {
	if cmdErr, ok := asCommandError(err); ok {
		d.log.Warn("command error", "command", def.Name, "channel", msg.Channel, "silent", cmdErr.Silent, "err", cmdErr.Message)
		d.record(def, msg, StateFailed, resultUserError, err)
		if cmdErr.Silent {
			return nil
		}
		return out.Send(ctx, msg.Channel, cmdErr.Message, domain.SendOptions{ReplyTo: msg.ID})
	}

	d.log.Error("unhandled command error", "command", def.Name, "channel", msg.Channel, "user_id", msg.UserID, "err", err)
	d.record(def, msg, StateFailed, resultError, err)
	return out.Send(ctx, msg.Channel, genericFailureReply, domain.SendOptions{ReplyTo: msg.ID})
}

func (d *Dispatcher) record(def *Definition, msg domain.Message, state State, result string, err error) {
	commandDispatchCount.WithLabelValues(def.Name, result).Inc()
	if d.publisher == nil {
		return
	}
	ev := ExecutedEvent{
		Command:   def.Name,
		Channel:   msg.Channel,
		UserID:    msg.UserID,
		Username:  msg.Username,
		State:     state,
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	d.publisher.Publish(TopicCommandExecuted, ev)
}
