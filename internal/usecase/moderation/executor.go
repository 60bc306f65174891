package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"modBot/internal/domain"
)

const (
	TopicModerationAction = "moderation:action"

	defaultCallTimeout = 5 * time.Second
	defaultReason      = "Rule violation"
	cleanReason        = "No rule violation detected"
)

type ActionKind string

const (
	ActionBan     ActionKind = "ban"
	ActionDelete  ActionKind = "delete"
	ActionTimeout ActionKind = "timeout"
	ActionNone    ActionKind = "none"
)

// KindOf resolves an action code. ok is false for codes that map to nothing.
func KindOf(action int) (ActionKind, bool) {
	switch {
	case action == 0:
		return ActionBan, true
	case action == 1:
		return ActionDelete, true
	case action > 1:
		return ActionTimeout, true
	default:
		return ActionNone, false
	}
}

type Target struct {
	ChannelID string
	UserID    string
	Username  string
	MessageID string
}

type Outcome struct {
	Success  bool       `json:"success"`
	Action   ActionKind `json:"action"`
	Duration int        `json:"duration,omitempty"`
	Reason   string     `json:"reason"`
	Error    string     `json:"error,omitempty"`
}

type Publisher interface {
	Publish(topic string, payload any)
}

type ActionEvent struct {
	Channel   string    `json:"channel"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Verdict   Verdict   `json:"verdict"`
	Outcome   Outcome   `json:"outcome"`
	Timestamp time.Time `json:"timestamp"`
}

type ExecutorConfig struct {
	API         domain.ModerationAPI
	Log         domain.ModerationLogRepository
	Publisher   Publisher
	Logger      *slog.Logger
	Attribution string
	CallTimeout time.Duration
	Now         func() time.Time
}

// Executor turns verdicts into calls on the moderation API. It never returns
// an error: every failure ends up in Outcome.Error.
type Executor struct {
	api         domain.ModerationAPI
	repo        domain.ModerationLogRepository
	publisher   Publisher
	log         *slog.Logger
	suffix      string
	callTimeout time.Duration
	now         func() time.Time
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.Attribution == "" {
		cfg.Attribution = "modbot"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Executor{
		api:         cfg.API,
		repo:        cfg.Log,
		publisher:   cfg.Publisher,
		log:         cfg.Logger.With("component", "moderation.executor"),
		suffix:      " - automated by " + cfg.Attribution,
		callTimeout: cfg.CallTimeout,
		now:         cfg.Now,
	}
}

func (e *Executor) Attribution() string {
	return e.suffix
}

func (e *Executor) Execute(ctx context.Context, v Verdict, t Target) Outcome {
	if !v.Violation {
		return Outcome{Success: true, Action: ActionNone, Reason: cleanReason + e.suffix}
	}

	reason := v.Reason
	if reason == "" {
		reason = defaultReason
	}
	reason += e.suffix

	kind, ok := KindOf(v.Action)
	if !ok {
		return Outcome{
			Success: false,
			Action:  ActionNone,
			Reason:  "Unknown action" + e.suffix,
			Error:   "unknown action: " + strconv.Itoa(v.Action),
		}
	}

	out := Outcome{Action: kind, Reason: reason}
	if kind == ActionTimeout {
		out.Duration = v.Action
	}

	if kind == ActionDelete && t.MessageID == "" {
		out.Error = "missing message id"
		return out
	}
	if e.api == nil {
		out.Error = "moderation api unavailable"
		return out
	}

	start := e.now()
	success, err := e.call(ctx, kind, v.Action, t, reason)
	enforcementDuration.WithLabelValues(string(kind)).Observe(e.now().Sub(start).Seconds())

	switch {
	case err != nil:
		out.Error = "api error: " + err.Error()
	case !success:
		out.Error = string(kind) + " failed"
	default:
		out.Success = true
	}
	return out
}

// call runs one API call under the call timeout. A call that does not return
// in time, or panics, counts as a failure.
func (e *Executor) call(ctx context.Context, kind ActionKind, action int, t Target, reason string) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	type result struct {
		ok  bool
		err error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		var res result
		switch kind {
		case ActionBan:
			res.ok, res.err = e.api.Ban(callCtx, t.ChannelID, t.UserID, reason)
		case ActionDelete:
			res.ok, res.err = e.api.DeleteMessage(callCtx, t.ChannelID, t.MessageID)
		case ActionTimeout:
			res.ok, res.err = e.api.Timeout(callCtx, t.ChannelID, t.UserID, action, reason)
		}
		done <- res
	}()

	select {
	case res := <-done:
		return res.ok, res.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return false, fmt.Errorf("%s timed out after %s", kind, e.callTimeout)
		}
		return false, callCtx.Err()
	}
}

// Enforce runs the full pipeline tail for one message: execute, log, record
// and publish. It is what the message handler calls.
func (e *Executor) Enforce(ctx context.Context, msg domain.Message, v Verdict) Outcome {
	t := Target{
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		Username:  msg.Username,
		MessageID: msg.ID,
	}
	out := e.Execute(ctx, v, t)
	if !v.Violation {
		return out
	}

	enforcementCount.WithLabelValues(string(out.Action), strconv.FormatBool(out.Success)).Inc()
	attrs := []any{
		"channel", msg.Channel,
		"user", msg.Username,
		"action", out.Action,
		"pattern", v.MatchedPattern,
		"reason", out.Reason,
	}
	if out.Duration > 0 {
		attrs = append(attrs, "duration", out.Duration)
	}
	if out.Success {
		e.log.Info("moderation action executed", attrs...)
	} else {
		e.log.Warn("moderation action failed", append(attrs, "err", out.Error)...)
	}

	e.record(ctx, msg, out)

	if e.publisher != nil {
		e.publisher.Publish(TopicModerationAction, ActionEvent{
			Channel:   msg.Channel,
			ChannelID: msg.ChannelID,
			UserID:    msg.UserID,
			Username:  msg.Username,
			Verdict:   v,
			Outcome:   out,
			Timestamp: e.now().UTC(),
		})
	}
	return out
}

func (e *Executor) record(ctx context.Context, msg domain.Message, out Outcome) {
	if e.repo == nil {
		return
	}
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.callTimeout)
	defer cancel()
	rec := &domain.ModerationRecord{
		Platform:  msg.Platform,
		ChannelID: msg.ChannelID,
		UserID:    msg.UserID,
		Username:  msg.Username,
		MessageID: msg.ID,
		Action:    string(out.Action),
		Duration:  out.Duration,
		Reason:    out.Reason,
		Success:   out.Success,
		Error:     out.Error,
		CreatedAt: e.now().UTC(),
	}
	if err := e.repo.RecordModerationAction(recCtx, rec); err != nil {
		e.log.Warn("record moderation action failed", "err", err)
	}
}
