package commands

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

type cooldownEntry struct {
	until time.Time
	// holder != 0 mientras una invocación en curso tiene reservado el scope.
	holder uint64
	heldAt time.Time
}

func (e cooldownEntry) staleHold(now time.Time, maxHold time.Duration) bool {
	return e.holder != 0 && now.Sub(e.heldAt) >= maxHold
}

func (e cooldownEntry) active(now time.Time) bool {
	return e.holder != 0 || now.Before(e.until)
}

type commandCooldowns struct {
	mu      sync.Mutex
	global  cooldownEntry
	channel map[string]cooldownEntry
	user    map[string]cooldownEntry
}

func newCommandCooldowns() *commandCooldowns {
	return &commandCooldowns{
		channel: make(map[string]cooldownEntry),
		user:    make(map[string]cooldownEntry),
	}
}

// CooldownTracker keeps ephemeral, in-memory expiry stamps for every command at
// three independent scopes: global, per channel and per user.
type CooldownTracker struct {
	states  *xsync.MapOf[string, *commandCooldowns]
	now     func() time.Time
	maxHold time.Duration
	seq     atomic.Uint64
}

// DefaultMaxHold is how long a reservation may stay open before Prune
// reclaims it.
const DefaultMaxHold = 2 * time.Minute

type TrackerOption func(*CooldownTracker)

func WithClock(now func() time.Time) TrackerOption {
	return func(t *CooldownTracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithMaxHold sets the age after which Prune drops an open reservation.
func WithMaxHold(d time.Duration) TrackerOption {
	return func(t *CooldownTracker) {
		if d > 0 {
			t.maxHold = d
		}
	}
}

func NewCooldownTracker(opts ...TrackerOption) *CooldownTracker {
	t := &CooldownTracker{
		states:  xsync.NewMapOf[string, *commandCooldowns](),
		now:     time.Now,
		maxHold: DefaultMaxHold,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *CooldownTracker) state(name string) *commandCooldowns {
	st, _ := t.states.LoadOrCompute(normalizeCommandName(name), newCommandCooldowns)
	return st
}

// IsOnCooldown reports whether any scope configured on def is still running.
func (t *CooldownTracker) IsOnCooldown(def *Definition, userID, channel string) bool {
	if def == nil || def.Cooldown.IsZero() {
		return false
	}
	st, ok := t.states.Load(normalizeCommandName(def.Name))
	if !ok {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.blockedLocked(def.Cooldown, userID, channel, t.now())
}

// SetCooldown stamps now+duration on each configured scope.
func (t *CooldownTracker) SetCooldown(def *Definition, userID, channel string) {
	if def == nil || def.Cooldown.IsZero() {
		return
	}
	st := t.state(def.Name)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.stampLocked(def.Cooldown, userID, channel, t.now(), 0)
}

// ClearCooldown always clears the global scope; the channel and user scopes
// are only cleared for the keys that are given.
func (t *CooldownTracker) ClearCooldown(name, userID, channel string) {
	st, ok := t.states.Load(normalizeCommandName(name))
	if !ok {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.global = cooldownEntry{}
	if channel != "" {
		delete(st.channel, channelKey(channel))
	}
	if userID != "" {
		delete(st.user, userID)
	}
}

// Reservation holds the cooldown scopes of one in-flight invocation.
type Reservation struct {
	tracker *CooldownTracker
	st      *commandCooldowns
	policy  CooldownPolicy
	userID  string
	channel string
	token   uint64
	prev    reservedScopes
	done    bool
}

type reservedScopes struct {
	global  cooldownEntry
	channel cooldownEntry
	user    cooldownEntry
}

// Reserve checks every configured scope and, when all are free, marks them as
// held in the same critical section. Concurrent invocations that arrive
// before Commit or Release see the command as on cooldown.
//
// The hold lasts for the whole command body; on a global scope that blocks the
// command for everyone. A hold older than the tracker's max hold is reclaimed
// by Prune, after which Commit and Release of that reservation are no-ops.
func (t *CooldownTracker) Reserve(def *Definition, userID, channel string) (*Reservation, bool) {
	if def == nil {
		return nil, false
	}
	if def.Cooldown.IsZero() {
		return &Reservation{done: true}, true
	}

	st := t.state(def.Name)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := t.now()
	if st.blockedLocked(def.Cooldown, userID, channel, now) {
		return nil, false
	}

	r := &Reservation{
		tracker: t,
		st:      st,
		policy:  def.Cooldown,
		userID:  userID,
		channel: channelKey(channel),
		token:   t.seq.Add(1),
	}
	if r.policy.Global > 0 {
		r.prev.global = st.global
		st.global = cooldownEntry{until: st.global.until, holder: r.token, heldAt: now}
	}
	if r.policy.Channel > 0 {
		r.prev.channel = st.channel[r.channel]
		st.channel[r.channel] = cooldownEntry{until: r.prev.channel.until, holder: r.token, heldAt: now}
	}
	if r.policy.User > 0 {
		r.prev.user = st.user[userID]
		st.user[userID] = cooldownEntry{until: r.prev.user.until, holder: r.token, heldAt: now}
	}
	return r, true
}

// Commit stamps now+duration on the reserved scopes.
func (r *Reservation) Commit() {
	if r == nil || r.done {
		return
	}
	r.done = true
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.stampLocked(r.policy, r.userID, r.channel, r.tracker.now(), r.token)
}

// Release gives the scopes back untouched, so a failed invocation does not
// consume its cooldown. Scopes cleared or restamped meanwhile are left alone.
func (r *Reservation) Release() {
	if r == nil || r.done {
		return
	}
	r.done = true
	st := r.st
	st.mu.Lock()
	defer st.mu.Unlock()
	if r.policy.Global > 0 && st.global.holder == r.token {
		st.global = r.prev.global
	}
	if r.policy.Channel > 0 {
		if cur, ok := st.channel[r.channel]; ok && cur.holder == r.token {
			restore(st.channel, r.channel, r.prev.channel)
		}
	}
	if r.policy.User > 0 {
		if cur, ok := st.user[r.userID]; ok && cur.holder == r.token {
			restore(st.user, r.userID, r.prev.user)
		}
	}
}

func restore(m map[string]cooldownEntry, key string, prev cooldownEntry) {
	if prev == (cooldownEntry{}) {
		delete(m, key)
		return
	}
	m[key] = prev
}

// Prune reclaims reservations held longer than the max hold and drops
// expired entries that no invocation holds. It returns how many entries it
// touched.
func (t *CooldownTracker) Prune() int {
	now := t.now()
	removed := 0
	t.states.Range(func(_ string, st *commandCooldowns) bool {
		st.mu.Lock()
		if st.global.staleHold(now, t.maxHold) {
			st.global = cooldownEntry{until: st.global.until}
			removed++
		}
		removed += pruneScope(st.channel, now, t.maxHold)
		removed += pruneScope(st.user, now, t.maxHold)
		st.mu.Unlock()
		return true
	})
	return removed
}

func pruneScope(m map[string]cooldownEntry, now time.Time, maxHold time.Duration) int {
	n := 0
	for k, e := range m {
		stale := e.staleHold(now, maxHold)
		if stale {
			e = cooldownEntry{until: e.until}
		}
		switch {
		case !e.active(now):
			delete(m, k)
		case stale:
			m[k] = e
		default:
			continue
		}
		n++
	}
	return n
}

func (st *commandCooldowns) blockedLocked(p CooldownPolicy, userID, channel string, now time.Time) bool {
	if p.Global > 0 && st.global.active(now) {
		return true
	}
	if p.Channel > 0 {
		if e, ok := st.channel[channelKey(channel)]; ok && e.active(now) {
			return true
		}
	}
	if p.User > 0 {
		if e, ok := st.user[userID]; ok && e.active(now) {
			return true
		}
	}
	return false
}

// stampLocked sets now+duration. With token != 0 only scopes still held by
// that token are stamped.
func (st *commandCooldowns) stampLocked(p CooldownPolicy, userID, channel string, now time.Time, token uint64) {
	channel = channelKey(channel)
	if p.Global > 0 && (token == 0 || st.global.holder == token) {
		st.global = cooldownEntry{until: now.Add(seconds(p.Global))}
	}
	if p.Channel > 0 && (token == 0 || st.channel[channel].holder == token) {
		st.channel[channel] = cooldownEntry{until: now.Add(seconds(p.Channel))}
	}
	if p.User > 0 && (token == 0 || st.user[userID].holder == token) {
		st.user[userID] = cooldownEntry{until: now.Add(seconds(p.User))}
	}
}

func channelKey(channel string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(channel), "#"))
}
