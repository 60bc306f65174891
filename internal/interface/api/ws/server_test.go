package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modBot/internal/app/events"
	"modBot/internal/domain"
	"modBot/internal/usecase/commands"
)

type memModLog struct {
	records []*domain.ModerationRecord
	limit   int
}

func (m *memModLog) RecordModerationAction(_ context.Context, rec *domain.ModerationRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func (m *memModLog) ListModerationActions(_ context.Context, limit int) ([]*domain.ModerationRecord, error) {
	m.limit = limit
	return m.records, nil
}

type memUsers struct {
	tiers map[string]int
}

func (m *memUsers) PermissionTier(_ context.Context, userID string) (int, error) {
	return m.tiers[userID], nil
}

func (m *memUsers) SetPermissionTier(_ context.Context, userID string, tier int) error {
	m.tiers[userID] = tier
	return nil
}

type testServer struct {
	http     *httptest.Server
	bus      *events.Bus
	tracker  *commands.CooldownTracker
	registry *commands.Registry
	modLog   *memModLog
	users    *memUsers
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		bus:      events.NewBus(),
		tracker:  commands.NewCooldownTracker(),
		registry: commands.NewRegistry(nil),
		modLog:   &memModLog{},
		users:    &memUsers{tiers: map[string]int{}},
	}
	ts.registry.Register(&commands.Definition{
		Name:     "ping",
		Aliases:  []string{"p"},
		Cooldown: commands.CooldownPolicy{User: 5},
		Execute:  func(context.Context, *commands.Context) (string, error) { return "", nil },
	})

	srv := NewServer(Config{
		Bus:           ts.bus,
		Registry:      ts.registry,
		Cooldowns:     ts.tracker,
		ModerationLog: ts.modLog,
		Users:         ts.users,
	})
	ctx, cancel := context.WithCancel(context.Background())
	ts.http = httptest.NewServer(srv.Handler(ctx))
	t.Cleanup(func() {
		cancel()
		ts.http.Close()
		ts.bus.Close()
	})
	return ts
}

func TestListCommands(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.http.URL + "/api/commands")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var body struct {
		Commands []commands.CommandDescriptor `json:"commands"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Commands, 1)
	assert.Equal(t, "ping", body.Commands[0].Name)
	assert.Equal(t, []string{"p"}, body.Commands[0].Aliases)
	assert.Equal(t, 5, body.Commands[0].Cooldown.User)
}

func TestClearCooldown(t *testing.T) {
	ts := newTestServer(t)
	def, _ := ts.registry.Resolve("ping")
	ts.tracker.SetCooldown(def, "u1", "forsen")

	req, _ := http.NewRequest(http.MethodDelete, ts.http.URL+"/api/cooldowns/p?user=u1", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, ts.tracker.IsOnCooldown(def, "u1", "forsen"))

	req, _ = http.NewRequest(http.MethodDelete, ts.http.URL+"/api/cooldowns/nope", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMutatingRoutesGetNoCORS(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, ts.http.URL+"/api/cooldowns/ping", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest(http.MethodDelete, ts.http.URL+"/api/cooldowns/ping", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	req, _ = http.NewRequest(http.MethodOptions, ts.http.URL+"/api/commands", nil)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestDefaultAddrIsLoopback(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", Config{}.addr())
	assert.Equal(t, ":9000", Config{Addr: ":9000"}.addr())
}

func TestPermissionRoutes(t *testing.T) {
	ts := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPut, ts.http.URL+"/api/users/u42/permission", strings.NewReader(`{"permission": 2}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, ts.users.tiers["u42"])

	resp, err = http.Get(ts.http.URL + "/api/users/u42/permission")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body struct {
		UserID     string `json:"user_id"`
		Permission int    `json:"permission"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "u42", body.UserID)
	assert.Equal(t, 2, body.Permission)

	for _, raw := range []string{`{}`, `{"permission": -1}`, `nope`} {
		req, _ := http.NewRequest(http.MethodPut, ts.http.URL+"/api/users/u42/permission", strings.NewReader(raw))
		bad, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		bad.Body.Close()
		assert.Equal(t, http.StatusBadRequest, bad.StatusCode, raw)
	}
	assert.Equal(t, 2, ts.users.tiers["u42"])
}

func TestModerationActions(t *testing.T) {
	ts := newTestServer(t)
	ts.modLog.records = []*domain.ModerationRecord{{ID: 7, Action: "ban", Success: true}}

	resp, err := http.Get(ts.http.URL + "/api/moderation/actions?limit=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 10, ts.modLog.limit)

	var body struct {
		Actions []domain.ModerationRecord `json:"actions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Actions, 1)
	assert.Equal(t, int64(7), body.Actions[0].ID)

	bad, err := http.Get(ts.http.URL + "/api/moderation/actions?limit=abc")
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t)

	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var env struct {
		Topic   string          `json:"topic"`
		Payload json.RawMessage `json:"payload"`
	}
	// subscriptions are set up asynchronously after the upgrade
	deadline := time.Now().Add(2 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	go func() {
		for time.Now().Before(deadline) {
			ts.bus.Publish(events.TopicAppError, map[string]string{"error": "boom"})
			time.Sleep(20 * time.Millisecond)
		}
	}()

	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, events.TopicAppError, env.Topic)
	assert.JSONEq(t, `{"error":"boom"}`, string(env.Payload))
}
