package credentials

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modBot/internal/domain"
)

type memRepo struct {
	mu    sync.Mutex
	creds map[string]*domain.Credential
}

func newMemRepo() *memRepo {
	return &memRepo{creds: make(map[string]*domain.Credential)}
}

func (m *memRepo) key(p domain.Platform, role string) string {
	return string(p) + "/" + role
}

func (m *memRepo) GetCredential(_ context.Context, p domain.Platform, role string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[m.key(p, role)]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) SaveCredential(_ context.Context, c *domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.creds[m.key(c.Platform, c.Role)] = &cp
	return nil
}

func (m *memRepo) ListCredentials(context.Context) ([]*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Credential
	for _, c := range m.creds {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	r := NewRefresher(repo, TwitchConfig{}, nil)

	cred, err := r.Seed(ctx, "", "")
	require.NoError(t, err)
	assert.Nil(t, cred)

	cred, err = r.Seed(ctx, "oauth:first", "")
	require.NoError(t, err)
	assert.Equal(t, "first", cred.AccessToken)

	cred, err = r.Seed(ctx, "second", "refresh")
	require.NoError(t, err)
	assert.Equal(t, "first", cred.AccessToken, "a stored token wins over the configured one")
	assert.Equal(t, "refresh", cred.RefreshToken)
}

func TestRefreshAll(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client", r.PostForm.Get("client_id"))
		_, _ = w.Write([]byte(`{"access_token":"new-access","refresh_token":"new-refresh","expires_in":14400}`))
	}))
	defer srv.Close()

	repo := newMemRepo()
	require.NoError(t, repo.SaveCredential(ctx, &domain.Credential{
		Platform:     domain.PlatformTwitch,
		Role:         domain.CredentialRoleBot,
		AccessToken:  "old-access",
		RefreshToken: "old-refresh",
	}))

	r := NewRefresher(repo, TwitchConfig{ClientID: "client", ClientSecret: "secret", TokenURL: srv.URL}, nil)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	var hooked []string
	r.RegisterHook(func(_ context.Context, cred *domain.Credential) {
		hooked = append(hooked, cred.AccessToken)
	})

	require.NoError(t, r.RefreshAll(ctx))

	stored, err := repo.GetCredential(ctx, domain.PlatformTwitch, domain.CredentialRoleBot)
	require.NoError(t, err)
	assert.Equal(t, "new-access", stored.AccessToken)
	assert.Equal(t, "new-refresh", stored.RefreshToken)
	assert.Equal(t, now.Add(4*time.Hour), stored.ExpiresAt)
	assert.Equal(t, []string{"new-access"}, hooked)

	// still valid: no second request
	require.NoError(t, r.RefreshAll(ctx))
	assert.Len(t, hooked, 1)
}

func TestRefreshAllRejected(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Invalid refresh token"}`))
	}))
	defer srv.Close()

	repo := newMemRepo()
	require.NoError(t, repo.SaveCredential(ctx, &domain.Credential{
		Platform:     domain.PlatformTwitch,
		Role:         domain.CredentialRoleBot,
		AccessToken:  "old-access",
		RefreshToken: "bad",
	}))
	r := NewRefresher(repo, TwitchConfig{ClientID: "client", ClientSecret: "secret", TokenURL: srv.URL}, nil)

	err := r.RefreshAll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")

	stored, _ := repo.GetCredential(ctx, domain.PlatformTwitch, domain.CredentialRoleBot)
	assert.Equal(t, "old-access", stored.AccessToken)
}

func TestRefreshAllWithoutSecret(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	require.NoError(t, repo.SaveCredential(ctx, &domain.Credential{
		Platform:     domain.PlatformTwitch,
		Role:         domain.CredentialRoleBot,
		AccessToken:  "a",
		RefreshToken: "r",
	}))
	r := NewRefresher(repo, TwitchConfig{ClientID: "client"}, nil)
	assert.Error(t, r.RefreshAll(ctx))
}
