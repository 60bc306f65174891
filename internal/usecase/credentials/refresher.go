// Package credentials mantiene vigente el token de usuario que usa la API de moderación.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"modBot/internal/domain"
)

const (
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"
	refreshMargin   = 10 * time.Minute
)

type TwitchConfig struct {
	ClientID     string
	ClientSecret string
	// TokenURL se puede sobreescribir en tests.
	TokenURL string
}

type CredentialHook func(ctx context.Context, cred *domain.Credential)

type Refresher struct {
	repo      domain.CredentialRepository
	twitchCfg TwitchConfig
	httpCli   *retryablehttp.Client
	log       *slog.Logger
	now       func() time.Time

	hooksMu sync.RWMutex
	hooks   []CredentialHook
}

func NewRefresher(repo domain.CredentialRepository, twitchCfg TwitchConfig, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	if twitchCfg.TokenURL == "" {
		twitchCfg.TokenURL = DefaultTokenURL
	}
	httpCli := retryablehttp.NewClient()
	httpCli.RetryMax = 2
	httpCli.HTTPClient.Timeout = 15 * time.Second
	httpCli.Logger = logger.With("component", "credentials.http")

	return &Refresher{
		repo:      repo,
		twitchCfg: twitchCfg,
		httpCli:   httpCli,
		log:       logger.With("component", "credentials"),
		now:       time.Now,
	}
}

func (r *Refresher) RegisterHook(h CredentialHook) {
	if h == nil {
		return
	}
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	r.hooks = append(r.hooks, h)
}

func (r *Refresher) notifyHooks(ctx context.Context, cred *domain.Credential) {
	if cred == nil {
		return
	}
	r.hooksMu.RLock()
	hooks := append([]CredentialHook(nil), r.hooks...)
	r.hooksMu.RUnlock()
	for _, h := range hooks {
		h(ctx, cred)
	}
}

// Seed guarda el token inicial de la configuración si todavía no hay uno persistido.
// Un token ya guardado gana porque puede haber sido renovado en una ejecución anterior.
func (r *Refresher) Seed(ctx context.Context, accessToken, refreshToken string) (*domain.Credential, error) {
	existing, err := r.repo.GetCredential(ctx, domain.PlatformTwitch, domain.CredentialRoleBot)
	if err != nil {
		return nil, fmt.Errorf("refresher: get credential: %w", err)
	}
	if existing != nil && existing.AccessToken != "" {
		if existing.RefreshToken == "" && refreshToken != "" {
			existing.RefreshToken = refreshToken
			if err := r.repo.SaveCredential(ctx, existing); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}
	if accessToken == "" {
		return nil, nil
	}

	cred := &domain.Credential{
		Platform:     domain.PlatformTwitch,
		Role:         domain.CredentialRoleBot,
		AccessToken:  strings.TrimPrefix(accessToken, "oauth:"),
		RefreshToken: refreshToken,
		UpdatedAt:    r.now().UTC(),
	}
	if err := r.repo.SaveCredential(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

func (r *Refresher) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.RefreshAll(ctx); err != nil {
					r.log.Warn("token refresh failed", "err", err)
				}
			}
		}
	}()
}

func (r *Refresher) RefreshAll(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}

	creds, err := r.repo.ListCredentials(ctx)
	if err != nil {
		return fmt.Errorf("refresher: list credentials: %w", err)
	}

	for _, cred := range creds {
		if err := ctx.Err(); err != nil {
			return err
		}
		if cred == nil || cred.RefreshToken == "" || cred.Platform != domain.PlatformTwitch {
			continue
		}
		if !r.needsRefresh(cred) {
			continue
		}
		if err := r.refreshTwitch(ctx, cred); err != nil {
			return err
		}
	}

	return nil
}

func (r *Refresher) needsRefresh(cred *domain.Credential) bool {
	if cred.ExpiresAt.IsZero() {
		return true
	}
	return cred.ExpiresAt.Sub(r.now()) < refreshMargin
}

func (r *Refresher) refreshTwitch(ctx context.Context, cred *domain.Credential) error {
	if r.twitchCfg.ClientID == "" || r.twitchCfg.ClientSecret == "" {
		return fmt.Errorf("refresher: twitch config incompleta")
	}

	data := url.Values{}
	data.Set("client_id", r.twitchCfg.ClientID)
	data.Set("client_secret", r.twitchCfg.ClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", cred.RefreshToken)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, r.twitchCfg.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return fmt.Errorf("refresher: twitch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpCli.Do(req)
	if err != nil {
		return fmt.Errorf("refresher: twitch http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("refresher: twitch read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refresher: twitch status %d: %s", resp.StatusCode, string(body))
	}

	var payload twitchTokenPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("refresher: twitch decode: %w", err)
	}
	if payload.AccessToken == "" {
		return fmt.Errorf("refresher: twitch returned an empty access token")
	}

	now := r.now()
	cred.AccessToken = payload.AccessToken
	if payload.RefreshToken != "" {
		cred.RefreshToken = payload.RefreshToken
	}
	cred.ExpiresAt = now.Add(time.Duration(payload.ExpiresIn) * time.Second)
	cred.UpdatedAt = now

	if err := r.repo.SaveCredential(ctx, cred); err != nil {
		return err
	}
	r.log.Info("twitch token refreshed", "role", cred.Role, "expires_at", cred.ExpiresAt)
	r.notifyHooks(ctx, cred)
	return nil
}

type twitchTokenPayload struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}
