// Package ivr consulta la API pública de api.ivr.fi para el comando user.
package ivr

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"modBot/internal/usecase/commands"
)

const (
	DefaultBaseURL = "https://api.ivr.fi"
	defaultTimeout = 2500 * time.Millisecond
)

type Client struct {
	baseURL string
	timeout time.Duration
	http    *retryablehttp.Client
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 1
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 500 * time.Millisecond
	rc.HTTPClient.Timeout = timeout
	rc.Logger = logger.With("component", "ivr")

	return &Client{baseURL: baseURL, timeout: timeout, http: rc}
}

type userResponse struct {
	ID            string  `json:"id"`
	Login         string  `json:"login"`
	DisplayName   string  `json:"displayName"`
	Bio           *string `json:"bio"`
	Banned        bool    `json:"banned"`
	BanReason     string  `json:"banReason"`
	VerifiedBot   *bool   `json:"verifiedBot"`
	ChatterCount  int     `json:"chatterCount"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
	Stream        any     `json:"stream"`
	LastBroadcast struct {
		StartedAt *string `json:"startedAt"`
	} `json:"lastBroadcast"`
	Roles struct {
		IsAffiliate bool  `json:"isAffiliate"`
		IsPartner   bool  `json:"isPartner"`
		IsStaff     *bool `json:"isStaff"`
	} `json:"roles"`
}

// UserProfile busca login en ivr.fi. El timeout cubre la llamada completa,
// reintento incluido.
func (c *Client) UserProfile(ctx context.Context, login string) (*commands.UserProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/v2/twitch/user?login=" + url.QueryEscape(login)
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("ivr: new request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ivr: get user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, commands.ErrUserNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ivr: get user: unexpected status %d", resp.StatusCode)
	}

	var users []userResponse
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("ivr: decode user: %w", err)
	}
	if len(users) == 0 {
		return nil, commands.ErrUserNotFound
	}

	return toProfile(users[0]), nil
}

func toProfile(u userResponse) *commands.UserProfile {
	p := &commands.UserProfile{
		ID:           u.ID,
		Login:        u.Login,
		DisplayName:  u.DisplayName,
		Banned:       u.Banned,
		BanReason:    u.BanReason,
		IsPartner:    u.Roles.IsPartner,
		IsAffiliate:  u.Roles.IsAffiliate,
		ChatterCount: u.ChatterCount,
		Live:         u.Stream != nil,
		CreatedAt:    parseTime(u.CreatedAt),
		UpdatedAt:    parseTime(u.UpdatedAt),
	}
	if u.Bio != nil {
		p.Bio = *u.Bio
	}
	if u.Roles.IsStaff != nil {
		p.IsStaff = *u.Roles.IsStaff
	}
	if u.VerifiedBot != nil {
		p.IsVerifiedBot = *u.VerifiedBot
	}
	if u.LastBroadcast.StartedAt != nil {
		p.LastBroadcastAt = parseTime(*u.LastBroadcast.StartedAt)
	}
	return p
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
