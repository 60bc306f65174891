package twitchinfra

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nicklaw5/helix/v2"

	"modBot/internal/domain"
)

type Config struct {
	ClientID    string
	AccessToken string
	// ModeratorID es el ID de usuario del bot, que actúa como moderador.
	ModeratorID string
	Timeout     time.Duration
	Logger      *slog.Logger
	// APIBaseURL vacío usa la URL de Helix por defecto.
	APIBaseURL string
}

// ModerationService implementa domain.ModerationAPI y domain.UserDirectory sobre Helix.
type ModerationService struct {
	client      *helix.Client
	moderatorID string
	log         *slog.Logger
}

func NewModerationService(cfg Config) (*ModerationService, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("helix: empty client id")
	}
	if strings.TrimSpace(cfg.ModeratorID) == "" {
		return nil, fmt.Errorf("helix: empty moderator id")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := helix.NewClient(&helix.Options{
		ClientID:        cfg.ClientID,
		UserAccessToken: strings.TrimPrefix(cfg.AccessToken, "oauth:"),
		HTTPClient:      &http.Client{Timeout: cfg.Timeout},
		APIBaseURL:      cfg.APIBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("helix: NewClient: %w", err)
	}

	return &ModerationService{
		client:      client,
		moderatorID: cfg.ModeratorID,
		log:         cfg.Logger.With("component", "twitch.helix"),
	}, nil
}

func (s *ModerationService) Ban(ctx context.Context, channelID, userID, reason string) (bool, error) {
	return s.ban(ctx, channelID, userID, 0, reason)
}

func (s *ModerationService) Timeout(ctx context.Context, channelID, userID string, seconds int, reason string) (bool, error) {
	if seconds <= 0 {
		return false, fmt.Errorf("helix: invalid timeout duration %d", seconds)
	}
	return s.ban(ctx, channelID, userID, seconds, reason)
}

// Un ban con duración es un timeout en Helix.
func (s *ModerationService) ban(ctx context.Context, channelID, userID string, seconds int, reason string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	resp, err := s.client.BanUser(&helix.BanUserParams{
		BroadcasterID: channelID,
		ModeratorId:   s.moderatorID,
		Body: helix.BanUserRequestBody{
			Duration: seconds,
			Reason:   reason,
			UserId:   userID,
		},
	})
	if err != nil {
		return false, fmt.Errorf("helix: BanUser: %w", err)
	}

	s.log.Debug("ban response", "broadcaster_id", channelID, "user_id", userID, "duration", seconds, "status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		s.log.Warn("helix: BanUser rejected", "status", resp.StatusCode, "error", resp.Error, "message", resp.ErrorMessage)
		return false, nil
	}
	return true, nil
}

func (s *ModerationService) DeleteMessage(ctx context.Context, channelID, messageID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	resp, err := s.client.DeleteChatMessage(&helix.DeleteChatMessageParams{
		BroadcasterID: channelID,
		ModeratorID:   s.moderatorID,
		MessageID:     messageID,
	})
	if err != nil {
		return false, fmt.Errorf("helix: DeleteChatMessage: %w", err)
	}

	// El endpoint devuelve 204 No Content en éxito.
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		s.log.Warn("helix: DeleteChatMessage rejected", "status", resp.StatusCode, "error", resp.Error, "message", resp.ErrorMessage)
		return false, nil
	}
	return true, nil
}

// LookupUser devuelve nil, nil cuando el login no existe.
func (s *ModerationService) LookupUser(ctx context.Context, login string) (*domain.TwitchUser, error) {
	login = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(login), "#"))
	if login == "" {
		return nil, fmt.Errorf("helix: empty login")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := s.client.GetUsers(&helix.UsersParams{
		Logins: []string{login},
	})
	if err != nil {
		return nil, fmt.Errorf("helix: GetUsers: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("helix: GetUsers failed (%d: %s) %s",
			resp.StatusCode, resp.Error, resp.ErrorMessage)
	}

	if len(resp.Data.Users) == 0 {
		return nil, nil
	}

	u := resp.Data.Users[0]
	return &domain.TwitchUser{
		ID:          u.ID,
		Login:       u.Login,
		DisplayName: u.DisplayName,
	}, nil
}

func (s *ModerationService) UpdateAccessToken(token string) {
	if s == nil || s.client == nil {
		return
	}
	token = strings.TrimSpace(strings.TrimPrefix(token, "oauth:"))
	if token == "" {
		return
	}
	// helix.Client sincroniza el token internamente.
	s.client.SetUserAccessToken(token)
}

var (
	_ domain.ModerationAPI = (*ModerationService)(nil)
	_ domain.UserDirectory = (*ModerationService)(nil)
)
