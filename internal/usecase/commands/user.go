package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

var ErrUserNotFound = errors.New("user not found")

type UserProfile struct {
	ID              string
	Login           string
	DisplayName     string
	Bio             string
	Banned          bool
	BanReason       string
	IsPartner       bool
	IsAffiliate     bool
	IsStaff         bool
	IsVerifiedBot   bool
	ChatterCount    int
	Live            bool
	LastBroadcastAt time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type UserProfileProvider interface {
	UserProfile(ctx context.Context, login string) (*UserProfile, error)
}

var banReasons = map[string]string{
	"TOS_INDEFINITE": "Indefinite TOS Ban",
	"TOS_TEMPORARY":  "Temporary TOS Ban",
	"DMCA":           "DMCA Violation",
}

func NewUserCommand(provider UserProfileProvider, logger *slog.Logger, now func() time.Time) *Definition {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	log := logger.With("component", "commands.user")

	return &Definition{
		Name:        "user",
		Aliases:     []string{"u"},
		Description: "Shows detailed information about a Twitch user.",
		Usage:       "!user <username>",
		Cooldown:    CooldownPolicy{User: 3},
		Reply:       true,
		Execute: func(ctx context.Context, c *Context) (string, error) {
			login := strings.ToLower(strings.TrimPrefix(c.Arg(0), "@"))
			if login == "" {
				return "❌ Please provide a username! Usage: !user <username>", nil
			}

			profile, err := provider.UserProfile(ctx, login)
			if errors.Is(err, ErrUserNotFound) || (err == nil && profile == nil) {
				return fmt.Sprintf("❌ User %q not found!", login), nil
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return "❌ Request timed out. Please try again later.", nil
			}
			if err != nil {
				log.Error("fetch user profile failed", "login", login, "err", err)
				return "❌ An error occurred while fetching user data. Please try again later.", nil
			}

			return formatUserProfile(profile, now()), nil
		},
	}
}

func formatUserProfile(p *UserProfile, now time.Time) string {
	var roles []string
	if p.IsPartner {
		roles = append(roles, "Partner")
	}
	if p.IsAffiliate {
		roles = append(roles, "Affiliate")
	}
	if p.IsStaff {
		roles = append(roles, "Staff")
	}
	if p.IsVerifiedBot {
		roles = append(roles, "Verified Bot")
	}
	rolesText := "None"
	if len(roles) > 0 {
		rolesText = strings.Join(roles, ", ")
	}

	status := "✅"
	banInfo := ""
	if p.Banned {
		status = "⛔"
		if p.BanReason != "" {
			reason, ok := banReasons[p.BanReason]
			if !ok {
				reason = p.BanReason
			}
			banInfo = " (" + reason + ")"
		}
	}

	streamInfo := ""
	if p.Live {
		streamInfo = " 🔴 LIVE"
	} else if !p.LastBroadcastAt.IsZero() {
		streamInfo = " ● Last live: " + humanize.RelTime(p.LastBroadcastAt, now, "ago", "from now")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s @%s%s%s ● ID: %s ● Roles: %s ● Chatters: %d",
		status, p.DisplayName, banInfo, streamInfo, p.ID, rolesText, p.ChatterCount)
	if p.Bio != "" {
		b.WriteString(" ● Bio: " + p.Bio)
	}
	if !p.CreatedAt.IsZero() {
		b.WriteString(" ● Created: " + humanize.RelTime(p.CreatedAt, now, "ago", "from now"))
	}
	if !p.UpdatedAt.IsZero() {
		b.WriteString(" ● Last Updated: " + humanize.RelTime(p.UpdatedAt, now, "ago", "from now"))
	}
	return b.String()
}
