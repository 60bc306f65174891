package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TwitchClientID     string
	TwitchClientSecret string
	TwitchAccessToken  string
	TwitchRefreshToken string
	TwitchUsername     string
	TwitchBotUserID    string
	TwitchChannels     []string

	CommandPrefix string
	BotName       string
	DatabasePath  string
	RulesPath     string
	HTTPAddr      string
	APITimeout    time.Duration
	// ChatRateLimit son los mensajes permitidos cada 30 segundos.
	ChatRateLimit int

	LogLevel  string
	LogFormat string
}

const (
	defaultPrefix     = "!"
	defaultDBPath     = "data/modbot.db"
	defaultHTTPAddr   = "127.0.0.1:8080"
	defaultAPITimeout = 5 * time.Second

	defaultChatRateLimit = 20
)

// Load lee el .env (si existe) y luego las variables de entorno.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && len(envFiles) > 0 {
		return nil, fmt.Errorf("config: load env file: %w", err)
	}

	cfg := &Config{
		TwitchClientID:     os.Getenv("TWITCH_CLIENT_ID"),
		TwitchClientSecret: os.Getenv("TWITCH_CLIENT_SECRET"),
		TwitchAccessToken:  os.Getenv("TWITCH_ACCESS_TOKEN"),
		TwitchRefreshToken: strings.TrimSpace(os.Getenv("TWITCH_REFRESH_TOKEN")),
		TwitchUsername:     strings.ToLower(strings.TrimSpace(os.Getenv("TWITCH_BOT_USERNAME"))),
		TwitchBotUserID:    strings.TrimSpace(os.Getenv("TWITCH_BOT_USER_ID")),
		TwitchChannels:     SplitChannels(os.Getenv("TWITCH_CHANNELS")),
		CommandPrefix:      envDefault("COMMAND_PREFIX", defaultPrefix),
		BotName:            strings.TrimSpace(os.Getenv("BOT_NAME")),
		DatabasePath:       envDefault("DATABASE_PATH", defaultDBPath),
		RulesPath:          strings.TrimSpace(os.Getenv("RULES_PATH")),
		HTTPAddr:           envDefault("HTTP_ADDR", defaultHTTPAddr),
		APITimeout:         defaultAPITimeout,
		ChatRateLimit:      envInt("CHAT_RATE_LIMIT", defaultChatRateLimit),
		LogLevel:           envDefault("LOG_LEVEL", "info"),
		LogFormat:          envDefault("LOG_FORMAT", "json"),
	}

	if raw := strings.TrimSpace(os.Getenv("API_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("config: invalid API_TIMEOUT %q", raw)
		}
		cfg.APITimeout = d
	}

	if cfg.BotName == "" {
		cfg.BotName = cfg.TwitchUsername
	}

	if cfg.TwitchUsername == "" || cfg.TwitchAccessToken == "" {
		slog.Warn("config: missing Twitch credentials (TWITCH_BOT_USERNAME / TWITCH_ACCESS_TOKEN)")
	}

	return cfg, nil
}

// Validate comprueba lo mínimo para conectarse al chat y moderar.
func (c *Config) Validate() error {
	var missing []string
	if c.TwitchUsername == "" {
		missing = append(missing, "TWITCH_BOT_USERNAME")
	}
	if c.TwitchAccessToken == "" {
		missing = append(missing, "TWITCH_ACCESS_TOKEN")
	}
	if c.TwitchClientID == "" {
		missing = append(missing, "TWITCH_CLIENT_ID")
	}
	if c.TwitchBotUserID == "" {
		missing = append(missing, "TWITCH_BOT_USER_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func envDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config: invalid integer", "key", key, "value", v)
		return fallback
	}
	return n
}

// SplitChannels acepta "a,b,#c" y devuelve nombres sin '#', en minúsculas y sin duplicados.
func SplitChannels(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		ch := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(part), "#"))
		if ch == "" {
			continue
		}
		if _, ok := seen[ch]; ok {
			continue
		}
		seen[ch] = struct{}{}
		out = append(out, ch)
	}
	return out
}
