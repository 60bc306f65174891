package domain

import (
	"context"
	"time"
)

type ModerationRecord struct {
	ID        int64     `json:"id"`
	Platform  Platform  `json:"platform"`
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	MessageID string    `json:"message_id,omitempty"`
	Action    string    `json:"action"`
	Duration  int       `json:"duration,omitempty"`
	Reason    string    `json:"reason"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ModerationLogRepository interface {
	RecordModerationAction(ctx context.Context, rec *ModerationRecord) error
	ListModerationActions(ctx context.Context, limit int) ([]*ModerationRecord, error)
}
