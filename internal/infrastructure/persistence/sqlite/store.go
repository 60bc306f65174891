package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"modBot/internal/domain"
)

const (
	defaultActionLimit = 50
	maxActionLimit     = 500
)

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite: empty db path")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: creating dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	const usersTable = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	permission INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL
);`

	if _, err := db.Exec(usersTable); err != nil {
		return fmt.Errorf("sqlite: migrate users: %w", err)
	}

	const channelsTable = `
CREATE TABLE IF NOT EXISTS channels (
	name TEXT PRIMARY KEY,
	id TEXT,
	created_at TIMESTAMP NOT NULL
);`

	if _, err := db.Exec(channelsTable); err != nil {
		return fmt.Errorf("sqlite: migrate channels: %w", err)
	}

	const actionsTable = `
CREATE TABLE IF NOT EXISTS moderation_actions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	platform TEXT,
	channel_id TEXT,
	user_id TEXT,
	username TEXT,
	message_id TEXT,
	action TEXT NOT NULL,
	duration INTEGER,
	reason TEXT,
	success INTEGER NOT NULL,
	error TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_moderation_actions_created_at ON moderation_actions(created_at DESC);`

	if _, err := db.Exec(actionsTable); err != nil {
		return fmt.Errorf("sqlite: migrate moderation_actions: %w", err)
	}

	const credentialsTable = `
CREATE TABLE IF NOT EXISTS credentials (
	platform TEXT NOT NULL,
	role TEXT NOT NULL,
	access_token TEXT NOT NULL,
	refresh_token TEXT,
	expires_at TIMESTAMP,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (platform, role)
);`

	if _, err := db.Exec(credentialsTable); err != nil {
		return fmt.Errorf("sqlite: migrate credentials: %w", err)
	}

	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ----- Users -----

// PermissionTier devuelve 0 para usuarios sin registro.
func (s *Store) PermissionTier(ctx context.Context, userID string) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT permission FROM users WHERE id = ? LIMIT 1;`, userID)

	var tier int
	if err := row.Scan(&tier); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("sqlite: get permission: %w", err)
	}
	return tier, nil
}

func (s *Store) SetPermissionTier(ctx context.Context, userID string, tier int) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("sqlite: empty user id")
	}

	const stmt = `
INSERT INTO users (id, permission, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	permission=excluded.permission,
	updated_at=excluded.updated_at;
`

	if _, err := s.db.ExecContext(ctx, stmt, userID, tier, time.Now().UTC()); err != nil {
		return fmt.Errorf("sqlite: set permission: %w", err)
	}
	return nil
}

// ----- Channels -----

func (s *Store) GetChannel(ctx context.Context, name string) (*domain.Channel, error) {
	const query = `
SELECT name, id, created_at
FROM channels
WHERE name = ?
LIMIT 1;
`

	row := s.db.QueryRowContext(ctx, query, normalizeChannel(name))

	var ch domain.Channel
	var id sql.NullString
	var createdAt sql.NullTime
	if err := row.Scan(&ch.Name, &id, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: get channel: %w", err)
	}
	ch.ID = id.String
	ch.CreatedAt = createdAt.Time
	return &ch, nil
}

func (s *Store) ListChannels(ctx context.Context) ([]*domain.Channel, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, id, created_at FROM channels ORDER BY name;`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list channels: %w", err)
	}
	defer rows.Close()

	var out []*domain.Channel
	for rows.Next() {
		var ch domain.Channel
		var id sql.NullString
		var createdAt sql.NullTime
		if err := rows.Scan(&ch.Name, &id, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan channel: %w", err)
		}
		ch.ID = id.String
		ch.CreatedAt = createdAt.Time
		out = append(out, &ch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list channel rows: %w", err)
	}
	return out, nil
}

// UpsertChannel no pisa created_at de un canal existente.
func (s *Store) UpsertChannel(ctx context.Context, ch *domain.Channel) error {
	if ch == nil {
		return fmt.Errorf("sqlite: channel nil")
	}
	name := normalizeChannel(ch.Name)
	if name == "" {
		return fmt.Errorf("sqlite: empty channel name")
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}

	const stmt = `
INSERT INTO channels (name, id, created_at)
VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	id=COALESCE(NULLIF(excluded.id, ''), channels.id);
`

	if _, err := s.db.ExecContext(ctx, stmt, name, ch.ID, ch.CreatedAt); err != nil {
		return fmt.Errorf("sqlite: upsert channel: %w", err)
	}
	return nil
}

func (s *Store) DeleteChannel(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE name = ?`, normalizeChannel(name)); err != nil {
		return fmt.Errorf("sqlite: delete channel: %w", err)
	}
	return nil
}

// ----- Moderation log -----

func (s *Store) RecordModerationAction(ctx context.Context, rec *domain.ModerationRecord) error {
	if rec == nil {
		return fmt.Errorf("sqlite: moderation record nil")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	const stmt = `
INSERT INTO moderation_actions (platform, channel_id, user_id, username, message_id, action, duration, reason, success, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`

	res, err := s.db.ExecContext(
		ctx,
		stmt,
		string(rec.Platform),
		rec.ChannelID,
		rec.UserID,
		rec.Username,
		nullString(rec.MessageID),
		rec.Action,
		rec.Duration,
		rec.Reason,
		rec.Success,
		nullString(rec.Error),
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert moderation action: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

func (s *Store) ListModerationActions(ctx context.Context, limit int) ([]*domain.ModerationRecord, error) {
	switch {
	case limit <= 0:
		limit = defaultActionLimit
	case limit > maxActionLimit:
		limit = maxActionLimit
	}

	const query = `
SELECT id, platform, channel_id, user_id, username, message_id, action, duration, reason, success, error, created_at
FROM moderation_actions
ORDER BY created_at DESC, id DESC
LIMIT ?;
`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list moderation actions: %w", err)
	}
	defer rows.Close()

	var out []*domain.ModerationRecord
	for rows.Next() {
		var rec domain.ModerationRecord
		var platform, channelID, userID, username, messageID, reason, errText sql.NullString
		var duration sql.NullInt64
		var createdAt sql.NullTime
		if err := rows.Scan(&rec.ID, &platform, &channelID, &userID, &username, &messageID, &rec.Action, &duration, &reason, &rec.Success, &errText, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan moderation action: %w", err)
		}
		rec.Platform = domain.Platform(platform.String)
		rec.ChannelID = channelID.String
		rec.UserID = userID.String
		rec.Username = username.String
		rec.MessageID = messageID.String
		rec.Duration = int(duration.Int64)
		rec.Reason = reason.String
		rec.Error = errText.String
		rec.CreatedAt = createdAt.Time
		out = append(out, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list moderation action rows: %w", err)
	}
	return out, nil
}

// ----- Credentials -----

func (s *Store) GetCredential(ctx context.Context, platform domain.Platform, role string) (*domain.Credential, error) {
	const query = `
SELECT access_token, refresh_token, expires_at, updated_at
FROM credentials
WHERE platform = ? AND role = ?
LIMIT 1;
`

	row := s.db.QueryRowContext(ctx, query, string(platform), role)

	var accessToken, refreshToken sql.NullString
	var expiresAt, updatedAt sql.NullTime

	if err := row.Scan(&accessToken, &refreshToken, &expiresAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("sqlite: get credential: %w", err)
	}

	return &domain.Credential{
		Platform:     platform,
		Role:         role,
		AccessToken:  accessToken.String,
		RefreshToken: refreshToken.String,
		ExpiresAt:    expiresAt.Time,
		UpdatedAt:    updatedAt.Time,
	}, nil
}

func (s *Store) SaveCredential(ctx context.Context, cred *domain.Credential) error {
	if cred == nil {
		return fmt.Errorf("sqlite: credential nil")
	}
	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = time.Now().UTC()
	}

	const stmt = `
INSERT INTO credentials (platform, role, access_token, refresh_token, expires_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(platform, role) DO UPDATE SET
	access_token=excluded.access_token,
	refresh_token=excluded.refresh_token,
	expires_at=excluded.expires_at,
	updated_at=excluded.updated_at;
`

	var expires interface{}
	if !cred.ExpiresAt.IsZero() {
		expires = cred.ExpiresAt.UTC()
	}

	_, err := s.db.ExecContext(ctx, stmt,
		string(cred.Platform),
		cred.Role,
		cred.AccessToken,
		nullString(cred.RefreshToken),
		expires,
		cred.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save credential: %w", err)
	}
	return nil
}

func (s *Store) ListCredentials(ctx context.Context) ([]*domain.Credential, error) {
	const query = `
SELECT platform, role, access_token, refresh_token, expires_at, updated_at
FROM credentials;
`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list credentials: %w", err)
	}
	defer rows.Close()

	var out []*domain.Credential
	for rows.Next() {
		var platform, role, accessToken string
		var refreshToken sql.NullString
		var expiresAt, updatedAt sql.NullTime
		if err := rows.Scan(&platform, &role, &accessToken, &refreshToken, &expiresAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan credential: %w", err)
		}
		out = append(out, &domain.Credential{
			Platform:     domain.Platform(platform),
			Role:         role,
			AccessToken:  accessToken,
			RefreshToken: refreshToken.String,
			ExpiresAt:    expiresAt.Time,
			UpdatedAt:    updatedAt.Time,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list credential rows: %w", err)
	}
	return out, nil
}

func nullString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

func normalizeChannel(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "#"))
}

var (
	_ domain.UserRepository          = (*Store)(nil)
	_ domain.ChannelRepository       = (*Store)(nil)
	_ domain.ModerationLogRepository = (*Store)(nil)
	_ domain.CredentialRepository    = (*Store)(nil)
)
