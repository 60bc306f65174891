package domain

import (
	"context"
	"time"
)

// CredentialRoleBot identifica el token del bot, que también modera.
const CredentialRoleBot = "bot"

type Credential struct {
	Platform     Platform
	Role         string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UpdatedAt    time.Time
}

type CredentialRepository interface {
	GetCredential(ctx context.Context, platform Platform, role string) (*Credential, error)
	SaveCredential(ctx context.Context, cred *Credential) error
	ListCredentials(ctx context.Context) ([]*Credential, error)
}
