package ports

import (
	"context"
	"time"

	"github.com/Apurer/dogwalk-api/internal/shared/auth"
)

// Token is a signed bearer token.
type Token struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

// Service resolves bearer tokens to callers.
type Service interface {
	IssueToken(ctx context.Context, userID string, role auth.Role, ttl time.Duration) (*Token, error)
	Authenticate(ctx context.Context, bearer string) (auth.Caller, error)
	SignOut(ctx context.Context, caller auth.Caller) error
}
