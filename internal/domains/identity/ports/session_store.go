package ports

import (
	"context"
	"errors"

	"github.com/Apurer/dogwalk-api/internal/domains/identity/domain"
)

// ErrSessionNotFound is returned when a token's session was revoked or never existed.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore abstracts session persistence.
type SessionStore interface {
	Save(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, tokenID string) (*domain.Session, error)
	DeleteByUser(ctx context.Context, userID string) error
	// PurgeExpired removes lapsed sessions and reports how many were removed.
	PurgeExpired(ctx context.Context) (int64, error)
}
