package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/Apurer/dogwalk-api/internal/shared/auth"
)

var (
	ErrTokenIDRequired = errors.New("token id is required")
	ErrUserIDRequired  = errors.New("user id is required")
	ErrInvalidTTL      = errors.New("token ttl must be positive")
)

// Session is one issued token. Signing out deletes every session of the user, which
// revokes their tokens even before they expire.
type Session struct {
	TokenID   string
	UserID    string
	Role      auth.Role
	ExpiresAt time.Time
	CreatedAt time.Time
}

// NewSession validates a session issued at now for ttl.
func NewSession(tokenID, userID string, role auth.Role, now time.Time, ttl time.Duration) (*Session, error) {
	tokenID = strings.TrimSpace(tokenID)
	userID = strings.TrimSpace(userID)
	switch {
	case tokenID == "":
		return nil, ErrTokenIDRequired
	case userID == "":
		return nil, ErrUserIDRequired
	case ttl <= 0:
		return nil, ErrInvalidTTL
	}
	if _, err := auth.ParseRole(string(role)); err != nil {
		return nil, err
	}
	return &Session{
		TokenID:   tokenID,
		UserID:    userID,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}, nil
}

// Expired reports whether the session has lapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Caller is the identity the session authenticates.
func (s *Session) Caller() auth.Caller {
	return auth.Caller{UserID: s.UserID, Role: s.Role}
}
