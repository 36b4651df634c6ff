package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Apurer/dogwalk-api/internal/domains/identity/domain"
	"github.com/Apurer/dogwalk-api/internal/domains/identity/ports"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
)

// DefaultTokenTTL applies when IssueToken receives a non-positive ttl.
const DefaultTokenTTL = 24 * time.Hour

// DefaultIssuer is the iss claim of issued tokens.
const DefaultIssuer = "dogwalk-api"

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and verifies HS256 bearer tokens backed by revocable sessions.
type Service struct {
	secret     []byte
	sessions   ports.SessionStore
	issuer     string
	defaultTTL time.Duration
	now        func() time.Time
}

// Option customizes the service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDefaultTTL sets the lifetime used when IssueToken gets none.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithIssuer overrides the iss claim.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		if strings.TrimSpace(issuer) != "" {
			s.issuer = strings.TrimSpace(issuer)
		}
	}
}

// NewService wires the identity service.
func NewService(secret []byte, sessions ports.SessionStore, opts ...Option) (*Service, error) {
	if len(secret) == 0 {
		return nil, ErrSigningKeyRequired
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}
	s := &Service{
		secret:     append([]byte(nil), secret...),
		sessions:   sessions,
		issuer:     DefaultIssuer,
		defaultTTL: DefaultTokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// IssueToken signs a token for userID and records its session.
func (s *Service) IssueToken(ctx context.Context, userID string, role auth.Role, ttl time.Duration) (*ports.Token, error) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.now().UTC().Truncate(time.Second)
	session, err := domain.NewSession(uuid.NewString(), userID, role, now, ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	claims := tokenClaims{
		Role: string(session.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.TokenID,
			Subject:   session.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return &ports.Token{Value: signed, ID: session.TokenID, ExpiresAt: session.ExpiresAt}, nil
}

// Authenticate verifies the token signature, expiry and session. Every failure is ErrNotAuthenticated
// except a store outage, which is returned as is.
func (s *Service) Authenticate(ctx context.Context, bearer string) (auth.Caller, error) {
	raw := strings.TrimSpace(bearer)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if raw == "" {
		return auth.Caller{}, auth.ErrNotAuthenticated
	}
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return auth.Caller{}, fmt.Errorf("%w: %w", auth.ErrNotAuthenticated, err)
	}
	role, err := auth.ParseRole(claims.Role)
	if err != nil || claims.Subject == "" || claims.ID == "" {
		return auth.Caller{}, auth.ErrNotAuthenticated
	}

	session, err := s.sessions.Get(ctx, claims.ID)
	if errors.Is(err, ports.ErrSessionNotFound) {
		return auth.Caller{}, fmt.Errorf("%w: session revoked", auth.ErrNotAuthenticated)
	}
	if err != nil {
		return auth.Caller{}, err
	}
	if session.UserID != claims.Subject || session.Role != role || session.Expired(s.now()) {
		return auth.Caller{}, auth.ErrNotAuthenticated
	}
	return session.Caller(), nil
}

// SignOut revokes every session of the caller.
func (s *Service) SignOut(ctx context.Context, caller auth.Caller) error {
	if err := caller.Require(); err != nil {
		return err
	}
	return s.sessions.DeleteByUser(ctx, caller.UserID)
}

var _ ports.Service = (*Service)(nil)
