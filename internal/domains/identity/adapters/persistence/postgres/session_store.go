package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/dogwalk-api/internal/domains/identity/domain"
	"github.com/Apurer/dogwalk-api/internal/domains/identity/ports"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
)

// SessionStore persists identity sessions in PostgreSQL.
type SessionStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSessionStore wires a PostgreSQL-backed session store. Caller owns DB lifecycle.
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db, now: time.Now}
}

// sessionRecord is the identity_sessions row.
type sessionRecord struct {
	TokenID   string    `gorm:"primaryKey;column:token_id;size:64"`
	UserID    string    `gorm:"column:user_id;size:255;not null;index"`
	Role      string    `gorm:"column:role;size:32;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (sessionRecord) TableName() string { return "identity_sessions" }

// Save upserts a session keyed by token ID.
func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	if session == nil || strings.TrimSpace(session.TokenID) == "" || strings.TrimSpace(session.UserID) == "" {
		return errors.New("token id and user id are required")
	}
	rec := sessionRecord{
		TokenID:   session.TokenID,
		UserID:    session.UserID,
		Role:      string(session.Role),
		ExpiresAt: session.ExpiresAt,
		CreatedAt: session.CreatedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "token_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id", "role", "expires_at", "updated_at"}),
		}).
		Create(&rec).Error
}

// Get loads a session by token ID.
func (s *SessionStore) Get(ctx context.Context, tokenID string) (*domain.Session, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var rec sessionRecord
	err := s.db.WithContext(ctx).First(&rec, "token_id = ?", strings.TrimSpace(tokenID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ports.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.Session{
		TokenID:   rec.TokenID,
		UserID:    rec.UserID,
		Role:      auth.Role(rec.Role),
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// DeleteByUser removes every session of a user.
func (s *SessionStore) DeleteByUser(ctx context.Context, userID string) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}
	return s.db.WithContext(ctx).Delete(&sessionRecord{}, "user_id = ?", userID).Error
}

// PurgeExpired removes all expired sessions. Use for housekeeping or cron.
func (s *SessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	if err := s.ensureDB(); err != nil {
		return 0, err
	}
	result := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&sessionRecord{})
	return result.RowsAffected, result.Error
}

func (s *SessionStore) ensureDB() error {
	if s == nil || s.db == nil {
		return errors.New("postgres session store not configured")
	}
	return nil
}

var _ ports.SessionStore = (*SessionStore)(nil)
