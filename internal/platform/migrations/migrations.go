package migrations

import (
	"time"

	"gorm.io/gorm"
)

// Run applies the schema for the document store and the bounded contexts.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&documentRecord{},
		&idempotencyRecord{},
		&sessionRecord{},
	)
}

// Document schema mirrors the docstore Postgres backend.
type documentRecord struct {
	Collection string         `gorm:"primaryKey;column:collection;size:512"`
	ID         string         `gorm:"primaryKey;column:id;size:64"`
	Fields     map[string]any `gorm:"column:fields;type:jsonb;serializer:json;index:idx_documents_fields,type:gin"`
	CreatedAt  time.Time      `gorm:"column:created_at;index"`
	UpdatedAt  time.Time      `gorm:"column:updated_at"`
}

func (documentRecord) TableName() string { return "documents" }

// Idempotency schema mirrors the walks idempotency store.
type idempotencyRecord struct {
	OwnerID     string    `gorm:"primaryKey;column:owner_id;size:255"`
	Key         string    `gorm:"primaryKey;column:key;size:255"`
	RequestHash string    `gorm:"column:request_hash;size:128;not null"`
	WalkID      string    `gorm:"column:walk_id;size:64;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at;not null;index"`
}

func (idempotencyRecord) TableName() string { return "walk_idempotency_keys" }

// Session schema mirrors the identity session store.
type sessionRecord struct {
	TokenID   string    `gorm:"primaryKey;column:token_id;size:64"`
	UserID    string    `gorm:"column:user_id;size:255;not null;index"`
	Role      string    `gorm:"column:role;size:32;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (sessionRecord) TableName() string { return "identity_sessions" }
