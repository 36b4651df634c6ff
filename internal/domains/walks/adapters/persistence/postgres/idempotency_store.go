package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/dogwalk-api/internal/domains/walks/ports"
)

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

var errNotConfigured = errors.New("postgres idempotency store not configured")

// IdempotencyStore persists walk request keys in PostgreSQL.
type IdempotencyStore struct {
	db        *gorm.DB
	retention time.Duration
	lease     time.Duration
	now       func() time.Time
}

// NewIdempotencyStore wires a PostgreSQL-backed idempotency store. Caller owns DB lifecycle.
func NewIdempotencyStore(db *gorm.DB) *IdempotencyStore {
	return &IdempotencyStore{
		db:        db,
		retention: ports.DefaultIdempotencyRetention,
		lease:     ports.DefaultReservationLease,
		now:       time.Now,
	}
}

// WithRetention changes how long completed keys replay. Non-positive values are ignored.
func (s *IdempotencyStore) WithRetention(retention time.Duration) *IdempotencyStore {
	if retention > 0 {
		s.retention = retention
	}
	return s
}

// WithLease changes how long a reservation blocks its key. Non-positive values are ignored.
func (s *IdempotencyStore) WithLease(lease time.Duration) *IdempotencyStore {
	if lease > 0 {
		s.lease = lease
	}
	return s
}

// Get loads the live record for the owner's key.
func (s *IdempotencyStore) Get(ctx context.Context, ownerID, key string) (*ports.IdempotencyRecord, error) {
	if s == nil || s.db == nil {
		return nil, errNotConfigured
	}
	var rec keyRecord
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND key = ? AND expires_at > ?", ownerID, key, s.timestamp()).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.toPort(), nil
}

// Reserve locks the owner's key row. A missing or expired row becomes a pending reservation;
// a live row is returned to the caller.
func (s *IdempotencyStore) Reserve(ctx context.Context, record ports.IdempotencyRecord) (*ports.IdempotencyRecord, error) {
	if s == nil || s.db == nil {
		return nil, errNotConfigured
	}
	now := s.timestamp()
	pending := keyRecord{
		OwnerID:     record.OwnerID,
		Key:         record.Key,
		RequestHash: record.RequestHash,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.lease),
	}
	var holder *keyRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing keyRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("owner_id = ? AND key = ?", record.OwnerID, record.Key).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&pending).Error
		case err != nil:
			return err
		case existing.ExpiresAt.After(now):
			holder = &existing
			return nil
		default:
			return tx.Save(&pending).Error
		}
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// A concurrent request inserted the key first.
		existing, getErr := s.Get(ctx, record.OwnerID, record.Key)
		if getErr != nil || existing == nil {
			return nil, err
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}
	if holder != nil {
		return holder.toPort(), nil
	}
	return nil, nil
}

// Complete fills the walk of a live pending reservation.
func (s *IdempotencyStore) Complete(ctx context.Context, ownerID, key, walkID string) error {
	if s == nil || s.db == nil {
		return errNotConfigured
	}
	now := s.timestamp()
	res := s.db.WithContext(ctx).Model(&keyRecord{}).
		Where("owner_id = ? AND key = ? AND walk_id = '' AND expires_at > ?", ownerID, key, now).
		Updates(map[string]any{"walk_id": walkID, "expires_at": now.Add(s.retention)})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ports.ErrIdempotencyConflict
	}
	return nil
}

// Release deletes a pending reservation. Completed keys are kept.
func (s *IdempotencyStore) Release(ctx context.Context, ownerID, key string) error {
	if s == nil || s.db == nil {
		return errNotConfigured
	}
	return s.db.WithContext(ctx).
		Where("owner_id = ? AND key = ? AND walk_id = ''", ownerID, key).
		Delete(&keyRecord{}).Error
}

// PurgeExpired deletes every expired key.
func (s *IdempotencyStore) PurgeExpired(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errNotConfigured
	}
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.timestamp()).Delete(&keyRecord{})
	return res.RowsAffected, res.Error
}

func (s *IdempotencyStore) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// keyRecord is the walk_idempotency_keys row.
type keyRecord struct {
	OwnerID     string    `gorm:"primaryKey;column:owner_id;size:255"`
	Key         string    `gorm:"primaryKey;column:key;size:255"`
	RequestHash string    `gorm:"column:request_hash;size:128;not null"`
	WalkID      string    `gorm:"column:walk_id;size:64;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	ExpiresAt   time.Time `gorm:"column:expires_at;not null;index"`
}

func (keyRecord) TableName() string { return "walk_idempotency_keys" }

func (r keyRecord) toPort() *ports.IdempotencyRecord {
	return &ports.IdempotencyRecord{
		OwnerID:     r.OwnerID,
		Key:         r.Key,
		RequestHash: r.RequestHash,
		WalkID:      r.WalkID,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
	}
}
