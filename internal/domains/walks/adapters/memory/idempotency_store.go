package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Apurer/dogwalk-api/internal/domains/walks/ports"
)

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

type recordKey struct {
	owner string
	key   string
}

// IdempotencyStore keeps walk request keys in process memory.
type IdempotencyStore struct {
	mu        sync.Mutex
	records   map[recordKey]ports.IdempotencyRecord
	retention time.Duration
	lease     time.Duration
	now       func() time.Time
}

// NewIdempotencyStore returns an empty store with the default retention and reservation lease.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		records:   map[recordKey]ports.IdempotencyRecord{},
		retention: ports.DefaultIdempotencyRetention,
		lease:     ports.DefaultReservationLease,
		now:       time.Now,
	}
}

// WithClock overrides the time source.
func (s *IdempotencyStore) WithClock(now func() time.Time) *IdempotencyStore {
	if now != nil {
		s.now = now
	}
	return s
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

func (s *IdempotencyStore) Get(_ context.Context, ownerID, key string) (*ports.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[recordKey{ownerID, key}]
	if !ok || record.Expired(s.now()) {
		return nil, nil
	}
	return &record, nil
}

func (s *IdempotencyStore) Reserve(_ context.Context, record ports.IdempotencyRecord) (*ports.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	k := recordKey{record.OwnerID, record.Key}
	if existing, ok := s.records[k]; ok && !existing.Expired(now) {
		return &existing, nil
	}
	record.WalkID = ""
	record.CreatedAt = now
	record.ExpiresAt = now.Add(s.lease)
	s.records[k] = record
	return nil, nil
}

func (s *IdempotencyStore) Complete(_ context.Context, ownerID, key, walkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	k := recordKey{ownerID, key}
	record, ok := s.records[k]
	if !ok || record.Expired(now) || !record.Pending() {
		return ports.ErrIdempotencyConflict
	}
	record.WalkID = walkID
	record.ExpiresAt = now.Add(s.retention)
	s.records[k] = record
	return nil
}

func (s *IdempotencyStore) Release(_ context.Context, ownerID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := recordKey{ownerID, key}
	if record, ok := s.records[k]; ok && record.Pending() {
		delete(s.records, k)
	}
	return nil
}

func (s *IdempotencyStore) PurgeExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var purged int64
	for k, record := range s.records {
		if record.Expired(now) {
			delete(s.records, k)
			purged++
		}
	}
	return purged, nil
}
