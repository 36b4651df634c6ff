package ports

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrIdempotencyConflict indicates the same key was used with a different payload.
	ErrIdempotencyConflict = errors.New("idempotency conflict")
	// ErrIdempotencyInProgress indicates another request holding the same key has not finished.
	ErrIdempotencyInProgress = errors.New("request with this idempotency key still in progress")
)

const (
	// DefaultIdempotencyRetention is how long a walk request key replays its walk.
	DefaultIdempotencyRetention = 24 * time.Hour
	// DefaultReservationLease is how long a reserved key without a walk blocks other requests.
	DefaultReservationLease = 30 * time.Second
)

// IdempotencyRecord ties an owner's request key to the walk the request created. Keys are
// scoped per owner. An empty WalkID marks a reservation whose walk is still being created.
type IdempotencyRecord struct {
	OwnerID     string
	Key         string
	RequestHash string
	WalkID      string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Pending reports whether the record is a reservation without a walk yet.
func (r IdempotencyRecord) Pending() bool {
	return r.WalkID == ""
}

// Expired reports whether the record no longer replays at now.
func (r IdempotencyRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// IdempotencyStore persists walk request keys so retried requests replay the same walk.
type IdempotencyStore interface {
	// Get returns the live record for the owner's key, or nil when unknown or expired.
	Get(ctx context.Context, ownerID, key string) (*IdempotencyRecord, error)
	// Reserve claims the owner's key for a request that has not created its walk yet. It
	// returns nil when the caller now holds the key, otherwise the live record that holds it.
	// Reservations expire after the store's lease; expired records are replaced.
	Reserve(ctx context.Context, record IdempotencyRecord) (*IdempotencyRecord, error)
	// Complete attaches the created walk to a reservation and starts its retention period.
	// ErrIdempotencyConflict means the reservation was lost.
	Complete(ctx context.Context, ownerID, key, walkID string) error
	// Release drops a reservation whose walk was never created.
	Release(ctx context.Context, ownerID, key string) error
	// PurgeExpired drops expired records and reports how many went.
	PurgeExpired(ctx context.Context) (int64, error)
}
