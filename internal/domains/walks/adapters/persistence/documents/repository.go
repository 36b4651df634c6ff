// Package documents stores walks in the shared document store.
package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/Apurer/dogwalk-api/internal/domains/walks/domain"
	"github.com/Apurer/dogwalk-api/internal/domains/walks/ports"
	"github.com/Apurer/dogwalk-api/internal/platform/docstore"
	"github.com/Apurer/dogwalk-api/internal/shared/projection"
)

// Collection is the collection path walks live in.
const Collection = "walks"

const (
	fieldOwnerID   = "ownerId"
	fieldWalkerID  = "walkerId"
	fieldPetNames  = "petNames"
	fieldStatus    = "status"
	fieldEndCode   = "endCode"
	fieldTotalCost = "totalCost"
	fieldLatitude  = "latitude"
	fieldLongitude = "longitude"
)

var _ ports.Repository = (*Repository)(nil)

// Repository maps walks onto documents. Every transition runs inside a store transaction.
type Repository struct {
	store docstore.Store
}

// NewRepository wires the repository over a document store.
func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// Create adds a new walk document and assigns the generated ID to walk.
func (r *Repository) Create(ctx context.Context, walk *domain.Walk) (*projection.Projection[*domain.Walk], error) {
	if walk == nil {
		return nil, errors.New("walk is required")
	}
	id, err := r.store.Add(ctx, Collection, encode(walk))
	if err != nil {
		return nil, translate(err)
	}
	walk.ID = id
	stored, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return projection.New(walk, stored.Metadata.CreatedAt, stored.Metadata.UpdatedAt), nil
}

// GetByID loads a walk.
func (r *Repository) GetByID(ctx context.Context, id string) (*projection.Projection[*domain.Walk], error) {
	doc, err := r.store.Get(ctx, docstore.Join(Collection, id))
	if err != nil {
		return nil, translate(err)
	}
	return decode(doc)
}

// Update applies mutate to the current walk and writes the changed lifecycle fields atomically.
// The returned walk carries the events mutate recorded.
func (r *Repository) Update(ctx context.Context, id string, mutate ports.MutateFunc) (*projection.Projection[*domain.Walk], error) {
	var updated *domain.Walk
	doc, err := r.store.RunTransaction(ctx, docstore.Join(Collection, id), func(current *docstore.Document) (docstore.Fields, error) {
		p, err := decode(current)
		if err != nil {
			return nil, err
		}
		if err := mutate(p.Entity); err != nil {
			return nil, err
		}
		updated = p.Entity
		return docstore.Fields{
			fieldWalkerID: updated.WalkerID,
			fieldStatus:   string(updated.Status),
		}, nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return projection.New(updated, doc.CreateTime, doc.UpdateTime), nil
}

// ListByStatus returns walks in a status, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, status domain.Status) ([]*projection.Projection[*domain.Walk], error) {
	return r.list(ctx, byStatus(status))
}

// ListByOwner returns an owner's walks, oldest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]*projection.Projection[*domain.Walk], error) {
	return r.list(ctx, byOwner(ownerID))
}

// WatchByID streams the state of one walk.
func (r *Repository) WatchByID(ctx context.Context, id string, listener ports.WalkListener) (ports.Subscription, error) {
	sub, err := r.store.SubscribeDocument(ctx, docstore.Join(Collection, id), func(doc *docstore.Document, err error) {
		if err != nil {
			listener(nil, translate(err))
			return
		}
		if doc == nil {
			listener(nil, nil)
			return
		}
		listener(decode(doc))
	})
	if err != nil {
		return nil, translate(err)
	}
	return sub, nil
}

// WatchByStatus streams the walks in a status.
func (r *Repository) WatchByStatus(ctx context.Context, status domain.Status, listener ports.WalkListListener) (ports.Subscription, error) {
	return r.watch(ctx, byStatus(status), listener)
}

// WatchByOwner streams an owner's walks.
func (r *Repository) WatchByOwner(ctx context.Context, ownerID string, listener ports.WalkListListener) (ports.Subscription, error) {
	return r.watch(ctx, byOwner(ownerID), listener)
}

func (r *Repository) list(ctx context.Context, q docstore.Query) ([]*projection.Projection[*domain.Walk], error) {
	snapshot, err := r.store.Query(ctx, q)
	if err != nil {
		return nil, translate(err)
	}
	return decodeAll(snapshot.Documents)
}

func (r *Repository) watch(ctx context.Context, q docstore.Query, listener ports.WalkListListener) (ports.Subscription, error) {
	sub, err := r.store.SubscribeQuery(ctx, q, func(snapshot docstore.Snapshot, err error) {
		if err != nil {
			listener(nil, translate(err))
			return
		}
		listener(decodeAll(snapshot.Documents))
	})
	if err != nil {
		return nil, translate(err)
	}
	return sub, nil
}

func byStatus(status domain.Status) docstore.Query {
	return docstore.NewQuery(Collection).Where(fieldStatus, string(status))
}

func byOwner(ownerID string) docstore.Query {
	return docstore.NewQuery(Collection).Where(fieldOwnerID, ownerID)
}

func encode(w *domain.Walk) docstore.Fields {
	return docstore.Fields{
		fieldOwnerID:   w.OwnerID,
		fieldWalkerID:  w.WalkerID,
		fieldPetNames:  append([]string{}, w.PetNames...),
		fieldStatus:    string(w.Status),
		fieldEndCode:   w.EndCode,
		fieldTotalCost: w.TotalCost,
		fieldLatitude:  w.Pickup.Latitude,
		fieldLongitude: w.Pickup.Longitude,
	}
}

func decode(doc *docstore.Document) (*projection.Projection[*domain.Walk], error) {
	f := doc.Fields
	walk, err := domain.Restore(domain.Walk{
		ID:        doc.ID,
		OwnerID:   f.String(fieldOwnerID),
		WalkerID:  f.String(fieldWalkerID),
		PetNames:  f.Strings(fieldPetNames),
		Status:    domain.Status(f.String(fieldStatus)),
		EndCode:   f.String(fieldEndCode),
		TotalCost: f.Float(fieldTotalCost),
		Pickup: domain.Location{
			Latitude:  f.Float(fieldLatitude),
			Longitude: f.Float(fieldLongitude),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("decode walk %s: %w", doc.ID, err)
	}
	return projection.New(walk, doc.CreateTime, doc.UpdateTime), nil
}

func decodeAll(docs []*docstore.Document) ([]*projection.Projection[*domain.Walk], error) {
	out := make([]*projection.Projection[*domain.Walk], 0, len(docs))
	for _, doc := range docs {
		p, err := decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, docstore.ErrNotFound):
		return ports.ErrNotFound
	case errors.Is(err, docstore.ErrInvalidPath):
		return fmt.Errorf("%w: %w", ports.ErrNotFound, err)
	case errors.Is(err, docstore.ErrUnavailable):
		return fmt.Errorf("%w: %w", ports.ErrUnavailable, err)
	default:
		return err
	}
}
