// Package store is the persistence gateway: one repository per collection,
// backed either by MongoDB or by an in-memory document map.
package store

import (
	"context"
	"fmt"

	"mahatour/apperr"
	"mahatour/models"

	"github.com/google/uuid"
)

// Filter is a top-level equality filter. Keys are BSON field names.
type Filter map[string]any

// Fields is a partial update applied with $set semantics.
type Fields map[string]any

var (
	ErrNotFound  = apperr.New(apperr.KindNotFound, "document not found")
	ErrDuplicate = apperr.New(apperr.KindConflict, "document already exists")
	// ErrStale is returned by UpdateIf when the document no longer matches.
	ErrStale = apperr.New(apperr.KindConflict, "document was changed by another request")
)

// Repo is the CRUD surface for one collection. No operation spans more than
// one document, and none is transactional across repos.
type Repo[T any] interface {
	Get(ctx context.Context, id string) (*T, error)
	FindOne(ctx context.Context, filter Filter) (*T, error)
	List(ctx context.Context, filter Filter) ([]T, error)
	// Create assigns a fresh id to doc and inserts it.
	Create(ctx context.Context, doc *T) error
	Update(ctx context.Context, id string, fields Fields) error
	// UpdateIf applies fields only while the document still matches cond.
	UpdateIf(ctx context.Context, id string, cond Filter, fields Fields) error
	Delete(ctx context.Context, id string) error
	DeleteWhere(ctx context.Context, filter Filter) (int64, error)
}

type Store struct {
	Users       Repo[models.User]
	Guides      Repo[models.GuideProfile]
	Places      Repo[models.Place]
	Itineraries Repo[models.Itinerary]
	Bookings    Repo[models.Booking]
	Connections Repo[models.Connection]
	SavedPlaces Repo[models.SavedPlace]

	ping func(ctx context.Context) error
}

// Ping reports whether the backing store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

func assignID[T any](doc *T) (string, error) {
	d, ok := any(doc).(models.Document)
	if !ok {
		return "", fmt.Errorf("%T does not implement models.Document", doc)
	}
	d.SetID(uuid.NewString())
	return d.GetID(), nil
}
