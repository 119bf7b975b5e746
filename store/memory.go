package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"mahatour/apperr"
	"mahatour/db"
	"mahatour/models"

	"go.mongodb.org/mongo-driver/bson"
)

// NewMemory returns a gateway that keeps documents in process memory. Documents
// are stored in their BSON form, so field names, omitempty and equality
// filters behave as they do against MongoDB.
func NewMemory() *Store {
	return &Store{
		Users:       newMemoryRepo[models.User](db.UsersCollection, "username", "email"),
		Guides:      newMemoryRepo[models.GuideProfile](db.GuideProfilesCollection, "userId"),
		Places:      newMemoryRepo[models.Place](db.PlacesCollection),
		Itineraries: newMemoryRepo[models.Itinerary](db.ItinerariesCollection),
		Bookings:    newMemoryRepo[models.Booking](db.BookingsCollection),
		Connections: newMemoryRepo[models.Connection](db.ConnectionsCollection),
		SavedPlaces: newMemoryRepo[models.SavedPlace](db.SavedPlacesCollection),
	}
}

type memoryRepo[T any] struct {
	mu     sync.RWMutex
	name   string
	unique []string
	docs   map[string]bson.M
	order  []string
}

func newMemoryRepo[T any](name string, unique ...string) *memoryRepo[T] {
	return &memoryRepo[T]{
		name:   name,
		unique: unique,
		docs:   make(map[string]bson.M),
	}
}

func (r *memoryRepo[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Storage(r.name+".find", err)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	raw, ok := r.docs[id]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", r.name, id, ErrNotFound)
	}
	return r.decode(raw)
}

func (r *memoryRepo[T]) FindOne(ctx context.Context, filter Filter) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Storage(r.name+".find", err)
	}
	want, err := normalize(map[string]any(filter))
	if err != nil {
		return nil, apperr.Validation("invalid filter")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if raw := r.docs[id]; matches(raw, want) {
			return r.decode(raw)
		}
	}
	return nil, fmt.Errorf("%s: %w", r.name, ErrNotFound)
}

func (r *memoryRepo[T]) List(ctx context.Context, filter Filter) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperr.Storage(r.name+".list", err)
	}
	want, err := normalize(map[string]any(filter))
	if err != nil {
		return nil, apperr.Validation("invalid filter")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []T{}
	for _, id := range r.order {
		raw := r.docs[id]
		if !matches(raw, want) {
			continue
		}
		doc, err := r.decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, nil
}

func (r *memoryRepo[T]) Create(ctx context.Context, doc *T) error {
	if err := ctx.Err(); err != nil {
		return apperr.Storage(r.name+".create", err)
	}
	id, err := assignID(doc)
	if err != nil {
		return err
	}
	raw, err := normalize(doc)
	if err != nil {
		return apperr.Storage(r.name+".create", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkUnique(id, raw); err != nil {
		return err
	}
	r.docs[id] = raw
	r.order = append(r.order, id)
	return nil
}

func (r *memoryRepo[T]) Update(ctx context.Context, id string, fields Fields) error {
	return r.update(ctx, id, nil, fields)
}

func (r *memoryRepo[T]) UpdateIf(ctx context.Context, id string, cond Filter, fields Fields) error {
	return r.update(ctx, id, cond, fields)
}

func (r *memoryRepo[T]) update(ctx context.Context, id string, cond Filter, fields Fields) error {
	if err := ctx.Err(); err != nil {
		return apperr.Storage(r.name+".update", err)
	}
	want, err := normalize(map[string]any(cond))
	if err != nil {
		return apperr.Validation("invalid filter")
	}
	set, err := normalize(map[string]any(fields))
	if err != nil {
		return apperr.Validation("invalid update")
	}
	delete(set, "_id")
	if len(set) == 0 {
		return apperr.Validation("nothing to update")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.docs[id]
	if !ok {
		return fmt.Errorf("%s %s: %w", r.name, id, ErrNotFound)
	}
	if !matches(current, want) {
		return fmt.Errorf("%s %s: %w", r.name, id, ErrStale)
	}
	next := make(bson.M, len(current)+len(set))
	for k, v := range current {
		next[k] = v
	}
	for k, v := range set {
		next[k] = v
	}
	if _, err := r.decode(next); err != nil {
		return apperr.Validation("update does not fit the " + r.name + " schema")
	}
	if err := r.checkUnique(id, next); err != nil {
		return err
	}
	r.docs[id] = next
	return nil
}

func (r *memoryRepo[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return apperr.Storage(r.name+".delete", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return fmt.Errorf("%s %s: %w", r.name, id, ErrNotFound)
	}
	r.remove(id)
	return nil
}

func (r *memoryRepo[T]) DeleteWhere(ctx context.Context, filter Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, apperr.Storage(r.name+".deleteMany", err)
	}
	if len(filter) == 0 {
		return 0, apperr.Validation("refusing to delete with an empty filter")
	}
	want, err := normalize(map[string]any(filter))
	if err != nil {
		return 0, apperr.Validation("invalid filter")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var victims []string
	for _, id := range r.order {
		if matches(r.docs[id], want) {
			victims = append(victims, id)
		}
	}
	for _, id := range victims {
		r.remove(id)
	}
	return int64(len(victims)), nil
}

// remove must be called with the write lock held.
func (r *memoryRepo[T]) remove(id string) {
	delete(r.docs, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *memoryRepo[T]) checkUnique(id string, raw bson.M) error {
	for _, field := range r.unique {
		v, ok := raw[field]
		if !ok {
			continue
		}
		for otherID, other := range r.docs {
			if otherID != id && reflect.DeepEqual(other[field], v) {
				return fmt.Errorf("%s.%s: %w", r.name, field, ErrDuplicate)
			}
		}
	}
	return nil
}

func (r *memoryRepo[T]) decode(raw bson.M) (*T, error) {
	data, err := bson.Marshal(raw)
	if err != nil {
		return nil, apperr.Storage(r.name+".decode", err)
	}
	var doc T
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, apperr.Storage(r.name+".decode", err)
	}
	return &doc, nil
}

// normalize round-trips v through BSON so stored documents and filter values
// share one representation.
func normalize(v any) (bson.M, error) {
	if m, ok := v.(map[string]any); ok && m == nil {
		return bson.M{}, nil
	}
	data, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := bson.M{}
	if err := bson.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func matches(doc, want bson.M) bool {
	for k, v := range want {
		got, ok := doc[k]
		if !ok || !reflect.DeepEqual(got, v) {
			return false
		}
	}
	return true
}
