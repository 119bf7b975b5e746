package enrich

import (
	"context"

	"mahatour/models"
	"mahatour/store"
)

// Persister writes the enrichment fields of a place back to storage.
type Persister interface {
	Persist(ctx context.Context, p models.Place) error
}

// StorePersister persists through the places repository.
type StorePersister struct {
	Places store.Repo[models.Place]
}

func (sp StorePersister) Persist(ctx context.Context, p models.Place) error {
	return sp.Places.Update(ctx, p.ID, Fields(p))
}

// Fields is the partial update that stores p's enrichment. The Wikimedia
// block is written as one sub-document.
func Fields(p models.Place) store.Fields {
	f := store.Fields{"wikimedia": p.Wikimedia}
	if p.ImageURL != "" {
		f["imageUrl"] = p.ImageURL
	}
	return f
}
