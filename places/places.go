// Package places serves the place catalogue and its Wikimedia enrichment.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mahatour/apperr"
	"mahatour/enrich"
	"mahatour/middleware"
	"mahatour/models"
	"mahatour/ratelim"
	"mahatour/rdx"
	"mahatour/store"
	"mahatour/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

const (
	listCacheKey = "places:all"
	listCacheTTL = 10 * time.Minute
)

type Handler struct {
	places   store.Repo[models.Place]
	cache    rdx.Cache
	enricher *enrich.Service
	// batches remembers the last enrichment pass over the listing.
	batches *enrich.Cache
	// limiter, when set, bounds how often a client can trigger upstream lookups.
	limiter *ratelim.RateLimiter
	log     *zap.Logger
}

func NewHandler(places store.Repo[models.Place], cache rdx.Cache, enricher *enrich.Service, log *zap.Logger) *Handler {
	return &Handler{
		places:   places,
		cache:    cache,
		enricher: enricher,
		batches:  enrich.NewCache(),
		log:      log.Named("places"),
	}
}

// LimitEnrichment applies l to every request that reaches Wikimedia.
func (h *Handler) LimitEnrichment(l *ratelim.RateLimiter) {
	h.limiter = l
}

func (h *Handler) Routes(router *httprouter.Router, auth *middleware.Auth) {
	router.GET("/api/places", h.listing())
	router.GET("/api/places/:id", h.GetPlace)
	router.POST("/api/places", auth.Authenticate(h.CreatePlace))
	router.PATCH("/api/places/:id", auth.Authenticate(h.UpdatePlace))
	router.POST("/api/places/:id/wikimedia", auth.Authenticate(h.SaveWikimedia))
	router.POST("/api/enrichment/places", auth.Authenticate(h.limited(h.EnrichPlaces)))
}

func (h *Handler) limited(next httprouter.Handle) httprouter.Handle {
	if h.limiter == nil {
		return next
	}
	return h.limiter.Limit(next)
}

// listing only spends the enrichment budget when ?enrich is on.
func (h *Handler) listing() httprouter.Handle {
	enriched := h.limited(h.GetPlaces)
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if enrichRequested(r.URL.Query().Get("enrich")) {
			enriched(w, r, ps)
			return
		}
		h.GetPlaces(w, r, ps)
	}
}

// allPlaces reads the unfiltered listing through the shared cache. Cache
// trouble only costs a database read.
func (h *Handler) allPlaces(ctx context.Context) ([]models.Place, error) {
	if cached, err := h.cache.Get(ctx, listCacheKey); err == nil {
		var list []models.Place
		if err := json.Unmarshal([]byte(cached), &list); err == nil {
			return list, nil
		}
		h.log.Warn("discarding corrupt places cache entry")
	} else if !errors.Is(err, rdx.ErrMiss) {
		h.log.Warn("places cache read failed", zap.Error(err))
	}

	list, err := h.places.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(list); err == nil {
		if err := h.cache.Set(ctx, listCacheKey, string(data), listCacheTTL); err != nil {
			h.log.Warn("places cache write failed", zap.Error(err))
		}
	}
	return list, nil
}

// invalidate drops every derived view of the catalogue after a write.
func (h *Handler) invalidate(ctx context.Context) {
	if err := h.cache.Del(ctx, listCacheKey); err != nil {
		h.log.Warn("places cache invalidation failed", zap.Error(err))
	}
	h.batches.Reset()
}

// GetPlaces lists places, optionally filtered by category and location.
// With ?enrich=true eligible places are enriched before they are returned.
func (h *Handler) GetPlaces(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := store.Filter{}
	if c := strings.TrimSpace(q.Get("category")); c != "" {
		filter["category"] = c
	}
	if l := strings.TrimSpace(q.Get("location")); l != "" {
		filter["location"] = l
	}

	var (
		list []models.Place
		err  error
	)
	if len(filter) == 0 {
		list, err = h.allPlaces(ctx)
	} else {
		list, err = h.places.List(ctx, filter)
	}
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	if enrichRequested(q.Get("enrich")) && h.enricher != nil {
		opts := h.enricher.Defaults
		res, err := h.enricher.Enrich(ctx, h.batches, list, opts)
		if err != nil {
			w.Header().Set("X-Enrichment", "partial")
		}
		if res.Updated > 0 && opts.Persist {
			if err := h.cache.Del(ctx, listCacheKey); err != nil {
				h.log.Warn("places cache invalidation failed", zap.Error(err))
			}
		}
		list = res.Places
	}

	utils.RespondWithJSON(w, http.StatusOK, list)
}

func enrichRequested(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func (h *Handler) GetPlace(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	p, err := h.find(r.Context(), ps.ByName("id"))
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}

func (h *Handler) find(ctx context.Context, id string) (*models.Place, error) {
	p, err := h.places.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Place not found")
	}
	return p, err
}

type placeInput struct {
	Name        string           `json:"name" validate:"required,max=200"`
	Category    string           `json:"category" validate:"required,max=60"`
	Location    string           `json:"location" validate:"required,max=200"`
	Description string           `json:"description" validate:"max=5000"`
	Coordinates *models.GeoPoint `json:"coordinates"`
	ImageURL    string           `json:"imageUrl" validate:"omitempty,url"`
}

func (h *Handler) CreatePlace(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in placeInput
	if err := utils.DecodeAndValidate(w, r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	p := &models.Place{
		Name:        strings.TrimSpace(in.Name),
		Category:    strings.ToLower(strings.TrimSpace(in.Category)),
		Location:    strings.TrimSpace(in.Location),
		Description: in.Description,
		Coordinates: in.Coordinates,
		ImageURL:    in.ImageURL,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.places.Create(r.Context(), p); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	h.invalidate(r.Context())
	utils.RespondWithJSON(w, http.StatusCreated, p)
}

type placePatch struct {
	Name        *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Category    *string          `json:"category" validate:"omitempty,min=1,max=60"`
	Location    *string          `json:"location" validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Coordinates *models.GeoPoint `json:"coordinates"`
	ImageURL    *string          `json:"imageUrl" validate:"omitempty,url"`
}

func (p placePatch) fields() store.Fields {
	f := store.Fields{}
	if p.Name != nil {
		f["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Category != nil {
		f["category"] = strings.ToLower(strings.TrimSpace(*p.Category))
	}
	if p.Location != nil {
		f["location"] = strings.TrimSpace(*p.Location)
	}
	if p.Description != nil {
		f["description"] = *p.Description
	}
	if p.Coordinates != nil {
		f["coordinates"] = p.Coordinates
	}
	if p.ImageURL != nil {
		f["imageUrl"] = *p.ImageURL
	}
	return f
}

func (h *Handler) UpdatePlace(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in placePatch
	if err := utils.DecodeAndValidate(w, r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	h.update(w, r, ps.ByName("id"), in.fields())
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, id string, fields store.Fields) {
	ctx := r.Context()
	if err := h.places.Update(ctx, id, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = apperr.NotFound("Place not found")
		}
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	h.invalidate(ctx)

	p, err := h.find(ctx, id)
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}
