package places

import (
	"errors"
	"net/http"

	"mahatour/apperr"
	"mahatour/enrich"
	"mahatour/models"
	"mahatour/store"
	"mahatour/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// wikimediaInput is a client-side enrichment: the six Wikimedia fields,
// required together, and an optional image URL.
type wikimediaInput struct {
	ImageURL string `json:"imageUrl" validate:"omitempty,url"`
	models.WikimediaInfo
}

// SaveWikimedia persists an enrichment computed by a client. Like a server
// pass, it replaces the Wikimedia block and only fills an empty image URL.
func (h *Handler) SaveWikimedia(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in wikimediaInput
	if err := utils.DecodeAndValidate(w, r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	p, err := h.find(r.Context(), ps.ByName("id"))
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	enrich.Merge(p, &models.ImageMatch{ImageURL: in.ImageURL, Wikimedia: in.WikimediaInfo})
	h.update(w, r, p.ID, enrich.Fields(*p))
}

type enrichRequest struct {
	IDs     []string `json:"ids" validate:"omitempty,max=500,dive,required"`
	Refresh bool     `json:"refresh"`
}

// EnrichPlaces runs a forced, persisted pass over the given places, or over
// the whole catalogue when no ids are sent.
func (h *Handler) EnrichPlaces(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if h.enricher == nil {
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Enrichment is disabled")
		return
	}

	var in enrichRequest
	if r.ContentLength != 0 {
		if err := utils.DecodeAndValidate(w, r, &in); err != nil {
			utils.RespondWithAppError(w, h.log, err)
			return
		}
	}

	ctx := r.Context()
	var list []models.Place
	if len(in.IDs) == 0 {
		all, err := h.places.List(ctx, nil)
		if err != nil {
			utils.RespondWithAppError(w, h.log, err)
			return
		}
		list = all
	} else {
		for _, id := range in.IDs {
			p, err := h.places.Get(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				utils.RespondWithAppError(w, h.log, apperr.NotFound("Place not found: "+id))
				return
			}
			if err != nil {
				utils.RespondWithAppError(w, h.log, err)
				return
			}
			list = append(list, *p)
		}
	}

	opts := h.enricher.Defaults
	opts.Persist = true
	opts.Refresh = in.Refresh
	res, err := h.enricher.Enrich(ctx, nil, list, opts)
	if res.Updated > 0 {
		h.invalidate(ctx)
	}
	if err != nil {
		h.log.Warn("forced enrichment interrupted", zap.Int("updated", res.Updated), zap.Error(err))
		w.Header().Set("X-Enrichment", "partial")
	}
	utils.RespondWithJSON(w, http.StatusOK, res)
}
