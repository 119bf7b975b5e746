// Package saved keeps each user's bookmarked places.
package saved

import (
	"errors"
	"net/http"
	"time"

	"mahatour/apperr"
	"mahatour/middleware"
	"mahatour/models"
	"mahatour/store"
	"mahatour/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

type Handler struct {
	saved  store.Repo[models.SavedPlace]
	places store.Repo[models.Place]
	log    *zap.Logger
}

func NewHandler(s *store.Store, log *zap.Logger) *Handler {
	return &Handler{saved: s.SavedPlaces, places: s.Places, log: log.Named("saved")}
}

func (h *Handler) Routes(router *httprouter.Router, auth *middleware.Auth) {
	router.GET("/api/saved", auth.Authenticate(h.ListSaved))
	router.POST("/api/saved", auth.Authenticate(h.SavePlace))
	router.DELETE("/api/saved/:id", auth.Authenticate(h.RemoveSaved))
}

func (h *Handler) ListSaved(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := h.saved.List(r.Context(), store.Filter{"userId": middleware.UserID(r.Context())})
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, list)
}

type saveInput struct {
	PlaceID string `json:"placeId" validate:"required"`
}

func (h *Handler) SavePlace(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in saveInput
	if err := utils.DecodeAndValidate(w, r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	ctx := r.Context()
	uid := middleware.UserID(ctx)

	if _, err := h.places.Get(ctx, in.PlaceID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = apperr.NotFound("Place not found")
		}
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	_, err := h.saved.FindOne(ctx, store.Filter{"userId": uid, "placeId": in.PlaceID})
	if err == nil {
		utils.RespondWithAppError(w, h.log, apperr.Conflict("Place already saved"))
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	sp := &models.SavedPlace{UserID: uid, PlaceID: in.PlaceID, CreatedAt: time.Now().UTC()}
	if err := h.saved.Create(ctx, sp); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			err = apperr.Conflict("Place already saved")
		}
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, sp)
}

func (h *Handler) RemoveSaved(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	sp, err := h.saved.Get(ctx, ps.ByName("id"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && sp.UserID != middleware.UserID(ctx)) {
		utils.RespondWithAppError(w, h.log, apperr.NotFound("Saved place not found"))
		return
	}
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	if err := h.saved.Delete(ctx, sp.ID); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
