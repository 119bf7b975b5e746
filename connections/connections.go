// Package connections manages tourist to guide connection requests.
package connections

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"mahatour/apperr"
	"mahatour/middleware"
	"mahatour/models"
	"mahatour/notify"
	"mahatour/store"
	"mahatour/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

type Handler struct {
	connections store.Repo[models.Connection]
	users       store.Repo[models.User]
	events      notify.Publisher
	log         *zap.Logger
}

func NewHandler(s *store.Store, events notify.Publisher, log *zap.Logger) *Handler {
	return &Handler{connections: s.Connections, users: s.Users, events: events, log: log.Named("connections")}
}

func (h *Handler) Routes(router *httprouter.Router, auth *middleware.Auth) {
	router.GET("/api/connections", auth.Authenticate(h.ListConnections))
	router.POST("/api/connections", auth.Authenticate(h.RequestConnection))
	router.PATCH("/api/connections/:id", auth.Authenticate(h.RespondToConnection))
}

type requestInput struct {
	GuideID string `json:"guideId" validate:"required"`
	Message string `json:"message" validate:"max=1000"`
}

// RequestConnection lets a tourist ask a guide to connect. A pending request
// for the same pair is a conflict.
func (h *Handler) RequestConnection(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in requestInput
	if err := utils.DecodeAndValidate(w, r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	ctx := r.Context()
	claims, err := middleware.RequireUser(ctx)
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	if claims.UserType != models.Tourist {
		utils.RespondWithAppError(w, h.log, apperr.Forbidden("Only tourists can request a connection"))
		return
	}

	guide, err := h.users.Get(ctx, in.GuideID)
	if err == nil && guide.UserType != models.Guide {
		err = store.ErrNotFound
	}
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithAppError(w, h.log, apperr.NotFound("Guide not found"))
		return
	}
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	_, err = h.connections.FindOne(ctx, store.Filter{
		"touristId": claims.UserID,
		"guideId":   guide.ID,
		"status":    models.ConnectionPending,
	})
	switch {
	case err == nil:
		utils.RespondWithAppError(w, h.log, apperr.Conflict("A request to this guide is already pending"))
		return
	case !errors.Is(err, store.ErrNotFound):
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	now := time.Now().UTC()
	c := &models.Connection{
		TouristID: claims.UserID,
		GuideID:   guide.ID,
		Message:   strings.TrimSpace(in.Message),
		Status:    models.ConnectionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.connections.Create(ctx, c); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	h.events.Publish(notify.Event{Type: "connection.created", Data: c}, c.GuideID)
	utils.RespondWithJSON(w, http.StatusCreated, c)
}

// ListConnections returns every connection the caller is part of, newest
// first, optionally filtered by ?status=.
func (h *Handler) ListConnections(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	uid := middleware.UserID(ctx)
	status := r.URL.Query().Get("status")

	var all []models.Connection
	for _, side := range []string{"touristId", "guideId"} {
		filter := store.Filter{side: uid}
		if status != "" {
			filter["status"] = status
		}
		list, err := h.connections.List(ctx, filter)
		if err != nil {
			utils.RespondWithAppError(w, h.log, err)
			return
		}
		all = append(all, list...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if all == nil {
		all = []models.Connection{}
	}
	utils.RespondWithJSON(w, http.StatusOK, all)
}

type responseInput struct {
	Status models.ConnectionStatus `json:"status" validate:"required,oneof=accepted rejected"`
}

// RespondToConnection lets the guide accept or reject a pending request.
func (h *Handler) RespondToConnection(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in responseInput
	if err := utils.DecodeAndValidate(w, r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	ctx := r.Context()
	uid := middleware.UserID(ctx)
	c, err := h.connections.Get(ctx, ps.ByName("id"))
	if errors.Is(err, store.ErrNotFound) || (err == nil && c.TouristID != uid && c.GuideID != uid) {
		utils.RespondWithAppError(w, h.log, apperr.NotFound("Connection not found"))
		return
	}
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	if c.GuideID != uid {
		utils.RespondWithAppError(w, h.log, apperr.Forbidden("Only the guide can answer this request"))
		return
	}
	if c.Status != models.ConnectionPending {
		utils.RespondWithAppError(w, h.log, apperr.Conflict("Connection is already "+string(c.Status)))
		return
	}

	c.Status = in.Status
	c.UpdatedAt = time.Now().UTC()
	err = h.connections.UpdateIf(ctx, c.ID,
		store.Filter{"status": models.ConnectionPending},
		store.Fields{"status": c.Status, "updatedAt": c.UpdatedAt})
	if errors.Is(err, store.ErrStale) {
		utils.RespondWithAppError(w, h.log, apperr.Conflict("Connection was already answered"))
		return
	}
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	h.events.Publish(notify.Event{Type: "connection." + string(c.Status), Data: c}, c.TouristID)
	utils.RespondWithJSON(w, http.StatusOK, c)
}
