package itinerary

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"mahatour/apperr"
	"mahatour/middleware"
	"mahatour/models"
	"mahatour/store"
	"mahatour/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type Handler struct {
	itineraries store.Repo[models.Itinerary]
	log         *zap.Logger
}

func NewHandler(itineraries store.Repo[models.Itinerary], log *zap.Logger) *Handler {
	return &Handler{itineraries: itineraries, log: log.Named("itinerary")}
}

func (h *Handler) Routes(router *httprouter.Router, auth *middleware.Auth) {
	router.GET("/api/itineraries", auth.Authenticate(h.GetItineraries))
	router.POST("/api/itineraries", auth.Authenticate(h.CreateItinerary))
	router.GET("/api/itineraries/:id", auth.Authenticate(h.GetItinerary))
	router.PATCH("/api/itineraries/:id", auth.Authenticate(h.UpdateItinerary))
	router.DELETE("/api/itineraries/:id", auth.Authenticate(h.DeleteItinerary))
}

type stopInput struct {
	PlaceID string `json:"placeId" validate:"required"`
	Name    string `json:"name" validate:"required,max=200"`
	Day     int    `json:"day" validate:"gte=0,lte=365"`
	Notes   string `json:"notes" validate:"max=2000"`
}

type itineraryInput struct {
	Title       string      `json:"title" validate:"required,max=200"`
	Description string      `json:"description" validate:"max=5000"`
	StartDate   string      `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate     string      `json:"endDate" validate:"required,datetime=2006-01-02"`
	TripType    string      `json:"tripType" validate:"max=60"`
	Places      []stopInput `json:"places" validate:"max=200,dive"`
}

func stops(in []stopInput) []models.ItineraryStop {
	out := make([]models.ItineraryStop, 0, len(in))
	for _, s := range in {
		out = append(out, models.ItineraryStop{PlaceID: s.PlaceID, Name: s.Name, Day: s.Day, Notes: s.Notes})
	}
	return out
}

// checkDates requires end on or after start.
func checkDates(start, end string) error {
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return apperr.Validation("startDate must be YYYY-MM-DD")
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return apperr.Validation("endDate must be YYYY-MM-DD")
	}
	if e.Before(s) {
		return apperr.Validation("endDate is before startDate")
	}
	return nil
}

func (h *Handler) GetItineraries(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := h.itineraries.List(r.Context(), store.Filter{"userId": middleware.UserID(r.Context())})
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.Paginate(list, utils.ParseQueryOptions(r)))
}

func (h *Handler) CreateItinerary(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in itineraryInput
	if err := utils.DecodeAndValidate(w, r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	if err := checkDates(in.StartDate, in.EndDate); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	it := &models.Itinerary{
		UserID:      middleware.UserID(r.Context()),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		TripType:    in.TripType,
		Places:      stops(in.Places),
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.itineraries.Create(r.Context(), it); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, it)
}

// owned loads an itinerary and checks that the caller owns it. Other users'
// itineraries are reported as missing.
func (h *Handler) owned(ctx context.Context, id string) (*models.Itinerary, error) {
	it, err := h.itineraries.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && it.UserID != middleware.UserID(ctx)) {
		return nil, apperr.NotFound("Itinerary not found")
	}
	return it, err
}

func (h *Handler) GetItinerary(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	it, err := h.owned(r.Context(), ps.ByName("id"))
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, it)
}

type itineraryPatch struct {
	Title       *string      `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string      `json:"description" validate:"omitempty,max=5000"`
	StartDate   *string      `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate     *string      `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	TripType    *string      `json:"tripType" validate:"omitempty,max=60"`
	Places      *[]stopInput `json:"places" validate:"omitempty,max=200,dive"`
}

func (h *Handler) UpdateItinerary(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in itineraryPatch
	if err := utils.DecodeAndValidate(w, r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	ctx := r.Context()
	it, err := h.owned(ctx, ps.ByName("id"))
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	fields := store.Fields{}
	if in.Title != nil {
		it.Title = strings.TrimSpace(*in.Title)
		fields["title"] = it.Title
	}
	if in.Description != nil {
		it.Description = *in.Description
		fields["description"] = it.Description
	}
	if in.StartDate != nil {
		it.StartDate = *in.StartDate
		fields["startDate"] = it.StartDate
	}
	if in.EndDate != nil {
		it.EndDate = *in.EndDate
		fields["endDate"] = it.EndDate
	}
	if in.TripType != nil {
		it.TripType = *in.TripType
		fields["tripType"] = it.TripType
	}
	if in.Places != nil {
		it.Places = stops(*in.Places)
		fields["places"] = it.Places
	}
	if err := checkDates(it.StartDate, it.EndDate); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	if err := h.itineraries.Update(ctx, it.ID, fields); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, it)
}

func (h *Handler) DeleteItinerary(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx := r.Context()
	it, err := h.owned(ctx, ps.ByName("id"))
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	if err := h.itineraries.Delete(ctx, it.ID); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
