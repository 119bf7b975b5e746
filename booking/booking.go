package booking

import (
	"context"
	"errors"
	"net/http"
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

const dateLayout = "2006-01-02"

type Handler struct {
	bookings store.Repo[models.Booking]
	places   store.Repo[models.Place]
	users    store.Repo[models.User]
	events   notify.Publisher
	vouchers *Vouchers
	log      *zap.Logger
}

func NewHandler(s *store.Store, events notify.Publisher, vouchers *Vouchers, log *zap.Logger) *Handler {
	return &Handler{
		bookings: s.Bookings,
		places:   s.Places,
		users:    s.Users,
		events:   events,
		vouchers: vouchers,
		log:      log.Named("booking"),
	}
}

func (h *Handler) Routes(router *httprouter.Router, auth *middleware.Auth) {
	router.GET("/api/bookings", auth.Authenticate(h.ListBookings))
	router.POST("/api/bookings", auth.Authenticate(h.CreateBooking))
	router.PATCH("/api/bookings/:id/status", auth.Authenticate(h.UpdateStatus))
	router.GET("/api/bookings/:id/voucher", auth.Authenticate(h.PrintVoucher))
	router.POST("/api/vouchers/verify", auth.Authenticate(h.VerifyVoucher))
}

type bookingInput struct {
	Kind      string `json:"kind" validate:"required,oneof=hotel transport guide"`
	PlaceID   string `json:"placeId" validate:"required_unless=Kind guide"`
	GuideID   string `json:"guideId" validate:"required_if=Kind guide"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Guests    int    `json:"guests" validate:"required,min=1,max=50"`
}

// ListBookings returns the caller's bookings and, for guides, the bookings
// made with them.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()
	uid := middleware.UserID(ctx)

	own, err := h.bookings.List(ctx, store.Filter{"userId": uid})
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	if c, ok := middleware.ClaimsFrom(ctx); ok && c.UserType == models.Guide {
		withMe, err := h.bookings.List(ctx, store.Filter{"guideId": uid})
		if err != nil {
			utils.RespondWithAppError(w, h.log, err)
			return
		}
		own = append(own, withMe...)
	}
	utils.RespondWithJSON(w, http.StatusOK, own)
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in bookingInput
	if err := utils.DecodeAndValidate(w, r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	start, _ := time.Parse(dateLayout, in.StartDate)
	end, _ := time.Parse(dateLayout, in.EndDate)
	if end.Before(start) {
		utils.RespondWithAppError(w, h.log, apperr.Validation("endDate is before startDate"))
		return
	}

	ctx := r.Context()
	if in.PlaceID != "" {
		if _, err := h.places.Get(ctx, in.PlaceID); err != nil {
			utils.RespondWithAppError(w, h.log, notFoundAs(err, "Place not found"))
			return
		}
	}
	if in.GuideID != "" {
		g, err := h.users.Get(ctx, in.GuideID)
		if err == nil && g.UserType != models.Guide {
			err = store.ErrNotFound
		}
		if err != nil {
			utils.RespondWithAppError(w, h.log, notFoundAs(err, "Guide not found"))
			return
		}
	}

	b := &models.Booking{
		UserID:    middleware.UserID(ctx),
		Kind:      in.Kind,
		PlaceID:   in.PlaceID,
		GuideID:   in.GuideID,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Guests:    in.Guests,
		Status:    models.BookingPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.bookings.Create(ctx, b); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	h.events.Publish(notify.Event{Type: "booking.created", Data: b}, b.UserID, b.GuideID)
	utils.RespondWithJSON(w, http.StatusCreated, b)
}

func notFoundAs(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound(msg)
	}
	return err
}

type statusInput struct {
	Status models.BookingStatus `json:"status" validate:"required,oneof=confirmed cancelled"`
}

// visible loads a booking the caller is party to.
func (h *Handler) visible(ctx context.Context, id string) (*models.Booking, error) {
	b, err := h.bookings.Get(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, "Booking not found")
	}
	uid := middleware.UserID(ctx)
	if b.UserID != uid && b.GuideID != uid {
		return nil, apperr.NotFound("Booking not found")
	}
	return b, nil
}

// UpdateStatus confirms or cancels a booking. Either party may cancel; a
// guide booking is confirmed by its guide, anything else by its owner.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in statusInput
	if err := utils.DecodeAndValidate(w, r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	ctx := r.Context()
	b, err := h.visible(ctx, ps.ByName("id"))
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	if in.Status == models.BookingConfirmed {
		confirmer := b.UserID
		if b.Kind == "guide" {
			confirmer = b.GuideID
		}
		if middleware.UserID(ctx) != confirmer {
			utils.RespondWithAppError(w, h.log, apperr.Forbidden("Only the provider can confirm this booking"))
			return
		}
	}
	if !b.Status.CanBecome(in.Status) {
		utils.RespondWithAppError(w, h.log, apperr.Conflict("Booking is "+string(b.Status)))
		return
	}

	err = h.bookings.UpdateIf(ctx, b.ID, store.Filter{"status": b.Status}, store.Fields{"status": in.Status})
	if errors.Is(err, store.ErrStale) {
		utils.RespondWithAppError(w, h.log, apperr.Conflict("Booking status changed, reload and try again"))
		return
	}
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	b.Status = in.Status
	h.events.Publish(notify.Event{Type: "booking." + string(b.Status), Data: b}, b.UserID, b.GuideID)
	utils.RespondWithJSON(w, http.StatusOK, b)
}
