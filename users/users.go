// Package users serves public user records and profile edits.
package users

import (
	"errors"
	"net/http"
	"strings"

	"mahatour/apperr"
	"mahatour/middleware"
	"mahatour/models"
	"mahatour/store"
	"mahatour/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

type Handler struct {
	users store.Repo[models.User]
	log   *zap.Logger
}

func NewHandler(users store.Repo[models.User], log *zap.Logger) *Handler {
	return &Handler{users: users, log: log.Named("users")}
}

func (h *Handler) Routes(router *httprouter.Router, auth *middleware.Auth) {
	router.GET("/api/users/:id", h.GetUser)
	router.PATCH("/api/users/:id", auth.Authenticate(h.UpdateUser))
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	u, err := h.users.Get(r.Context(), ps.ByName("id"))
	if errors.Is(err, store.ErrNotFound) {
		err = apperr.NotFound("User not found")
	}
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, u.Sanitized())
}

type userPatch struct {
	FullName *string          `json:"fullName" validate:"omitempty,min=1,max=200"`
	Phone    *string          `json:"phone" validate:"omitempty,e164"`
	Location *models.GeoPoint `json:"location"`
}

// UpdateUser edits the caller's own profile. The id may be "me".
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in userPatch
	if err := utils.DecodeAndValidate(w, r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	ctx := r.Context()
	uid := middleware.UserID(ctx)
	id := ps.ByName("id")
	if id == "me" {
		id = uid
	}
	if id != uid {
		utils.RespondWithAppError(w, h.log, apperr.Forbidden("You can only edit your own profile"))
		return
	}
	if in.Location != nil && (in.Location.Latitude < -90 || in.Location.Latitude > 90 ||
		in.Location.Longitude < -180 || in.Location.Longitude > 180) {
		utils.RespondWithAppError(w, h.log, apperr.Validation("location is out of range"))
		return
	}

	fields := store.Fields{}
	if in.FullName != nil {
		fields["fullName"] = strings.TrimSpace(*in.FullName)
	}
	if in.Phone != nil {
		fields["phone"] = *in.Phone
	}
	if in.Location != nil {
		fields["location"] = in.Location
	}
	if len(fields) == 0 {
		utils.RespondWithAppError(w, h.log, apperr.Validation("nothing to update"))
		return
	}
	if err := h.users.Update(ctx, id, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = apperr.NotFound("User not found")
		}
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	u, err := h.users.Get(ctx, id)
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, u.Sanitized())
}
