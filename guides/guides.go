// Package guides serves guide profiles.
package guides

import (
	"errors"
	"net/http"
	"sort"
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

type Handler struct {
	guides store.Repo[models.GuideProfile]
	log    *zap.Logger
}

func NewHandler(guides store.Repo[models.GuideProfile], log *zap.Logger) *Handler {
	return &Handler{guides: guides, log: log.Named("guides")}
}

func (h *Handler) Routes(router *httprouter.Router, auth *middleware.Auth) {
	router.GET("/api/guides", h.ListGuides)
	router.GET("/api/guides/:id", h.GetGuide)
	router.POST("/api/guides", auth.Authenticate(h.CreateGuide))
	router.PATCH("/api/guides/:id", auth.Authenticate(h.UpdateGuide))
}

// ListGuides returns guide profiles, best rated first. The location filter
// is a case-insensitive substring match.
func (h *Handler) ListGuides(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := h.guides.List(r.Context(), nil)
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	if loc := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("location"))); loc != "" {
		kept := list[:0]
		for _, g := range list {
			if strings.Contains(strings.ToLower(g.Location), loc) {
				kept = append(kept, g)
			}
		}
		list = kept
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].Rating > list[j].Rating })
	utils.RespondWithJSON(w, http.StatusOK, utils.Paginate(list, utils.ParseQueryOptions(r)))
}

func (h *Handler) GetGuide(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	g, err := h.guides.Get(r.Context(), ps.ByName("id"))
	if errors.Is(err, store.ErrNotFound) {
		err = apperr.NotFound("Guide not found")
	}
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, g)
}

type profileInput struct {
	Location    string   `json:"location" validate:"required,max=200"`
	Experience  int      `json:"experience" validate:"gte=0,lte=80"`
	Languages   []string `json:"languages" validate:"max=20,dive,required,max=40"`
	Specialties []string `json:"specialties" validate:"max=20,dive,required,max=60"`
	Bio         string   `json:"bio" validate:"max=5000"`
}

func (h *Handler) CreateGuide(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var in profileInput
	if err := utils.DecodeAndValidate(w, r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	claims, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	if claims.UserType != models.Guide {
		utils.RespondWithAppError(w, h.log, apperr.Forbidden("Only guides can create a guide profile"))
		return
	}

	g := &models.GuideProfile{
		UserID:      claims.UserID,
		Location:    strings.TrimSpace(in.Location),
		Experience:  in.Experience,
		Languages:   nonNil(in.Languages),
		Specialties: nonNil(in.Specialties),
		Bio:         in.Bio,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.guides.Create(r.Context(), g); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			err = apperr.Conflict("Guide profile already exists")
		}
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, g)
}

type profilePatch struct {
	Location    *string   `json:"location" validate:"omitempty,min=1,max=200"`
	Experience  *int      `json:"experience" validate:"omitempty,gte=0,lte=80"`
	Languages   *[]string `json:"languages" validate:"omitempty,max=20,dive,required,max=40"`
	Specialties *[]string `json:"specialties" validate:"omitempty,max=20,dive,required,max=60"`
	Bio         *string   `json:"bio" validate:"omitempty,max=5000"`
}

func (h *Handler) UpdateGuide(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var in profilePatch
	if err := utils.DecodeAndValidate(w, r, &in); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	ctx := r.Context()
	g, err := h.guides.Get(ctx, ps.ByName("id"))
	if errors.Is(err, store.ErrNotFound) {
		err = apperr.NotFound("Guide not found")
	}
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	if g.UserID != middleware.UserID(ctx) {
		utils.RespondWithAppError(w, h.log, apperr.Forbidden("Not your guide profile"))
		return
	}

	fields := store.Fields{}
	if in.Location != nil {
		g.Location = strings.TrimSpace(*in.Location)
		fields["location"] = g.Location
	}
	if in.Experience != nil {
		g.Experience = *in.Experience
		fields["experience"] = g.Experience
	}
	if in.Languages != nil {
		g.Languages = nonNil(*in.Languages)
		fields["languages"] = g.Languages
	}
	if in.Specialties != nil {
		g.Specialties = nonNil(*in.Specialties)
		fields["specialties"] = g.Specialties
	}
	if in.Bio != nil {
		g.Bio = *in.Bio
		fields["bio"] = g.Bio
	}
	if err := h.guides.Update(ctx, g.ID, fields); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, g)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
