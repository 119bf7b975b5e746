package auth

import (
	"net/http"

	"mahatour/middleware"
	"mahatour/models"
	"mahatour/ratelim"
	"mahatour/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

type Handler struct {
	gw     *Gateway
	tokens *middleware.Auth
	log    *zap.Logger
}

func NewHandler(gw *Gateway, tokens *middleware.Auth, log *zap.Logger) *Handler {
	return &Handler{gw: gw, tokens: tokens, log: log.Named("auth")}
}

// Routes registers the auth endpoints. limiter may be nil.
func (h *Handler) Routes(router *httprouter.Router, limiter *ratelim.RateLimiter) {
	limit := func(next httprouter.Handle) httprouter.Handle {
		if limiter == nil {
			return next
		}
		return limiter.Limit(next)
	}
	router.POST("/api/auth/login", limit(h.Login))
	router.POST("/api/auth/register", limit(h.Register))
	router.GET("/api/auth/me", h.tokens.Authenticate(h.Me))
	router.POST("/api/auth/logout", h.tokens.Authenticate(h.Logout))
}

type session struct {
	*models.User
	Token string `json:"token"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var creds Credentials
	if err := utils.DecodeJSON(w, r, &creds); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	u, err := h.gw.Login(r.Context(), creds)
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	h.respondWithSession(w, http.StatusOK, u)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var reg Registration
	if err := utils.DecodeAndValidate(w, r, &reg); err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}

	u, err := h.gw.Register(r.Context(), reg)
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	h.respondWithSession(w, http.StatusCreated, u)
}

func (h *Handler) respondWithSession(w http.ResponseWriter, status int, u *models.User) {
	token, err := h.tokens.Issue(u)
	if err != nil {
		h.log.Error("signing token failed", zap.String("user", u.ID), zap.Error(err))
		utils.RespondWithError(w, http.StatusInternalServerError, "Server error")
		return
	}
	utils.RespondWithJSON(w, status, session{User: u, Token: token})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	u, err := h.gw.User(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, u)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	claims, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.RespondWithAppError(w, h.log, err)
		return
	}
	if err := h.tokens.Revoke(r.Context(), claims); err != nil {
		h.log.Error("revoking token failed", zap.String("user", claims.UserID), zap.Error(err))
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to invalidate session")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"success": true, "message": "Logged out successfully"})
}
