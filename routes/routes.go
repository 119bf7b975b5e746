// Package routes wires every handler onto one router.
package routes

import (
	"mahatour/auth"
	"mahatour/booking"
	"mahatour/connections"
	"mahatour/enrich"
	"mahatour/guides"
	"mahatour/itinerary"
	"mahatour/middleware"
	"mahatour/notify"
	"mahatour/places"
	"mahatour/ratelim"
	"mahatour/rdx"
	"mahatour/saved"
	"mahatour/store"
	"mahatour/users"
	"mahatour/utils"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Deps is everything the handlers share.
type Deps struct {
	Store         *store.Store
	Cache         rdx.Cache
	Tokens        *middleware.Auth
	Limiter       *ratelim.RateLimiter
	// EnrichLimiter bounds requests that fan out to Wikimedia.
	EnrichLimiter *ratelim.RateLimiter
	Enricher      *enrich.Service
	Hub           *notify.Hub
	Vouchers      *booking.Vouchers
	Origins       []string
	Log           *zap.Logger
}

func NewRouter(d Deps) *httprouter.Router {
	router := httprouter.New()
	router.MethodNotAllowed = utils.MethodNotAllowed()
	router.NotFound = utils.NotFound()

	AddHealthRoutes(router, d)
	AddAuthRoutes(router, d)
	AddPlaceRoutes(router, d)
	AddGuideRoutes(router, d)
	AddUserRoutes(router, d)
	AddItineraryRoutes(router, d)
	AddBookingRoutes(router, d)
	AddConnectionRoutes(router, d)
	AddSavedRoutes(router, d)
	AddNotifyRoutes(router, d)
	return router
}

func AddHealthRoutes(router *httprouter.Router, d Deps) {
	h := &health{store: d.Store}
	router.GET("/health", h.Live)
	router.GET("/api/", h.Ready)
}

func AddAuthRoutes(router *httprouter.Router, d Deps) {
	auth.NewHandler(auth.NewGateway(d.Store, d.Log), d.Tokens, d.Log).Routes(router, d.Limiter)
}

func AddPlaceRoutes(router *httprouter.Router, d Deps) {
	h := places.NewHandler(d.Store.Places, d.Cache, d.Enricher, d.Log)
	if d.EnrichLimiter != nil {
		h.LimitEnrichment(d.EnrichLimiter)
	}
	h.Routes(router, d.Tokens)
}

func AddGuideRoutes(router *httprouter.Router, d Deps) {
	guides.NewHandler(d.Store.Guides, d.Log).Routes(router, d.Tokens)
}

func AddUserRoutes(router *httprouter.Router, d Deps) {
	users.NewHandler(d.Store.Users, d.Log).Routes(router, d.Tokens)
}

func AddItineraryRoutes(router *httprouter.Router, d Deps) {
	itinerary.NewHandler(d.Store.Itineraries, d.Log).Routes(router, d.Tokens)
}

func AddBookingRoutes(router *httprouter.Router, d Deps) {
	booking.NewHandler(d.Store, publisher(d), d.Vouchers, d.Log).Routes(router, d.Tokens)
}

func AddConnectionRoutes(router *httprouter.Router, d Deps) {
	connections.NewHandler(d.Store, publisher(d), d.Log).Routes(router, d.Tokens)
}

func AddSavedRoutes(router *httprouter.Router, d Deps) {
	saved.NewHandler(d.Store, d.Log).Routes(router, d.Tokens)
}

func AddNotifyRoutes(router *httprouter.Router, d Deps) {
	if d.Hub == nil {
		return
	}
	router.GET("/api/ws", notify.Handler(d.Hub, d.Tokens, d.Origins))
}

// publisher avoids handing a typed nil *Hub to handlers as an interface.
func publisher(d Deps) notify.Publisher {
	if d.Hub == nil {
		return notify.Discard
	}
	return d.Hub
}
