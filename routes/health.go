package routes

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"mahatour/store"
	"mahatour/utils"

	"github.com/julienschmidt/httprouter"
)

type health struct {
	store *store.Store
}

func (h *health) Live(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	fmt.Fprint(w, "200")
}

// Ready reports the service as healthy while noting database reachability.
func (h *health) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	database := "up"
	if err := h.store.Ping(ctx); err != nil {
		database = "down"
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"status":   "healthy",
		"database": database,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}
