package handlers

import (
	"net/http"
	"strings"

	"github.com/madhvv-7/E-waste-madhav/internal/events"
	"github.com/madhvv-7/E-waste-madhav/internal/services"
)

// EventsHandler upgrades to a websocket carrying the caller's status events.
// Browsers cannot set headers on websocket requests, so the token may also
// come from ?token=.
type EventsHandler struct {
	Hub  *events.Hub
	Auth *services.AuthService
}

func (h *EventsHandler) Serve(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "token required"})
		return
	}

	ctx, cancel := contextWithTimeout(r)
	actor, err := h.Auth.Authenticate(ctx, token)
	cancel()
	if err != nil {
		writeError(w, err)
		return
	}
	h.Hub.ServeWS(w, r, actor.ID)
}
