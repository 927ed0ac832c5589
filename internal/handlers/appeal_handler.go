package handlers

import (
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/madhvv-7/E-waste-madhav/internal/models"
	"github.com/madhvv-7/E-waste-madhav/internal/services"
)

type AppealHandler struct {
	Service *services.AppealService
}

type submitAppealRequest struct {
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type resolveAppealRequest struct {
	Decision string `json:"decision"`
}

// Submit is unauthenticated: rejected and deactivated accounts cannot sign in.
func (h *AppealHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitAppealRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	a, err := h.Service.SubmitAppeal(ctx, req.Email, req.Subject, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// List returns appeals. ?resolved=true|false narrows the list.
func (h *AppealHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var resolved *bool
	if raw := r.URL.Query().Get("resolved"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, errors.Wrapf(models.ErrValidation, "resolved must be a boolean, got %q", raw))
			return
		}
		resolved = &v
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	list, err := h.Service.List(ctx, resolved, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *AppealHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req resolveAppealRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	a, err := h.Service.ResolveAppeal(ctx, getParam(r, "id"), models.AppealDecision(req.Decision), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
