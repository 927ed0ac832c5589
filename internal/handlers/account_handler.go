package handlers

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/madhvv-7/E-waste-madhav/internal/authz"
	"github.com/madhvv-7/E-waste-madhav/internal/fsm"
	"github.com/madhvv-7/E-waste-madhav/internal/models"
	"github.com/madhvv-7/E-waste-madhav/internal/repositories"
	"github.com/madhvv-7/E-waste-madhav/internal/services"
)

type AccountHandler struct {
	Service *services.AccountService
}

// accountResponse adds the statuses the caller could move the account to next.
type accountResponse struct {
	models.AccountView
	AllowedNext []models.AccountStatus `json:"allowed_next"`
}

type transitionRequest struct {
	Status string `json:"status"`
}

func withTargets(actor models.Actor, v models.AccountView) accountResponse {
	next := []models.AccountStatus{}
	for _, to := range fsm.AccountTargets(v.Role, v.Status) {
		res := authz.Resource{Kind: authz.KindAccount, ID: v.ID, TargetStatus: to}
		if authz.CanPerform(actor, res, authz.AccountTransition).Allowed {
			next = append(next, to)
		}
	}
	return accountResponse{AccountView: v, AllowedNext: next}
}

func withTargetsAll(actor models.Actor, list []models.AccountView) []accountResponse {
	out := make([]accountResponse, 0, len(list))
	for _, v := range list {
		out = append(out, withTargets(actor, v))
	}
	return out
}

// Users lists accounts. ?role= and ?status= narrow the list.
func (h *AccountHandler) Users(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var f repositories.AccountFilter
	if raw := r.URL.Query().Get("role"); raw != "" {
		role, ok := models.ParseRole(raw)
		if !ok {
			writeError(w, errors.Wrapf(models.ErrValidation, "unknown role %q", raw))
			return
		}
		f.Role = role
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		f.Status = models.AccountStatus(raw)
		if !f.Status.Valid() {
			writeError(w, errors.Wrapf(models.ErrValidation, "unknown account status %q", raw))
			return
		}
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	list, err := h.Service.List(ctx, f, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withTargetsAll(actor, list))
}

func (h *AccountHandler) Pending(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Service.ListPending)
}

func (h *AccountHandler) Agents(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.Service.ListAssignableAgents)
}

func (h *AccountHandler) list(w http.ResponseWriter, r *http.Request, fn func(context.Context, models.Actor) ([]models.AccountView, error)) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	list, err := fn(ctx, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withTargetsAll(actor, list))
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	v, err := h.Service.Get(ctx, getParam(r, "id"), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withTargets(actor, v))
}

func (h *AccountHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Approve)
}

func (h *AccountHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Reject)
}

func (h *AccountHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Deactivate)
}

func (h *AccountHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.Service.Reactivate)
}

// SetStatus applies any legal account transition named in the body.
func (h *AccountHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	target := models.AccountStatus(req.Status)
	h.transition(w, r, func(ctx context.Context, id string, actor models.Actor) (models.AccountView, error) {
		return h.Service.ApplyAccountTransition(ctx, id, target, actor)
	})
}

func (h *AccountHandler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, string, models.Actor) (models.AccountView, error)) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	v, err := fn(ctx, getParam(r, "id"), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, withTargets(actor, v))
}

func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	if err := h.Service.Delete(ctx, getParam(r, "id"), actor); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
