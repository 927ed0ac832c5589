package handlers

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/madhvv-7/E-waste-madhav/internal/models"
	"github.com/madhvv-7/E-waste-madhav/internal/services"
)

type PickupHandler struct {
	Service     *services.PickupService
	Coordinator *services.AssignmentCoordinator
}

type createPickupRequest struct {
	Items         []models.Item `json:"items"`
	PickupAddress string        `json:"pickup_address"`
}

type assignRequest struct {
	AgentID string `json:"agent_id"`
}

type recycleRequest struct {
	RecyclingMethod string `json:"recycling_method"`
	Remarks         string `json:"remarks"`
}

func (h *PickupHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req createPickupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	p, err := h.Service.CreateRequest(ctx, actor, req.Items, req.PickupAddress)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Mine serves the caller's dashboard list. The same handler backs the
// citizen, agent and recycler routes; the actor's role picks the list.
func (h *PickupHandler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	list, err := h.Service.ListForActor(ctx, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// All lists every request for admins. ?status=Requested,Collected narrows it.
func (h *PickupHandler) All(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var statuses []models.PickupStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				statuses = append(statuses, models.PickupStatus(s))
			}
		}
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	list, err := h.Service.ListAll(ctx, actor, statuses...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *PickupHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	p, err := h.Service.Get(ctx, getParam(r, "id"), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PickupHandler) Record(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	rec, err := h.Service.Record(ctx, getParam(r, "id"), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *PickupHandler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req assignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if strings.TrimSpace(req.AgentID) == "" {
		writeError(w, errors.Wrap(models.ErrValidation, "agent_id is required"))
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	p, err := h.Coordinator.AssignAgent(ctx, getParam(r, "id"), req.AgentID, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PickupHandler) Collect(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, models.PickupCollected, services.AdvanceInput{})
}

func (h *PickupHandler) SendToRecycler(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, models.PickupSentToRecycler, services.AdvanceInput{})
}

// Recycle finalizes a request. The body is optional.
func (h *PickupHandler) Recycle(w http.ResponseWriter, r *http.Request) {
	var req recycleRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	h.advance(w, r, models.PickupRecycled, services.AdvanceInput{
		Method:  req.RecyclingMethod,
		Remarks: req.Remarks,
	})
}

func (h *PickupHandler) advance(w http.ResponseWriter, r *http.Request, target models.PickupStatus, in services.AdvanceInput) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	p, err := h.Service.AdvanceStatus(ctx, getParam(r, "id"), target, in, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
