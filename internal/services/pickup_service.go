package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/madhvv-7/E-waste-madhav/internal/authz"
	"github.com/madhvv-7/E-waste-madhav/internal/events"
	"github.com/madhvv-7/E-waste-madhav/internal/fsm"
	"github.com/madhvv-7/E-waste-madhav/internal/lock"
	"github.com/madhvv-7/E-waste-madhav/internal/models"
	"github.com/madhvv-7/E-waste-madhav/internal/repositories"
)

const archiveTimeout = 10 * time.Second

// PickupService applies the pickup request status machine.
type PickupService struct {
	Pickups  PickupStore
	Locker   lock.Locker
	Events   events.Publisher
	Archiver Archiver
	Logger   Logger
}

// AdvanceInput carries the recycler's notes for the Recycled step.
type AdvanceInput struct {
	Method  string
	Remarks string
}

// CreateRequest opens a new pickup request for a citizen.
func (s *PickupService) CreateRequest(ctx context.Context, actor models.Actor, items []models.Item, address string) (models.PickupRequest, error) {
	if err := check(s.Logger, actor, authz.Resource{Kind: authz.KindPickup, OwnerID: actor.ID}, authz.PickupCreate); err != nil {
		return models.PickupRequest{}, err
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return models.PickupRequest{}, errors.Wrap(models.ErrValidation, "pickup address is required")
	}
	if len(items) == 0 {
		return models.PickupRequest{}, errors.Wrap(models.ErrValidation, "at least one item is required")
	}
	clean := make([]models.Item, 0, len(items))
	for i, it := range items {
		it.Description = strings.TrimSpace(it.Description)
		if it.Description == "" {
			return models.PickupRequest{}, errors.Wrapf(models.ErrValidation, "item %d has no description", i+1)
		}
		if it.Quantity < 1 {
			return models.PickupRequest{}, errors.Wrapf(models.ErrValidation, "item %d quantity must be at least 1", i+1)
		}
		clean = append(clean, it)
	}

	p, err := s.Pickups.Create(ctx, models.PickupRequest{
		ID:            uuid.NewString(),
		OwnerID:       actor.ID,
		Status:        models.PickupRequested,
		Items:         clean,
		PickupAddress: address,
	})
	if err != nil {
		return models.PickupRequest{}, err
	}
	loggerOrNop(s.Logger).Infof("services: pickup %s created by %s", p.ID, actor.ID)
	s.publish(ctx, events.PickupCreated, p)
	return p, nil
}

// AdvanceStatus moves a request one step forward. Agents take it to Collected
// and SentToRecycler; any recycler takes it to Recycled.
func (s *PickupService) AdvanceStatus(ctx context.Context, requestID string, target models.PickupStatus, in AdvanceInput, actor models.Actor) (models.PickupRequest, error) {
	var action authz.Action
	switch target {
	case models.PickupCollected, models.PickupSentToRecycler:
		action = authz.PickupAdvance
		if actor.Role != models.RoleAgent {
			return models.PickupRequest{}, s.deny(actor, requestID, target, "only the assigned agent moves a request to "+string(target))
		}
	case models.PickupRecycled:
		action = authz.PickupFinalize
		if actor.Role != models.RoleRecycler {
			return models.PickupRequest{}, s.deny(actor, requestID, target, "only recyclers finalize requests")
		}
	default:
		return models.PickupRequest{}, errors.Wrapf(models.ErrInvalidTransition, "%q is not a forward step", target)
	}

	unlock, err := acquire(ctx, s.Locker, lock.PickupKey(requestID))
	if err != nil {
		return models.PickupRequest{}, err
	}
	defer unlock()

	p, err := s.Pickups.GetByID(ctx, requestID)
	if err != nil {
		return models.PickupRequest{}, notFound(err, "pickup request", requestID)
	}
	if fsm.IsTerminal(p.Status) {
		return models.PickupRequest{}, errors.Wrapf(models.ErrInvalidState, "pickup request %s is already %s", p.ID, p.Status)
	}
	if err := check(s.Logger, actor, authz.PickupResource(p, ""), action); err != nil {
		return models.PickupRequest{}, err
	}
	if next, ok := fsm.NextPickupStatus(p.Status); !ok || next != target {
		loggerOrNop(s.Logger).Infof("services: pickup %s cannot go %s -> %s", p.ID, p.Status, target)
		return models.PickupRequest{}, errors.Wrapf(models.ErrInvalidTransition, "pickup request %s is %s, cannot move to %s", p.ID, p.Status, target)
	}

	now := time.Now().UTC()
	var rec *models.RecyclingRecord
	if target == models.PickupRecycled {
		rec = &models.RecyclingRecord{
			ID:              uuid.NewString(),
			PickupRequestID: p.ID,
			RecyclerID:      actor.ID,
			RecyclingMethod: strings.TrimSpace(in.Method),
			Remarks:         strings.TrimSpace(in.Remarks),
			CompletionDate:  now,
			CreatedAt:       now,
		}
		err = s.Pickups.Finalize(ctx, *rec)
	} else {
		err = s.Pickups.UpdateStatus(ctx, p.ID, actor.ID, p.Status, target)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.PickupRequest{}, errors.Wrapf(models.ErrInvalidTransition, "pickup request %s is no longer %s", p.ID, p.Status)
		}
		return models.PickupRequest{}, err
	}

	loggerOrNop(s.Logger).Infof("services: pickup %s %s -> %s by %s", p.ID, p.Status, target, actor.ID)
	p.Status = target
	p.UpdatedAt = now
	s.publish(ctx, events.PickupStatus, p)
	if rec != nil {
		s.archive(*rec, p)
	}
	return p, nil
}

func (s *PickupService) deny(actor models.Actor, requestID string, target models.PickupStatus, reason string) error {
	loggerOrNop(s.Logger).Infof("services: %s %s may not move pickup %s to %s", actor.Role, actor.ID, requestID, target)
	return errors.Wrap(models.ErrForbidden, reason)
}

// archive copies the record off-site. A failed copy is logged and otherwise
// ignored; the database row is the record of truth.
func (s *PickupService) archive(rec models.RecyclingRecord, p models.PickupRequest) {
	if s.Archiver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := s.Archiver.Archive(ctx, rec, p); err != nil {
		loggerOrNop(s.Logger).Errorf("services: archive recycling record %s: %v", rec.ID, err)
	}
}

func (s *PickupService) publish(ctx context.Context, kind events.Kind, p models.PickupRequest) {
	recipients := []string{p.OwnerID}
	if p.AssignedAgentID != nil {
		recipients = append(recipients, *p.AssignedAgentID)
	}
	publisherOrNop(s.Events).Publish(ctx, events.Event{
		Kind:       kind,
		ResourceID: p.ID,
		Status:     string(p.Status),
		At:         p.UpdatedAt,
		Recipients: recipients,
	})
}

// Get returns a request the actor may see.
func (s *PickupService) Get(ctx context.Context, requestID string, actor models.Actor) (models.PickupRequest, error) {
	p, err := s.Pickups.GetByID(ctx, requestID)
	if err != nil {
		return models.PickupRequest{}, notFound(err, "pickup request", requestID)
	}
	processedBy, err := s.processedBy(ctx, p)
	if err != nil {
		return models.PickupRequest{}, err
	}
	if err := check(s.Logger, actor, authz.PickupResource(p, processedBy), authz.PickupRead); err != nil {
		return models.PickupRequest{}, err
	}
	return p, nil
}

// Record returns the recycling record of a finalized request.
func (s *PickupService) Record(ctx context.Context, requestID string, actor models.Actor) (models.RecyclingRecord, error) {
	if _, err := s.Get(ctx, requestID, actor); err != nil {
		return models.RecyclingRecord{}, err
	}
	rec, err := s.Pickups.RecyclingRecord(ctx, requestID)
	if err != nil {
		return models.RecyclingRecord{}, notFound(err, "recycling record for", requestID)
	}
	return rec, nil
}

func (s *PickupService) processedBy(ctx context.Context, p models.PickupRequest) (string, error) {
	if p.Status != models.PickupRecycled {
		return "", nil
	}
	rec, err := s.Pickups.RecyclingRecord(ctx, p.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.RecyclerID, nil
}

// ListForActor returns the requests on the actor's own dashboard: a citizen's
// requests, an agent's assignments, a recycler's inbox, or everything for admins.
func (s *PickupService) ListForActor(ctx context.Context, actor models.Actor) ([]models.PickupRequest, error) {
	if actor.ID == "" {
		return nil, errors.Wrap(models.ErrForbidden, "anonymous actor")
	}
	switch actor.Role {
	case models.RoleCitizen:
		return s.Pickups.List(ctx, repositories.PickupFilter{OwnerID: actor.ID})
	case models.RoleAgent:
		return s.Pickups.List(ctx, repositories.PickupFilter{AssignedAgentID: actor.ID})
	case models.RoleRecycler:
		return s.Pickups.ListRecyclerInbox(ctx, actor.ID)
	case models.RoleAdmin:
		return s.ListAll(ctx, actor)
	}
	return nil, errors.Wrapf(models.ErrForbidden, "unknown role %q", actor.Role)
}

// ListAll returns every request, optionally narrowed by status. Admin only.
func (s *PickupService) ListAll(ctx context.Context, actor models.Actor, statuses ...models.PickupStatus) ([]models.PickupRequest, error) {
	if err := check(s.Logger, actor, authz.Resource{Kind: authz.KindPickup}, authz.PickupListAll); err != nil {
		return nil, err
	}
	for _, st := range statuses {
		if !fsm.ValidPickupStatus(st) {
			return nil, errors.Wrapf(models.ErrValidation, "unknown pickup status %q", st)
		}
	}
	return s.Pickups.List(ctx, repositories.PickupFilter{Statuses: statuses})
}

// loadAssignable fetches a request and confirms its status still admits assignment.
func (s *PickupService) loadAssignable(ctx context.Context, requestID string) (models.PickupRequest, error) {
	p, err := s.Pickups.GetByID(ctx, requestID)
	if err != nil {
		return models.PickupRequest{}, notFound(err, "pickup request", requestID)
	}
	if !fsm.Assignable(p.Status) {
		return models.PickupRequest{}, errors.Wrapf(models.ErrInvalidState, "pickup request %s is %s", p.ID, p.Status)
	}
	return p, nil
}

// bindAgent records the assignment. It fails InvalidState when the request
// moved on or was assigned by someone else in the meantime.
func (s *PickupService) bindAgent(ctx context.Context, p models.PickupRequest, agentID string) (models.PickupRequest, error) {
	if err := s.Pickups.Assign(ctx, p.ID, agentID); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.PickupRequest{}, errors.Wrapf(models.ErrInvalidState, "pickup request %s is no longer assignable", p.ID)
		}
		return models.PickupRequest{}, err
	}
	p.AssignedAgentID = &agentID
	p.UpdatedAt = time.Now().UTC()
	s.publish(ctx, events.PickupAssigned, p)
	return p, nil
}
