package services

import (
	"context"

	"github.com/pkg/errors"

	"github.com/madhvv-7/E-waste-madhav/internal/authz"
	"github.com/madhvv-7/E-waste-madhav/internal/lock"
	"github.com/madhvv-7/E-waste-madhav/internal/models"
)

// AssignmentCoordinator binds an agent to a pickup request. It is the one
// place that reads both status machines, so an agent is only ever assigned
// while its account is active and the request is still Requested.
type AssignmentCoordinator struct {
	Accounts *AccountService
	Pickups  *PickupService
	Locker   lock.Locker
	Logger   Logger
}

func (c *AssignmentCoordinator) AssignAgent(ctx context.Context, requestID, agentID string, actor models.Actor) (models.PickupRequest, error) {
	if err := check(c.Logger, actor, authz.Resource{Kind: authz.KindPickup, ID: requestID}, authz.PickupAssign); err != nil {
		return models.PickupRequest{}, err
	}

	// pickup before account; nothing takes them in the other order
	unlockPickup, err := acquire(ctx, c.Locker, lock.PickupKey(requestID))
	if err != nil {
		return models.PickupRequest{}, err
	}
	defer unlockPickup()

	p, err := c.Pickups.loadAssignable(ctx, requestID)
	if err != nil {
		return models.PickupRequest{}, err
	}

	unlockAgent, err := acquire(ctx, c.Locker, lock.AccountKey(agentID))
	if err != nil {
		return models.PickupRequest{}, err
	}
	defer unlockAgent()

	if _, err := c.Accounts.AgentEligibility(ctx, agentID); err != nil {
		loggerOrNop(c.Logger).Infof("services: cannot assign %s to pickup %s: %v", agentID, requestID, err)
		return models.PickupRequest{}, err
	}
	if p.IsAssigned() {
		return models.PickupRequest{}, errors.Wrapf(models.ErrInvalidState, "pickup request %s is already assigned to %s", p.ID, *p.AssignedAgentID)
	}

	p, err = c.Pickups.bindAgent(ctx, p, agentID)
	if err != nil {
		return models.PickupRequest{}, err
	}
	loggerOrNop(c.Logger).Infof("services: pickup %s assigned to %s by %s", p.ID, agentID, actor.ID)
	return p, nil
}
