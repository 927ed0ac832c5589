package services

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madhvv-7/E-waste-madhav/internal/fsm"
	"github.com/madhvv-7/E-waste-madhav/internal/models"
)

func TestScenarioPickupEndToEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.account(t, models.RoleAdmin, models.AccountActive)
	u1 := e.account(t, models.RoleCitizen, models.AccountActive)
	a1 := e.account(t, models.RoleAgent, models.AccountActive)
	a2 := e.account(t, models.RoleAgent, models.AccountActive)
	c1 := e.account(t, models.RoleRecycler, models.AccountActive)

	r1 := e.request(t, u1)
	assert.Equal(t, models.PickupRequested, r1.Status)

	r1, err := e.assignSv.AssignAgent(ctx, r1.ID, a1.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, a1.ID, *r1.AssignedAgentID)

	_, err = e.pickupSv.AdvanceStatus(ctx, r1.ID, models.PickupCollected, AdvanceInput{}, a1)
	require.NoError(t, err)

	_, err = e.pickupSv.AdvanceStatus(ctx, r1.ID, models.PickupSentToRecycler, AdvanceInput{}, a2)
	assert.True(t, errors.Is(err, models.ErrForbidden))
	assert.Equal(t, models.PickupCollected, e.pickup(t, r1.ID).Status)

	_, err = e.pickupSv.AdvanceStatus(ctx, r1.ID, models.PickupSentToRecycler, AdvanceInput{}, a1)
	require.NoError(t, err)

	_, err = e.pickupSv.AdvanceStatus(ctx, r1.ID, models.PickupRecycled, AdvanceInput{Method: "shredding"}, c1)
	require.NoError(t, err)

	rec, err := e.pickups.RecyclingRecord(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, r1.ID, rec.PickupRequestID)
	assert.Equal(t, c1.ID, rec.RecyclerID)

	// the request is terminal now
	_, err = e.assignSv.AssignAgent(ctx, r1.ID, a2.ID, admin)
	assert.True(t, errors.Is(err, models.ErrInvalidState))
	for _, tc := range []struct {
		target models.PickupStatus
		actor  models.Actor
	}{
		{models.PickupCollected, a1},
		{models.PickupSentToRecycler, a1},
		{models.PickupRecycled, c1},
	} {
		_, err = e.pickupSv.AdvanceStatus(ctx, r1.ID, tc.target, AdvanceInput{}, tc.actor)
		assert.True(t, errors.Is(err, models.ErrInvalidState), "%s", tc.target)
	}

	final := e.pickup(t, r1.ID)
	assert.Equal(t, models.PickupRecycled, final.Status)
	assert.Equal(t, a1.ID, *final.AssignedAgentID)
}

func TestScenarioAppealReinstatesRejectedAgent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.account(t, models.RoleAdmin, models.AccountActive)
	e1 := e.account(t, models.RoleAgent, models.AccountRejected)

	appeal, err := e.appealSv.SubmitAppeal(ctx, e1.ID+"@test.com", "", "please review")
	require.NoError(t, err)

	resolved, err := e.appealSv.ResolveAppeal(ctx, appeal.ID, models.AppealApprove, admin)
	require.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, models.AccountActive, e.status(t, e1.ID))

	_, err = e.appealSv.ResolveAppeal(ctx, appeal.ID, models.AppealApprove, admin)
	assert.True(t, errors.Is(err, models.ErrAlreadyResolved))
	assert.Equal(t, models.AccountActive, e.status(t, e1.ID))
}

func TestScenarioAdminCannotDeactivateSelf(t *testing.T) {
	e := newEnv(t)
	admin := e.account(t, models.RoleAdmin, models.AccountActive)

	_, err := e.accountSv.ApplyAccountTransition(context.Background(), admin.ID, models.AccountDeactivated, admin)
	assert.True(t, errors.Is(err, models.ErrForbidden))
	assert.Equal(t, models.AccountActive, e.status(t, admin.ID))
}

// Whatever sequence of calls is attempted, a request's status only moves
// forward and an assigned agent was active when assigned.
func TestPropertyForwardOnly(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	admin := e.account(t, models.RoleAdmin, models.AccountActive)
	citizen := e.account(t, models.RoleCitizen, models.AccountActive)
	agent := e.account(t, models.RoleAgent, models.AccountActive)
	inactive := e.account(t, models.RoleAgent, models.AccountDeactivated)
	recycler := e.account(t, models.RoleRecycler, models.AccountActive)
	r := e.request(t, citizen)

	actors := []models.Actor{admin, citizen, agent, inactive, recycler}
	targets := []models.PickupStatus{models.PickupRequested, models.PickupCollected, models.PickupSentToRecycler, models.PickupRecycled}

	last := fsm.PickupRank(models.PickupRequested)
	for round := 0; round < 3; round++ {
		for _, actor := range actors {
			_, _ = e.assignSv.AssignAgent(ctx, r.ID, inactive.ID, actor)
			_, _ = e.assignSv.AssignAgent(ctx, r.ID, agent.ID, actor)
			for i := len(targets) - 1; i >= 0; i-- {
				_, _ = e.pickupSv.AdvanceStatus(ctx, r.ID, targets[i], AdvanceInput{}, actor)

				p := e.pickup(t, r.ID)
				rank := fsm.PickupRank(p.Status)
				require.GreaterOrEqual(t, rank, last, "status regressed to %s", p.Status)
				last = rank
				if p.AssignedAgentID != nil {
					require.Equal(t, agent.ID, *p.AssignedAgentID)
				}
			}
		}
	}
	assert.Equal(t, models.PickupRecycled, e.pickup(t, r.ID).Status)
}
