package fsm

import (
	"testing"

	"github.com/madhvv-7/E-waste-madhav/internal/models"
)

func TestCanTransitionAccount(t *testing.T) {
	cases := []struct {
		role     models.Role
		from, to models.AccountStatus
		want     bool
	}{
		{models.RoleAgent, models.AccountPending, models.AccountActive, true},
		{models.RoleRecycler, models.AccountPending, models.AccountRejected, true},
		{models.RoleCitizen, models.AccountPending, models.AccountActive, false},
		{models.RoleAdmin, models.AccountPending, models.AccountActive, false},
		{models.RoleAgent, models.AccountActive, models.AccountRejected, true},
		{models.RoleCitizen, models.AccountActive, models.AccountRejected, false},
		{models.RoleCitizen, models.AccountActive, models.AccountDeactivated, true},
		{models.RoleAdmin, models.AccountActive, models.AccountDeactivated, true},
		{models.RoleCitizen, models.AccountRejected, models.AccountActive, true},
		{models.RoleAgent, models.AccountDeactivated, models.AccountActive, true},
		{models.RoleAgent, models.AccountActive, models.AccountActive, false},
		{models.RoleAgent, models.AccountActive, models.AccountPending, false},
		{models.RoleAgent, models.AccountRejected, models.AccountDeactivated, false},
		{models.RoleAgent, models.AccountDeactivated, models.AccountPending, false},
	}
	for _, tc := range cases {
		if got := CanTransitionAccount(tc.role, tc.from, tc.to); got != tc.want {
			t.Fatalf("%s %s -> %s: expected %v, got %v", tc.role, tc.from, tc.to, tc.want, got)
		}
	}
}

func TestAccountTargets(t *testing.T) {
	got := AccountTargets(models.RoleAgent, models.AccountActive)
	if len(got) != 2 || got[0] != models.AccountDeactivated || got[1] != models.AccountRejected {
		t.Fatalf("unexpected targets for active agent: %v", got)
	}
	got = AccountTargets(models.RoleCitizen, models.AccountActive)
	if len(got) != 1 || got[0] != models.AccountDeactivated {
		t.Fatalf("unexpected targets for active citizen: %v", got)
	}
	if got := AccountTargets(models.RoleCitizen, models.AccountPending); len(got) != 0 {
		t.Fatalf("pending citizen should have no targets, got %v", got)
	}
}

func TestCanTransitionPickupForwardOnly(t *testing.T) {
	for i, from := range pickupOrder {
		for j, to := range pickupOrder {
			want := j == i+1
			if got := CanTransitionPickup(from, to); got != want {
				t.Fatalf("%s -> %s: expected %v, got %v", from, to, want, got)
			}
		}
	}
	if CanTransitionPickup("Assigned", models.PickupCollected) {
		t.Fatal("unknown status must not transition")
	}
}

func TestNextPickupStatus(t *testing.T) {
	next, ok := NextPickupStatus(models.PickupCollected)
	if !ok || next != models.PickupSentToRecycler {
		t.Fatalf("expected SentToRecycler, got %q", next)
	}
	if _, ok := NextPickupStatus(models.PickupRecycled); ok {
		t.Fatal("recycled must have no successor")
	}
}

func TestTerminalAndAssignable(t *testing.T) {
	if !IsTerminal(models.PickupRecycled) || IsTerminal(models.PickupSentToRecycler) {
		t.Fatal("only Recycled is terminal")
	}
	if !Assignable(models.PickupRequested) || Assignable(models.PickupCollected) || Assignable(models.PickupRecycled) {
		t.Fatal("only Requested is assignable")
	}
	if PickupRank(models.PickupRequested) != 0 || PickupRank(models.PickupRecycled) != 3 || PickupRank("x") != -1 {
		t.Fatal("unexpected rank")
	}
}

func TestReactivationAndAppealable(t *testing.T) {
	if !IsReactivation(models.AccountRejected, models.AccountActive) || IsReactivation(models.AccountPending, models.AccountActive) {
		t.Fatal("unexpected reactivation classification")
	}
	if !Appealable(models.AccountDeactivated) || Appealable(models.AccountActive) || Appealable(models.AccountPending) {
		t.Fatal("unexpected appealable classification")
	}
}
