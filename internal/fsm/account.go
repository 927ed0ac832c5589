package fsm

import (
	"golang.org/x/exp/slices"

	"github.com/madhvv-7/E-waste-madhav/internal/models"
)

type roleSet map[models.Role]struct{}

// allows reports whether role r may take the transition. A nil set admits every role.
func (s roleSet) allows(r models.Role) bool {
	if s == nil {
		return true
	}
	_, ok := s[r]
	return ok
}

var approvalRoles = roleSet{
	models.RoleAgent:    {},
	models.RoleRecycler: {},
}

// accountTransitions maps from -> to -> roles the transition applies to.
var accountTransitions = map[models.AccountStatus]map[models.AccountStatus]roleSet{
	models.AccountPending: {
		models.AccountActive:   approvalRoles,
		models.AccountRejected: approvalRoles,
	},
	models.AccountActive: {
		models.AccountRejected:    approvalRoles,
		models.AccountDeactivated: nil,
	},
	models.AccountRejected: {
		models.AccountActive: nil,
	},
	models.AccountDeactivated: {
		models.AccountActive: nil,
	},
}

// CanTransitionAccount returns whether an account of the given role may move
// from one status to another. Staying in place is never a transition.
func CanTransitionAccount(role models.Role, from, to models.AccountStatus) bool {
	allowed, ok := accountTransitions[from]
	if !ok {
		return false
	}
	roles, ok := allowed[to]
	if !ok {
		return false
	}
	return roles.allows(role)
}

// AccountTargets lists the statuses reachable from `from` for the role, sorted by name.
func AccountTargets(role models.Role, from models.AccountStatus) []models.AccountStatus {
	var out []models.AccountStatus
	for to, roles := range accountTransitions[from] {
		if roles.allows(role) {
			out = append(out, to)
		}
	}
	slices.Sort(out)
	return out
}

// IsReactivation reports whether the transition returns a blocked account to active.
// Only these transitions are open to the appeal path.
func IsReactivation(from, to models.AccountStatus) bool {
	return to == models.AccountActive && (from == models.AccountRejected || from == models.AccountDeactivated)
}

// Appealable reports whether an account in status s may submit an appeal.
func Appealable(s models.AccountStatus) bool {
	return s == models.AccountRejected || s == models.AccountDeactivated
}
