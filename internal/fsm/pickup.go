package fsm

import "github.com/madhvv-7/E-waste-madhav/internal/models"

// pickupOrder is the only path a request may take.
var pickupOrder = []models.PickupStatus{
	models.PickupRequested,
	models.PickupCollected,
	models.PickupSentToRecycler,
	models.PickupRecycled,
}

var pickupTransitions = map[models.PickupStatus]map[models.PickupStatus]struct{}{
	models.PickupRequested:      {models.PickupCollected: {}},
	models.PickupCollected:      {models.PickupSentToRecycler: {}},
	models.PickupSentToRecycler: {models.PickupRecycled: {}},
	models.PickupRecycled:       {},
}

// CanTransitionPickup returns whether a request may advance from one status to the next.
func CanTransitionPickup(from, to models.PickupStatus) bool {
	allowed, ok := pickupTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// NextPickupStatus returns the status that immediately follows from.
func NextPickupStatus(from models.PickupStatus) (models.PickupStatus, bool) {
	for to := range pickupTransitions[from] {
		return to, true
	}
	return "", false
}

// PickupRank is the position of s in the forward order, or -1 if unknown.
func PickupRank(s models.PickupStatus) int {
	for i, v := range pickupOrder {
		if v == s {
			return i
		}
	}
	return -1
}

// ValidPickupStatus reports whether s is a known pickup status.
func ValidPickupStatus(s models.PickupStatus) bool {
	return PickupRank(s) >= 0
}

// IsTerminal reports whether no further change is allowed on a request in status s.
func IsTerminal(s models.PickupStatus) bool {
	return s == models.PickupRecycled
}

// Assignable reports whether an agent may be bound to a request in status s.
func Assignable(s models.PickupStatus) bool {
	return s == models.PickupRequested
}
