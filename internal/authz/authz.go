// Package authz decides who may do what to which record. Every service
// operation consults CanPerform before it reads or writes state.
package authz

import "github.com/madhvv-7/E-waste-madhav/internal/models"

type Action string

const (
	PickupCreate   Action = "pickup.create"
	PickupRead     Action = "pickup.read"
	PickupAssign   Action = "pickup.assign"
	PickupAdvance  Action = "pickup.advance"
	PickupFinalize Action = "pickup.finalize"
	PickupListAll  Action = "pickup.list_all"

	AccountRead       Action = "account.read"
	AccountTransition Action = "account.transition"
	AccountDelete     Action = "account.delete"

	AppealSubmit  Action = "appeal.submit"
	AppealRead    Action = "appeal.read"
	AppealResolve Action = "appeal.resolve"
)

type Kind string

const (
	KindPickup  Kind = "pickup"
	KindAccount Kind = "account"
	KindAppeal  Kind = "appeal"
)

// Resource describes the record an action targets. Only the fields relevant
// to the action need to be set.
type Resource struct {
	Kind Kind
	ID   string

	// pickup requests
	OwnerID      string
	AssigneeID   string
	PickupStatus models.PickupStatus
	ProcessedBy  string

	// account transitions
	TargetStatus models.AccountStatus
}

// Decision is the gate's verdict. Reason is set on denials and is meant for logs.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// CanPerform returns whether actor may perform action on res.
func CanPerform(actor models.Actor, res Resource, action Action) Decision {
	if action == AppealSubmit {
		// appeals come from accounts that cannot sign in
		return allow()
	}
	if actor.ID == "" {
		return deny("anonymous actor")
	}

	switch action {
	case PickupCreate:
		if actor.Role != models.RoleCitizen {
			return deny("only citizens create pickup requests")
		}
		return allow()

	case PickupRead:
		return canReadPickup(actor, res)

	case PickupAssign, PickupListAll:
		if actor.Role != models.RoleAdmin {
			return deny("admin only")
		}
		return allow()

	case PickupAdvance:
		if actor.Role != models.RoleAgent {
			return deny("only agents collect and forward requests")
		}
		if res.AssigneeID == "" || res.AssigneeID != actor.ID {
			return deny("request is not assigned to this agent")
		}
		return allow()

	case PickupFinalize:
		if actor.Role != models.RoleRecycler {
			return deny("only recyclers finalize requests")
		}
		return allow()

	case AccountRead:
		if actor.Role == models.RoleAdmin || actor.ID == res.ID {
			return allow()
		}
		return deny("account belongs to someone else")

	case AccountTransition:
		if actor.Role != models.RoleAdmin {
			return deny("admin only")
		}
		if res.ID == actor.ID && res.TargetStatus == models.AccountDeactivated {
			return deny("admins cannot deactivate themselves")
		}
		return allow()

	case AccountDelete:
		if actor.Role != models.RoleAdmin {
			return deny("admin only")
		}
		if res.ID == actor.ID {
			return deny("admins cannot delete themselves")
		}
		return allow()

	case AppealRead, AppealResolve:
		if actor.Role != models.RoleAdmin {
			return deny("admin only")
		}
		return allow()
	}

	return deny("unknown action " + string(action))
}

func canReadPickup(actor models.Actor, res Resource) Decision {
	switch actor.Role {
	case models.RoleAdmin:
		return allow()
	case models.RoleCitizen:
		if res.OwnerID == actor.ID {
			return allow()
		}
		return deny("request belongs to another citizen")
	case models.RoleAgent:
		if res.AssigneeID != "" && res.AssigneeID == actor.ID {
			return allow()
		}
		return deny("request is not assigned to this agent")
	case models.RoleRecycler:
		if res.PickupStatus == models.PickupSentToRecycler {
			return allow()
		}
		if res.PickupStatus == models.PickupRecycled && res.ProcessedBy == actor.ID {
			return allow()
		}
		return deny("request is not waiting for a recycler")
	}
	return deny("unknown role")
}

// PickupResource builds the gate's view of a pickup request.
func PickupResource(p models.PickupRequest, processedBy string) Resource {
	res := Resource{
		Kind:         KindPickup,
		ID:           p.ID,
		OwnerID:      p.OwnerID,
		PickupStatus: p.Status,
		ProcessedBy:  processedBy,
	}
	if p.AssignedAgentID != nil {
		res.AssigneeID = *p.AssignedAgentID
	}
	return res
}
