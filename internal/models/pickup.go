package models

import "time"

// PickupStatus is the position of a pickup request in the collection chain.
type PickupStatus string

const (
	PickupRequested      PickupStatus = "Requested"
	PickupCollected      PickupStatus = "Collected"
	PickupSentToRecycler PickupStatus = "SentToRecycler"
	PickupRecycled       PickupStatus = "Recycled"
)

type Item struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
}

type PickupRequest struct {
	ID              string       `json:"id"`
	OwnerID         string       `json:"owner_id"`
	AssignedAgentID *string      `json:"assigned_agent_id"`
	Status          PickupStatus `json:"status"`
	Items           []Item       `json:"items"`
	PickupAddress   string       `json:"pickup_address"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// IsAssigned reports whether an agent has been bound to the request.
func (p PickupRequest) IsAssigned() bool {
	return p.AssignedAgentID != nil && *p.AssignedAgentID != ""
}

// AssignedTo reports whether the request is bound to the given agent.
func (p PickupRequest) AssignedTo(agentID string) bool {
	return p.IsAssigned() && *p.AssignedAgentID == agentID
}

// RecyclingRecord is the audit entry written when a recycler finalizes a request.
type RecyclingRecord struct {
	ID              string    `json:"id"`
	PickupRequestID string    `json:"pickup_request_id"`
	RecyclerID      string    `json:"recycler_id"`
	RecyclingMethod string    `json:"recycling_method,omitempty"`
	Remarks         string    `json:"remarks,omitempty"`
	CompletionDate  time.Time `json:"completion_date"`
	CreatedAt       time.Time `json:"created_at"`
}
