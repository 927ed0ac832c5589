// Package events delivers status changes to the accounts they concern.
// Delivery is best effort and happens after the change is committed.
package events

import (
	"context"
	"time"
)

type Kind string

const (
	PickupCreated  Kind = "pickup.created"
	PickupAssigned Kind = "pickup.assigned"
	PickupStatus   Kind = "pickup.status"
	AccountStatus  Kind = "account.status"
	AppealResolved Kind = "appeal.resolved"
)

type Event struct {
	Kind       Kind      `json:"kind"`
	ResourceID string    `json:"resource_id"`
	Status     string    `json:"status"`
	At         time.Time `json:"at"`

	// Recipients are the account ids that should hear about the change.
	Recipients []string `json:"-"`
}

// Logger defines minimal logging interface required by publishers.
type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Fanout hands each event to every publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, ev)
		}
	}
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
