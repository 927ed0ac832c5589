package services

import (
	"context"

	"github.com/pkg/errors"

	"github.com/madhvv-7/E-waste-madhav/internal/authz"
	"github.com/madhvv-7/E-waste-madhav/internal/events"
	"github.com/madhvv-7/E-waste-madhav/internal/lock"
	"github.com/madhvv-7/E-waste-madhav/internal/models"
	"github.com/madhvv-7/E-waste-madhav/internal/repositories"
)

// Logger defines minimal logging interface required by services.
type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

type AccountStore interface {
	Create(ctx context.Context, a models.Account) (models.Account, error)
	GetByID(ctx context.Context, id string) (models.Account, error)
	GetByEmail(ctx context.Context, email string) (models.Account, error)
	List(ctx context.Context, f repositories.AccountFilter) ([]models.Account, error)
	ListPendingStaff(ctx context.Context) ([]models.Account, error)
	UpdateStatus(ctx context.Context, id string, from, to models.AccountStatus) error
	Delete(ctx context.Context, id string) error
}

type PickupStore interface {
	Create(ctx context.Context, p models.PickupRequest) (models.PickupRequest, error)
	GetByID(ctx context.Context, id string) (models.PickupRequest, error)
	List(ctx context.Context, f repositories.PickupFilter) ([]models.PickupRequest, error)
	ListRecyclerInbox(ctx context.Context, recyclerID string) ([]models.PickupRequest, error)
	Assign(ctx context.Context, id, agentID string) error
	UpdateStatus(ctx context.Context, id, agentID string, from, to models.PickupStatus) error
	Finalize(ctx context.Context, rec models.RecyclingRecord) error
	RecyclingRecord(ctx context.Context, requestID string) (models.RecyclingRecord, error)
}

type AppealStore interface {
	Create(ctx context.Context, a models.Appeal) (models.Appeal, error)
	GetByID(ctx context.Context, id string) (models.Appeal, error)
	List(ctx context.Context, resolved *bool) ([]models.Appeal, error)
	Resolve(ctx context.Context, res repositories.Resolution) error
}

// Archiver keeps an off-site copy of finalized recycling records.
type Archiver interface {
	Archive(ctx context.Context, rec models.RecyclingRecord, req models.PickupRequest) error
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

func loggerOrNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

func publisherOrNop(p events.Publisher) events.Publisher {
	if p == nil {
		return events.Nop{}
	}
	return p
}

func acquire(ctx context.Context, l lock.Locker, key string) (func(), error) {
	if l == nil {
		return func() {}, nil
	}
	return l.Lock(ctx, key)
}

// check runs the gate and logs denials with their reason.
func check(logger Logger, actor models.Actor, res authz.Resource, action authz.Action) error {
	d := authz.CanPerform(actor, res, action)
	if d.Allowed {
		return nil
	}
	loggerOrNop(logger).Infof("services: %s denied for %s %s on %s %s: %s",
		action, actor.Role, actor.ID, res.Kind, res.ID, d.Reason)
	return errors.Wrap(models.ErrForbidden, d.Reason)
}

// notFound converts the store's miss into the domain error.
func notFound(err error, what, id string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return errors.Wrapf(models.ErrNotFound, "%s %s", what, id)
	}
	return err
}
