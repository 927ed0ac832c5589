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

// AppealService lets blocked accounts ask for reinstatement and lets admins
// decide, once, on each request.
type AppealService struct {
	Appeals  AppealStore
	Accounts *AccountService
	Locker   lock.Locker
	Events   events.Publisher
	Logger   Logger
}

// SubmitAppeal files an appeal for the account registered under email. The
// caller is anonymous: blocked accounts cannot sign in.
func (s *AppealService) SubmitAppeal(ctx context.Context, email, subject, message string) (models.Appeal, error) {
	if err := check(s.Logger, models.Actor{}, authz.Resource{Kind: authz.KindAppeal}, authz.AppealSubmit); err != nil {
		return models.Appeal{}, err
	}
	email = models.NormalizeEmail(email)
	message = strings.TrimSpace(message)
	if email == "" {
		return models.Appeal{}, errors.Wrap(models.ErrValidation, "email is required")
	}
	if message == "" {
		return models.Appeal{}, errors.Wrap(models.ErrValidation, "message is required")
	}

	acct, err := s.Accounts.Accounts.GetByEmail(ctx, email)
	if err != nil {
		return models.Appeal{}, notFound(err, "account", email)
	}
	if !fsm.Appealable(acct.Status) {
		return models.Appeal{}, errors.Wrapf(models.ErrInvalidState, "account is %s, only rejected or deactivated accounts may appeal", acct.Status)
	}

	a, err := s.Appeals.Create(ctx, models.Appeal{
		ID:                 uuid.NewString(),
		AccountID:          acct.ID,
		Role:               acct.Role,
		StatusAtSubmission: acct.Status,
		Subject:            strings.TrimSpace(subject),
		Message:            message,
	})
	if err != nil {
		return models.Appeal{}, err
	}
	loggerOrNop(s.Logger).Infof("services: appeal %s submitted for account %s (%s)", a.ID, acct.ID, acct.Status)
	return a, nil
}

// ResolveAppeal closes an appeal. Approving it reactivates the account in the
// same transaction; an account that is already active is left alone.
func (s *AppealService) ResolveAppeal(ctx context.Context, appealID string, decision models.AppealDecision, actor models.Actor) (models.Appeal, error) {
	if err := check(s.Logger, actor, authz.Resource{Kind: authz.KindAppeal, ID: appealID}, authz.AppealResolve); err != nil {
		return models.Appeal{}, err
	}
	if decision != models.AppealApprove && decision != models.AppealReject {
		return models.Appeal{}, errors.Wrapf(models.ErrValidation, "decision must be %q or %q", models.AppealApprove, models.AppealReject)
	}

	unlock, err := acquire(ctx, s.Locker, lock.AppealKey(appealID))
	if err != nil {
		return models.Appeal{}, err
	}
	defer unlock()

	a, err := s.Appeals.GetByID(ctx, appealID)
	if err != nil {
		return models.Appeal{}, notFound(err, "appeal", appealID)
	}
	if a.Resolved {
		return models.Appeal{}, errors.Wrapf(models.ErrAlreadyResolved, "appeal %s", a.ID)
	}

	res := repositories.Resolution{
		AppealID:   a.ID,
		Decision:   decision,
		ResolvedBy: actor.ID,
		At:         time.Now().UTC(),
	}
	if decision == models.AppealApprove {
		unlockAccount, err := acquire(ctx, s.Locker, lock.AccountKey(a.AccountID))
		if err != nil {
			return models.Appeal{}, err
		}
		defer unlockAccount()

		change, _, err := s.Accounts.planReactivation(ctx, a.AccountID)
		if err != nil {
			return models.Appeal{}, err
		}
		res.Reactivate = change
	}

	if err := s.Appeals.Resolve(ctx, res); err != nil {
		switch {
		case errors.Is(err, repositories.ErrAlreadyResolved):
			return models.Appeal{}, errors.Wrapf(models.ErrAlreadyResolved, "appeal %s", a.ID)
		case errors.Is(err, repositories.ErrConflict):
			return models.Appeal{}, errors.Wrapf(models.ErrInvalidTransition, "account %s changed status", a.AccountID)
		}
		return models.Appeal{}, err
	}

	a.Resolved = true
	a.Decision = &decision
	a.ResolvedBy = &actor.ID
	a.ResolvedAt = &res.At
	loggerOrNop(s.Logger).Infof("services: appeal %s resolved (%s) by %s", a.ID, decision, actor.ID)

	pub := publisherOrNop(s.Events)
	pub.Publish(ctx, events.Event{
		Kind: events.AppealResolved, ResourceID: a.ID, Status: string(decision),
		At: res.At, Recipients: []string{a.AccountID},
	})
	if res.Reactivate != nil {
		pub.Publish(ctx, events.Event{
			Kind: events.AccountStatus, ResourceID: a.AccountID, Status: string(models.AccountActive),
			At: res.At, Recipients: []string{a.AccountID},
		})
	}
	return a, nil
}

// List returns appeals newest first. A nil resolved returns all of them.
func (s *AppealService) List(ctx context.Context, resolved *bool, actor models.Actor) ([]models.Appeal, error) {
	if err := check(s.Logger, actor, authz.Resource{Kind: authz.KindAppeal}, authz.AppealRead); err != nil {
		return nil, err
	}
	return s.Appeals.List(ctx, resolved)
}
