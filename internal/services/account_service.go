package services

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/madhvv-7/E-waste-madhav/internal/authz"
	"github.com/madhvv-7/E-waste-madhav/internal/events"
	"github.com/madhvv-7/E-waste-madhav/internal/fsm"
	"github.com/madhvv-7/E-waste-madhav/internal/lock"
	"github.com/madhvv-7/E-waste-madhav/internal/models"
	"github.com/madhvv-7/E-waste-madhav/internal/repositories"
)

// AccountService applies the account status machine. It is the only writer
// of account status outside an appeal resolution.
type AccountService struct {
	Accounts AccountStore
	Locker   lock.Locker
	Events   events.Publisher
	Logger   Logger
}

// ApplyAccountTransition moves an account to target on behalf of an admin.
func (s *AccountService) ApplyAccountTransition(ctx context.Context, accountID string, target models.AccountStatus, actor models.Actor) (models.AccountView, error) {
	return s.transition(ctx, accountID, target, actor)
}

// Approve lets a pending agent or recycler sign in.
func (s *AccountService) Approve(ctx context.Context, accountID string, actor models.Actor) (models.AccountView, error) {
	return s.transition(ctx, accountID, models.AccountActive, actor, models.AccountPending)
}

// Reject refuses a pending application or revokes an approved one.
func (s *AccountService) Reject(ctx context.Context, accountID string, actor models.Actor) (models.AccountView, error) {
	return s.transition(ctx, accountID, models.AccountRejected, actor)
}

func (s *AccountService) Deactivate(ctx context.Context, accountID string, actor models.Actor) (models.AccountView, error) {
	return s.transition(ctx, accountID, models.AccountDeactivated, actor)
}

// Reactivate returns a rejected or deactivated account to active.
func (s *AccountService) Reactivate(ctx context.Context, accountID string, actor models.Actor) (models.AccountView, error) {
	return s.transition(ctx, accountID, models.AccountActive, actor, models.AccountRejected, models.AccountDeactivated)
}

// transition applies target. When from is non-empty the current status must be one of them.
func (s *AccountService) transition(ctx context.Context, accountID string, target models.AccountStatus, actor models.Actor, from ...models.AccountStatus) (models.AccountView, error) {
	res := authz.Resource{Kind: authz.KindAccount, ID: accountID, TargetStatus: target}
	if err := check(s.Logger, actor, res, authz.AccountTransition); err != nil {
		return models.AccountView{}, err
	}
	if !target.Valid() {
		return models.AccountView{}, errors.Wrapf(models.ErrValidation, "unknown account status %q", target)
	}

	unlock, err := acquire(ctx, s.Locker, lock.AccountKey(accountID))
	if err != nil {
		return models.AccountView{}, err
	}
	defer unlock()

	acct, err := s.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return models.AccountView{}, notFound(err, "account", accountID)
	}

	if len(from) > 0 && !statusIn(acct.Status, from) {
		return models.AccountView{}, s.invalid(acct, target)
	}
	if !fsm.CanTransitionAccount(acct.Role, acct.Status, target) {
		return models.AccountView{}, s.invalid(acct, target)
	}

	if err := s.Accounts.UpdateStatus(ctx, acct.ID, acct.Status, target); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.AccountView{}, errors.Wrapf(models.ErrInvalidTransition,
				"account %s is no longer %s", acct.ID, acct.Status)
		}
		return models.AccountView{}, err
	}

	loggerOrNop(s.Logger).Infof("services: account %s %s -> %s by %s", acct.ID, acct.Status, target, actor.ID)
	acct.Status = target
	acct.UpdatedAt = time.Now().UTC()
	s.publish(ctx, acct)
	return acct.View(), nil
}

func (s *AccountService) invalid(acct models.Account, target models.AccountStatus) error {
	loggerOrNop(s.Logger).Infof("services: account %s (%s) cannot go %s -> %s", acct.ID, acct.Role, acct.Status, target)
	return errors.Wrapf(models.ErrInvalidTransition, "%s account cannot go from %s to %s", acct.Role, acct.Status, target)
}

func (s *AccountService) publish(ctx context.Context, acct models.Account) {
	publisherOrNop(s.Events).Publish(ctx, events.Event{
		Kind:       events.AccountStatus,
		ResourceID: acct.ID,
		Status:     string(acct.Status),
		At:         acct.UpdatedAt,
		Recipients: []string{acct.ID},
	})
}

// AgentEligibility returns the agent if it may take new pickups right now.
func (s *AccountService) AgentEligibility(ctx context.Context, agentID string) (models.Account, error) {
	acct, err := s.Accounts.GetByID(ctx, agentID)
	if errors.Is(err, repositories.ErrNotFound) {
		return models.Account{}, errors.Wrapf(models.ErrInvalidAgent, "agent %s does not exist", agentID)
	}
	if err != nil {
		return models.Account{}, err
	}
	if acct.Role != models.RoleAgent {
		return models.Account{}, errors.Wrapf(models.ErrInvalidAgent, "account %s is a %s", agentID, acct.Role)
	}
	if acct.Status != models.AccountActive {
		return models.Account{}, errors.Wrapf(models.ErrInvalidAgent, "agent %s is %s", agentID, acct.Status)
	}
	return acct, nil
}

// planReactivation works out the status change an approved appeal applies.
// It returns nil when the account is already active.
func (s *AccountService) planReactivation(ctx context.Context, accountID string) (*repositories.StatusChange, models.Account, error) {
	acct, err := s.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, models.Account{}, notFound(err, "account", accountID)
	}
	if acct.Status == models.AccountActive {
		return nil, acct, nil
	}
	if !fsm.IsReactivation(acct.Status, models.AccountActive) || !fsm.CanTransitionAccount(acct.Role, acct.Status, models.AccountActive) {
		return nil, acct, s.invalid(acct, models.AccountActive)
	}
	return &repositories.StatusChange{AccountID: acct.ID, From: acct.Status, To: models.AccountActive}, acct, nil
}

// Get returns an account the actor is allowed to see.
func (s *AccountService) Get(ctx context.Context, accountID string, actor models.Actor) (models.AccountView, error) {
	if err := check(s.Logger, actor, authz.Resource{Kind: authz.KindAccount, ID: accountID}, authz.AccountRead); err != nil {
		return models.AccountView{}, err
	}
	acct, err := s.Accounts.GetByID(ctx, accountID)
	if err != nil {
		return models.AccountView{}, notFound(err, "account", accountID)
	}
	return acct.View(), nil
}

// List returns every account matching f. Admin only.
func (s *AccountService) List(ctx context.Context, f repositories.AccountFilter, actor models.Actor) ([]models.AccountView, error) {
	if err := check(s.Logger, actor, authz.Resource{Kind: authz.KindAccount}, authz.AccountRead); err != nil {
		return nil, err
	}
	accts, err := s.Accounts.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return views(accts), nil
}

// ListPending returns agent and recycler applications awaiting a decision.
func (s *AccountService) ListPending(ctx context.Context, actor models.Actor) ([]models.AccountView, error) {
	if err := check(s.Logger, actor, authz.Resource{Kind: authz.KindAccount}, authz.AccountRead); err != nil {
		return nil, err
	}
	accts, err := s.Accounts.ListPendingStaff(ctx)
	if err != nil {
		return nil, err
	}
	return views(accts), nil
}

// ListAssignableAgents returns the agents an admin may assign right now.
func (s *AccountService) ListAssignableAgents(ctx context.Context, actor models.Actor) ([]models.AccountView, error) {
	return s.List(ctx, repositories.AccountFilter{Role: models.RoleAgent, Status: models.AccountActive}, actor)
}

// Delete removes an account outright. It bypasses the status machine and
// exists for administrative cleanup only.
func (s *AccountService) Delete(ctx context.Context, accountID string, actor models.Actor) error {
	if err := check(s.Logger, actor, authz.Resource{Kind: authz.KindAccount, ID: accountID}, authz.AccountDelete); err != nil {
		return err
	}
	unlock, err := acquire(ctx, s.Locker, lock.AccountKey(accountID))
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.Accounts.Delete(ctx, accountID); err != nil {
		return notFound(err, "account", accountID)
	}
	loggerOrNop(s.Logger).Infof("services: account %s deleted by %s", accountID, actor.ID)
	return nil
}

func statusIn(s models.AccountStatus, set []models.AccountStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func views(accts []models.Account) []models.AccountView {
	out := make([]models.AccountView, 0, len(accts))
	for _, a := range accts {
		out = append(out, a.View())
	}
	return out
}
