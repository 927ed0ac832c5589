package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/madhvv-7/E-waste-madhav/internal/events"
	"github.com/madhvv-7/E-waste-madhav/internal/lock"
	"github.com/madhvv-7/E-waste-madhav/internal/models"
	"github.com/madhvv-7/E-waste-madhav/internal/repositories"
	"github.com/madhvv-7/E-waste-madhav/utils"
)

type testLogger struct{}

func (testLogger) Infof(string, ...interface{})  {}
func (testLogger) Errorf(string, ...interface{}) {}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) kinds() []events.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Kind, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fakeArchiver struct {
	mu      sync.Mutex
	records []models.RecyclingRecord
	err     error
}

func (a *fakeArchiver) Archive(_ context.Context, rec models.RecyclingRecord, _ models.PickupRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.records = append(a.records, rec)
	return nil
}

type env struct {
	db        *sql.DB
	accounts  *repositories.AccountRepository
	pickups   *repositories.PickupRepository
	appeals   *repositories.AppealRepository
	events    *recordingPublisher
	archiver  *fakeArchiver
	accountSv *AccountService
	pickupSv  *PickupService
	assignSv  *AssignmentCoordinator
	appealSv  *AppealService
	authSv    *AuthService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repositories.Migrate(context.Background(), db, repositories.DialectSQLite))

	e := &env{
		db:       db,
		accounts: &repositories.AccountRepository{DB: db, Dialect: repositories.DialectSQLite},
		pickups:  &repositories.PickupRepository{DB: db, Dialect: repositories.DialectSQLite},
		appeals:  &repositories.AppealRepository{DB: db, Dialect: repositories.DialectSQLite},
		events:   &recordingPublisher{},
		archiver: &fakeArchiver{},
	}
	locker := lock.NewLocal(time.Second)
	logger := testLogger{}

	e.accountSv = &AccountService{Accounts: e.accounts, Locker: locker, Events: e.events, Logger: logger}
	e.pickupSv = &PickupService{Pickups: e.pickups, Locker: locker, Events: e.events, Archiver: e.archiver, Logger: logger}
	e.assignSv = &AssignmentCoordinator{Accounts: e.accountSv, Pickups: e.pickupSv, Locker: locker, Logger: logger}
	e.appealSv = &AppealService{Appeals: e.appeals, Accounts: e.accountSv, Locker: locker, Events: e.events, Logger: logger}

	tokens, err := utils.NewManager("test-secret")
	require.NoError(t, err)
	e.authSv = &AuthService{Accounts: e.accounts, Tokens: tokens, TokenTTL: time.Hour, Logger: logger}
	return e
}

// account inserts an account directly, bypassing registration rules.
func (e *env) account(t *testing.T, role models.Role, status models.AccountStatus) models.Actor {
	t.Helper()
	id := uuid.NewString()
	_, err := e.accounts.Create(context.Background(), models.Account{
		ID:           id,
		Name:         string(role),
		Email:        id + "@test.com",
		PasswordHash: "x",
		Role:         role,
		Status:       status,
	})
	require.NoError(t, err)
	return models.Actor{ID: id, Role: role}
}

func (e *env) status(t *testing.T, id string) models.AccountStatus {
	t.Helper()
	a, err := e.accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return a.Status
}

func (e *env) request(t *testing.T, owner models.Actor) models.PickupRequest {
	t.Helper()
	p, err := e.pickupSv.CreateRequest(context.Background(), owner,
		[]models.Item{{Description: "laptop", Quantity: 1}}, "221B Baker Street")
	require.NoError(t, err)
	return p
}

func (e *env) pickup(t *testing.T, id string) models.PickupRequest {
	t.Helper()
	p, err := e.pickups.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}
