package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/matryer/is"
	"github.com/pkg/errors"

	"github.com/madhvv-7/E-waste-madhav/internal/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	is := is.New(t)
	db, err := sql.Open("sqlite", ":memory:")
	is.NoErr(err)
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	is.NoErr(Migrate(context.Background(), db, DialectSQLite))
	return db
}

func seedAccount(t *testing.T, repo *AccountRepository, role models.Role, status models.AccountStatus) models.Account {
	t.Helper()
	id := uuid.NewString()
	a, err := repo.Create(context.Background(), models.Account{
		ID:           id,
		Name:         string(role) + "-" + id[:8],
		Email:        id[:8] + "@test.com",
		PasswordHash: "x",
		Role:         role,
		Status:       status,
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return a
}

func seedPickup(t *testing.T, repo *PickupRepository, ownerID string) models.PickupRequest {
	t.Helper()
	p, err := repo.Create(context.Background(), models.PickupRequest{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		Status:        models.PickupRequested,
		PickupAddress: "12 Market Road",
		Items: []models.Item{
			{Description: "old laptop", Quantity: 1},
			{Description: "phone chargers", Quantity: 4},
		},
	})
	if err != nil {
		t.Fatalf("seed pickup: %v", err)
	}
	return p
}

func TestMigrateIsIdempotent(t *testing.T) {
	is := is.New(t)
	db := newTestDB(t)
	is.NoErr(Migrate(context.Background(), db, DialectSQLite))
}

func TestRebind(t *testing.T) {
	is := is.New(t)
	q := `UPDATE users SET status = ? WHERE id = ? AND status = ?`
	is.Equal(DialectMySQL.Rebind(q), q)
	is.Equal(DialectPostgres.Rebind(q), `UPDATE users SET status = $1 WHERE id = $2 AND status = $3`)

	d, err := DialectFor("postgres")
	is.NoErr(err)
	is.Equal(d, DialectPostgres)
	_, err = DialectFor("oracle")
	is.True(err != nil)
}

func TestAccountRepository(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	repo := &AccountRepository{DB: newTestDB(t), Dialect: DialectSQLite}

	a, err := repo.Create(ctx, models.Account{
		ID: uuid.NewString(), Name: "Agent", Email: "  Agent@Test.com ", PasswordHash: "hash",
		Role: models.RoleAgent, Status: models.AccountPending,
	})
	is.NoErr(err)
	is.Equal(a.Email, "agent@test.com")

	got, err := repo.GetByEmail(ctx, "AGENT@test.com")
	is.NoErr(err)
	is.Equal(got.ID, a.ID)
	is.Equal(got.Role, models.RoleAgent)
	is.Equal(got.Status, models.AccountPending)

	_, err = repo.Create(ctx, models.Account{
		ID: uuid.NewString(), Name: "Dup", Email: "agent@test.com", PasswordHash: "hash",
		Role: models.RoleCitizen, Status: models.AccountActive,
	})
	is.True(errors.Is(err, ErrDuplicate))

	_, err = repo.GetByID(ctx, "missing")
	is.True(errors.Is(err, ErrNotFound))

	is.NoErr(repo.UpdateStatus(ctx, a.ID, models.AccountPending, models.AccountActive))
	// the second writer still expects pending
	err = repo.UpdateStatus(ctx, a.ID, models.AccountPending, models.AccountActive)
	is.True(errors.Is(err, ErrConflict))

	got, err = repo.GetByID(ctx, a.ID)
	is.NoErr(err)
	is.Equal(got.Status, models.AccountActive)
}

func TestAccountRepositoryListing(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	repo := &AccountRepository{DB: newTestDB(t), Dialect: DialectSQLite}

	seedAccount(t, repo, models.RoleCitizen, models.AccountActive)
	seedAccount(t, repo, models.RoleAgent, models.AccountActive)
	pendingAgent := seedAccount(t, repo, models.RoleAgent, models.AccountPending)
	pendingRecycler := seedAccount(t, repo, models.RoleRecycler, models.AccountPending)

	all, err := repo.List(ctx, AccountFilter{})
	is.NoErr(err)
	is.Equal(len(all), 4)

	agents, err := repo.List(ctx, AccountFilter{Role: models.RoleAgent, Status: models.AccountActive})
	is.NoErr(err)
	is.Equal(len(agents), 1)

	pending, err := repo.ListPendingStaff(ctx)
	is.NoErr(err)
	is.Equal(len(pending), 2)
	ids := map[string]bool{pending[0].ID: true, pending[1].ID: true}
	is.True(ids[pendingAgent.ID])
	is.True(ids[pendingRecycler.ID])

	is.NoErr(repo.Delete(ctx, pendingAgent.ID))
	is.True(errors.Is(repo.Delete(ctx, pendingAgent.ID), ErrNotFound))
}

func TestPickupRepositoryLifecycle(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	db := newTestDB(t)
	accounts := &AccountRepository{DB: db, Dialect: DialectSQLite}
	pickups := &PickupRepository{DB: db, Dialect: DialectSQLite}

	citizen := seedAccount(t, accounts, models.RoleCitizen, models.AccountActive)
	agent := seedAccount(t, accounts, models.RoleAgent, models.AccountActive)
	recycler := seedAccount(t, accounts, models.RoleRecycler, models.AccountActive)
	p := seedPickup(t, pickups, citizen.ID)

	got, err := pickups.GetByID(ctx, p.ID)
	is.NoErr(err)
	is.Equal(got.Status, models.PickupRequested)
	is.True(got.AssignedAgentID == nil)
	is.Equal(len(got.Items), 2)
	is.Equal(got.Items[1], models.Item{Description: "phone chargers", Quantity: 4})

	is.NoErr(pickups.Assign(ctx, p.ID, agent.ID))
	is.True(errors.Is(pickups.Assign(ctx, p.ID, "someone-else"), ErrConflict))

	err = pickups.UpdateStatus(ctx, p.ID, "someone-else", models.PickupRequested, models.PickupCollected)
	is.True(errors.Is(err, ErrConflict))
	is.NoErr(pickups.UpdateStatus(ctx, p.ID, agent.ID, models.PickupRequested, models.PickupCollected))
	is.NoErr(pickups.UpdateStatus(ctx, p.ID, agent.ID, models.PickupCollected, models.PickupSentToRecycler))

	mine, err := pickups.List(ctx, PickupFilter{AssignedAgentID: agent.ID})
	is.NoErr(err)
	is.Equal(len(mine), 1)
	is.Equal(len(mine[0].Items), 2)

	inbox, err := pickups.ListRecyclerInbox(ctx, recycler.ID)
	is.NoErr(err)
	is.Equal(len(inbox), 1)

	now := time.Now().UTC()
	rec := models.RecyclingRecord{
		ID: uuid.NewString(), PickupRequestID: p.ID, RecyclerID: recycler.ID,
		RecyclingMethod: "shredding", CompletionDate: now, CreatedAt: now,
	}
	is.NoErr(pickups.Finalize(ctx, rec))

	rec.ID = uuid.NewString()
	is.True(errors.Is(pickups.Finalize(ctx, rec), ErrConflict))

	stored, err := pickups.RecyclingRecord(ctx, p.ID)
	is.NoErr(err)
	is.Equal(stored.RecyclerID, recycler.ID)
	is.Equal(stored.RecyclingMethod, "shredding")

	// finalized requests stay visible to the recycler who processed them
	inbox, err = pickups.ListRecyclerInbox(ctx, recycler.ID)
	is.NoErr(err)
	is.Equal(len(inbox), 1)
	is.Equal(inbox[0].Status, models.PickupRecycled)

	other, err := pickups.ListRecyclerInbox(ctx, "other-recycler")
	is.NoErr(err)
	is.Equal(len(other), 0)
}

func TestFinalizeRollsBackStatusWhenRecordFails(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	db := newTestDB(t)
	pickups := &PickupRepository{DB: db, Dialect: DialectSQLite}

	agentID := "agent-1"
	p, err := pickups.Create(ctx, models.PickupRequest{
		ID: uuid.NewString(), OwnerID: "u1", AssignedAgentID: &agentID,
		Status: models.PickupSentToRecycler, PickupAddress: "somewhere",
		Items: []models.Item{{Description: "monitor", Quantity: 1}},
	})
	is.NoErr(err)

	// a stray record makes the insert inside Finalize fail
	now := time.Now().UTC()
	_, err = db.ExecContext(ctx, `INSERT INTO recycling_records
        (id, pickup_request_id, recycler_id, recycling_method, remarks, completion_date, created_at)
        VALUES (?, ?, ?, '', '', ?, ?)`, "stray", p.ID, "c0", now, now)
	is.NoErr(err)

	err = pickups.Finalize(ctx, models.RecyclingRecord{
		ID: uuid.NewString(), PickupRequestID: p.ID, RecyclerID: "c1", CompletionDate: now, CreatedAt: now,
	})
	is.True(errors.Is(err, ErrConflict))

	got, err := pickups.GetByID(ctx, p.ID)
	is.NoErr(err)
	is.Equal(got.Status, models.PickupSentToRecycler)
}

func TestAppealRepositoryResolve(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	db := newTestDB(t)
	accounts := &AccountRepository{DB: db, Dialect: DialectSQLite}
	appeals := &AppealRepository{DB: db, Dialect: DialectSQLite}

	acct := seedAccount(t, accounts, models.RoleAgent, models.AccountRejected)
	ap, err := appeals.Create(ctx, models.Appeal{
		ID: uuid.NewString(), AccountID: acct.ID, Role: acct.Role,
		StatusAtSubmission: acct.Status, Message: "please review",
	})
	is.NoErr(err)

	open := false
	list, err := appeals.List(ctx, &open)
	is.NoErr(err)
	is.Equal(len(list), 1)
	is.True(!list[0].Resolved)

	res := Resolution{
		AppealID: ap.ID, Decision: models.AppealApprove, ResolvedBy: "admin-1", At: time.Now().UTC(),
		Reactivate: &StatusChange{AccountID: acct.ID, From: models.AccountRejected, To: models.AccountActive},
	}
	is.NoErr(appeals.Resolve(ctx, res))
	is.True(errors.Is(appeals.Resolve(ctx, res), ErrAlreadyResolved))

	got, err := appeals.GetByID(ctx, ap.ID)
	is.NoErr(err)
	is.True(got.Resolved)
	is.Equal(*got.Decision, models.AppealApprove)
	is.Equal(*got.ResolvedBy, "admin-1")
	is.True(got.ResolvedAt != nil)

	updated, err := accounts.GetByID(ctx, acct.ID)
	is.NoErr(err)
	is.Equal(updated.Status, models.AccountActive)
}

func TestAppealResolveRollsBackOnAccountConflict(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	db := newTestDB(t)
	accounts := &AccountRepository{DB: db, Dialect: DialectSQLite}
	appeals := &AppealRepository{DB: db, Dialect: DialectSQLite}

	acct := seedAccount(t, accounts, models.RoleCitizen, models.AccountDeactivated)
	ap, err := appeals.Create(ctx, models.Appeal{
		ID: uuid.NewString(), AccountID: acct.ID, Role: acct.Role,
		StatusAtSubmission: acct.Status, Message: "mistake",
	})
	is.NoErr(err)

	// an admin reactivated the account after the resolution was planned
	is.NoErr(accounts.UpdateStatus(ctx, acct.ID, models.AccountDeactivated, models.AccountActive))

	err = appeals.Resolve(ctx, Resolution{
		AppealID: ap.ID, Decision: models.AppealApprove, ResolvedBy: "admin-1", At: time.Now().UTC(),
		Reactivate: &StatusChange{AccountID: acct.ID, From: models.AccountDeactivated, To: models.AccountActive},
	})
	is.True(errors.Is(err, ErrConflict))

	got, err := appeals.GetByID(ctx, ap.ID)
	is.NoErr(err)
	is.True(!got.Resolved)
}
