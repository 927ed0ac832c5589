package main

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madhvv-7/E-waste-madhav/internal/handlers"
	"github.com/madhvv-7/E-waste-madhav/internal/models"
	"github.com/madhvv-7/E-waste-madhav/internal/repositories"
	"github.com/madhvv-7/E-waste-madhav/internal/services"
	"github.com/madhvv-7/E-waste-madhav/utils"
)

func newTestApp(t *testing.T) (*application, *repositories.AccountRepository) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, repositories.Migrate(context.Background(), db, repositories.DialectSQLite))

	accounts := &repositories.AccountRepository{DB: db, Dialect: repositories.DialectSQLite}
	tokens, err := utils.NewManager("middleware-secret")
	require.NoError(t, err)
	return &application{
		db:   db,
		auth: &services.AuthService{Accounts: accounts, Tokens: tokens, TokenTTL: time.Hour},
	}, accounts
}

func TestRequireRole(t *testing.T) {
	app, accounts := newTestApp(t)
	ctx := context.Background()

	for _, a := range []models.Account{
		{ID: "admin-1", Email: "admin@test.com", Role: models.RoleAdmin, Status: models.AccountActive},
		{ID: "agent-1", Email: "agent@test.com", Role: models.RoleAgent, Status: models.AccountActive},
		{ID: "agent-2", Email: "pending@test.com", Role: models.RoleAgent, Status: models.AccountPending},
	} {
		a.Name, a.PasswordHash = a.ID, "x"
		_, err := accounts.Create(ctx, a)
		require.NoError(t, err)
	}

	var seen models.Actor
	h := app.requireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = handlers.ActorFrom(r.Context())
	}))

	call := func(userID string, role models.Role) int {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		if userID != "" {
			token, err := app.auth.Tokens.NewJWT(userID, string(role), time.Hour)
			require.NoError(t, err)
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, call("", ""))
	assert.Equal(t, http.StatusUnauthorized, call("ghost", models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, call("agent-1", models.RoleAgent))
	assert.Equal(t, http.StatusForbidden, call("agent-2", models.RoleAdmin), "pending accounts are blocked")

	assert.Equal(t, http.StatusOK, call("admin-1", models.RoleAdmin))
	assert.Equal(t, models.Actor{ID: "admin-1", Role: models.RoleAdmin}, seen)
}

func TestRequireRoleUsesStoredRole(t *testing.T) {
	app, accounts := newTestApp(t)
	_, err := accounts.Create(context.Background(), models.Account{
		ID: "c1", Name: "c", Email: "c@test.com", PasswordHash: "x", Role: models.RoleCitizen, Status: models.AccountActive,
	})
	require.NoError(t, err)

	h := app.requireRole(models.RoleAdmin)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	token, err := app.auth.Tokens.NewJWT("c1", string(models.RoleAdmin), time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, "a forged role claim does not grant admin")
}

func TestMySQLDSNForcesParseTime(t *testing.T) {
	dsn, err := mysqlDSN("ewaste:secret@tcp(localhost:3306)/ewaste")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")

	_, err = mysqlDSN("not a dsn")
	assert.Error(t, err)
}
