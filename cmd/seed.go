package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/madhvv-7/E-waste-madhav/internal/lock"
	"github.com/madhvv-7/E-waste-madhav/internal/models"
	"github.com/madhvv-7/E-waste-madhav/internal/repositories"
	"github.com/madhvv-7/E-waste-madhav/internal/services"
	"github.com/madhvv-7/E-waste-madhav/utils"
)

const seedPassword = "password123"

var seedAccounts = []services.RegisterInput{
	{Name: "John Citizen", Email: "user@test.com", Role: "citizen", Address: "123 Main Street, City", Phone: "1234567890"},
	{Name: "Agent Smith", Email: "agent@test.com", Role: "agent", Address: "456 Agent Lane", Phone: "2345678901"},
	{Name: "Recycle Green", Email: "recycler@test.com", Role: "recycler", Address: "789 Recycle Road", Phone: "3456789012"},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the demo accounts and pickup requests",
	Long: `seed creates one account per role (password "password123"), approves the
agent and recycler, and files two pickup requests for the citizen: one
Requested and one Collected by the agent. It refuses to run twice.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, dialect, err := openDB(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := repositories.Migrate(cmd.Context(), db, dialect); err != nil {
			return err
		}
		return seed(cmd.Context(), db, dialect)
	},
}

func seed(ctx context.Context, db *sql.DB, dialect repositories.Dialect) error {
	logger := appLogger{}
	accountRepo := &repositories.AccountRepository{DB: db, Dialect: dialect}
	pickupRepo := &repositories.PickupRepository{DB: db, Dialect: dialect}
	locker := lock.NewLocal(cfg.Locks.Wait)

	tokens, err := utils.NewManager(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}
	auth := &services.AuthService{Accounts: accountRepo, Tokens: tokens, Logger: logger}
	accounts := &services.AccountService{Accounts: accountRepo, Locker: locker, Logger: logger}
	pickups := &services.PickupService{Pickups: pickupRepo, Locker: locker, Logger: logger}
	coordinator := &services.AssignmentCoordinator{Accounts: accounts, Pickups: pickups, Locker: locker, Logger: logger}

	adminView, err := auth.CreateAdmin(ctx, "Admin User", "admin@test.com", seedPassword)
	if errors.Is(err, models.ErrDuplicateEmail) {
		infoLog.Printf("Seed data already present, nothing to do")
		return nil
	}
	if err != nil {
		return err
	}
	admin := models.Actor{ID: adminView.ID, Role: models.RoleAdmin}

	created := make(map[models.Role]models.AccountView, len(seedAccounts))
	for _, in := range seedAccounts {
		in.Password = seedPassword
		v, err := auth.Register(ctx, in)
		if err != nil {
			return errors.Wrapf(err, "register %s", in.Email)
		}
		if v.Status == models.AccountPending {
			if v, err = accounts.Approve(ctx, v.ID, admin); err != nil {
				return errors.Wrapf(err, "approve %s", in.Email)
			}
		}
		created[v.Role] = v
	}

	citizen := models.Actor{ID: created[models.RoleCitizen].ID, Role: models.RoleCitizen}
	agent := models.Actor{ID: created[models.RoleAgent].ID, Role: models.RoleAgent}
	address := created[models.RoleCitizen].Address

	if _, err := pickups.CreateRequest(ctx, citizen, []models.Item{{Description: "Old Laptop", Quantity: 1}}, address); err != nil {
		return err
	}
	p, err := pickups.CreateRequest(ctx, citizen, []models.Item{{Description: "Mobile Phone", Quantity: 2}}, address)
	if err != nil {
		return err
	}
	if _, err := coordinator.AssignAgent(ctx, p.ID, agent.ID, admin); err != nil {
		return err
	}
	if _, err := pickups.AdvanceStatus(ctx, p.ID, models.PickupCollected, services.AdvanceInput{}, agent); err != nil {
		return err
	}

	fmt.Println("Test accounts:")
	fmt.Printf("  %-10s %-20s %s\n", models.RoleAdmin, adminView.Email, seedPassword)
	for _, in := range seedAccounts {
		fmt.Printf("  %-10s %-20s %s\n", in.Role, in.Email, seedPassword)
	}
	return nil
}
