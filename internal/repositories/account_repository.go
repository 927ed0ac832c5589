package repositories

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/madhvv-7/E-waste-madhav/internal/models"
)

// AccountRepository is the identity store. Status changes go through
// UpdateStatus so that every write is conditional on the prior status.
type AccountRepository struct {
	DB      *sql.DB
	Dialect Dialect
}

// AccountFilter narrows List. Zero values match everything.
type AccountFilter struct {
	Role   models.Role
	Status models.AccountStatus
}

const accountColumns = `id, name, email, password_hash, role, status, address, phone, created_at, updated_at`

func (r *AccountRepository) Create(ctx context.Context, a models.Account) (models.Account, error) {
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	a.Email = models.NormalizeEmail(a.Email)
	query := r.Dialect.Rebind(`
        INSERT INTO users (` + accountColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `)
	_, err := r.DB.ExecContext(ctx, query,
		a.ID, a.Name, a.Email, a.PasswordHash, string(a.Role), string(a.Status),
		a.Address, a.Phone, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isDuplicate(err) {
			return models.Account{}, ErrDuplicate
		}
		return models.Account{}, errors.Wrap(err, "insert account")
	}
	return a, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (models.Account, error) {
	return getAccount(ctx, r.DB, r.Dialect, `id = ?`, id)
}

// GetByEmail looks the account up by its normalized email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	return getAccount(ctx, r.DB, r.Dialect, `email = ?`, models.NormalizeEmail(email))
}

func getAccount(ctx context.Context, q queryer, d Dialect, where string, arg any) (models.Account, error) {
	query := d.Rebind(`SELECT ` + accountColumns + ` FROM users WHERE ` + where)
	a, err := scanAccount(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ErrNotFound
	}
	if err != nil {
		return models.Account{}, errors.Wrap(err, "select account")
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (models.Account, error) {
	var (
		a            models.Account
		role, status string
	)
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &role, &status,
		&a.Address, &a.Phone, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return models.Account{}, err
	}
	a.Role = models.Role(role)
	a.Status = models.AccountStatus(status)
	return a, nil
}

// List returns accounts ordered by creation time, newest first.
func (r *AccountRepository) List(ctx context.Context, f AccountFilter) ([]models.Account, error) {
	var (
		conds []string
		args  []any
	)
	if f.Role != "" {
		conds = append(conds, "role = ?")
		args = append(args, string(f.Role))
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	query := `SELECT ` + accountColumns + ` FROM users`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "list accounts")
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan account")
		}
		out = append(out, a)
	}
	return out, errors.WithStack(rows.Err())
}

// ListPendingStaff returns agent and recycler accounts awaiting approval.
func (r *AccountRepository) ListPendingStaff(ctx context.Context) ([]models.Account, error) {
	query := r.Dialect.Rebind(`SELECT ` + accountColumns + ` FROM users
        WHERE status = ? AND role IN (?, ?)
        ORDER BY created_at DESC, id`)
	rows, err := r.DB.QueryContext(ctx, query,
		string(models.AccountPending), string(models.RoleAgent), string(models.RoleRecycler))
	if err != nil {
		return nil, errors.Wrap(err, "list pending accounts")
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan account")
		}
		out = append(out, a)
	}
	return out, errors.WithStack(rows.Err())
}

// UpdateStatus moves the account from one status to another. It returns
// ErrConflict when the stored status is no longer from.
func (r *AccountRepository) UpdateStatus(ctx context.Context, id string, from, to models.AccountStatus) error {
	return updateAccountStatus(ctx, r.DB, r.Dialect, id, from, to, time.Now().UTC())
}

func updateAccountStatus(ctx context.Context, ex execer, d Dialect, id string, from, to models.AccountStatus, at time.Time) error {
	res, err := ex.ExecContext(ctx,
		d.Rebind(`UPDATE users SET status = ?, updated_at = ? WHERE id = ? AND status = ?`),
		string(to), at, id, string(from))
	if err != nil {
		return errors.Wrap(err, "update account status")
	}
	return expectOne(res, ErrConflict)
}

// Delete removes the account row. Pickup requests and appeals that reference
// it are kept for the record.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return errors.Wrap(err, "delete account")
	}
	return expectOne(res, ErrNotFound)
}
