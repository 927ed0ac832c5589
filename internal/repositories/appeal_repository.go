package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/madhvv-7/E-waste-madhav/internal/models"
)

type AppealRepository struct {
	DB      *sql.DB
	Dialect Dialect
}

// StatusChange is an account transition applied together with an appeal resolution.
type StatusChange struct {
	AccountID string
	From, To  models.AccountStatus
}

// Resolution closes an appeal. Reactivate is nil when the account is left as is.
type Resolution struct {
	AppealID   string
	Decision   models.AppealDecision
	ResolvedBy string
	At         time.Time
	Reactivate *StatusChange
}

const appealColumns = `id, account_id, role, status_at_submission, subject, message, resolved, decision, resolved_by, created_at, resolved_at`

func (r *AppealRepository) Create(ctx context.Context, a models.Appeal) (models.Appeal, error) {
	a.CreatedAt = time.Now().UTC()
	a.Resolved = false
	_, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`
        INSERT INTO appeals (id, account_id, role, status_at_submission, subject, message, resolved, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `), a.ID, a.AccountID, string(a.Role), string(a.StatusAtSubmission), a.Subject, a.Message, false, a.CreatedAt)
	if err != nil {
		return models.Appeal{}, errors.Wrap(err, "insert appeal")
	}
	return a, nil
}

func (r *AppealRepository) GetByID(ctx context.Context, id string) (models.Appeal, error) {
	row := r.DB.QueryRowContext(ctx, r.Dialect.Rebind(`SELECT `+appealColumns+` FROM appeals WHERE id = ?`), id)
	a, err := scanAppeal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Appeal{}, ErrNotFound
	}
	if err != nil {
		return models.Appeal{}, errors.Wrap(err, "select appeal")
	}
	return a, nil
}

func scanAppeal(row rowScanner) (models.Appeal, error) {
	var (
		a                  models.Appeal
		role, status       string
		decision, resolver sql.NullString
		resolvedAt         sql.NullTime
	)
	err := row.Scan(&a.ID, &a.AccountID, &role, &status, &a.Subject, &a.Message, &a.Resolved,
		&decision, &resolver, &a.CreatedAt, &resolvedAt)
	if err != nil {
		return models.Appeal{}, err
	}
	a.Role = models.Role(role)
	a.StatusAtSubmission = models.AccountStatus(status)
	if decision.Valid {
		d := models.AppealDecision(decision.String)
		a.Decision = &d
	}
	a.ResolvedBy = nullToPtr(resolver)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	return a, nil
}

// List returns appeals newest first. A nil resolved matches both states.
func (r *AppealRepository) List(ctx context.Context, resolved *bool) ([]models.Appeal, error) {
	query := `SELECT ` + appealColumns + ` FROM appeals`
	var args []any
	if resolved != nil {
		query += ` WHERE resolved = ?`
		args = append(args, *resolved)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "list appeals")
	}
	defer rows.Close()

	var out []models.Appeal
	for rows.Next() {
		a, err := scanAppeal(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan appeal")
		}
		out = append(out, a)
	}
	return out, errors.WithStack(rows.Err())
}

// Resolve marks the appeal resolved and, when asked to, reactivates the
// account in the same transaction. It returns ErrAlreadyResolved if another
// resolution won the race and ErrConflict if the account status moved.
func (r *AppealRepository) Resolve(ctx context.Context, res Resolution) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	out, err := tx.ExecContext(ctx, r.Dialect.Rebind(`
        UPDATE appeals SET resolved = ?, decision = ?, resolved_by = ?, resolved_at = ?
        WHERE id = ? AND resolved = ?
    `), true, string(res.Decision), res.ResolvedBy, res.At, res.AppealID, false)
	if err != nil {
		return errors.Wrap(err, "resolve appeal")
	}
	if err = expectOne(out, ErrAlreadyResolved); err != nil {
		return err
	}

	if c := res.Reactivate; c != nil {
		if err = updateAccountStatus(ctx, tx, r.Dialect, c.AccountID, c.From, c.To, res.At); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit appeal resolution")
	}
	return nil
}
