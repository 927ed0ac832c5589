package repositories

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/madhvv-7/E-waste-madhav/internal/models"
)

// PickupRepository is the request store. It also owns recycling records,
// which are only ever written together with the Recycled status.
type PickupRepository struct {
	DB      *sql.DB
	Dialect Dialect
}

// PickupFilter narrows List. Zero values match everything.
type PickupFilter struct {
	OwnerID         string
	AssignedAgentID string
	Statuses        []models.PickupStatus
}

const pickupColumns = `id, owner_id, assigned_agent_id, status, pickup_address, created_at, updated_at`

// Create stores the request together with its items.
func (r *PickupRepository) Create(ctx context.Context, p models.PickupRequest) (models.PickupRequest, error) {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return models.PickupRequest{}, errors.Wrap(err, "begin tx")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, r.Dialect.Rebind(`
        INSERT INTO pickup_requests (`+pickupColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `), p.ID, p.OwnerID, nullString(p.AssignedAgentID), string(p.Status), p.PickupAddress, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		err = errors.Wrap(err, "insert pickup request")
		return models.PickupRequest{}, err
	}

	itemQuery := r.Dialect.Rebind(`INSERT INTO pickup_items (request_id, seq, description, quantity) VALUES (?, ?, ?, ?)`)
	for i, it := range p.Items {
		if _, err = tx.ExecContext(ctx, itemQuery, p.ID, i, it.Description, it.Quantity); err != nil {
			err = errors.Wrap(err, "insert pickup item")
			return models.PickupRequest{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		err = errors.Wrap(err, "commit pickup request")
		return models.PickupRequest{}, err
	}
	return p, nil
}

func (r *PickupRepository) GetByID(ctx context.Context, id string) (models.PickupRequest, error) {
	query := r.Dialect.Rebind(`SELECT ` + pickupColumns + ` FROM pickup_requests WHERE id = ?`)
	p, err := scanPickup(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.PickupRequest{}, ErrNotFound
	}
	if err != nil {
		return models.PickupRequest{}, errors.Wrap(err, "select pickup request")
	}
	items, err := r.loadItems(ctx, []string{p.ID})
	if err != nil {
		return models.PickupRequest{}, err
	}
	p.Items = items[p.ID]
	return p, nil
}

func scanPickup(row rowScanner) (models.PickupRequest, error) {
	var (
		p      models.PickupRequest
		agent  sql.NullString
		status string
	)
	if err := row.Scan(&p.ID, &p.OwnerID, &agent, &status, &p.PickupAddress, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return models.PickupRequest{}, err
	}
	p.AssignedAgentID = nullToPtr(agent)
	p.Status = models.PickupStatus(status)
	return p, nil
}

// List returns matching requests, newest first, with their items.
func (r *PickupRepository) List(ctx context.Context, f PickupFilter) ([]models.PickupRequest, error) {
	var (
		conds []string
		args  []any
	)
	if f.OwnerID != "" {
		conds = append(conds, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if f.AssignedAgentID != "" {
		conds = append(conds, "assigned_agent_id = ?")
		args = append(args, f.AssignedAgentID)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		conds = append(conds, "status IN ("+strings.Join(marks, ", ")+")")
	}
	query := `SELECT ` + pickupColumns + ` FROM pickup_requests`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	return r.query(ctx, query, args...)
}

// ListRecyclerInbox returns every request waiting for a recycler plus the
// ones recyclerID already finalized.
func (r *PickupRepository) ListRecyclerInbox(ctx context.Context, recyclerID string) ([]models.PickupRequest, error) {
	query := `SELECT p.id, p.owner_id, p.assigned_agent_id, p.status, p.pickup_address, p.created_at, p.updated_at
        FROM pickup_requests p
        LEFT JOIN recycling_records rr ON rr.pickup_request_id = p.id
        WHERE p.status = ? OR (p.status = ? AND rr.recycler_id = ?)
        ORDER BY p.created_at DESC, p.id`
	return r.query(ctx, query, string(models.PickupSentToRecycler), string(models.PickupRecycled), recyclerID)
}

func (r *PickupRepository) query(ctx context.Context, query string, args ...any) ([]models.PickupRequest, error) {
	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "list pickup requests")
	}
	var (
		out []models.PickupRequest
		ids []string
	)
	for rows.Next() {
		p, err := scanPickup(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan pickup request")
		}
		out = append(out, p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.WithStack(err)
	}
	// close before loading items: sqlite test databases run on one connection
	rows.Close()

	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (r *PickupRepository) loadItems(ctx context.Context, ids []string) (map[string][]models.Item, error) {
	out := make(map[string][]models.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	marks := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		marks[i] = "?"
		args[i] = id
	}
	query := `SELECT request_id, description, quantity FROM pickup_items
        WHERE request_id IN (` + strings.Join(marks, ", ") + `) ORDER BY request_id, seq`
	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, errors.Wrap(err, "select pickup items")
	}
	defer rows.Close()
	for rows.Next() {
		var (
			reqID string
			it    models.Item
		)
		if err := rows.Scan(&reqID, &it.Description, &it.Quantity); err != nil {
			return nil, errors.Wrap(err, "scan pickup item")
		}
		out[reqID] = append(out[reqID], it)
	}
	return out, errors.WithStack(rows.Err())
}

// Assign binds agentID to a request that is still Requested and unassigned.
// It returns ErrConflict when either condition no longer holds.
func (r *PickupRepository) Assign(ctx context.Context, id, agentID string) error {
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`
        UPDATE pickup_requests SET assigned_agent_id = ?, updated_at = ?
        WHERE id = ? AND status = ? AND assigned_agent_id IS NULL
    `), agentID, time.Now().UTC(), id, string(models.PickupRequested))
	if err != nil {
		return errors.Wrap(err, "assign agent")
	}
	return expectOne(res, ErrConflict)
}

// UpdateStatus advances a request held by agentID from one status to another.
// It returns ErrConflict when the stored status or assignee no longer match.
func (r *PickupRepository) UpdateStatus(ctx context.Context, id, agentID string, from, to models.PickupStatus) error {
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(`
        UPDATE pickup_requests SET status = ?, updated_at = ?
        WHERE id = ? AND status = ? AND assigned_agent_id = ?
    `), string(to), time.Now().UTC(), id, string(from), agentID)
	if err != nil {
		return errors.Wrap(err, "update pickup status")
	}
	return expectOne(res, ErrConflict)
}

// Finalize marks a SentToRecycler request Recycled and stores its recycling
// record in the same transaction. Nothing is written if either step fails.
func (r *PickupRepository) Finalize(ctx context.Context, rec models.RecyclingRecord) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, r.Dialect.Rebind(`
        UPDATE pickup_requests SET status = ?, updated_at = ?
        WHERE id = ? AND status = ?
    `), string(models.PickupRecycled), rec.CompletionDate, rec.PickupRequestID, string(models.PickupSentToRecycler))
	if err != nil {
		return errors.Wrap(err, "update pickup status")
	}
	if err = expectOne(res, ErrConflict); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, r.Dialect.Rebind(`
        INSERT INTO recycling_records (id, pickup_request_id, recycler_id, recycling_method, remarks, completion_date, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `), rec.ID, rec.PickupRequestID, rec.RecyclerID, rec.RecyclingMethod, rec.Remarks, rec.CompletionDate, rec.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			err = ErrConflict
			return err
		}
		return errors.Wrap(err, "insert recycling record")
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit finalize")
	}
	return nil
}

// RecyclingRecord returns the record written when the request was finalized.
func (r *PickupRepository) RecyclingRecord(ctx context.Context, requestID string) (models.RecyclingRecord, error) {
	var rec models.RecyclingRecord
	err := r.DB.QueryRowContext(ctx, r.Dialect.Rebind(`
        SELECT id, pickup_request_id, recycler_id, recycling_method, remarks, completion_date, created_at
        FROM recycling_records WHERE pickup_request_id = ?
    `), requestID).Scan(&rec.ID, &rec.PickupRequestID, &rec.RecyclerID, &rec.RecyclingMethod,
		&rec.Remarks, &rec.CompletionDate, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RecyclingRecord{}, ErrNotFound
	}
	if err != nil {
		return models.RecyclingRecord{}, errors.Wrap(err, "select recycling record")
	}
	return rec, nil
}
