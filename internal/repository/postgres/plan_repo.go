package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dimiplan/dimiplan-server/internal/crypto"
	"github.com/dimiplan/dimiplan-server/internal/envelope"
	"github.com/dimiplan/dimiplan-server/internal/errs"
	"github.com/dimiplan/dimiplan-server/internal/model"
)

// PlanRepo implements PlanRepository using PostgreSQL.
type PlanRepo struct {
	db  *DB
	env *envelope.Envelope[model.Plan]
}

// NewPlanRepo constructs a plan repository over the shared keyring.
func NewPlanRepo(db *DB, keys *crypto.Keyring) *PlanRepo {
	return &PlanRepo{db: db, env: envelope.New(keys, envelope.Plans)}
}

// Create verifies the parent planner, mints the plan id, and inserts the row,
// all in one transaction. Cross-owner parents are unreachable: the planner
// lookup is scoped to the owner hash.
func (r *PlanRepo) Create(ctx context.Context, externalID string, p *model.Plan) (out *model.Plan, err error) {
	row, err := r.env.WrapForInsert(externalID, *p)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer finishTx(ctx, tx, &err)

	const parent = `SELECT 1 FROM planners WHERE owner=$1 AND id=$2`
	var one int
	if err = tx.QueryRow(ctx, parent, row.Owner, row.From).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = errs.ErrNotFound
		}
		return nil, err
	}

	row.ID, err = nextIDTx(ctx, tx, row.Owner, model.KindPlan, 1)
	if err != nil {
		return nil, err
	}

	const ins = `
INSERT INTO plans (owner, id, contents, "from", priority, is_completed, start_date, due_date, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err = tx.Exec(ctx, ins,
		row.Owner, row.ID, row.Contents, row.From, row.Priority,
		boolToInt(row.IsCompleted), row.StartDate, row.DueDate,
		row.CreatedAt, row.UpdatedAt); err != nil {
		return nil, err
	}

	created := *p
	created.Owner = externalID
	created.ID = row.ID
	created.CreatedAt = row.CreatedAt
	created.UpdatedAt = row.UpdatedAt
	return &created, nil
}

// ListByPlanner returns the plans of one planner ordered by id.
func (r *PlanRepo) ListByPlanner(ctx context.Context, externalID string, plannerID int64) ([]model.Plan, error) {
	const q = `
SELECT owner, id, contents, "from", priority, is_completed, start_date, due_date, created_at, updated_at
FROM plans WHERE owner=$1 AND "from"=$2 ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, q, r.env.OwnerHash(externalID), plannerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Plan
	for rows.Next() {
		var (
			p    model.Plan
			done int16
		)
		if err := rows.Scan(&p.Owner, &p.ID, &p.Contents, &p.From, &p.Priority,
			&done, &p.StartDate, &p.DueDate, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.IsCompleted = intToBool(done)
		rec, err := r.env.UnwrapForRead(externalID, p)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Update rewrites contents, priority, completion and dates of one plan.
func (r *PlanRepo) Update(ctx context.Context, externalID string, p *model.Plan) error {
	row, err := r.env.WrapForInsert(externalID, *p)
	if err != nil {
		return err
	}

	const q = `
UPDATE plans SET contents=$3, priority=$4, is_completed=$5, start_date=$6, due_date=$7, updated_at=$8
WHERE owner=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q,
		row.Owner, row.ID, row.Contents, row.Priority, boolToInt(row.IsCompleted),
		row.StartDate, row.DueDate, r.env.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes a single plan.
func (r *PlanRepo) Delete(ctx context.Context, externalID string, id int64) error {
	const q = `DELETE FROM plans WHERE owner=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, r.env.OwnerHash(externalID), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
