package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dimiplan/dimiplan-server/internal/crypto"
	"github.com/dimiplan/dimiplan-server/internal/envelope"
	"github.com/dimiplan/dimiplan-server/internal/errs"
	"github.com/dimiplan/dimiplan-server/internal/model"
)

// PlannerRepo implements PlannerRepository using PostgreSQL.
type PlannerRepo struct {
	db  *DB
	env *envelope.Envelope[model.Planner]
}

// NewPlannerRepo constructs a planner repository over the shared keyring.
func NewPlannerRepo(db *DB, keys *crypto.Keyring) *PlannerRepo {
	return &PlannerRepo{db: db, env: envelope.New(keys, envelope.Planners)}
}

// Create mints the planner id and inserts the row in one transaction.
// Name uniqueness is enforced on the deterministic ciphertext.
func (r *PlannerRepo) Create(ctx context.Context, externalID string, p *model.Planner) (out *model.Planner, err error) {
	row, err := r.env.WrapForInsert(externalID, *p)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer finishTx(ctx, tx, &err)

	row.ID, err = nextIDTx(ctx, tx, row.Owner, model.KindPlanner, 1)
	if err != nil {
		return nil, err
	}

	const ins = `
INSERT INTO planners (owner, id, name, "from", is_daily, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err = tx.Exec(ctx, ins,
		row.Owner, row.ID, row.Name, row.From, boolToInt(row.IsDaily),
		row.CreatedAt, row.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			err = errs.ErrAlreadyExists
		}
		return nil, err
	}

	created := *p
	created.Owner = externalID
	created.ID = row.ID
	created.CreatedAt = row.CreatedAt
	created.UpdatedAt = row.UpdatedAt
	return &created, nil
}

// List returns planners of the owner, scoped to a folder when folderID is
// non-nil, ordered by id.
func (r *PlannerRepo) List(ctx context.Context, externalID string, folderID *int64) ([]model.Planner, error) {
	q := `
SELECT owner, id, name, "from", is_daily, created_at, updated_at
FROM planners WHERE owner=$1 ORDER BY id`
	args := []any{r.env.OwnerHash(externalID)}
	if folderID != nil {
		q = `
SELECT owner, id, name, "from", is_daily, created_at, updated_at
FROM planners WHERE owner=$1 AND "from"=$2 ORDER BY id`
		args = append(args, *folderID)
	}

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Planner
	for rows.Next() {
		var (
			p     model.Planner
			daily int16
		)
		if err := rows.Scan(&p.Owner, &p.ID, &p.Name, &p.From, &daily, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.IsDaily = intToBool(daily)
		rec, err := r.env.UnwrapForRead(externalID, p)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Rename changes the planner name. errs.ErrAlreadyExists when another
// planner of the owner already holds the name.
func (r *PlannerRepo) Rename(ctx context.Context, externalID string, id int64, name string) error {
	ct, err := r.env.EqualityTerm(externalID, name)
	if err != nil {
		return err
	}

	const q = `UPDATE planners SET name=$3, updated_at=$4 WHERE owner=$1 AND id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, r.env.OwnerHash(externalID), id, ct, r.env.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return errs.ErrAlreadyExists
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes the planner and its plans in one transaction. Partial
// cascades are not possible: any failure rolls both deletes back.
func (r *PlannerRepo) Delete(ctx context.Context, externalID string, id int64) (err error) {
	owner := r.env.OwnerHash(externalID)

	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer finishTx(ctx, tx, &err)

	const delPlans = `DELETE FROM plans WHERE owner=$1 AND "from"=$2`
	if _, err = tx.Exec(ctx, delPlans, owner, id); err != nil {
		return err
	}

	const delPlanner = `DELETE FROM planners WHERE owner=$1 AND id=$2`
	tag, err := tx.Exec(ctx, delPlanner, owner, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = errs.ErrNotFound
	}
	return err
}
